package jsvm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestNewVMPool_Defaults(t *testing.T) {
	pool := NewVMPool(PoolConfig{})
	defer pool.Close()

	stats := pool.Stats()
	if stats.MaxSize != 4 {
		t.Errorf("expected default MaxSize 4, got %d", stats.MaxSize)
	}
	if stats.Created != 0 {
		t.Errorf("expected Created 0, got %d", stats.Created)
	}
}

func TestVMPool_AcquireRelease(t *testing.T) {
	pool := NewVMPool(PoolConfig{MaxSize: 2})
	defer pool.Close()

	ctx := context.Background()
	vm1, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	vm2, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if vm1 == vm2 {
		t.Fatal("expected distinct VMs")
	}

	stats := pool.Stats()
	if stats.Created != 2 || stats.Active != 2 {
		t.Errorf("expected 2 created / 2 active, got %+v", stats)
	}

	pool.Release(vm1)
	stats = pool.Stats()
	if stats.Active != 1 || stats.Idle != 1 {
		t.Errorf("expected 1 active / 1 idle, got %+v", stats)
	}

	vm3, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if vm3 != vm1 {
		t.Error("expected the released VM to be reused")
	}
	pool.Release(vm2)
	pool.Release(vm3)
}

func TestVMPool_ReleaseClearsGlobals(t *testing.T) {
	pool := NewVMPool(PoolConfig{MaxSize: 1})
	defer pool.Close()

	vm, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if err := vm.Set("args", map[string]any{"a": 1}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	pool.Release(vm, "args")

	vm, err = pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer pool.Release(vm)

	val, err := vm.RunString(`typeof args`)
	if err != nil {
		t.Fatalf("RunString failed: %v", err)
	}
	if val.String() != "undefined" {
		t.Errorf("expected args to be cleared, got %s", val.String())
	}
}

func TestVMPool_AcquireWaitsForRelease(t *testing.T) {
	pool := NewVMPool(PoolConfig{MaxSize: 1})
	defer pool.Close()

	vm, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		got, err := pool.Acquire(ctx)
		if err != nil {
			t.Errorf("waiting Acquire failed: %v", err)
			return
		}
		pool.Release(got)
	}()

	time.Sleep(20 * time.Millisecond)
	pool.Release(vm)
	wg.Wait()
}

func TestVMPool_AcquireExhausted(t *testing.T) {
	pool := NewVMPool(PoolConfig{MaxSize: 1})
	defer pool.Close()

	vm, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer pool.Release(vm)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := pool.Acquire(ctx); !errors.Is(err, ErrPoolExhausted) {
		t.Errorf("expected ErrPoolExhausted, got %v", err)
	}
}

func TestVMPool_Close(t *testing.T) {
	pool := NewVMPool(PoolConfig{MaxSize: 2})

	vm, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	pool.Release(vm)

	if err := pool.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := pool.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if _, err := pool.Acquire(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestVMPool_EvictExpired(t *testing.T) {
	pool := NewVMPool(PoolConfig{MaxSize: 2, IdleTimeout: time.Millisecond})
	defer pool.Close()

	vm, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	pool.Release(vm)
	time.Sleep(5 * time.Millisecond)

	pool.evictExpired()
	stats := pool.Stats()
	if stats.Idle != 0 || stats.Created != 0 {
		t.Errorf("expected expired VM to be evicted, got %+v", stats)
	}
}
