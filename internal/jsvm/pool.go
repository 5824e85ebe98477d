package jsvm

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
)

// PoolConfig holds configuration for the VM pool.
type PoolConfig struct {
	// MaxSize is the maximum number of live VMs.
	MaxSize int
	// IdleTimeout is the duration after which a pooled VM is discarded.
	IdleTimeout time.Duration
}

// DefaultPoolConfig returns a PoolConfig with sensible defaults.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxSize:     4,
		IdleTimeout: 5 * time.Minute,
	}
}

type pooledVM struct {
	vm       *goja.Runtime
	lastUsed time.Time
}

// VMPool hands out goja runtimes. A goja.Runtime is not goroutine safe, so
// each VM is owned by exactly one caller between Acquire and Release.
type VMPool struct {
	idle        chan *pooledVM
	maxSize     int
	idleTimeout time.Duration
	created     atomic.Int64
	active      atomic.Int64

	mu       sync.Mutex
	closed   bool
	closedCh chan struct{}
	wg       sync.WaitGroup
}

// NewVMPool creates a pool and starts its idle eviction loop.
func NewVMPool(cfg PoolConfig) *VMPool {
	def := DefaultPoolConfig()
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = def.MaxSize
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = def.IdleTimeout
	}

	p := &VMPool{
		idle:        make(chan *pooledVM, cfg.MaxSize),
		maxSize:     cfg.MaxSize,
		idleTimeout: cfg.IdleTimeout,
		closedCh:    make(chan struct{}),
	}

	p.wg.Add(1)
	go p.evictLoop()

	return p
}

// Acquire returns an idle VM, creates one if under capacity, or waits for a
// Release until ctx is done.
func (p *VMPool) Acquire(ctx context.Context) (*goja.Runtime, error) {
	if p.isClosed() {
		return nil, ErrClosed
	}

	select {
	case inst := <-p.idle:
		return p.checkout(inst), nil
	default:
	}

	for {
		n := p.created.Load()
		if n >= int64(p.maxSize) {
			break
		}
		if p.created.CompareAndSwap(n, n+1) {
			p.active.Add(1)
			return goja.New(), nil
		}
	}

	select {
	case inst := <-p.idle:
		return p.checkout(inst), nil
	case <-ctx.Done():
		return nil, ErrPoolExhausted
	case <-p.closedCh:
		return nil, ErrClosed
	}
}

func (p *VMPool) checkout(inst *pooledVM) *goja.Runtime {
	p.active.Add(1)
	if time.Since(inst.lastUsed) > p.idleTimeout {
		return goja.New()
	}
	return inst.vm
}

// Release resets per-call globals and returns vm to the pool.
func (p *VMPool) Release(vm *goja.Runtime, globals ...string) {
	if vm == nil {
		return
	}
	p.active.Add(-1)

	for _, name := range globals {
		_ = vm.GlobalObject().Delete(name)
	}
	vm.ClearInterrupt()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		p.created.Add(-1)
		return
	}
	select {
	case p.idle <- &pooledVM{vm: vm, lastUsed: time.Now()}:
	default:
		p.created.Add(-1)
	}
}

func (p *VMPool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Close stops the eviction loop and drops pooled VMs.
func (p *VMPool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.closedCh)
	p.mu.Unlock()

	p.wg.Wait()

	for {
		select {
		case <-p.idle:
			p.created.Add(-1)
		default:
			return nil
		}
	}
}

func (p *VMPool) evictLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.evictExpired()
		case <-p.closedCh:
			return
		}
	}
}

func (p *VMPool) evictExpired() {
	n := len(p.idle)
	for i := 0; i < n; i++ {
		select {
		case inst := <-p.idle:
			if time.Since(inst.lastUsed) > p.idleTimeout {
				p.created.Add(-1)
				continue
			}
			select {
			case p.idle <- inst:
			default:
				p.created.Add(-1)
			}
		default:
			return
		}
	}
}

// PoolStats contains pool statistics.
type PoolStats struct {
	MaxSize int
	Created int
	Active  int
	Idle    int
}

// Stats returns current pool statistics.
func (p *VMPool) Stats() PoolStats {
	return PoolStats{
		MaxSize: p.maxSize,
		Created: int(p.created.Load()),
		Active:  int(p.active.Load()),
		Idle:    len(p.idle),
	}
}
