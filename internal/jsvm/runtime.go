package jsvm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
	"github.com/rs/zerolog"
)

// Config holds configuration for the Runtime.
type Config struct {
	Pool PoolConfig
	// Timeout bounds a single Execute call.
	Timeout time.Duration
}

// DefaultConfig returns default runtime configuration.
func DefaultConfig() Config {
	return Config{
		Pool:    DefaultPoolConfig(),
		Timeout: 10 * time.Second,
	}
}

// Runtime executes JavaScript snippets on pooled VMs.
type Runtime struct {
	pool    *VMPool
	timeout time.Duration
	logger  zerolog.Logger
	closed  atomic.Bool
}

// NewRuntime creates a new JavaScript runtime.
func NewRuntime(cfg Config, logger zerolog.Logger) *Runtime {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Runtime{
		pool:    NewVMPool(cfg.Pool),
		timeout: cfg.Timeout,
		logger:  logger,
	}
}

// Execute runs script with globals bound by name and returns the exported
// completion value. console.log/warn/error are forwarded to the logger.
func (r *Runtime) Execute(ctx context.Context, name, script string, globals map[string]any) (any, error) {
	if r.closed.Load() {
		return nil, ErrClosed
	}

	prog, err := goja.Compile(name, script, false)
	if err != nil {
		var syntax *goja.CompilerSyntaxError
		if errors.As(err, &syntax) {
			return nil, &SyntaxError{Script: name, Message: syntax.Error()}
		}
		return nil, &ExecutionError{Script: name, Cause: err}
	}

	vm, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(globals)+1)
	defer func() { r.pool.Release(vm, names...) }()

	execCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	interrupted := make(chan struct{})
	stop := context.AfterFunc(execCtx, func() {
		vm.Interrupt(execCtx.Err())
		close(interrupted)
	})
	// The interrupt must land before the VM goes back to the pool.
	defer func() {
		if !stop() {
			<-interrupted
		}
	}()

	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))

	names = append(names, "console")
	if err := vm.Set("console", r.console(name)); err != nil {
		return nil, &ExecutionError{Script: name, Cause: err}
	}
	for k, v := range globals {
		names = append(names, k)
		if err := vm.Set(k, v); err != nil {
			return nil, &ExecutionError{Script: name, Cause: fmt.Errorf("bind %s: %w", k, err)}
		}
	}

	val, err := vm.RunProgram(prog)
	if err != nil {
		return nil, r.wrapError(ctx, execCtx, name, err)
	}
	return exportValue(val), nil
}

// Stats exposes pool statistics.
func (r *Runtime) Stats() PoolStats {
	return r.pool.Stats()
}

// Close shuts down the runtime and releases resources.
func (r *Runtime) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	return r.pool.Close()
}

func (r *Runtime) console(script string) map[string]any {
	logAt := func(level zerolog.Level) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]string, 0, len(call.Arguments))
			for _, arg := range call.Arguments {
				parts = append(parts, arg.String())
			}
			r.logger.WithLevel(level).Str("script", script).Msg(strings.Join(parts, " "))
			return goja.Undefined()
		}
	}
	return map[string]any{
		"log":   logAt(zerolog.DebugLevel),
		"info":  logAt(zerolog.InfoLevel),
		"warn":  logAt(zerolog.WarnLevel),
		"error": logAt(zerolog.ErrorLevel),
	}
}

// wrapError converts goja errors to structured errors.
func (r *Runtime) wrapError(parent, execCtx context.Context, script string, err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if parent.Err() != nil {
			return parent.Err()
		}
		if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			return &ExecutionError{Script: script, Cause: ErrTimeout}
		}
		return &ExecutionError{Script: script, Cause: fmt.Errorf("interrupted: %v", interrupted.Value())}
	}

	var exception *goja.Exception
	if errors.As(err, &exception) {
		return &ExecutionError{Script: script, Cause: errors.New(exception.Value().String())}
	}

	return &ExecutionError{Script: script, Cause: err}
}

func exportValue(val goja.Value) any {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil
	}
	return val.Export()
}
