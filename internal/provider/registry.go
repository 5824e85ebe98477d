package provider

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Options configures a Client built through the registry.
type Options struct {
	APIKey        string
	BaseURL       string
	Timeout       time.Duration
	StreamTimeout time.Duration
}

// Factory builds a Client from Options.
type Factory func(opts Options) (Client, error)

var (
	factories = make(map[string]Factory)
	mu        sync.RWMutex
)

// Register makes a transport available under name. Transports register
// themselves from their package init.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[name] = f
}

// New builds the client registered under name.
func New(name string, opts Options) (Client, error) {
	mu.RLock()
	f, ok := factories[name]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown transport %q (registered: %v)", name, List())
	}
	return f(opts)
}

// List returns the registered transport names.
func List() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reset clears all registered transports (for testing).
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	factories = make(map[string]Factory)
}
