package tools

import (
	"fmt"
	"slices"
	"sync"
)

type funcKey struct {
	plugin string
	name   string
}

// Catalog is an ordered set of functions keyed by (plugin, name).
// It is safe for concurrent use. Enumeration follows registration order.
type Catalog struct {
	mu       sync.RWMutex
	order    []funcKey
	funcs    map[funcKey]Function
	readOnly bool
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		funcs: make(map[funcKey]Function),
	}
}

// Register adds fn to the catalog.
func (c *Catalog) Register(fn Function) error {
	if fn == nil {
		return fmt.Errorf("%w: function cannot be nil", ErrInvalidFunction)
	}
	if fn.Name() == "" {
		return fmt.Errorf("%w: function name cannot be empty", ErrInvalidFunction)
	}

	k := funcKey{plugin: fn.Plugin(), name: fn.Name()}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.readOnly {
		return ErrReadOnly
	}
	if _, exists := c.funcs[k]; exists {
		return NewFunctionAlreadyExistsError(QualifiedName(k.plugin, k.name))
	}

	c.funcs[k] = fn
	c.order = append(c.order, k)
	return nil
}

// MustRegister adds fn and panics on error.
func (c *Catalog) MustRegister(fn Function) {
	if err := c.Register(fn); err != nil {
		panic(err)
	}
}

// Get looks a function up by plugin and name.
func (c *Catalog) Get(plugin, name string) (Function, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	fn, ok := c.funcs[funcKey{plugin: plugin, name: name}]
	return fn, ok
}

// Resolve looks a function up by its qualified name. A plugin-less function
// whose own name contains the separator is still found.
func (c *Catalog) Resolve(qualified string) (Function, bool) {
	plugin, name := SplitQualifiedName(qualified)
	if fn, ok := c.Get(plugin, name); ok {
		return fn, true
	}
	if plugin != "" {
		return c.Get("", qualified)
	}
	return nil, false
}

// List returns all functions in registration order.
func (c *Catalog) List() []Function {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]Function, 0, len(c.order))
	for _, k := range c.order {
		result = append(result, c.funcs[k])
	}
	return result
}

// Names returns the qualified names of all functions in registration order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]string, 0, len(c.order))
	for _, k := range c.order {
		result = append(result, QualifiedName(k.plugin, k.name))
	}
	return result
}

// Len returns the number of registered functions.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

// Unregister removes a function.
func (c *Catalog) Unregister(plugin, name string) error {
	k := funcKey{plugin: plugin, name: name}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.readOnly {
		return ErrReadOnly
	}
	if _, exists := c.funcs[k]; !exists {
		return NewFunctionNotFoundError(QualifiedName(plugin, name))
	}

	delete(c.funcs, k)
	for i, o := range c.order {
		if o == k {
			c.order = slices.Delete(c.order, i, i+1)
			break
		}
	}
	return nil
}

// Clone creates a mutable shallow copy of the catalog.
func (c *Catalog) Clone() *Catalog {
	c.mu.RLock()
	defer c.mu.RUnlock()

	clone := NewCatalog()
	clone.order = append(clone.order, c.order...)
	for k, fn := range c.funcs {
		clone.funcs[k] = fn
	}
	return clone
}

// Snapshot returns a read-only copy. Later changes to c are not visible
// through the snapshot.
func (c *Catalog) Snapshot() *Catalog {
	s := c.Clone()
	s.readOnly = true
	return s
}

// ReadOnly reports whether c is a snapshot.
func (c *Catalog) ReadOnly() bool {
	return c.readOnly
}
