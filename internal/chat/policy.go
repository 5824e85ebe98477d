package chat

import (
	"slices"

	"qwenlink/internal/tools"
)

// DefaultMaxAutoInvokeAttempts bounds tool round-trips in one request.
const DefaultMaxAutoInvokeAttempts = 5

// ToolPolicy controls whether catalog functions are offered to the model and
// whether requested calls are executed automatically.
type ToolPolicy struct {
	Enabled    bool `json:"enabled"`
	AutoInvoke bool `json:"auto_invoke"`
	// MaxAutoInvokeAttempts is the number of tool round-trips after which
	// auto-invoke is switched off for the rest of the request.
	MaxAutoInvokeAttempts int `json:"max_auto_invoke_attempts"`
	// Functions restricts the offered set to these qualified names.
	// Nil offers the whole catalog.
	Functions []string `json:"functions,omitempty"`
}

func newPolicy(autoInvoke bool, functions []string) *ToolPolicy {
	p := &ToolPolicy{Enabled: true, AutoInvoke: autoInvoke, Functions: functions}
	if autoInvoke {
		p.MaxAutoInvokeAttempts = DefaultMaxAutoInvokeAttempts
	}
	return p
}

// EnableFunctions offers only the named functions.
func EnableFunctions(names []string, autoInvoke bool) *ToolPolicy {
	if names == nil {
		names = []string{}
	}
	return newPolicy(autoInvoke, slices.Clone(names))
}

// EnableCatalogFunctions offers every catalog function; calls are returned
// to the caller.
func EnableCatalogFunctions() *ToolPolicy {
	return newPolicy(false, nil)
}

// AutoInvokeCatalogFunctions offers every catalog function and executes
// requested calls.
func AutoInvokeCatalogFunctions() *ToolPolicy {
	return newPolicy(true, nil)
}

func (p *ToolPolicy) clone() *ToolPolicy {
	if p == nil {
		return &ToolPolicy{}
	}
	c := *p
	c.Functions = slices.Clone(p.Functions)
	if c.Functions == nil && p.Functions != nil {
		c.Functions = []string{}
	}
	if !c.AutoInvoke {
		c.MaxAutoInvokeAttempts = 0
	}
	if c.AutoInvoke && c.MaxAutoInvokeAttempts <= 0 {
		c.AutoInvoke = false
	}
	if c.AutoInvoke {
		c.Enabled = true
	}
	return &c
}

// offered returns the catalog functions the policy exposes, in catalog order.
func (p *ToolPolicy) offered(catalog *tools.Catalog) []tools.Function {
	if catalog == nil {
		return nil
	}
	all := catalog.List()
	if p.Functions == nil {
		return all
	}
	out := make([]tools.Function, 0, len(p.Functions))
	for _, fn := range all {
		if slices.Contains(p.Functions, tools.QualifiedName(fn.Plugin(), fn.Name())) {
			out = append(out, fn)
		}
	}
	return out
}
