package tool

import (
	"errors"
	"fmt"
)

// Catalog is the immutable set of tools exposed by one server. It is built
// once at startup and then only read, so it is safe for concurrent use
// without locking.
type Catalog struct {
	tools  []Tool
	byName map[string]int
}

// NewCatalog freezes tools into a Catalog, keeping registration order.
// Empty or duplicate names, nil handlers and duplicate schema fields are
// reported together as a joined error.
func NewCatalog(tools ...Tool) (*Catalog, error) {
	c := &Catalog{
		tools:  make([]Tool, 0, len(tools)),
		byName: make(map[string]int, len(tools)),
	}
	var errs []error
	for i, t := range tools {
		if t.Name == "" {
			errs = append(errs, fmt.Errorf("tool: tool %d has no name", i))
			continue
		}
		if _, dup := c.byName[t.Name]; dup {
			errs = append(errs, fmt.Errorf("tool: duplicate tool name %q", t.Name))
			continue
		}
		if t.Handler == nil {
			errs = append(errs, fmt.Errorf("tool: %s: nil handler", t.Name))
			continue
		}
		if err := checkFields(t.Schema); err != nil {
			errs = append(errs, fmt.Errorf("tool: %s: %w", t.Name, err))
			continue
		}
		t.Schema.Fields = append([]Field(nil), t.Schema.Fields...)
		c.byName[t.Name] = len(c.tools)
		c.tools = append(c.tools, t)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return c, nil
}

func checkFields(s Schema) error {
	seen := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		if f.Name == "" {
			return errors.New("schema field has no name")
		}
		if seen[f.Name] {
			return fmt.Errorf("duplicate schema field %q", f.Name)
		}
		seen[f.Name] = true
	}
	return nil
}

// Lookup returns the tool registered under name.
func (c *Catalog) Lookup(name string) (Tool, bool) {
	i, ok := c.byName[name]
	if !ok {
		return Tool{}, false
	}
	return c.tools[i], true
}

// Tools returns the registered tools in registration order. The slice is a
// copy.
func (c *Catalog) Tools() []Tool {
	out := make([]Tool, len(c.tools))
	copy(out, c.tools)
	return out
}

// Names returns the registered tool names in registration order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.tools))
	for i, t := range c.tools {
		out[i] = t.Name
	}
	return out
}

// Len returns the number of registered tools.
func (c *Catalog) Len() int { return len(c.tools) }
