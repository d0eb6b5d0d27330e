package tool

import (
	"fmt"
	"slices"
)

// Set is an ordered collection of uniquely named tools.
type Set struct {
	order []string
	tools map[string]Tool
}

// NewSet builds a Set. Duplicate names are rejected.
func NewSet(tools ...Tool) (*Set, error) {
	s := &Set{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if err := s.Add(t); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add registers t.
func (s *Set) Add(t Tool) error {
	if t == nil || t.Name() == "" {
		return fmt.Errorf("tool must have a name")
	}
	if _, exists := s.tools[t.Name()]; exists {
		return fmt.Errorf("duplicate tool %q", t.Name())
	}

	s.tools[t.Name()] = t
	s.order = append(s.order, t.Name())

	return nil
}

// Get returns the tool registered under name.
func (s *Set) Get(name string) (Tool, bool) {
	t, ok := s.tools[name]
	return t, ok
}

// Len returns the number of tools.
func (s *Set) Len() int { return len(s.order) }

// Names returns the tool names in registration order.
func (s *Set) Names() []string { return slices.Clone(s.order) }

// Tools returns the tools in registration order.
func (s *Set) Tools() []Tool {
	out := make([]Tool, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.tools[name])
	}
	return out
}

// Filter returns the tools named in names, in the order given, and the names
// that did not resolve. A nil names slice selects every tool.
func (s *Set) Filter(names []string) ([]Tool, []string) {
	if names == nil {
		return s.Tools(), nil
	}

	var (
		selected []Tool
		missing  []string
	)

	seen := map[string]bool{}
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true

		if t, ok := s.tools[name]; ok {
			selected = append(selected, t)
			continue
		}
		missing = append(missing, name)
	}

	return selected, missing
}
