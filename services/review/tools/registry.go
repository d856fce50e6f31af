// Copyright (C) 2026 Loupe Authors (oss@loupedev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tools

import (
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// Registry is a name→tool lookup table.
//
// Description:
//
//	Populated once at startup and read-only afterwards, so no locking is
//	needed. Registration resolves each tool's input schema up front — a
//	tool that ships a malformed schema fails at construction time, not in
//	the middle of a review session.
//
// Thread Safety: Safe for concurrent reads after construction.
type Registry struct {
	order    []string
	tools    map[string]Tool
	resolved map[string]*jsonschema.Resolved
}

// NewRegistry builds a registry from the given tools.
//
// Outputs:
//   - *Registry: Lookup table preserving registration order.
//   - error: Duplicate tool name or an unresolvable input schema.
func NewRegistry(toolList ...Tool) (*Registry, error) {
	r := &Registry{
		tools:    make(map[string]Tool, len(toolList)),
		resolved: make(map[string]*jsonschema.Resolved, len(toolList)),
	}
	for _, t := range toolList {
		name := t.Name()
		if _, exists := r.tools[name]; exists {
			return nil, fmt.Errorf("duplicate tool name %q", name)
		}
		res, err := t.InputSchema().Resolve(nil)
		if err != nil {
			return nil, fmt.Errorf("resolving schema for tool %q: %w", name, err)
		}
		r.order = append(r.order, name)
		r.tools[name] = t
		r.resolved[name] = res
	}
	return r, nil
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// ResolvedSchema returns the pre-resolved schema for a registered tool.
func (r *Registry) ResolvedSchema(name string) (*jsonschema.Resolved, bool) {
	s, ok := r.resolved[name]
	return s, ok
}

// All returns the registered tools in registration order.
func (r *Registry) All() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}
