// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package registry loads the simulator variables bridged to the panel.
//
// A registry file has a top-level "vars" mapping from simulator variable name
// to the request id used on the panel link. A null (YAML) or false value
// declares a variable that is polled but not forwarded:
//
//	vars:
//	  "COM_ACTIVE_FREQUENCY:1": 1
//	  "COM_STANDBY_FREQUENCY:1": 2
//	  PLANE_ALTITUDE: 3
//	  AIRSPEED_INDICATED: null
//
// Declaration order is preserved.
package registry

import (
	"errors"
	"fmt"
	"strings"
)

// TopLevelKey is the key holding the variable mapping
const TopLevelKey = "vars"

// ErrConfig is returned for missing or malformed registry files
var ErrConfig = errors.New("registry: invalid configuration")

// Variable is one registry entry
type Variable struct {
	Name      string
	RequestID uint8
	Forward   bool // false when declared without a request id
}

// Registry is an ordered set of variables with lookups by name and request id
type Registry struct {
	Variables []Variable

	byName map[string]int
	byID   map[uint8]int
}

// New validates vars and builds a registry. Names must be unique and non
// empty, and forwarded variables must not share a request id.
func New(vars []Variable) (*Registry, error) {
	r := &Registry{
		Variables: make([]Variable, 0, len(vars)),
		byName:    make(map[string]int, len(vars)),
		byID:      make(map[uint8]int, len(vars)),
	}

	for _, v := range vars {
		name := strings.TrimSpace(v.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: empty variable name", ErrConfig)
		}
		if _, dup := r.byName[name]; dup {
			return nil, fmt.Errorf("%w: duplicate variable %q", ErrConfig, name)
		}
		if v.Forward {
			if other, dup := r.byID[v.RequestID]; dup {
				return nil, fmt.Errorf("%w: request id %d used by both %q and %q",
					ErrConfig, v.RequestID, r.Variables[other].Name, name)
			}
			r.byID[v.RequestID] = len(r.Variables)
		}
		v.Name = name
		r.byName[name] = len(r.Variables)
		r.Variables = append(r.Variables, v)
	}

	return r, nil
}

// Names returns the variable names in declaration order
func (r *Registry) Names() []string {
	names := make([]string, len(r.Variables))
	for i, v := range r.Variables {
		names[i] = v.Name
	}
	return names
}

// Lookup returns the variable with the given name
func (r *Registry) Lookup(name string) (Variable, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Variable{}, false
	}
	return r.Variables[i], true
}

// ByRequestID returns the forwarded variable bound to id
func (r *Registry) ByRequestID(id uint8) (Variable, bool) {
	i, ok := r.byID[id]
	if !ok {
		return Variable{}, false
	}
	return r.Variables[i], true
}

// Forwarded returns the variables that have a request id, in declaration order
func (r *Registry) Forwarded() []Variable {
	out := make([]Variable, 0, len(r.byID))
	for _, v := range r.Variables {
		if v.Forward {
			out = append(out, v)
		}
	}
	return out
}

// NameOf returns the variable name bound to id, or "" when none is
func (r *Registry) NameOf(id uint8) string {
	v, ok := r.ByRequestID(id)
	if !ok {
		return ""
	}
	return v.Name
}

// variable converts a decoded config value to a Variable
func variable(name string, value interface{}) (Variable, error) {
	v := Variable{Name: name}

	var id int64
	switch x := value.(type) {
	case nil:
		return v, nil
	case bool:
		if x {
			return v, fmt.Errorf("%w: %q: true is not a request id", ErrConfig, name)
		}
		return v, nil
	case int:
		id = int64(x)
	case int64:
		id = x
	case uint64:
		if x > 255 {
			return v, fmt.Errorf("%w: %q: request id %d out of range [0,255]", ErrConfig, name, x)
		}
		id = int64(x)
	case float64:
		if x != float64(int64(x)) {
			return v, fmt.Errorf("%w: %q: request id %v is not an integer", ErrConfig, name, x)
		}
		id = int64(x)
	default:
		return v, fmt.Errorf("%w: %q: request id must be an integer, got %T", ErrConfig, name, value)
	}

	if id < 0 || id > 255 {
		return v, fmt.Errorf("%w: %q: request id %d out of range [0,255]", ErrConfig, name, id)
	}

	v.RequestID = uint8(id)
	v.Forward = true
	return v, nil
}

// Default returns the registry used when no file is given: the radio
// frequencies and altitude of the first COM unit.
func Default() *Registry {
	r, err := New([]Variable{
		{Name: "COM_ACTIVE_FREQUENCY:1", RequestID: 1, Forward: true},
		{Name: "COM_STANDBY_FREQUENCY:1", RequestID: 2, Forward: true},
		{Name: "PLANE_ALTITUDE", RequestID: 3, Forward: true},
	})
	if err != nil {
		panic(err)
	}
	return r
}
