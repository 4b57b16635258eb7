// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v2"
)

// Format is a registry file syntax
type Format int

const (
	FormatYAML Format = iota
	FormatTOML
)

// FormatFromPath picks the syntax from the file extension
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return FormatYAML, fmt.Errorf("%w: unsupported file extension %q (use .yaml, .yml or .toml)", ErrConfig, filepath.Ext(path))
	}
}

// Load reads and parses a registry file
func Load(path string) (*Registry, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: load %s: %w", ErrConfig, path, err)
	}

	reg, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return reg, nil
}

// Parse parses registry data in the given format
func Parse(data []byte, format Format) (*Registry, error) {
	switch format {
	case FormatYAML:
		return parseYAML(data)
	case FormatTOML:
		return parseTOML(data)
	default:
		return nil, fmt.Errorf("%w: unknown format %d", ErrConfig, int(format))
	}
}

func parseYAML(data []byte) (*Registry, error) {
	var doc yaml.MapSlice
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: parse yaml: %v", ErrConfig, err)
	}

	for _, item := range doc {
		if fmt.Sprint(item.Key) != TopLevelKey {
			continue
		}

		entries, ok := item.Value.(yaml.MapSlice)
		if !ok {
			return nil, fmt.Errorf("%w: %q must be a mapping, got %T", ErrConfig, TopLevelKey, item.Value)
		}

		vars := make([]Variable, 0, len(entries))
		for _, entry := range entries {
			v, err := variable(fmt.Sprint(entry.Key), entry.Value)
			if err != nil {
				return nil, err
			}
			vars = append(vars, v)
		}
		return New(vars)
	}

	return nil, fmt.Errorf("%w: missing top-level key %q", ErrConfig, TopLevelKey)
}

func parseTOML(data []byte) (*Registry, error) {
	var doc map[string]interface{}
	md, err := toml.Decode(string(data), &doc)
	if err != nil {
		return nil, fmt.Errorf("%w: parse toml: %v", ErrConfig, err)
	}

	raw, ok := doc[TopLevelKey]
	if !ok {
		return nil, fmt.Errorf("%w: missing top-level key %q", ErrConfig, TopLevelKey)
	}
	table, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: %q must be a table, got %T", ErrConfig, TopLevelKey, raw)
	}

	// Go maps are unordered; the metadata keeps file order
	vars := make([]Variable, 0, len(table))
	for _, key := range md.Keys() {
		if len(key) != 2 || key[0] != TopLevelKey {
			continue
		}
		v, err := variable(key[1], table[key[1]])
		if err != nil {
			return nil, err
		}
		vars = append(vars, v)
	}
	if len(vars) != len(table) {
		return nil, fmt.Errorf("%w: %q entries must be scalar request ids", ErrConfig, TopLevelKey)
	}

	return New(vars)
}
