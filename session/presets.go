package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

const DefaultPreset = "simple"

var ErrUnknownPreset = errors.New("unknown preset")

// Presets is an ordered set of named example schemas.
type Presets struct {
	mu      sync.RWMutex
	order   []string
	schemas map[string]map[string]any
}

func NewPresets() *Presets {
	return &Presets{schemas: map[string]map[string]any{}}
}

// BuiltinPresets returns the simple and pizza examples.
func BuiltinPresets() *Presets {
	p := NewPresets()
	p.Add("simple", map[string]any{
		"title":    "Simple Form",
		"type":     "object",
		"required": []any{"name"},
		"properties": map[string]any{
			"name":      map[string]any{"type": "string", "title": "Name", "default": "A. User"},
			"age":       map[string]any{"type": "number", "title": "Age"},
			"isStudent": map[string]any{"type": "boolean", "title": "Is a student?", "default": false},
		},
	})
	p.Add("pizza", map[string]any{
		"title": "Pizza Order",
		"type":  "object",
		"properties": map[string]any{
			"size":     map[string]any{"type": "string", "title": "Size", "enum": []any{"small", "medium", "large"}},
			"toppings": map[string]any{"type": "array", "title": "Toppings", "items": map[string]any{"type": "string"}},
			"crust":    map[string]any{"type": "string", "title": "Crust", "enum": []any{"thin", "thick", "stuffed"}},
		},
		"required": []any{"size", "crust"},
	})
	return p
}

// Add registers or overwrites a preset. Insertion order is kept for listing.
func (p *Presets) Add(name string, schema map[string]any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.schemas[name]; !exists {
		p.order = append(p.order, name)
	}
	p.schemas[name] = schema
}

// Get returns a private copy of the named schema.
func (p *Presets) Get(name string) (map[string]any, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	schema, ok := p.schemas[name]
	if !ok {
		return nil, false
	}
	return cloneMap(schema), true
}

func (p *Presets) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.order...)
}

// LoadPresetsFS returns the builtin presets extended, or overridden, by the
// files in fsys.
func LoadPresetsFS(fsys fs.FS) (*Presets, error) {
	p := BuiltinPresets()
	if err := p.LoadFS(fsys); err != nil {
		return nil, err
	}
	return p, nil
}

// LoadFS adds every .json, .yaml and .yml file under fsys as a preset named
// after the file.
func (p *Presets) LoadFS(fsys fs.FS) error {
	if fsys == nil {
		return nil
	}
	return fs.WalkDir(fsys, ".", func(name string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() {
			return nil
		}
		ext := strings.ToLower(path.Ext(name))
		if ext != ".json" && ext != ".yaml" && ext != ".yml" {
			return nil
		}
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("presets: read %s: %w", name, err)
		}
		schema, err := parsePreset(data, name)
		if err != nil {
			return err
		}
		p.Add(strings.TrimSuffix(path.Base(name), path.Ext(name)), schema)
		return nil
	})
}

func parsePreset(data []byte, source string) (map[string]any, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, fmt.Errorf("presets: file %s is empty", source)
	}

	var schema map[string]any
	if err := json.Unmarshal(data, &schema); err == nil {
		return schema, nil
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("presets: parse %s: invalid JSON or YAML", source)
	}
	obj, ok := jsonCompatible(doc).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("presets: %s is not an object", source)
	}
	return obj, nil
}

// jsonCompatible converts YAML decoding output into the shapes a JSON decoder
// produces.
func jsonCompatible(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = jsonCompatible(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = jsonCompatible(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = jsonCompatible(item)
		}
		return out
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case uint64:
		return float64(val)
	default:
		return val
	}
}
