// Package session holds the per-conversation state shared by the form
// generation surface: the active schema, its raw editable text and the
// accumulated form data.
package session

import (
	"fmt"
	"maps"
	"sync"

	"github.com/tbxark/dgui/envelope"
)

type Session struct {
	mu sync.RWMutex

	presets       *Presets
	activeSchema  map[string]any
	rawSchemaText string
	formData      map[string]any
}

type Option func(*Session)

func WithPresets(p *Presets) Option {
	return func(s *Session) {
		if p != nil {
			s.presets = p
		}
	}
}

// New returns a session showing the default preset with empty form data.
func New(opts ...Option) *Session {
	s := &Session{
		presets:  BuiltinPresets(),
		formData: map[string]any{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if schema, ok := s.presets.Get(DefaultPreset); ok {
		s.setSchemaLocked(schema)
	} else {
		s.setSchemaLocked(map[string]any{})
	}
	return s
}

func (s *Session) Presets() *Presets {
	return s.presets
}

// SetSchema replaces the active schema and rewrites the raw text as its
// pretty-printed form. Existing form data is kept.
func (s *Session) SetSchema(schema map[string]any) error {
	if schema == nil {
		return &envelope.ParseError{Field: "schema", Err: fmt.Errorf("schema is nil")}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setSchemaLocked(cloneMap(schema))
	return nil
}

func (s *Session) setSchemaLocked(schema map[string]any) {
	s.activeSchema = schema
	text, err := envelope.Pretty(schema)
	if err != nil {
		text = "{}"
	}
	s.rawSchemaText = text
}

// SetSchemaFromText always keeps text as the raw schema text. The active
// schema only changes when text parses to a JSON object.
func (s *Session) SetSchemaFromText(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rawSchemaText = text
	obj, err := envelope.Text(text).Object()
	if err != nil {
		return &envelope.ParseError{Field: "schema", Err: err}
	}
	s.activeSchema = obj
	return nil
}

func (s *Session) SetFormData(data map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if data == nil {
		data = map[string]any{}
	}
	s.formData = cloneMap(data)
}

// PatchFormData applies RFC6902 operations to the form data. On failure the
// form data is left untouched.
func (s *Session) PatchFormData(ops []Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := applyRFC6902(cloneMap(s.formData), ops)
	if err != nil {
		return err
	}
	s.formData = next
	return nil
}

// PatchFields is PatchFormData restricted to the pointers the active schema
// declares.
func (s *Session) PatchFields(ops []Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ValidateOperations(ops, SchemaPointerPaths(s.activeSchema)); err != nil {
		return err
	}
	next, err := applyRFC6902(cloneMap(s.formData), ops)
	if err != nil {
		return err
	}
	s.formData = next
	return nil
}

// LoadPreset activates a named preset. Form data is not reset.
func (s *Session) LoadPreset(name string) error {
	schema, ok := s.presets.Get(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPreset, name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setSchemaLocked(schema)
	return nil
}

func (s *Session) ActiveSchema() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneMap(s.activeSchema)
}

func (s *Session) RawSchemaText() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rawSchemaText
}

func (s *Session) FormData() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneMap(s.formData)
}

type Snapshot struct {
	ActiveSchema  map[string]any `json:"activeSchema"`
	RawSchemaText string         `json:"rawSchemaText"`
	FormData      map[string]any `json:"formData"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		ActiveSchema:  cloneMap(s.activeSchema),
		RawSchemaText: s.rawSchemaText,
		FormData:      cloneMap(s.formData),
	}
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := maps.Clone(m)
	for k, v := range out {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return val
	}
}
