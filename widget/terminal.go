// Package widget renders form requests in a terminal. It walks the JSON Schema
// property tree, prompts for each field and hands the collected data to the
// interrupt controller.
package widget

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/tbxark/dgui/interrupt"
	"github.com/tbxark/dgui/validate"
)

const (
	uiOrder       = "ui:order"
	uiWidget      = "ui:widget"
	uiHelp        = "ui:help"
	uiPlaceholder = "ui:placeholder"
)

type Terminal struct {
	driver PromptDriver
	theme  Theme
	logger *slog.Logger

	// held for a whole Render, see Acquire
	mu sync.Mutex
}

type Option func(*Terminal)

func WithDriver(d PromptDriver) Option {
	return func(t *Terminal) {
		if d != nil {
			t.driver = d
		}
	}
}

func WithTheme(theme Theme) Option {
	return func(t *Terminal) {
		t.theme = theme
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(t *Terminal) {
		if logger != nil {
			t.logger = logger
		}
	}
}

func NewTerminal(opts ...Option) *Terminal {
	t := &Terminal{
		driver: NewSurveyDriver(),
		theme:  DefaultTheme(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

var _ interrupt.Widget = (*Terminal)(nil)

// Acquire takes the terminal for another reader of stdin, waiting for any
// render in progress. Call release when done.
func (t *Terminal) Acquire() (release func()) {
	t.mu.Lock()
	return t.mu.Unlock
}

// Render prompts for every field, validates the result and submits it. When
// validation fails the operator may edit the answers again or give up.
//
// Renders are serialised. A render whose context ends while a prompt is open
// keeps the terminal until that prompt returns, so a later render starts only
// after the operator has answered or dismissed it.
func (t *Terminal) Render(ctx context.Context, form *interrupt.Form, h interrupt.Handlers) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if header := t.theme.RenderHeader(form.Title, form.Description); header != "" {
		if err := t.driver.Info(ctx, header); err != nil {
			return err
		}
	}

	data := map[string]any{}
	w := &walk{t: t, onChange: h.OnChange, root: data}
	for {
		if err := w.object(ctx, form.Schema, form.UISchema, data); err != nil {
			return err
		}
		issues := validateData(form.Validator, data)
		if len(issues) == 0 {
			h.OnSubmit(data)
			return nil
		}
		t.logger.Debug("Form data failed validation", "form_id", form.ID, "issues", len(issues))
		if err := t.driver.Info(ctx, t.theme.RenderIssues(validate.Format(issues))); err != nil {
			return err
		}
		retry, err := t.driver.Confirm(ctx, ConfirmConfig{Message: "Fix the answers and try again?", Default: true})
		if err != nil {
			return err
		}
		if !retry {
			return interrupt.ErrAborted
		}
	}
}

func validateData(v validate.Validator, data map[string]any) []validate.Issue {
	if v == nil {
		return nil
	}
	return v.Validate(data)
}

type walk struct {
	t        *Terminal
	onChange func(map[string]any)
	root     map[string]any
}

func (w *walk) changed() {
	if w.onChange != nil {
		w.onChange(maps.Clone(w.root))
	}
}

// object prompts the properties of schema into data, in ui:order first and
// then alphabetically.
func (w *walk) object(ctx context.Context, schema, ui map[string]any, data map[string]any) error {
	props, _ := schema["properties"].(map[string]any)
	required := stringSet(schema["required"])
	for _, name := range propertyOrder(props, ui) {
		if err := ctx.Err(); err != nil {
			return err
		}
		prop, _ := props[name].(map[string]any)
		if prop == nil {
			continue
		}
		fieldUI, _ := ui[name].(map[string]any)
		if str(fieldUI, uiWidget) == "hidden" {
			if _, ok := data[name]; !ok {
				if def, ok := prop["default"]; ok {
					data[name] = def
				}
			}
			continue
		}
		current, has := data[name]
		if !has {
			current, has = prop["default"]
		}
		f := field{
			name:     name,
			schema:   prop,
			ui:       fieldUI,
			required: required[name],
			current:  current,
			has:      has,
		}
		value, set, err := w.value(ctx, f)
		if err != nil {
			return err
		}
		if set {
			data[name] = value
		} else {
			delete(data, name)
		}
		w.changed()
	}
	return nil
}

type field struct {
	name     string
	schema   map[string]any
	ui       map[string]any
	required bool
	current  any
	has      bool
}

func (f field) label() string {
	if title := str(f.schema, "title"); title != "" {
		return title
	}
	return f.name
}

func (f field) help() string {
	if help := str(f.ui, uiHelp); help != "" {
		return help
	}
	if desc := str(f.schema, "description"); desc != "" {
		return desc
	}
	return str(f.ui, uiPlaceholder)
}

// value prompts a single field. set is false when an optional field is left
// blank.
func (w *walk) value(ctx context.Context, f field) (any, bool, error) {
	d := w.t.driver
	if enum, ok := f.schema["enum"].([]any); ok && len(enum) > 0 {
		return w.enum(ctx, f, enum)
	}

	switch schemaType(f.schema) {
	case "boolean":
		def, _ := f.current.(bool)
		v, err := d.Confirm(ctx, ConfirmConfig{Message: f.label(), Default: def, Help: f.help()})
		return v, err == nil, err
	case "integer", "number":
		return w.number(ctx, f)
	case "array":
		return w.array(ctx, f)
	case "object":
		nested, _ := f.current.(map[string]any)
		nested = maps.Clone(nested)
		if nested == nil {
			nested = map[string]any{}
		}
		if err := d.Info(ctx, w.t.theme.Title.Render(f.label())); err != nil {
			return nil, false, err
		}
		if err := w.object(ctx, f.schema, f.ui, nested); err != nil {
			return nil, false, err
		}
		return nested, true, nil
	default:
		return w.text(ctx, f)
	}
}

func (w *walk) text(ctx context.Context, f field) (any, bool, error) {
	d := w.t.driver
	cfg := InputConfig{Message: f.label(), Default: stringValue(f.current), Help: f.help()}
	var (
		v   string
		err error
	)
	switch str(f.ui, uiWidget) {
	case "password":
		v, err = d.Password(ctx, cfg)
	case "textarea":
		v, err = d.TextArea(ctx, cfg)
	default:
		v, err = d.Input(ctx, cfg)
	}
	if err != nil {
		return nil, false, err
	}
	if v == "" && !f.required {
		return nil, false, nil
	}
	return v, true, nil
}

func (w *walk) number(ctx context.Context, f field) (any, bool, error) {
	d := w.t.driver
	integer := schemaType(f.schema) == "integer"
	for {
		input, err := d.Input(ctx, InputConfig{Message: f.label(), Default: stringValue(f.current), Help: f.help()})
		if err != nil {
			return nil, false, err
		}
		input = strings.TrimSpace(input)
		if input == "" {
			if f.required {
				_ = d.Info(ctx, fmt.Sprintf("%s is required", f.label()))
				continue
			}
			return nil, false, nil
		}
		if integer {
			n, err := strconv.ParseInt(input, 10, 64)
			if err != nil {
				_ = d.Info(ctx, fmt.Sprintf("%s must be a whole number", f.label()))
				continue
			}
			return n, true, nil
		}
		n, err := strconv.ParseFloat(input, 64)
		if err != nil {
			_ = d.Info(ctx, fmt.Sprintf("%s must be a number", f.label()))
			continue
		}
		return n, true, nil
	}
}

func (w *walk) enum(ctx context.Context, f field, enum []any) (any, bool, error) {
	options := make([]string, len(enum))
	defaultIdx := -1
	for i, v := range enum {
		options[i] = stringValue(v)
		if f.has && stringValue(f.current) == options[i] {
			defaultIdx = i
		}
	}
	for {
		idx, err := w.t.driver.Select(ctx, SelectConfig{
			Message:      f.label(),
			Options:      options,
			DefaultIndex: defaultIdx,
			Help:         f.help(),
		})
		if err != nil {
			return nil, false, err
		}
		if idx >= 0 && idx < len(enum) {
			return enum[idx], true, nil
		}
		_ = w.t.driver.Info(ctx, fmt.Sprintf("Pick one of the %s options", f.label()))
	}
}

func (w *walk) array(ctx context.Context, f field) (any, bool, error) {
	d := w.t.driver
	items, _ := f.schema["items"].(map[string]any)
	existing, _ := f.current.([]any)

	if enum, ok := items["enum"].([]any); ok && len(enum) > 0 {
		options := make([]string, len(enum))
		for i, v := range enum {
			options[i] = stringValue(v)
		}
		var defaults []int
		for _, v := range existing {
			if idx := slices.Index(options, stringValue(v)); idx >= 0 {
				defaults = append(defaults, idx)
			}
		}
		picked, err := d.MultiSelect(ctx, SelectConfig{Message: f.label(), Options: options, Defaults: defaults, Help: f.help()})
		if err != nil {
			return nil, false, err
		}
		out := make([]any, 0, len(picked))
		for _, idx := range picked {
			if idx >= 0 && idx < len(enum) {
				out = append(out, enum[idx])
			}
		}
		return out, true, nil
	}

	if items == nil {
		items = map[string]any{"type": "string"}
	}
	add, err := d.Confirm(ctx, ConfirmConfig{Message: fmt.Sprintf("Add %s?", f.label()), Default: len(existing) > 0, Help: f.help()})
	if err != nil {
		return nil, false, err
	}
	if !add {
		if f.required {
			return []any{}, true, nil
		}
		return nil, false, nil
	}

	var out []any
	for i := 0; ; i++ {
		item := field{name: fmt.Sprintf("%s[%d]", f.name, i), schema: items, required: true}
		if i < len(existing) {
			item.current, item.has = existing[i], true
		}
		v, set, err := w.value(ctx, item)
		if err != nil {
			return nil, false, err
		}
		if set {
			out = append(out, v)
		}
		more, err := d.Confirm(ctx, ConfirmConfig{Message: "Add another?", Default: i+1 < len(existing)})
		if err != nil {
			return nil, false, err
		}
		if !more {
			break
		}
	}
	return out, true, nil
}

// propertyOrder lists names from ui:order first. A "*" entry stands for every
// property not listed; without it the remainder follows in sorted order.
func propertyOrder(props map[string]any, ui map[string]any) []string {
	rest := slices.Sorted(maps.Keys(props))
	order, _ := ui[uiOrder].([]any)
	if len(order) == 0 {
		return rest
	}

	listed := map[string]bool{}
	for _, v := range order {
		if name, ok := v.(string); ok && name != "*" {
			listed[name] = true
		}
	}
	var remaining []string
	for _, name := range rest {
		if !listed[name] {
			remaining = append(remaining, name)
		}
	}

	var out []string
	wildcard := false
	for _, v := range order {
		name, _ := v.(string)
		switch {
		case name == "*":
			out = append(out, remaining...)
			wildcard = true
		case props[name] != nil:
			out = append(out, name)
		}
	}
	if !wildcard {
		out = append(out, remaining...)
	}
	return out
}

func schemaType(schema map[string]any) string {
	switch t := schema["type"].(type) {
	case string:
		return t
	case []any:
		for _, v := range t {
			if s, ok := v.(string); ok && s != "null" {
				return s
			}
		}
	}
	if _, ok := schema["properties"]; ok {
		return "object"
	}
	return "string"
}

func stringSet(v any) map[string]bool {
	out := map[string]bool{}
	list, _ := v.([]any)
	for _, item := range list {
		if s, ok := item.(string); ok {
			out[s] = true
		}
	}
	return out
}

func str(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func stringValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		s, err := sonic.MarshalString(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return s
	}
}
