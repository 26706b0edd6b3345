package session

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tbxark/dgui/envelope"
)

func TestNew_DefaultsToSimplePreset(t *testing.T) {
	s := New()
	schema := s.ActiveSchema()
	assert.Equal(t, "Simple Form", schema["title"])
	assert.Empty(t, s.FormData())

	parsed, err := envelope.Text(s.RawSchemaText()).Object()
	require.NoError(t, err)
	if diff := cmp.Diff(schema, parsed); diff != "" {
		t.Fatalf("raw text does not match active schema (-want +got):\n%s", diff)
	}
}

func TestSetSchema_RoundTrip(t *testing.T) {
	s := New()
	in := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"size": map[string]any{"type": "string", "enum": []any{"small", "large"}},
		},
	}
	require.NoError(t, s.SetSchema(in))

	assert.Equal(t, "{\n  \"properties\": {\n    \"size\": {\n      \"enum\": [\n        \"small\",\n        \"large\"\n      ],\n      \"type\": \"string\"\n    }\n  },\n  \"type\": \"object\"\n}", s.RawSchemaText())

	require.NoError(t, s.SetSchemaFromText(s.RawSchemaText()))
	if diff := cmp.Diff(in, s.ActiveSchema()); diff != "" {
		t.Fatalf("schema changed across round trip (-want +got):\n%s", diff)
	}
}

func TestSetSchema_ClonesInput(t *testing.T) {
	s := New()
	in := map[string]any{"type": "object", "properties": map[string]any{}}
	require.NoError(t, s.SetSchema(in))
	in["properties"].(map[string]any)["leak"] = true

	assert.Empty(t, s.ActiveSchema()["properties"])
}

func TestSetSchemaFromText_InvalidKeepsActiveSchema(t *testing.T) {
	s := New()
	before := s.ActiveSchema()

	err := s.SetSchemaFromText(`{"type": "object",`)
	var perr *envelope.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "schema", perr.Field)
	assert.Equal(t, `{"type": "object",`, s.RawSchemaText())
	assert.Equal(t, before, s.ActiveSchema())

	err = s.SetSchemaFromText(`[1,2]`)
	require.Error(t, err)
	assert.Equal(t, before, s.ActiveSchema())
	assert.Equal(t, `[1,2]`, s.RawSchemaText())
}

func TestSetSchemaFromText_KeepsOperatorFormatting(t *testing.T) {
	s := New()
	text := `{"type":"object"}`
	require.NoError(t, s.SetSchemaFromText(text))
	assert.Equal(t, text, s.RawSchemaText())
	assert.Equal(t, map[string]any{"type": "object"}, s.ActiveSchema())
}

func TestLoadPreset(t *testing.T) {
	s := New()
	s.SetFormData(map[string]any{"name": "Ada"})

	require.NoError(t, s.LoadPreset("pizza"))
	assert.Equal(t, "Pizza Order", s.ActiveSchema()["title"])
	assert.Equal(t, map[string]any{"name": "Ada"}, s.FormData())

	err := s.LoadPreset("sushi")
	assert.True(t, errors.Is(err, ErrUnknownPreset))
	assert.Equal(t, "Pizza Order", s.ActiveSchema()["title"])
}

func TestPresets_GetReturnsCopy(t *testing.T) {
	p := BuiltinPresets()
	assert.Equal(t, []string{"simple", "pizza"}, p.Names())

	first, ok := p.Get("pizza")
	require.True(t, ok)
	first["title"] = "changed"

	second, ok := p.Get("pizza")
	require.True(t, ok)
	assert.Equal(t, "Pizza Order", second["title"])
}

func TestPresets_LoadFS(t *testing.T) {
	fsys := fstest.MapFS{
		"presets/contact.json": {Data: []byte(`{"type":"object","title":"Contact"}`)},
		"presets/survey.yaml": {Data: []byte("type: object\ntitle: Survey\nproperties:\n  score:\n    type: integer\n    maximum: 10\n")},
		"presets/README.md":   {Data: []byte("ignored")},
	}
	p := NewPresets()
	require.NoError(t, p.LoadFS(fsys))
	assert.ElementsMatch(t, []string{"contact", "survey"}, p.Names())

	survey, ok := p.Get("survey")
	require.True(t, ok)
	want := map[string]any{
		"type":  "object",
		"title": "Survey",
		"properties": map[string]any{
			"score": map[string]any{"type": "integer", "maximum": float64(10)},
		},
	}
	if diff := cmp.Diff(want, survey); diff != "" {
		t.Fatalf("unexpected yaml preset (-want +got):\n%s", diff)
	}
}

func TestPresets_LoadFSRejectsNonObject(t *testing.T) {
	fsys := fstest.MapFS{"bad.yaml": {Data: []byte("- a\n- b\n")}}
	assert.Error(t, NewPresets().LoadFS(fsys))
}

func TestPatchFormData(t *testing.T) {
	s := New()
	s.SetFormData(map[string]any{"size": "small"})

	err := s.PatchFormData([]Operation{
		{Op: OperationReplace, Path: "/size", Value: "large"},
		{Op: OperationReplace, Path: "/crust", Value: "thin"},
		{Op: OperationRemove, Path: "/missing"},
		{Op: OperationAdd, Path: "/toppings", Value: []any{"olive"}},
		{Op: OperationAdd, Path: "/toppings/-", Value: "basil"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"size":     "large",
		"crust":    "thin",
		"toppings": []any{"olive", "basil"},
	}, s.FormData())
}

func TestPatchFormData_FailureLeavesDataUntouched(t *testing.T) {
	s := New()
	s.SetFormData(map[string]any{"size": "small"})

	err := s.PatchFormData([]Operation{
		{Op: OperationReplace, Path: "/size", Value: "large"},
		{Op: "move", Path: "/crust", Value: nil},
	})
	require.Error(t, err)
	assert.Equal(t, map[string]any{"size": "small"}, s.FormData())
}

func TestSnapshot(t *testing.T) {
	s := New()
	s.SetFormData(map[string]any{"name": "Ada"})
	snap := s.Snapshot()
	snap.FormData["name"] = "Grace"

	assert.Equal(t, "Ada", s.FormData()["name"])
	assert.Equal(t, s.RawSchemaText(), snap.RawSchemaText)
}

func TestStore_RoutesByKey(t *testing.T) {
	store := NewMemoryStore(nil)
	ctxA := WithKey(context.Background(), "a")
	ctxB := WithKey(context.Background(), "b")

	a, err := store.Load(ctxA)
	require.NoError(t, err)
	b, err := store.Load(ctxB)
	require.NoError(t, err)
	assert.NotSame(t, a, b)

	again, err := store.Load(ctxA)
	require.NoError(t, err)
	assert.Same(t, a, again)

	def, err := store.Load(context.Background())
	require.NoError(t, err)
	empty, err := store.Load(WithKey(context.Background(), ""))
	require.NoError(t, err)
	assert.Same(t, def, empty)
}

func TestStore_Remove(t *testing.T) {
	store := NewMemoryStore(func(ctx context.Context) *Session {
		s := New()
		_ = s.LoadPreset("pizza")
		return s
	})
	ctx := WithKey(context.Background(), "conv")

	first, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Pizza Order", first.ActiveSchema()["title"])
	first.SetFormData(map[string]any{"size": "large"})

	require.NoError(t, store.Remove(ctx))
	second, err := store.Load(ctx)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Empty(t, second.FormData())
}

func TestLoadPresetsFS_OverridesBuiltin(t *testing.T) {
	fsys := fstest.MapFS{"pizza.json": {Data: []byte(`{"type":"object","title":"House Pizza"}`)}}
	p, err := LoadPresetsFS(fsys)
	require.NoError(t, err)
	assert.Equal(t, []string{"simple", "pizza"}, p.Names())

	s := New(WithPresets(p))
	require.NoError(t, s.LoadPreset("pizza"))
	assert.Equal(t, "House Pizza", s.ActiveSchema()["title"])
}
