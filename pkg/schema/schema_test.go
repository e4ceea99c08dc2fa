package schema

import (
	"encoding/json"
	"testing"

	"github.com/aretw0/questgraph/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypes_Validate(t *testing.T) {
	tests := []struct {
		name    string
		typ     Type
		value   any
		wantErr bool
	}{
		{"string ok", String(), "hello", false},
		{"string bad", String(), 42, true},
		{"int ok", Int(), 42, false},
		{"int whole float", Int(), float64(42), false},
		{"int fraction", Int(), 42.5, true},
		{"int json number", Int(), json.Number("7"), false},
		{"int json fraction", Int(), json.Number("7.5"), true},
		{"float int", Float(), 3, false},
		{"float bad", Float(), "3", true},
		{"bool ok", Bool(), true, false},
		{"bool nil", Bool(), nil, true},
		{"slice ok", Slice(String()), []any{"a", "b"}, false},
		{"slice bad elem", Slice(String()), []any{"a", 1}, true},
		{"slice nil", Slice(String()), nil, true},
		{"map ok", Map(Expr()), map[string]any{"left": "a", "right": "b"}, false},
		{"map bad", Map(Expr()), map[string]any{"left": 1}, true},
		{"map not map", Map(Expr()), "x", true},
		{"enum ok", Enum("and", "or"), "or", false},
		{"enum bad", Enum("and", "or"), "xor", true},
		{"symbol ok", Symbol(), "npc.smith", false},
		{"symbol empty", Symbol(), "", true},
		{"optional inner", Optional(Int()), "x", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.typ.Validate(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseType(t *testing.T) {
	tests := map[string]string{
		"string":       "string",
		"[symbol]":     "[symbol]",
		"{expression}": "{expression}",
		"int?":         "int?",
		"[string]?":    "[string]?",
	}
	for in, name := range tests {
		typ, err := ParseType(in)
		require.NoError(t, err, in)
		assert.Equal(t, name, typ.Name())
	}

	_, err := ParseType("complex")
	assert.Error(t, err)

	_, err = ParseTypeMap(map[string]string{"a": "int", "b": "nope"})
	assert.Error(t, err)
}

func TestValidate_RequiredAndOptional(t *testing.T) {
	s := Schema{
		"when":    Expr(),
		"title":   Optional(String()),
		"retries": Int(),
	}

	err := Validate(s, map[string]any{"when": "done", "retries": 1, "extra": []int{1}})
	assert.NoError(t, err, "optional fields may be absent and unknown keys pass")

	err = Validate(s, map[string]any{"title": 3})
	require.Error(t, err)

	errs := ValidationErrors(err)
	require.Len(t, errs, 3)
	// sorted by field name
	assert.Equal(t, "retries", errs[0].(*ValidationError).Key)
	assert.Equal(t, "title", errs[1].(*ValidationError).Key)
	assert.Equal(t, "when", errs[2].(*ValidationError).Key)
	assert.Equal(t, "required", errs[0].(*ValidationError).Reason)
}

func TestValidateField(t *testing.T) {
	s := ForKind(domain.KindGate)
	assert.NoError(t, ValidateField(s, "join", "and"))
	assert.Error(t, ValidateField(s, "join", "sometimes"))
	assert.NoError(t, ValidateField(s, "anything", 12), "unknown keys pass")
}

func TestForKind(t *testing.T) {
	obj := ForKind(domain.KindObjective)
	assert.Contains(t, obj, domain.ConfigWhen)
	assert.Contains(t, obj, domain.ConfigTitle)
	assert.NotContains(t, obj, domain.ConfigJoin)

	term := ForKind(domain.KindTerminal)
	assert.Error(t, Validate(term, map[string]any{}), "terminal requires an outcome")
	assert.NoError(t, Validate(term, map[string]any{"outcome": "failure"}))

	act := ForKind(domain.KindAction)
	assert.Error(t, Validate(act, map[string]any{"action": "give", "params": map[string]any{"item": []any{1}}}))
	assert.NoError(t, Validate(act, map[string]any{"action": "give", "params": map[string]any{"count": 2}}))
}

func TestSymbols(t *testing.T) {
	s := ForKind(domain.KindObjective)
	got := Symbols(s, map[string]any{
		"when":    "x",
		"targets": []any{"npc.a", "npc.b", 3},
	})
	assert.Equal(t, []string{"npc.a", "npc.b"}, got)
}

func TestAggregateError_String(t *testing.T) {
	err := &AggregateError{Errors: []error{
		&ValidationError{Key: "a", Reason: "required"},
		&ValidationError{Key: "b", Reason: "bad", Value: 1},
	}}
	assert.Contains(t, err.Error(), "2 validation errors")
	assert.Contains(t, err.Error(), `field "b": bad (got int)`)
}
