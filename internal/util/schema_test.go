package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSchema(t *testing.T) {
	type Args struct {
		City     string   `json:"city" description:"City name"`
		Days     int      `json:"days,omitempty"`
		Units    *string  `json:"units"`
		Tags     []string `json:"tags,omitempty"`
		internal bool
		Skipped  string   `json:"-"`
	}

	schema := CreateSchema(Args{})
	assert.Equal(t, "object", schema["type"])

	props := schema["properties"].(map[string]any)
	assert.Equal(t, map[string]any{"type": "string", "description": "City name"}, props["city"])
	assert.Equal(t, map[string]any{"type": "integer"}, props["days"])
	assert.Equal(t, map[string]any{"type": "string"}, props["units"])
	assert.Equal(t, map[string]any{"type": "array"}, props["tags"])
	assert.NotContains(t, props, "internal")
	assert.NotContains(t, props, "Skipped")

	// Required: no omitempty and not a pointer.
	assert.Equal(t, []string{"city"}, schema["required"])
}

func TestCreateSchemaNonStruct(t *testing.T) {
	schema := CreateSchema("not a struct")
	assert.Equal(t, "object", schema["type"])
	assert.Empty(t, schema["properties"])
}

func TestValidateParameters(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name":  map[string]any{"type": "string"},
			"count": map[string]any{"type": "integer"},
			"mode":  map[string]any{"type": "string", "enum": []any{"fast", "slow"}},
		},
		"required": []string{"name"},
	}

	t.Run("valid input", func(t *testing.T) {
		err := ValidateParameters(map[string]any{"name": "x", "count": float64(3), "mode": "fast"}, schema)
		assert.NoError(t, err)
	})

	t.Run("missing required field", func(t *testing.T) {
		err := ValidateParameters(map[string]any{"count": float64(3)}, schema)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "name", verr.Field)
	})

	t.Run("wrong type", func(t *testing.T) {
		err := ValidateParameters(map[string]any{"name": "x", "count": "three"}, schema)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "count", verr.Field)
	})

	t.Run("non-integral float rejected for integer", func(t *testing.T) {
		err := ValidateParameters(map[string]any{"name": "x", "count": 2.5}, schema)
		assert.Error(t, err)
	})

	t.Run("enum violation", func(t *testing.T) {
		err := ValidateParameters(map[string]any{"name": "x", "mode": "medium"}, schema)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "mode", verr.Field)
	})

	t.Run("extra fields pass through", func(t *testing.T) {
		err := ValidateParameters(map[string]any{"name": "x", "surprise": true}, schema)
		assert.NoError(t, err)
	})

	t.Run("required list decoded from json", func(t *testing.T) {
		jsonSchema := map[string]any{
			"type":       "object",
			"properties": map[string]any{"a": map[string]any{"type": "string"}},
			"required":   []any{"a"},
		}
		err := ValidateParameters(map[string]any{}, jsonSchema)
		assert.Error(t, err)
		assert.NoError(t, ValidateParameters(map[string]any{"a": "v"}, jsonSchema))
	})
}
