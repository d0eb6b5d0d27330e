package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTemplate(t *testing.T) {
	state := map[string]any{
		"topic": "graphs",
		"tags":  []any{"go", "agents"},
		"meta":  map[string]any{"n": 1},
	}

	tests := []struct {
		name string
		text string
		want string
	}{
		{"plain", "no actions here", "no actions here"},
		{"field", "Talk about {{.topic}}.", "Talk about graphs."},
		{"missing", "[{{.absent}}]", "[]"},
		{"default", `{{default "none" .absent}}`, "none"},
		{"upper", "{{upper .topic}}", "GRAPHS"},
		{"join", `{{join ", " .tags}}`, "go, agents"},
		{"json", "{{json .meta}}", `{"n":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RenderTemplate(tt.text, state)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			again, err := RenderTemplate(tt.text, state)
			require.NoError(t, err)
			assert.Equal(t, got, again)
		})
	}

	_, err := RenderTemplate("{{.topic", state)
	assert.Error(t, err)
}

func TestCreateSchema(t *testing.T) {
	type args struct {
		Agent   string   `json:"agent_name" description:"target agent"`
		Count   int      `json:"count,omitempty"`
		Tags    []string `json:"tags"`
		Note    *string  `json:"note"`
		Skipped string   `json:"-"`
		hidden  string
	}
	_ = args{}.hidden

	schema := CreateSchema(&args{})

	props := schema["properties"].(map[string]any)
	assert.Len(t, props, 4)
	assert.Equal(t, map[string]any{"type": "string", "description": "target agent"}, props["agent_name"])
	assert.Equal(t, "integer", props["count"].(map[string]any)["type"])
	assert.Equal(t, "array", props["tags"].(map[string]any)["type"])
	assert.Equal(t, []string{"agent_name", "tags"}, schema["required"])

	assert.Equal(t, map[string]any{"type": "object", "properties": map[string]any{}}, CreateSchema(42))
}

func TestValidateParameters(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name":  map[string]any{"type": "string"},
			"count": map[string]any{"type": "integer"},
			"ratio": map[string]any{"type": "number"},
		},
		"required": []any{"name"},
	}

	require.NoError(t, ValidateParameters(map[string]any{"name": "a", "count": float64(3), "ratio": 0.5, "extra": true}, schema))

	err := ValidateParameters(map[string]any{"count": 1}, schema)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "name", verr.Field)

	err = ValidateParameters(map[string]any{"name": "a", "count": 1.5}, schema)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "count", verr.Field)
	assert.Contains(t, verr.Message, "expected integer")
}

func TestNewID(t *testing.T) {
	a, b := NewID(), NewID()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}
