package jsonx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractObject_BareObject(t *testing.T) {
	var v struct {
		Name string `json:"name"`
	}
	err := ExtractObject(`{"name": "Figure 2"}`, &v)
	require.NoError(t, err)
	assert.Equal(t, "Figure 2", v.Name)
}

func TestExtractObject_ProseWrapped(t *testing.T) {
	raw := "Sure! Here is the JSON you asked for:\n{\"name\": \"Figure 2\"}\nLet me know if you need anything else."
	var v struct {
		Name string `json:"name"`
	}
	err := ExtractObject(raw, &v)
	require.NoError(t, err)
	assert.Equal(t, "Figure 2", v.Name)
}

func TestExtractObject_LatexBackslashes(t *testing.T) {
	raw := `{"description": "The loss \alpha decays as \lambda grows"}`
	var v struct {
		Description string `json:"description"`
	}
	err := ExtractObject(raw, &v)
	require.NoError(t, err)
	assert.Equal(t, `The loss \alpha decays as \lambda grows`, v.Description)
}

func TestExtractObject_LatexUCommand(t *testing.T) {
	raw := `{"description": "Include \usepackage{graphicx} in the preamble"}`
	var v struct {
		Description string `json:"description"`
	}
	err := ExtractObject(raw, &v)
	require.NoError(t, err)
	assert.Equal(t, `Include \usepackage{graphicx} in the preamble`, v.Description)
}

func TestExtractObject_NoObject(t *testing.T) {
	var v map[string]interface{}
	err := ExtractObject("no json here at all", &v)
	assert.Error(t, err)
}

func TestExtractObject_Truncated(t *testing.T) {
	var v map[string]interface{}
	err := ExtractObject(`{"sections": [{"title": "Intro"`, &v)
	assert.Error(t, err)
}

func TestObjectString_PicksOuterDelimiters(t *testing.T) {
	raw := `prefix {"a": {"b": 1}} suffix`
	assert.Equal(t, `{"a": {"b": 1}}`, ObjectString(raw))
}

func TestEscapeBackslashes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lone backslash doubled", `a\b`, `a\\b`},
		{"valid escape kept", `a\nb`, `a\nb`},
		{"escaped quote kept", `say \"hi\"`, `say \"hi\"`},
		{"already doubled kept", `a\\b`, `a\\b`},
		{"non-ascii untouched", `é`, `é`},
		{"latex doubled", `\alpha + \beta`, `\\alpha + \\beta`},
		{"latex f command doubled", `\frac{1}{2}`, `\\frac{1}{2}`},
		{"unicode escape kept", `a\u00e9b`, `a\u00e9b`},
		{"u without hex digits doubled", `\usepackage{graphicx}`, `\\usepackage{graphicx}`},
		{"u with short hex doubled", `end \u12`, `end \\u12`},
		{"trailing backslash doubled", `end\`, `end\\`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EscapeBackslashes(tt.in))
		})
	}
}
