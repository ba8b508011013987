package template_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/guestcall/application/template"
)

func TestGoTemplateEngine_Render(t *testing.T) {
	engine := template.NewGoTemplateEngine()

	t.Run("Successful Resolution", func(t *testing.T) {
		raw := []byte("result: \"{{ .vars.shape }}\"\nname: echo")

		out, err := engine.Render(raw, map[string]any{"shape": "seq<u8>"})
		require.NoError(t, err)
		assert.Contains(t, string(out), `result: "seq<u8>"`)
	})

	t.Run("Plain Document Unchanged", func(t *testing.T) {
		raw := []byte("name: calc\noperations: []\n")

		out, err := engine.Render(raw, nil)
		require.NoError(t, err)
		assert.Equal(t, raw, out)
	})

	t.Run("Missing Key Fails", func(t *testing.T) {
		raw := []byte(`result: "{{ .vars.missing }}"`)

		_, err := engine.Render(raw, map[string]any{"shape": "u8"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "map has no entry for key")
	})

	t.Run("Invalid Template Syntax", func(t *testing.T) {
		_, err := engine.Render([]byte(`result: "{{ .vars.shape"`), nil)
		require.Error(t, err)
	})
}

func TestGoTemplateEngine_Lenient(t *testing.T) {
	engine := template.NewGoTemplateEngine(template.WithStrict(false))

	out, err := engine.Render([]byte(`version: "{{ .vars.version }}"`), nil)
	require.NoError(t, err)
	assert.Equal(t, `version: "<no value>"`, string(out))
}
