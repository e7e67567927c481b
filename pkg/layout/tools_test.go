package layout

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewToolRegistry(t *testing.T) {
	s := NewSession("p", nil, zerolog.Nop())
	registry, err := NewToolRegistry(s)
	require.NoError(t, err)

	defs := registry.Definitions()
	require.Len(t, defs, 6)
	names := make([]string, 0, len(defs))
	for _, def := range defs {
		names = append(names, def.Name)
	}
	assert.Equal(t, []string{
		"create_block",
		"update_block",
		"delete_block",
		"ensure_layer",
		"update_layout",
		"style_chat_bubble",
	}, names)
}

func TestNewToolRegistry_HandlersMutateSession(t *testing.T) {
	s := NewSession("p", nil, zerolog.Nop())
	registry, err := NewToolRegistry(s)
	require.NoError(t, err)

	result := registry.Execute("create_block", map[string]any{"type": "pullquote", "id": "quote"})

	assert.Equal(t, "success", result["status"])
	require.Len(t, s.Document().Blocks, 1)
	assert.Equal(t, "quote", s.Document().Blocks[0].ID)
	assert.True(t, s.Modified())
}

func TestNewToolRegistry_UnknownToolErrors(t *testing.T) {
	s := NewSession("p", nil, zerolog.Nop())
	registry, err := NewToolRegistry(s)
	require.NoError(t, err)

	result := registry.Execute("fold_page", nil)

	assert.Equal(t, "error", result["status"])
	assert.Equal(t, "unknown tool 'fold_page'", result["error"])
}
