package layout

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T, overlay map[string]any) *Session {
	t.Helper()
	return NewSession("test-project", NormalizeDocument("test-project", overlay), zerolog.Nop())
}

func TestSession_CreateBlock_Defaults(t *testing.T) {
	s := newTestSession(t, nil)

	result := s.ExecuteTool("create_block", map[string]any{"type": "headline", "content": "Big News"})

	assert.Equal(t, "success", result["status"])
	require.Len(t, s.Document().Blocks, 1)
	block := s.Document().Blocks[0]
	assert.Equal(t, "headline", block.Type)
	assert.Equal(t, "block", block.ID)
	assert.Equal(t, Position{Left: 96, Top: 96, Width: 320, Height: 200}, block.Position)
	assert.Equal(t, 1.0, block.Opacity)
	assert.Equal(t, DefaultLayerID, block.Layer)
	assert.Equal(t, "Big News", block.Content)
	assert.True(t, s.Modified())
	require.Len(t, s.Events(), 1)
	assert.Equal(t, "create_block", s.Events()[0].Type)
}

func TestSession_CreateBlock_IDNormalizedAndDeduped(t *testing.T) {
	s := newTestSession(t, nil)

	first := s.ExecuteTool("create_block", map[string]any{"type": "body", "id": "Hello World!!"})
	second := s.ExecuteTool("create_block", map[string]any{"type": "body", "id": "Hello World!!"})
	third := s.ExecuteTool("create_block", map[string]any{"type": "body", "id": "Hello World!!"})

	assert.Equal(t, "Hello-World", first["block"].(map[string]any)["id"])
	assert.Equal(t, "Hello-World-2", second["block"].(map[string]any)["id"])
	assert.Equal(t, "Hello-World-3", third["block"].(map[string]any)["id"])
}

func TestSession_CreateBlock_UnknownLayerFallsBackToFirst(t *testing.T) {
	s := newTestSession(t, nil)

	s.ExecuteTool("create_block", map[string]any{"type": "body", "layer": "layer-ghost"})

	block := s.Document().Blocks[0]
	assert.Equal(t, DefaultLayerID, block.Layer)
	assert.Nil(t, s.Document().LayerByID("layer-ghost"))
}

func TestSession_UpdateBlock_Partial(t *testing.T) {
	s := newTestSession(t, nil)
	s.ExecuteTool("create_block", map[string]any{
		"type":     "body",
		"id":       "col",
		"position": map[string]any{"left": 10.0, "top": 20.0, "width": 100.0, "height": 50.0},
	})

	result := s.ExecuteTool("update_block", map[string]any{
		"id":       "col",
		"position": map[string]any{"left": 200.0},
		"rotation": "sideways",
	})

	assert.Equal(t, "success", result["status"])
	block := s.Document().BlockByID("col")
	// A present position is re-sanitized as a whole: absent coordinates
	// reset to the defaults rather than keeping prior values.
	assert.Equal(t, 200.0, block.Position.Left)
	assert.Equal(t, 96.0, block.Position.Top)
	assert.Equal(t, 320.0, block.Position.Width)
	assert.Equal(t, 200.0, block.Position.Height)
	// Malformed numerics outside position keep current values.
	assert.Equal(t, 0.0, block.Rotation)

	// Fields absent from the payload stay untouched.
	untouched := s.ExecuteTool("update_block", map[string]any{"id": "col", "opacity": 0.9})
	assert.Equal(t, "success", untouched["status"])
	assert.Equal(t, 0.9, block.Opacity)
	assert.Equal(t, 200.0, block.Position.Left)
}

func TestSession_UpdateBlock_TypeAlias(t *testing.T) {
	s := newTestSession(t, nil)
	s.ExecuteTool("create_block", map[string]any{"type": "body", "id": "col"})

	s.ExecuteTool("update_block", map[string]any{"id": "col", "block_type": "Headline"})

	assert.Equal(t, "headline", s.Document().BlockByID("col").Type)
}

func TestSession_UpdateBlock_MovesToNewLayer(t *testing.T) {
	s := newTestSession(t, nil)
	s.ExecuteTool("create_block", map[string]any{"type": "body", "id": "hero"})

	s.ExecuteTool("update_block", map[string]any{"id": "hero", "layer": "layer-art"})

	assert.Equal(t, "layer-art", s.Document().BlockByID("hero").Layer)
	require.NotNil(t, s.Document().LayerByID("layer-art"))
}

func TestSession_UpdateBlock_Errors(t *testing.T) {
	s := newTestSession(t, nil)

	missingID := s.ExecuteTool("update_block", map[string]any{})
	assert.Equal(t, "error", missingID["status"])
	assert.Equal(t, "block id required", missingID["error"])

	notFound := s.ExecuteTool("update_block", map[string]any{"id": "ghost"})
	assert.Equal(t, "block 'ghost' not found", notFound["error"])
	assert.False(t, s.Modified())
	assert.Empty(t, s.Events())
}

func TestSession_UpdateBlock_OpacityClamped(t *testing.T) {
	s := newTestSession(t, nil)
	s.ExecuteTool("create_block", map[string]any{"type": "body", "id": "b"})

	s.ExecuteTool("update_block", map[string]any{"id": "b", "opacity": 5.0})
	assert.Equal(t, 1.0, s.Document().BlockByID("b").Opacity)

	s.ExecuteTool("update_block", map[string]any{"id": "b", "opacity": 0.001})
	assert.Equal(t, 0.05, s.Document().BlockByID("b").Opacity)
}

func TestSession_DeleteBlock(t *testing.T) {
	s := newTestSession(t, nil)
	s.ExecuteTool("create_block", map[string]any{"type": "body", "id": "gone"})

	result := s.ExecuteTool("delete_block", map[string]any{"id": "gone"})

	assert.Equal(t, Result{"status": "success"}, result)
	assert.Empty(t, s.Document().Blocks)
}

func TestSession_DeleteBlock_MissingLeavesSessionClean(t *testing.T) {
	s := newTestSession(t, nil)

	result := s.ExecuteTool("delete_block", map[string]any{"id": "ghost"})

	assert.Equal(t, "error", result["status"])
	assert.Equal(t, "block 'ghost' not found", result["error"])
	assert.False(t, s.Modified())
	assert.Empty(t, s.Events())
}

func TestSession_UpdateLayout(t *testing.T) {
	s := newTestSession(t, nil)

	result := s.ExecuteTool("update_layout", map[string]any{
		"columns":     40.0,
		"baseline":    "not a number",
		"gutter":      12.0,
		"orientation": " Landscape ",
		"dimensions":  map[string]any{"width": 50.0},
		"activeLayer": "layer-spread",
	})

	assert.Equal(t, "success", result["status"])
	doc := s.Document()
	assert.Equal(t, 12, doc.Columns)
	assert.Equal(t, 24, doc.Baseline)
	assert.Equal(t, 12, doc.Gutter)
	assert.Equal(t, "landscape", doc.Orientation)
	assert.Equal(t, 120.0, doc.Dimensions.Width)
	assert.Equal(t, 1123.0, doc.Dimensions.Height)
	assert.Equal(t, "layer-spread", doc.ActiveLayer)
	require.NotNil(t, doc.LayerByID("layer-spread"))
}

func TestSession_EnsureLayer(t *testing.T) {
	s := newTestSession(t, nil)

	created := s.ExecuteTool("ensure_layer", map[string]any{"id": "layer-art", "name": "Artwork"})
	assert.Equal(t, "success", created["status"])
	assert.Equal(t, "layer-art", created["layer"])
	require.NotNil(t, s.Document().LayerByID("layer-art"))
	assert.Equal(t, "Artwork", s.Document().LayerByID("layer-art").Name)

	renamed := s.ExecuteTool("ensure_layer", map[string]any{"id": "layer-art", "name": "Plates"})
	assert.Equal(t, "layer-art", renamed["layer"])
	assert.Equal(t, "Plates", s.Document().LayerByID("layer-art").Name)
	assert.Len(t, s.Document().Layers, 2)
}

func TestSession_EnsureLayer_IDFromName(t *testing.T) {
	s := newTestSession(t, nil)

	result := s.ExecuteTool("ensure_layer", map[string]any{"name": "Back Matter"})

	assert.Equal(t, "Back-Matter", result["layer"])
}

func TestSession_StyleChatBubble_BothClamped(t *testing.T) {
	s := newTestSession(t, nil)

	result := s.ExecuteTool("style_chat_bubble", map[string]any{
		"target":   "both",
		"fontSize": 60.0,
	})

	assert.Equal(t, "success", result["status"])
	assert.Equal(t, 48.0, s.Document().ChatTheme[RoleAssistant].FontSize)
	assert.Equal(t, 48.0, s.Document().ChatTheme[RoleUser].FontSize)
}

func TestSession_StyleChatBubble_UnknownTargetStylesAssistant(t *testing.T) {
	s := newTestSession(t, nil)

	s.ExecuteTool("style_chat_bubble", map[string]any{
		"target":    "narrator",
		"textColor": "#123456",
	})

	assert.Equal(t, "#123456", s.Document().ChatTheme[RoleAssistant].TextColor)
	assert.Equal(t, "#f5faff", s.Document().ChatTheme[RoleUser].TextColor)
}

func TestSession_StyleChatBubble_InvalidAlignmentKeepsCurrent(t *testing.T) {
	s := newTestSession(t, nil)

	s.ExecuteTool("style_chat_bubble", map[string]any{
		"target":    "user",
		"alignment": "diagonal",
	})

	assert.Equal(t, "right", s.Document().ChatTheme[RoleUser].Alignment)
}

func TestSession_ExecuteTool_Unknown(t *testing.T) {
	s := newTestSession(t, nil)

	result := s.ExecuteTool("reticulate_splines", nil)

	assert.Equal(t, "error", result["status"])
	assert.Equal(t, "unknown tool 'reticulate_splines'", result["error"])
	assert.False(t, s.Modified())
}

func TestSession_SnapshotDoesNotRecord(t *testing.T) {
	s := newTestSession(t, nil)

	snap := s.Snapshot()
	snap.Columns = 9

	assert.Equal(t, 3, s.Document().Columns)
	assert.False(t, s.Modified())
	assert.Empty(t, s.Events())
}

func TestSummarizeEvents(t *testing.T) {
	assert.Equal(t, "", SummarizeEvents(nil))

	events := []ToolEvent{
		{Description: "Added headline block “intro”."},
		{Description: "Adjusted layout settings."},
	}
	assert.Equal(t, "Agent actions:\n- Added headline block “intro”.\n- Adjusted layout settings.", SummarizeEvents(events))
}
