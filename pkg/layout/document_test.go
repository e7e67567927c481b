package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultDocument(t *testing.T) {
	doc := DefaultDocument("launch-issue")

	assert.Equal(t, "launch-issue", doc.Project)
	assert.Equal(t, 3, doc.Columns)
	assert.Equal(t, 24, doc.Baseline)
	assert.Equal(t, 32, doc.Gutter)
	assert.True(t, doc.Snap)
	assert.Equal(t, 1.0, doc.Zoom)
	assert.Equal(t, "portrait", doc.Orientation)
	assert.Equal(t, "A4", doc.Format)
	assert.Equal(t, Dimensions{Width: 794, Height: 1123}, doc.Dimensions)
	assert.Empty(t, doc.Blocks)
	require.Len(t, doc.Layers, 1)
	assert.Equal(t, DefaultLayerID, doc.Layers[0].ID)
	assert.Equal(t, DefaultLayerID, doc.ActiveLayer)
	assert.Equal(t, "left", doc.ChatTheme[RoleAssistant].Alignment)
	assert.Equal(t, "right", doc.ChatTheme[RoleUser].Alignment)
}

func TestNormalizeDocument_NilOverlay(t *testing.T) {
	doc := NormalizeDocument("fresh", nil)
	assert.Equal(t, DefaultDocument("fresh"), doc)
}

func TestNormalizeDocument_ScalarsClamped(t *testing.T) {
	doc := NormalizeDocument("p", map[string]any{
		"columns":    40.0,
		"baseline":   1.0,
		"gutter":     999.0,
		"snap":       false,
		"dimensions": map[string]any{"width": 10.0, "height": 2000.0},
	})

	assert.Equal(t, 12, doc.Columns)
	assert.Equal(t, 4, doc.Baseline)
	assert.Equal(t, 256, doc.Gutter)
	assert.False(t, doc.Snap)
	assert.Equal(t, 120.0, doc.Dimensions.Width)
	assert.Equal(t, 2000.0, doc.Dimensions.Height)
}

func TestNormalizeDocument_BlocksReplacedWholesale(t *testing.T) {
	doc := NormalizeDocument("p", map[string]any{
		"blocks": []any{
			map[string]any{"id": "intro", "type": "Headline"},
			"not a block",
			map[string]any{"id": "intro"},
		},
	})

	require.Len(t, doc.Blocks, 2)
	assert.Equal(t, "intro", doc.Blocks[0].ID)
	assert.Equal(t, "headline", doc.Blocks[0].Type)
	assert.Equal(t, "intro-2", doc.Blocks[1].ID)
	assert.Equal(t, "body", doc.Blocks[1].Type)
	assert.Equal(t, Position{Left: 96, Top: 96, Width: 320, Height: 200}, doc.Blocks[0].Position)
	assert.Equal(t, 1.0, doc.Blocks[0].Opacity)
}

func TestNormalizeDocument_BlockExtraKeysPreserved(t *testing.T) {
	doc := NormalizeDocument("p", map[string]any{
		"blocks": []any{
			map[string]any{
				"id":           "photo",
				"type":         "image",
				"imageUrl":     "/project-assets/p/photo.png",
				"borderRadius": 12.0,
			},
		},
	})

	require.Len(t, doc.Blocks, 1)
	require.NotNil(t, doc.Blocks[0].Extra)
	assert.Equal(t, "/project-assets/p/photo.png", doc.Blocks[0].Extra["imageUrl"])
	assert.Equal(t, 12.0, doc.Blocks[0].Extra["borderRadius"])

	// Extras round-trip through the overlay encoding alongside named fields.
	overlay, err := doc.Overlay()
	require.NoError(t, err)
	blocks := overlay["blocks"].([]any)
	require.Len(t, blocks, 1)
	entry := blocks[0].(map[string]any)
	assert.Equal(t, "/project-assets/p/photo.png", entry["imageUrl"])
	assert.Equal(t, 12.0, entry["borderRadius"])
	assert.Equal(t, "image", entry["type"])

	// And survive a second normalization unchanged.
	again := NormalizeDocument("p", overlay)
	require.Len(t, again.Blocks, 1)
	assert.Equal(t, "/project-assets/p/photo.png", again.Blocks[0].Extra["imageUrl"])

	// Clones carry an independent copy.
	clone := doc.Clone()
	clone.Blocks[0].Extra["imageUrl"] = "/elsewhere.png"
	assert.Equal(t, "/project-assets/p/photo.png", doc.Blocks[0].Extra["imageUrl"])
}

func TestNormalizeDocument_BlockLayerAutoCreated(t *testing.T) {
	doc := NormalizeDocument("p", map[string]any{
		"blocks": []any{
			map[string]any{"id": "hero", "layer": "layer-art"},
			map[string]any{"id": "plain"},
		},
	})

	require.NotNil(t, doc.LayerByID("layer-art"))
	assert.Equal(t, "layer-art", doc.Blocks[0].Layer)
	assert.Equal(t, DefaultLayerID, doc.Blocks[1].Layer)
}

func TestNormalizeDocument_Layers(t *testing.T) {
	doc := NormalizeDocument("p", map[string]any{
		"layers": []any{
			map[string]any{"id": "layer-a", "name": "Art"},
			12.0,
			map[string]any{"id": "layer-b"},
		},
		"activeLayer": "layer-b",
	})

	require.Len(t, doc.Layers, 2)
	assert.Equal(t, 0, doc.Layers[0].Order)
	assert.Equal(t, 1, doc.Layers[1].Order)
	assert.Equal(t, DefaultLayerName, doc.Layers[1].Name)
	assert.Equal(t, "layer-b", doc.ActiveLayer)
}

func TestNormalizeDocument_ActiveLayerFallsBackToFirst(t *testing.T) {
	doc := NormalizeDocument("p", map[string]any{
		"layers":      []any{map[string]any{"id": "layer-solo", "name": "Solo"}},
		"activeLayer": "layer-missing",
	})

	assert.Equal(t, "layer-solo", doc.ActiveLayer)
}

func TestNormalizeChatTheme_MergesPerField(t *testing.T) {
	theme := NormalizeChatTheme(map[string]any{
		"assistant": map[string]any{
			"background": "#111",
			"fontSize":   200.0,
		},
		"user": "garbage",
	})

	assert.Equal(t, "#111", theme[RoleAssistant].Background)
	assert.Equal(t, 48.0, theme[RoleAssistant].FontSize)
	// Unmentioned fields keep their defaults.
	assert.Equal(t, "rgba(255, 255, 255, 0.18)", theme[RoleAssistant].BorderColor)
	assert.Equal(t, DefaultChatTheme()[RoleUser], theme[RoleUser])
}

func TestNormalizeDocument_Idempotent(t *testing.T) {
	doc := NormalizeDocument("p", map[string]any{
		"columns": 5.0,
		"blocks": []any{
			map[string]any{"id": "a", "type": "headline", "layer": "layer-x"},
		},
		"chatTheme": map[string]any{
			"user": map[string]any{"maxWidth": 50.0},
		},
	})

	overlay, err := doc.Overlay()
	require.NoError(t, err)
	again := NormalizeDocument("p", overlay)
	assert.Equal(t, doc, again)
}

func TestDocument_Clone(t *testing.T) {
	doc := NormalizeDocument("p", map[string]any{
		"blocks": []any{
			map[string]any{"id": "a", "content": map[string]any{"html": "<p>hi</p>"}},
		},
	})

	clone := doc.Clone()
	clone.Blocks[0].Content.(map[string]any)["html"] = "changed"
	clone.ChatTheme[RoleUser].FontSize = 10

	assert.Equal(t, "<p>hi</p>", doc.Blocks[0].Content.(map[string]any)["html"])
	assert.Equal(t, 15.2, doc.ChatTheme[RoleUser].FontSize)
}
