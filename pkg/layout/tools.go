package layout

import (
	"fmt"

	"github.com/fiona/folio/pkg/toolexecutor"
)

var typographySchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"fontSize":   map[string]any{"type": "number"},
		"lineHeight": map[string]any{"type": "number"},
		"textAlign":  map[string]any{"type": "string"},
		"textColor":  map[string]any{"type": "string"},
		"uppercase":  map[string]any{"type": "boolean"},
	},
}

func positionSchema(withDescriptions bool) map[string]any {
	if !withDescriptions {
		return map[string]any{
			"type": "object",
			"properties": map[string]any{
				"left":   map[string]any{"type": "number"},
				"top":    map[string]any{"type": "number"},
				"width":  map[string]any{"type": "number"},
				"height": map[string]any{"type": "number"},
			},
		}
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"left":   map[string]any{"type": "number", "description": "Left offset in pixels."},
			"top":    map[string]any{"type": "number", "description": "Top offset in pixels."},
			"width":  map[string]any{"type": "number", "description": "Block width in pixels."},
			"height": map[string]any{"type": "number", "description": "Block height in pixels."},
		},
	}
}

// toolSchemas is the catalog exposed to the chat model, keyed by name in
// presentation order.
func toolSchemas() []toolexecutor.Definition {
	return []toolexecutor.Definition{
		{
			Name:        "create_block",
			Description: "Insert a new block onto the canvas with optional text, colors, and placement.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id": map[string]any{"type": "string", "description": "Optional preferred block id."},
					"type": map[string]any{
						"type":        "string",
						"description": "Block type such as headline, body, image, pullquote, sidebar, caption, stat.",
					},
					"content":    map[string]any{"type": []any{"string", "null"}, "description": "HTML/text content for text blocks."},
					"background": map[string]any{"type": "string", "description": "CSS color for block background."},
					"position":   positionSchema(true),
					"layer":      map[string]any{"type": "string", "description": "Target layer id."},
					"rotation":   map[string]any{"type": "number", "description": "Rotation in degrees."},
					"opacity":    map[string]any{"type": "number", "description": "Opacity between 0 and 1."},
					"typography": typographySchema,
				},
				"required": []any{"type"},
			},
		},
		{
			Name:        "update_block",
			Description: "Modify an existing block's sizing, styling, or content by id.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id":         map[string]any{"type": "string", "description": "ID of the block to update."},
					"type":       map[string]any{"type": "string", "description": "New block type."},
					"content":    map[string]any{"type": []any{"string", "null"}, "description": "Replacement HTML/text content."},
					"background": map[string]any{"type": "string", "description": "CSS background color."},
					"position":   positionSchema(false),
					"rotation":   map[string]any{"type": "number"},
					"locked":     map[string]any{"type": "boolean"},
					"layer":      map[string]any{"type": "string"},
					"layerZ":     map[string]any{"type": "integer"},
					"opacity":    map[string]any{"type": "number"},
					"typography": typographySchema,
				},
				"required": []any{"id"},
			},
		},
		{
			Name:        "delete_block",
			Description: "Remove a block from the layout by id.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id": map[string]any{"type": "string", "description": "ID of the block to delete."},
				},
				"required": []any{"id"},
			},
		},
		{
			Name:        "ensure_layer",
			Description: "Create or rename a layer to organize blocks.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id":   map[string]any{"type": "string", "description": "Layer identifier."},
					"name": map[string]any{"type": "string", "description": "Display name for the layer."},
				},
			},
		},
		{
			Name:        "update_layout",
			Description: "Adjust global layout settings such as columns, gutters, or orientation.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"columns":     map[string]any{"type": "integer", "minimum": 1, "maximum": 12},
					"baseline":    map[string]any{"type": "integer", "description": "Baseline grid step in pixels."},
					"gutter":      map[string]any{"type": "integer", "description": "Column gutter width."},
					"snap":        map[string]any{"type": "boolean"},
					"orientation": map[string]any{"type": "string", "description": "portrait or landscape."},
					"format":      map[string]any{"type": "string", "description": "Page format label such as A4."},
					"dimensions": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"width":  map[string]any{"type": "number", "description": "Canvas width in pixels."},
							"height": map[string]any{"type": "number", "description": "Canvas height in pixels."},
						},
					},
					"activeLayer": map[string]any{"type": "string", "description": "Active layer id."},
				},
			},
		},
		{
			Name:        "style_chat_bubble",
			Description: "Adjust chat transcript bubble styling, including colors, font size, and alignment.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"target": map[string]any{
						"type":        "string",
						"enum":        []any{"assistant", "user", "both", "all"},
						"description": "Which bubble group to style.",
					},
					"background":  map[string]any{"type": "string", "description": "CSS color or gradient for the bubble background."},
					"borderColor": map[string]any{"type": "string", "description": "CSS color for bubble borders."},
					"textColor":   map[string]any{"type": "string", "description": "CSS color for bubble text."},
					"fontSize":    map[string]any{"type": "number", "description": "Font size in pixels."},
					"maxWidth": map[string]any{
						"type":        "number",
						"minimum":     10,
						"maximum":     100,
						"description": "Bubble width as a percentage of the panel.",
					},
					"alignment": map[string]any{
						"type":        "string",
						"enum":        []any{"left", "center", "right"},
						"description": "Horizontal alignment of the bubble.",
					},
				},
			},
		},
	}
}

// NewToolRegistry builds a registry whose handlers mutate the given
// session. The registry is single-use: it is bound to the session's
// lifetime and must not outlive it.
func NewToolRegistry(s *Session) (*toolexecutor.Registry, error) {
	registry := toolexecutor.NewRegistry()
	for _, def := range toolSchemas() {
		name := def.Name
		def.Handler = func(args map[string]any) map[string]any {
			return s.ExecuteTool(name, args)
		}
		if err := registry.Register(def); err != nil {
			return nil, fmt.Errorf("register layout tools: %w", err)
		}
	}
	return registry, nil
}
