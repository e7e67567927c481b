package layout

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"
)

// ToolEvent records one applied mutation for the activity feed.
type ToolEvent struct {
	Type        string         `json:"type"`
	Description string         `json:"description"`
	Payload     map[string]any `json:"payload"`
}

// Result is the structured outcome a tool handler hands back to the agent.
type Result map[string]any

// Session owns one document for the duration of a request or agent run.
// All mutations flow through it so the modified flag and event feed stay
// consistent with the document. It is not safe for concurrent use; the
// store serializes writers per project.
type Session struct {
	project  string
	doc      *Document
	modified bool
	events   []ToolEvent
	logger   zerolog.Logger
}

// NewSession wraps a document in a fresh session. The document is cloned so
// callers keep an untouched copy of the loaded state.
func NewSession(project string, doc *Document, logger zerolog.Logger) *Session {
	if doc == nil {
		doc = DefaultDocument(project)
	}
	return &Session{
		project: project,
		doc:     doc.Clone(),
		logger:  logger.With().Str("component", "layout_session").Str("project", project).Logger(),
	}
}

// Document returns the session's working document.
func (s *Session) Document() *Document { return s.doc }

// Modified reports whether any tool call changed the document.
func (s *Session) Modified() bool { return s.modified }

// Events returns the mutations applied so far, in order.
func (s *Session) Events() []ToolEvent { return s.events }

// Snapshot returns a deep copy of the working document without recording
// anything.
func (s *Session) Snapshot() *Document { return s.doc.Clone() }

func (s *Session) record(eventType, description string, payload map[string]any) {
	s.modified = true
	s.events = append(s.events, ToolEvent{Type: eventType, Description: description, Payload: payload})
	s.logger.Debug().Str("event", eventType).Msg(description)
}

func errorResult(message string) Result {
	return Result{"status": "error", "error": message}
}

// nextUniqueID resolves an id collision against the current block list with
// numeric suffixes, matching how normalization dedupes loaded blocks.
func (s *Session) nextUniqueID(preferred any) string {
	seen := make(map[string]bool, len(s.doc.Blocks))
	for _, block := range s.doc.Blocks {
		seen[block.ID] = true
	}
	return uniqueID(seen, preferred, "block")
}

// ensureLayer returns the id of the layer, creating it when absent and
// renaming it when a non-empty name is supplied. Internal use only; it
// never records an event.
func (s *Session) ensureLayer(id, name string) string {
	if existing := s.doc.LayerByID(id); existing != nil {
		if name != "" {
			existing.Name = name
		}
		return existing.ID
	}
	return ensureDocumentLayer(s.doc, id, name).ID
}

// selectLayer resolves the layer a new block lands on: the requested layer
// when it already exists, otherwise the first layer in the document.
func (s *Session) selectLayer(requested string) string {
	requested = strings.TrimSpace(requested)
	if requested != "" && s.doc.LayerByID(requested) != nil {
		return requested
	}
	if len(s.doc.Layers) > 0 {
		return s.doc.Layers[0].ID
	}
	return DefaultLayerID
}

// malformed is the sentinel a decoder stores when a numeric field was
// present but not interpretable; the handler then keeps the current value.
var malformed = math.NaN()

func decodeOptionalFloat(raw any) *float64 {
	if raw == nil {
		return nil
	}
	value := CoerceFloat(raw, malformed)
	return &value
}

func decodeOptionalString(raw any) *string {
	if raw == nil {
		return nil
	}
	value := stringify(raw)
	return &value
}

func firstPresent(args map[string]any, keys ...string) any {
	for _, key := range keys {
		if value, ok := args[key]; ok && value != nil {
			if text, isString := value.(string); isString && strings.TrimSpace(text) == "" {
				continue
			}
			return value
		}
	}
	return nil
}

// CreateBlockArgs are the decoded arguments for create_block.
type CreateBlockArgs struct {
	ID         any
	Type       string
	Content    any
	Position   Position
	Rotation   float64
	Opacity    float64
	Background string
	Layer      string
	LayerZ     int
	Locked     bool
	Typography *Typography
}

// DecodeCreateBlockArgs coerces the raw tool arguments for create_block.
// Every field has a safe default; nothing in args can make this fail.
func DecodeCreateBlockArgs(args map[string]any) CreateBlockArgs {
	blockType := strings.ToLower(strings.TrimSpace(stringify(firstPresent(args, "type", "block_type"))))
	if blockType == "" {
		blockType = "body"
	}
	return CreateBlockArgs{
		ID:         args["id"],
		Type:       blockType,
		Content:    cloneValue(args["content"]),
		Position:   sanitizePosition(args["position"]),
		Rotation:   CoerceFloat(args["rotation"], 0),
		Opacity:    ClampFloat(args["opacity"], 1.0, minOpacity, 1.0),
		Background: strings.TrimSpace(stringify(args["background"])),
		Layer:      strings.TrimSpace(stringify(args["layer"])),
		LayerZ:     CoerceInt(args["layerZ"], 0),
		Locked:     truthy(args["locked"]),
		Typography: sanitizeTypography(args["typography"]),
	}
}

// CreateBlock adds a new block to the canvas and returns it. A requested
// layer that does not exist resolves to the first layer; create never grows
// the layer list.
func (s *Session) CreateBlock(args CreateBlockArgs) Result {
	id := s.nextUniqueID(args.ID)
	layerID := s.selectLayer(args.Layer)

	block := &Block{
		ID:         id,
		Type:       args.Type,
		Position:   args.Position,
		Rotation:   args.Rotation,
		Locked:     args.Locked,
		Layer:      layerID,
		LayerZ:     args.LayerZ,
		Opacity:    args.Opacity,
		Background: args.Background,
		Typography: args.Typography,
		Content:    args.Content,
	}
	s.doc.Blocks = append(s.doc.Blocks, block)
	s.record("create_block", fmt.Sprintf("Added %s block “%s”.", block.Type, block.ID), map[string]any{
		"blockId": block.ID,
		"layer":   layerID,
	})
	return Result{"status": "success", "block": toPayload(block)}
}

// UpdateBlockArgs are the decoded arguments for update_block. Pointer
// fields distinguish "absent" from "present"; numeric pointers holding the
// malformed sentinel mean the field was present but uninterpretable, so the
// current value is kept.
type UpdateBlockArgs struct {
	ID            string
	Type          *string
	Content       any
	ContentSet    bool
	Position      *Position
	Rotation      *float64
	Opacity       *float64
	Background    *string
	Layer         *string
	LayerZ        *float64
	Locked        *bool
	Typography    *Typography
	TypographySet bool
}

// DecodeUpdateBlockArgs coerces the raw tool arguments for update_block.
func DecodeUpdateBlockArgs(args map[string]any) UpdateBlockArgs {
	decoded := UpdateBlockArgs{
		ID:       strings.TrimSpace(stringify(firstPresent(args, "id", "block_id"))),
		Rotation: decodeOptionalFloat(args["rotation"]),
		Opacity:  decodeOptionalFloat(args["opacity"]),
		LayerZ:   decodeOptionalFloat(args["layerZ"]),
	}
	if raw := firstPresent(args, "type", "block_type"); raw != nil {
		token := strings.ToLower(strings.TrimSpace(stringify(raw)))
		decoded.Type = &token
	}
	if raw, ok := args["content"]; ok {
		decoded.Content = cloneValue(raw)
		decoded.ContentSet = true
	}
	if raw, ok := args["position"]; ok {
		pos := sanitizePosition(raw)
		decoded.Position = &pos
	}
	decoded.Background = decodeOptionalString(args["background"])
	if raw, ok := args["layer"]; ok && raw != nil {
		token := strings.TrimSpace(stringify(raw))
		decoded.Layer = &token
	}
	if raw, ok := args["locked"]; ok && raw != nil {
		locked := truthy(raw)
		decoded.Locked = &locked
	}
	if raw, ok := args["typography"]; ok {
		decoded.Typography = sanitizeTypography(raw)
		decoded.TypographySet = true
	}
	return decoded
}

// UpdateBlock applies a partial update to an existing block. Only fields
// present in args change; a present position replaces the whole rectangle,
// with absent or invalid coordinates falling back to the defaults.
func (s *Session) UpdateBlock(args UpdateBlockArgs) Result {
	if args.ID == "" {
		return errorResult("block id required")
	}
	block := s.doc.BlockByID(args.ID)
	if block == nil {
		return errorResult(fmt.Sprintf("block '%s' not found", args.ID))
	}

	if args.Type != nil && *args.Type != "" {
		block.Type = *args.Type
	}
	if args.ContentSet {
		block.Content = args.Content
	}
	if args.Position != nil {
		block.Position = *args.Position
	}
	if args.Rotation != nil && !math.IsNaN(*args.Rotation) {
		block.Rotation = *args.Rotation
	}
	if args.Opacity != nil && !math.IsNaN(*args.Opacity) {
		block.Opacity = ClampFloat(*args.Opacity, block.Opacity, minOpacity, 1.0)
	}
	if args.Background != nil {
		block.Background = strings.TrimSpace(*args.Background)
	}
	if args.Layer != nil {
		target := *args.Layer
		if target == "" {
			target = DefaultLayerID
		}
		block.Layer = s.ensureLayer(target, "")
	}
	if args.LayerZ != nil && !math.IsNaN(*args.LayerZ) {
		block.LayerZ = int(*args.LayerZ)
	}
	if args.Locked != nil {
		block.Locked = *args.Locked
	}
	if args.TypographySet {
		block.Typography = args.Typography
	}

	s.record("update_block", fmt.Sprintf("Updated block “%s”.", block.ID), map[string]any{
		"blockId": block.ID,
	})
	return Result{"status": "success", "block": toPayload(block)}
}

// DeleteBlock removes a block by id.
func (s *Session) DeleteBlock(args map[string]any) Result {
	id := strings.TrimSpace(stringify(firstPresent(args, "id", "block_id")))
	if id == "" {
		return errorResult("block id required")
	}
	for i, block := range s.doc.Blocks {
		if block.ID != id {
			continue
		}
		s.doc.Blocks = append(s.doc.Blocks[:i], s.doc.Blocks[i+1:]...)
		s.record("delete_block", fmt.Sprintf("Deleted block “%s”.", id), map[string]any{"blockId": id})
		return Result{"status": "success"}
	}
	return errorResult(fmt.Sprintf("block '%s' not found", id))
}

// LayoutArgs are the decoded arguments for update_layout.
type LayoutArgs struct {
	Columns     *float64
	Baseline    *float64
	Gutter      *float64
	Snap        *bool
	Orientation *string
	Format      *string
	Dimensions  map[string]any
	ActiveLayer *string
}

// DecodeLayoutArgs coerces the raw tool arguments for update_layout.
func DecodeLayoutArgs(args map[string]any) LayoutArgs {
	decoded := LayoutArgs{
		Columns:  decodeOptionalFloat(args["columns"]),
		Baseline: decodeOptionalFloat(args["baseline"]),
		Gutter:   decodeOptionalFloat(args["gutter"]),
	}
	if raw, ok := args["snap"]; ok && raw != nil {
		snap := truthy(raw)
		decoded.Snap = &snap
	}
	if raw, ok := args["orientation"]; ok && raw != nil {
		token := strings.ToLower(strings.TrimSpace(stringify(raw)))
		decoded.Orientation = &token
	}
	if raw, ok := args["format"]; ok && raw != nil {
		label := strings.TrimSpace(stringify(raw))
		decoded.Format = &label
	}
	if raw, ok := args["dimensions"].(map[string]any); ok {
		decoded.Dimensions = raw
	}
	decoded.ActiveLayer = decodeOptionalString(args["activeLayer"])
	return decoded
}

// UpdateLayout applies page-level settings: grid, snap, orientation, page
// format and dimensions, and the active layer. The active layer is created
// when it does not exist yet.
func (s *Session) UpdateLayout(args LayoutArgs) Result {
	if args.Columns != nil && !math.IsNaN(*args.Columns) {
		s.doc.Columns = ClampInt(*args.Columns, s.doc.Columns, 1, 12)
	}
	if args.Baseline != nil && !math.IsNaN(*args.Baseline) {
		s.doc.Baseline = ClampInt(*args.Baseline, s.doc.Baseline, 4, 64)
	}
	if args.Gutter != nil && !math.IsNaN(*args.Gutter) {
		s.doc.Gutter = ClampInt(*args.Gutter, s.doc.Gutter, 0, 256)
	}
	if args.Snap != nil {
		s.doc.Snap = *args.Snap
	}
	if args.Orientation != nil && *args.Orientation != "" {
		s.doc.Orientation = *args.Orientation
	}
	if args.Format != nil && *args.Format != "" {
		s.doc.Format = *args.Format
	}
	if args.Dimensions != nil {
		s.doc.Dimensions = sanitizeDimensions(args.Dimensions, s.doc.Dimensions)
	}
	if args.ActiveLayer != nil {
		target := strings.TrimSpace(*args.ActiveLayer)
		if target == "" {
			target = DefaultLayerID
		}
		s.doc.ActiveLayer = s.ensureLayer(target, "")
	}

	s.record("update_layout", "Adjusted layout settings.", map[string]any{
		"columns":     s.doc.Columns,
		"baseline":    s.doc.Baseline,
		"gutter":      s.doc.Gutter,
		"orientation": s.doc.Orientation,
		"format":      s.doc.Format,
	})
	return Result{"status": "success", "layout": toPayload(s.doc)}
}

// EnsureLayerArgs are the decoded arguments for ensure_layer.
type EnsureLayerArgs struct {
	ID   string
	Name string
}

// DecodeEnsureLayerArgs coerces the raw tool arguments for ensure_layer.
// A missing id is derived from the name.
func DecodeEnsureLayerArgs(args map[string]any) EnsureLayerArgs {
	id := strings.TrimSpace(stringify(args["id"]))
	name := strings.TrimSpace(stringify(args["name"]))
	if id == "" {
		seed := name
		if seed == "" {
			seed = DefaultLayerID
		}
		id = NormalizeID(seed, "layer")
	}
	return EnsureLayerArgs{ID: id, Name: name}
}

// EnsureLayer creates the layer when absent, renames it when a name is
// given, and records the action either way.
func (s *Session) EnsureLayer(args EnsureLayerArgs) Result {
	identifier := s.ensureLayer(args.ID, args.Name)
	s.record("ensure_layer", fmt.Sprintf("Ensured layer “%s”.", identifier), map[string]any{
		"layerId": identifier,
	})
	return Result{"status": "success", "layer": identifier}
}

// BubbleArgs are the decoded arguments for style_chat_bubble.
type BubbleArgs struct {
	Target      string
	Background  *string
	BorderColor *string
	TextColor   *string
	FontSize    *float64
	MaxWidth    *float64
	Alignment   *string
}

// DecodeBubbleArgs coerces the raw tool arguments for style_chat_bubble.
// An unrecognized target falls back to the assistant bubbles.
func DecodeBubbleArgs(args map[string]any) BubbleArgs {
	target := strings.ToLower(strings.TrimSpace(stringify(args["target"])))
	switch target {
	case RoleAssistant, RoleUser, "both", "all":
	default:
		target = RoleAssistant
	}
	decoded := BubbleArgs{
		Target:      target,
		Background:  decodeOptionalString(args["background"]),
		BorderColor: decodeOptionalString(args["borderColor"]),
		TextColor:   decodeOptionalString(args["textColor"]),
		FontSize:    decodeOptionalFloat(args["fontSize"]),
		MaxWidth:    decodeOptionalFloat(args["maxWidth"]),
	}
	if raw, ok := args["alignment"]; ok && raw != nil {
		token := stringify(raw)
		decoded.Alignment = &token
	}
	return decoded
}

// StyleChatBubble updates the bubble theme for one role or both.
func (s *Session) StyleChatBubble(args BubbleArgs) Result {
	var roles []string
	if args.Target == "both" || args.Target == "all" {
		roles = []string{RoleAssistant, RoleUser}
	} else {
		roles = []string{args.Target}
	}

	if s.doc.ChatTheme == nil {
		s.doc.ChatTheme = DefaultChatTheme()
	}
	for _, role := range roles {
		style := s.doc.ChatTheme[role]
		if style == nil {
			style = DefaultChatTheme()[role]
			s.doc.ChatTheme[role] = style
		}
		if args.Background != nil {
			style.Background = *args.Background
		}
		if args.BorderColor != nil {
			style.BorderColor = *args.BorderColor
		}
		if args.TextColor != nil {
			style.TextColor = *args.TextColor
		}
		if args.FontSize != nil && !math.IsNaN(*args.FontSize) {
			style.FontSize = ClampFloat(*args.FontSize, style.FontSize, 8.0, 48.0)
		}
		if args.MaxWidth != nil {
			width := *args.MaxWidth
			if math.IsNaN(width) {
				width = style.MaxWidth
			}
			style.MaxWidth = ClampFloat(width, style.MaxWidth, 10.0, 100.0)
		}
		if args.Alignment != nil {
			style.Alignment = SanitizeAlignment(*args.Alignment, style.Alignment)
		}
	}

	s.record("style_chat_bubble", fmt.Sprintf("Updated chat bubble styling for %s.", strings.Join(roles, ", ")), map[string]any{
		"targets": roles,
	})
	return Result{"status": "success", "chatTheme": toPayload(s.doc.ChatTheme)}
}

// ExecuteTool routes a tool call by name to the matching handler. A nil
// args map is treated as empty.
func (s *Session) ExecuteTool(name string, args map[string]any) Result {
	if args == nil {
		args = map[string]any{}
	}
	switch name {
	case "create_block":
		return s.CreateBlock(DecodeCreateBlockArgs(args))
	case "update_block":
		return s.UpdateBlock(DecodeUpdateBlockArgs(args))
	case "delete_block":
		return s.DeleteBlock(args)
	case "update_layout":
		return s.UpdateLayout(DecodeLayoutArgs(args))
	case "ensure_layer":
		return s.EnsureLayer(DecodeEnsureLayerArgs(args))
	case "style_chat_bubble":
		return s.StyleChatBubble(DecodeBubbleArgs(args))
	default:
		return errorResult(fmt.Sprintf("unknown tool '%s'", name))
	}
}

// SummarizeEvents folds the event feed into a short plain-text digest shown
// under the assistant reply. An empty feed yields an empty string.
func SummarizeEvents(events []ToolEvent) string {
	if len(events) == 0 {
		return ""
	}
	lines := make([]string, 0, len(events)+1)
	lines = append(lines, "Agent actions:")
	for _, event := range events {
		lines = append(lines, "- "+event.Description)
	}
	return strings.Join(lines, "\n")
}

// toPayload renders a model value as a generic map so tool results marshal
// the same way the persisted document does.
func toPayload(value any) map[string]any {
	raw, err := json.Marshal(value)
	if err != nil {
		return map[string]any{}
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return map[string]any{}
	}
	return payload
}
