// Package layout holds the canonical in-memory model of a magazine layout:
// the document aggregate, the sanitizers that keep untrusted payloads from
// corrupting it, and the mutable session that tool calls run against.
package layout

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Canonical defaults shared by the document template and the sanitizers.
const (
	DefaultLayerID     = "layer-main"
	DefaultLayerName   = "Layer 1"
	DefaultOrientation = "portrait"
	DefaultFormat      = "A4"

	defaultColumns  = 3
	defaultBaseline = 24
	defaultGutter   = 32

	defaultPageWidth  = 794
	defaultPageHeight = 1123

	minPageSide = 120

	defaultBlockLeft   = 96
	defaultBlockTop    = 96
	defaultBlockWidth  = 320
	defaultBlockHeight = 200
)

// RoleAssistant and RoleUser are the two chat-theme roles that always exist.
const (
	RoleAssistant = "assistant"
	RoleUser      = "user"
)

// Dimensions is the page size in pixels.
type Dimensions struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Position places a block on the canvas.
type Position struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Typography carries optional text styling. Fields that were never supplied
// stay nil and are omitted from the persisted form; a block with no
// recognized typography fields carries a nil *Typography.
type Typography struct {
	FontSize   *float64 `json:"fontSize,omitempty"`
	LineHeight *float64 `json:"lineHeight,omitempty"`
	TextAlign  *string  `json:"textAlign,omitempty"`
	TextColor  *string  `json:"textColor,omitempty"`
	Uppercase  *bool    `json:"uppercase,omitempty"`
}

// Clone returns a deep copy.
func (t *Typography) Clone() *Typography {
	if t == nil {
		return nil
	}
	clone := Typography{}
	if t.FontSize != nil {
		v := *t.FontSize
		clone.FontSize = &v
	}
	if t.LineHeight != nil {
		v := *t.LineHeight
		clone.LineHeight = &v
	}
	if t.TextAlign != nil {
		v := *t.TextAlign
		clone.TextAlign = &v
	}
	if t.TextColor != nil {
		v := *t.TextColor
		clone.TextColor = &v
	}
	if t.Uppercase != nil {
		v := *t.Uppercase
		clone.Uppercase = &v
	}
	return &clone
}

// Block is one placed element on the canvas. Extra carries keys the editor
// attaches beyond the core schema (imageUrl, borderRadius, ...) so they
// survive normalization and round-trip back out verbatim.
type Block struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Position   Position       `json:"position"`
	Rotation   float64        `json:"rotation"`
	Locked     bool           `json:"locked"`
	Layer      string         `json:"layer"`
	LayerZ     int            `json:"layerZ"`
	Opacity    float64        `json:"opacity"`
	Background string         `json:"background"`
	Typography *Typography    `json:"typography"`
	Content    any            `json:"content"`
	Extra      map[string]any `json:"-"`
}

// blockKeys are the JSON keys held by named Block fields; anything else in
// an overlay entry lands in Extra.
var blockKeys = map[string]bool{
	"id": true, "type": true, "position": true, "rotation": true,
	"locked": true, "layer": true, "layerZ": true, "opacity": true,
	"background": true, "typography": true, "content": true,
}

// MarshalJSON flattens Extra keys alongside the named fields. Named fields
// win on collision.
func (b *Block) MarshalJSON() ([]byte, error) {
	type blockAlias Block
	raw, err := json.Marshal((*blockAlias)(b))
	if err != nil {
		return nil, err
	}
	if len(b.Extra) == 0 {
		return raw, nil
	}
	merged := map[string]any{}
	if err := json.Unmarshal(raw, &merged); err != nil {
		return nil, err
	}
	for key, value := range b.Extra {
		if !blockKeys[key] {
			merged[key] = value
		}
	}
	return json.Marshal(merged)
}

// UnmarshalJSON captures unrecognized keys into Extra.
func (b *Block) UnmarshalJSON(data []byte) error {
	type blockAlias Block
	if err := json.Unmarshal(data, (*blockAlias)(b)); err != nil {
		return err
	}
	raw := map[string]any{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for key := range raw {
		if blockKeys[key] {
			delete(raw, key)
		}
	}
	b.Extra = nil
	if len(raw) > 0 {
		b.Extra = raw
	}
	return nil
}

// Clone returns a deep copy.
func (b *Block) Clone() *Block {
	clone := *b
	clone.Typography = b.Typography.Clone()
	clone.Content = cloneValue(b.Content)
	if len(b.Extra) > 0 {
		extra := make(map[string]any, len(b.Extra))
		for key, value := range b.Extra {
			extra[key] = cloneValue(value)
		}
		clone.Extra = extra
	}
	return &clone
}

// Layer groups blocks for stacking. Order is the positional index assigned
// when the layer list is built, not persisted intent.
type Layer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Order int    `json:"order"`
}

// BubbleStyle styles the chat transcript bubbles for one role.
type BubbleStyle struct {
	Background  string  `json:"background"`
	BorderColor string  `json:"borderColor"`
	TextColor   string  `json:"textColor"`
	FontSize    float64 `json:"fontSize"`
	MaxWidth    float64 `json:"maxWidth"`
	Alignment   string  `json:"alignment"`
}

// Document is the full mutable state of one project's canvas. It is owned
// by exactly one Session at a time.
type Document struct {
	Project     string                  `json:"project"`
	Columns     int                     `json:"columns"`
	Baseline    int                     `json:"baseline"`
	Gutter      int                     `json:"gutter"`
	Snap        bool                    `json:"snap"`
	Zoom        float64                 `json:"zoom"`
	Orientation string                  `json:"orientation"`
	Format      string                  `json:"format"`
	Dimensions  Dimensions              `json:"dimensions"`
	Blocks      []*Block                `json:"blocks"`
	Layers      []*Layer                `json:"layers"`
	ActiveLayer string                  `json:"activeLayer"`
	ChatTheme   map[string]*BubbleStyle `json:"chatTheme"`
}

// DefaultChatTheme returns a fresh copy of the built-in bubble styling.
func DefaultChatTheme() map[string]*BubbleStyle {
	return map[string]*BubbleStyle{
		RoleAssistant: {
			Background:  "rgba(255, 255, 255, 0.14)",
			BorderColor: "rgba(255, 255, 255, 0.18)",
			TextColor:   "#f9fbff",
			FontSize:    15.2,
			MaxWidth:    96.0,
			Alignment:   "left",
		},
		RoleUser: {
			Background:  "linear-gradient(135deg, rgba(98, 208, 255, 0.32), rgba(56, 128, 255, 0.38))",
			BorderColor: "rgba(130, 210, 255, 0.45)",
			TextColor:   "#f5faff",
			FontSize:    15.2,
			MaxWidth:    96.0,
			Alignment:   "right",
		},
	}
}

// DefaultDocument builds the canonical empty document for a project.
func DefaultDocument(project string) *Document {
	return &Document{
		Project:     project,
		Columns:     defaultColumns,
		Baseline:    defaultBaseline,
		Gutter:      defaultGutter,
		Snap:        true,
		Zoom:        1.0,
		Orientation: DefaultOrientation,
		Format:      DefaultFormat,
		Dimensions:  Dimensions{Width: defaultPageWidth, Height: defaultPageHeight},
		Blocks:      []*Block{},
		Layers: []*Layer{
			{ID: DefaultLayerID, Name: DefaultLayerName, Order: 0},
		},
		ActiveLayer: DefaultLayerID,
		ChatTheme:   DefaultChatTheme(),
	}
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	clone := *d
	clone.Blocks = make([]*Block, 0, len(d.Blocks))
	for _, block := range d.Blocks {
		clone.Blocks = append(clone.Blocks, block.Clone())
	}
	clone.Layers = make([]*Layer, 0, len(d.Layers))
	for _, layer := range d.Layers {
		l := *layer
		clone.Layers = append(clone.Layers, &l)
	}
	clone.ChatTheme = make(map[string]*BubbleStyle, len(d.ChatTheme))
	for role, style := range d.ChatTheme {
		s := *style
		clone.ChatTheme[role] = &s
	}
	return &clone
}

// Overlay renders the document as a generic map so it can be fed back
// through NormalizeDocument before persisting.
func (d *Document) Overlay() (map[string]any, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	var overlay map[string]any
	if err := json.Unmarshal(raw, &overlay); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	return overlay, nil
}

// LayerByID returns the layer with the given id, or nil.
func (d *Document) LayerByID(id string) *Layer {
	for _, layer := range d.Layers {
		if layer.ID == id {
			return layer
		}
	}
	return nil
}

// BlockByID returns the block with the given id, or nil.
func (d *Document) BlockByID(id string) *Block {
	for _, block := range d.Blocks {
		if block.ID == id {
			return block
		}
	}
	return nil
}

// NormalizeDocument builds a canonical document from the default template
// for project overlaid with an untrusted partial document. Merge rules are
// deliberately asymmetric and must stay that way: top-level scalars are
// copied from the overlay when present, blocks are replaced wholesale (never
// merged element-wise), layers are projected with positional order, and the
// chat theme is merged per-field onto the defaults.
func NormalizeDocument(project string, overlay map[string]any) *Document {
	doc := DefaultDocument(project)
	if overlay == nil {
		return doc
	}

	if v, ok := overlay["columns"]; ok {
		doc.Columns = ClampInt(v, doc.Columns, 1, 12)
	}
	if v, ok := overlay["baseline"]; ok {
		doc.Baseline = ClampInt(v, doc.Baseline, 4, 64)
	}
	if v, ok := overlay["gutter"]; ok {
		doc.Gutter = ClampInt(v, doc.Gutter, 0, 256)
	}
	if v, ok := overlay["snap"]; ok {
		doc.Snap = truthy(v)
	}
	if v, ok := overlay["zoom"]; ok {
		doc.Zoom = CoerceFloat(v, doc.Zoom)
	}
	if v, ok := overlay["orientation"]; ok {
		if token := strings.ToLower(strings.TrimSpace(stringify(v))); token != "" {
			doc.Orientation = token
		}
	}
	if v, ok := overlay["format"]; ok {
		if label := strings.TrimSpace(stringify(v)); label != "" {
			doc.Format = label
		}
	}
	if dims, ok := overlay["dimensions"].(map[string]any); ok {
		doc.Dimensions = sanitizeDimensions(dims, doc.Dimensions)
	}

	if rawLayers, ok := overlay["layers"].([]any); ok && len(rawLayers) > 0 {
		layers := make([]*Layer, 0, len(rawLayers))
		for _, raw := range rawLayers {
			entry, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			layers = append(layers, normalizeLayer(entry, len(layers)))
		}
		if len(layers) > 0 {
			doc.Layers = layers
		}
	}

	if rawBlocks, ok := overlay["blocks"].([]any); ok {
		doc.Blocks = make([]*Block, 0, len(rawBlocks))
		seen := map[string]bool{}
		for _, raw := range rawBlocks {
			entry, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			block := normalizeBlock(entry, seen)
			seen[block.ID] = true
			doc.Blocks = append(doc.Blocks, block)
		}
	}

	// Blocks may reference layers the overlay never declared; auto-create
	// rather than reject so the reference invariant holds.
	for _, block := range doc.Blocks {
		if block.Layer == "" {
			block.Layer = doc.Layers[0].ID
			continue
		}
		ensureDocumentLayer(doc, block.Layer, "")
	}

	doc.ActiveLayer = doc.Layers[0].ID
	if v, ok := overlay["activeLayer"]; ok {
		requested := strings.TrimSpace(stringify(v))
		if requested != "" && doc.LayerByID(requested) != nil {
			doc.ActiveLayer = requested
		}
	}

	doc.ChatTheme = NormalizeChatTheme(overlay["chatTheme"])
	return doc
}

// ensureDocumentLayer appends a layer for id when no layer with that id
// exists yet. An empty name defaults to the id itself.
func ensureDocumentLayer(doc *Document, id, name string) *Layer {
	if existing := doc.LayerByID(id); existing != nil {
		return existing
	}
	if name == "" {
		name = id
	}
	layer := &Layer{ID: id, Name: name, Order: len(doc.Layers)}
	doc.Layers = append(doc.Layers, layer)
	return layer
}

// normalizeLayer projects a raw layer entry, assigning order positionally.
func normalizeLayer(entry map[string]any, order int) *Layer {
	id := strings.TrimSpace(stringify(entry["id"]))
	if id == "" {
		id = DefaultLayerID
	}
	name := strings.TrimSpace(stringify(entry["name"]))
	if name == "" {
		name = DefaultLayerName
	}
	return &Layer{ID: id, Name: name, Order: order}
}

// normalizeBlock coerces one untrusted block entry. Ids colliding with an
// already-normalized sibling get numeric suffixes, same as fresh creation.
func normalizeBlock(entry map[string]any, seen map[string]bool) *Block {
	id := uniqueID(seen, entry["id"], "block")
	blockType := strings.ToLower(strings.TrimSpace(stringify(entry["type"])))
	if blockType == "" {
		blockType = "body"
	}
	var extra map[string]any
	for key, value := range entry {
		if blockKeys[key] {
			continue
		}
		if extra == nil {
			extra = map[string]any{}
		}
		extra[key] = cloneValue(value)
	}
	return &Block{
		ID:         id,
		Type:       blockType,
		Position:   sanitizePosition(entry["position"]),
		Rotation:   CoerceFloat(entry["rotation"], 0),
		Locked:     truthy(entry["locked"]),
		Layer:      strings.TrimSpace(stringify(entry["layer"])),
		LayerZ:     CoerceInt(entry["layerZ"], 0),
		Opacity:    ClampFloat(entry["opacity"], 1.0, minOpacity, 1.0),
		Background: strings.TrimSpace(stringify(entry["background"])),
		Typography: sanitizeTypography(entry["typography"]),
		Content:    cloneValue(entry["content"]),
		Extra:      extra,
	}
}

func sanitizeDimensions(raw map[string]any, current Dimensions) Dimensions {
	width := CoerceFloat(raw["width"], current.Width)
	height := CoerceFloat(raw["height"], current.Height)
	if width < minPageSide {
		width = minPageSide
	}
	if height < minPageSide {
		height = minPageSide
	}
	return Dimensions{Width: width, Height: height}
}

const minOpacity = 0.05

// sanitizePosition fills each coordinate independently; a malformed or
// absent field falls back without disturbing its siblings.
func sanitizePosition(raw any) Position {
	entry, _ := raw.(map[string]any)
	return Position{
		Left:   CoerceFloat(entry["left"], defaultBlockLeft),
		Top:    CoerceFloat(entry["top"], defaultBlockTop),
		Width:  CoerceFloat(entry["width"], defaultBlockWidth),
		Height: CoerceFloat(entry["height"], defaultBlockHeight),
	}
}

// sanitizeTypography keeps only the recognized sub-fields that were
// actually present; nil means the block carries no typography at all.
func sanitizeTypography(raw any) *Typography {
	entry, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	typ := Typography{}
	present := false
	if v, ok := entry["fontSize"]; ok {
		size := CoerceFloat(v, 18)
		typ.FontSize = &size
		present = true
	}
	if v, ok := entry["lineHeight"]; ok {
		height := CoerceFloat(v, 1.4)
		typ.LineHeight = &height
		present = true
	}
	if v, ok := entry["textAlign"]; ok {
		align := strings.ToLower(strings.TrimSpace(stringify(v)))
		if align == "" {
			align = "left"
		}
		typ.TextAlign = &align
		present = true
	}
	if v, ok := entry["textColor"]; ok {
		color := strings.TrimSpace(stringify(v))
		typ.TextColor = &color
		present = true
	}
	if v, ok := entry["uppercase"]; ok {
		upper := truthy(v)
		typ.Uppercase = &upper
		present = true
	}
	if !present {
		return nil
	}
	return &typ
}

// NormalizeChatTheme merges an untrusted theme onto the defaults per field:
// roles and fields the overlay never mentions keep their default values.
func NormalizeChatTheme(raw any) map[string]*BubbleStyle {
	theme := DefaultChatTheme()
	overlay, ok := raw.(map[string]any)
	if !ok {
		return theme
	}
	for _, role := range []string{RoleAssistant, RoleUser} {
		entry, ok := overlay[role].(map[string]any)
		if !ok {
			continue
		}
		applyBubbleFields(theme[role], entry)
	}
	return theme
}

func applyBubbleFields(style *BubbleStyle, entry map[string]any) {
	if v, ok := entry["background"]; ok && v != nil {
		style.Background = stringify(v)
	}
	if v, ok := entry["borderColor"]; ok && v != nil {
		style.BorderColor = stringify(v)
	}
	if v, ok := entry["textColor"]; ok && v != nil {
		style.TextColor = stringify(v)
	}
	if v, ok := entry["fontSize"]; ok && v != nil {
		style.FontSize = ClampFloat(v, style.FontSize, 8.0, 48.0)
	}
	if v, ok := entry["maxWidth"]; ok && v != nil {
		style.MaxWidth = ClampFloat(v, style.MaxWidth, 10.0, 100.0)
	}
	if v, ok := entry["alignment"]; ok && v != nil {
		style.Alignment = SanitizeAlignment(v, style.Alignment)
	}
}

// uniqueID normalizes a preferred id and resolves collisions against the
// seen set with numeric suffixes: base, base-2, base-3, and so on.
func uniqueID(seen map[string]bool, preferred any, fallbackPrefix string) string {
	base := NormalizeID(preferred, fallbackPrefix)
	if !seen[base] {
		return base
	}
	for counter := 2; ; counter++ {
		candidate := base + "-" + strconv.Itoa(counter)
		if !seen[candidate] {
			return candidate
		}
	}
}

// cloneValue deep-copies arbitrary JSON-shaped content.
func cloneValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		clone := make(map[string]any, len(v))
		for key, item := range v {
			clone[key] = cloneValue(item)
		}
		return clone
	case []any:
		clone := make([]any, 0, len(v))
		for _, item := range v {
			clone = append(clone, cloneValue(item))
		}
		return clone
	default:
		return v
	}
}
