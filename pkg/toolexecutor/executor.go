package toolexecutor

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
)

// Handler executes one tool call. Handlers report failures inside the
// result map rather than panicking; a panic is treated as a bug and turned
// into an error result by Execute.
type Handler func(args map[string]any) map[string]any

// Definition describes one tool: its name, what the model should know about
// it, and the JSON Schema of its arguments.
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
	Handler     Handler        `json:"-"`
}

// Registry holds the tool catalog for one agent run. Definitions keep their
// registration order so the schema block sent to the model is stable.
type Registry struct {
	mu      sync.RWMutex
	defs    map[string]*Definition
	schemas map[string]*gojsonschema.Schema
	order   []string
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		defs:    make(map[string]*Definition),
		schemas: make(map[string]*gojsonschema.Schema),
	}
}

// Register adds a tool. The parameter schema is compiled immediately so an
// invalid schema surfaces here, not mid-conversation.
func (r *Registry) Register(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("invalid tool definition: name is required")
	}
	if def.Handler == nil {
		return fmt.Errorf("invalid tool definition: tool '%s' has no handler", def.Name)
	}
	if def.Parameters == nil {
		def.Parameters = map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		}
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(def.Parameters))
	if err != nil {
		return fmt.Errorf("compile schema for tool '%s': %w", def.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.defs[def.Name]; exists {
		return fmt.Errorf("tool '%s' already registered", def.Name)
	}
	r.defs[def.Name] = &def
	r.schemas[def.Name] = schema
	r.order = append(r.order, def.Name)

	log.Debug().Str("tool", def.Name).Msg("Tool registered")
	return nil
}

// Definitions returns the catalog in registration order.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, *r.defs[name])
	}
	return defs
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.defs)
}

// Execute runs the named tool. Unknown tools and handler panics both come
// back as error results; the model sees the failure and can recover, the
// caller never does error handling per call.
func (r *Registry) Execute(name string, args map[string]any) (result map[string]any) {
	r.mu.RLock()
	def := r.defs[name]
	schema := r.schemas[name]
	r.mu.RUnlock()

	if def == nil {
		return map[string]any{"status": "error", "error": fmt.Sprintf("unknown tool '%s'", name)}
	}
	if args == nil {
		args = map[string]any{}
	}

	// Schemas are advisory for the model; a nonconforming call still runs
	// because the handlers sanitize everything themselves.
	if validation, err := schema.Validate(gojsonschema.NewGoLoader(args)); err == nil && !validation.Valid() {
		log.Debug().Str("tool", name).Int("violations", len(validation.Errors())).Msg("Tool arguments do not match schema")
	}

	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Str("tool", name).Interface("panic", rec).Msg("Tool handler panicked")
			result = map[string]any{"status": "error", "error": fmt.Sprintf("tool '%s' failed: %v", name, rec)}
		}
	}()

	return def.Handler(args)
}
