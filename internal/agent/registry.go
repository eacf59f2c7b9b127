package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Handler executes one resolved tool invocation and returns its raw result.
// Handlers are synchronous; the dispatcher wraps them with a timeout.
type Handler func(ctx context.Context, params json.RawMessage) (string, error)

// InferenceStrategy attempts to recover tool parameters from the originating
// user message when the model supplied none, or supplied garbage. It returns
// a candidate payload and whether anything extractable was found; the
// resolver still validates the candidate against the tool's schema.
type InferenceStrategy func(userText string) (json.RawMessage, bool)

// ToolDefinition is the static descriptor registered for one tool at startup.
type ToolDefinition struct {
	Name        string
	Description string
	Schema      json.RawMessage
	Handler     Handler

	// Critical marks a tool whose failure aborts the session instead of
	// letting the loop continue with a degraded context.
	Critical bool

	// Infer is the optional fallback extraction strategy for this tool.
	Infer InferenceStrategy

	compiled *jsonschema.Schema
}

// ValidatePayload checks a parameter payload against the tool's compiled schema.
func (d *ToolDefinition) ValidatePayload(payload json.RawMessage) error {
	if d.compiled == nil {
		return nil
	}
	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return fmt.Errorf("parameters are not valid JSON: %w", err)
	}
	if err := d.compiled.Validate(decoded); err != nil {
		return fmt.Errorf("parameters do not satisfy schema: %w", err)
	}
	return nil
}

// Registry maps tool names to their definitions. Registration happens once
// during startup wiring; lookups are read-only and safe for concurrent use
// from many sessions.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*ToolDefinition
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*ToolDefinition)}
}

// Register adds a tool, compiling its parameter schema. Registering a
// duplicate name or an invalid schema is a wiring bug and returns an error.
func (r *Registry) Register(def ToolDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if def.Handler == nil {
		return fmt.Errorf("tool %q has no handler", def.Name)
	}
	if len(def.Schema) > 0 {
		compiled, err := jsonschema.CompileString(def.Name+".schema.json", string(def.Schema))
		if err != nil {
			return fmt.Errorf("compile schema for tool %q: %w", def.Name, err)
		}
		def.compiled = compiled
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[def.Name]; exists {
		return fmt.Errorf("tool %q already registered", def.Name)
	}
	r.tools[def.Name] = &def
	return nil
}

// Resolve returns the definition for name, or ErrToolNotSupported.
func (r *Registry) Resolve(name string) (*ToolDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotSupported, name)
	}
	return def, nil
}

// Specs returns the descriptors handed to the model, sorted by name so the
// request is deterministic across calls.
func (r *Registry) Specs() []ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	specs := make([]ToolSpec, 0, len(r.tools))
	for _, def := range r.tools {
		schema := def.Schema
		if len(schema) == 0 {
			schema = json.RawMessage(`{"type":"object","properties":{}}`)
		}
		specs = append(specs, ToolSpec{
			Name:        def.Name,
			Description: def.Description,
			Schema:      schema,
		})
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}
