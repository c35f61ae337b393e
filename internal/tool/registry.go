package tool

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Registry holds one tool per name along with the compiled form of its
// input schema. Registering a duplicate name is a hard failure.
type Registry struct {
	tools    map[string]Tool
	compiled map[string]*jsonschema.Schema
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:    make(map[string]Tool),
		compiled: make(map[string]*jsonschema.Schema),
	}
}

// Register adds a tool, compiling its input schema. It fails fast on a
// duplicate name rather than silently overwriting.
func (r *Registry) Register(t Tool) error {
	name := t.Name()
	if name == "" {
		return fmt.Errorf("tool has empty name")
	}
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}

	compiled, err := compileInputSchema(t.Schema())
	if err != nil {
		return fmt.Errorf("tool %q: %w", name, err)
	}

	r.tools[name] = t
	r.compiled[name] = compiled
	return nil
}

// MustRegister is Register for startup wiring, where a duplicate is a
// programming error.
func (r *Registry) MustRegister(tools ...Tool) {
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Schemas returns every registered schema, sorted by name for a stable
// request payload.
func (r *Registry) Schemas() []Schema {
	schemas := make([]Schema, 0, len(r.tools))
	for _, t := range r.tools {
		schemas = append(schemas, t.Schema())
	}
	sort.Slice(schemas, func(i, j int) bool { return schemas[i].Name < schemas[j].Name })
	return schemas
}

// validateParams checks params against the tool's compiled input schema.
func (r *Registry) validateParams(name string, params map[string]any) error {
	compiled, ok := r.compiled[name]
	if !ok {
		return fmt.Errorf("no schema for tool %q", name)
	}
	if params == nil {
		params = map[string]any{}
	}
	// jsonschema validates plain decoded JSON values, so round-trip the
	// params to normalize ints and other Go-native types.
	raw, err := json.Marshal(params)
	if err != nil {
		return err
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return err
	}
	return compiled.Validate(decoded)
}

func compileInputSchema(s Schema) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(s.InputSchema)
	if err != nil {
		return nil, fmt.Errorf("encode input schema: %w", err)
	}
	compiled, err := jsonschema.CompileString(s.Name+".schema.json", string(raw))
	if err != nil {
		return nil, fmt.Errorf("compile input schema: %w", err)
	}
	return compiled, nil
}
