package engine

import "time"

// Spec holds the configuration needed to create an engine instance.
type Spec struct {
	// Type selects the implementation: "heuristic", "llmcli" or "script".
	Type string

	// Command is the external LLM command line for the llmcli engine.
	Command string

	// Timeout bounds a single Generate call for engines that block on
	// external processes.
	Timeout time.Duration

	// ScriptPath is the fixture file for the script engine.
	ScriptPath string
}

// Factory is a function that creates an engine from a spec.
type Factory func(spec Spec) (Engine, error)

var factories = make(map[string]Factory)

// RegisterFactory registers a factory function for an engine type.
// Implementations call this from their init functions.
func RegisterFactory(engineType string, factory Factory) {
	factories[engineType] = factory
}

// Create builds an engine implementation from a spec. Returns an error if
// the engine type is unsupported.
func Create(spec Spec) (Engine, error) {
	factory, exists := factories[spec.Type]
	if !exists {
		return nil, &UnsupportedEngineError{EngineType: spec.Type}
	}
	return factory(spec)
}

// Types returns the registered engine type names.
func Types() []string {
	types := make([]string, 0, len(factories))
	for t := range factories {
		types = append(types, t)
	}
	return types
}

// UnsupportedEngineError is returned when an engine type is not recognized.
type UnsupportedEngineError struct {
	EngineType string
}

func (e *UnsupportedEngineError) Error() string {
	return "unsupported engine type: " + e.EngineType
}
