package operation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry manages the configured connectors of an execution.
type Registry struct {
	mu         sync.RWMutex
	connectors map[string]Connector
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		connectors: make(map[string]Connector),
	}
}

// Register adds a connector to the registry, replacing any connector with the same name.
func (r *Registry) Register(name string, connector Connector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectors[name] = connector
}

// Get retrieves a connector by name.
func (r *Registry) Get(name string) (Connector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	connector, exists := r.connectors[name]
	if !exists {
		return nil, &Error{
			Type:        ErrorTypeValidation,
			Message:     fmt.Sprintf("connector %q not found", name),
			SuggestText: "Check that the integration is configured",
		}
	}

	return connector, nil
}

// Execute runs an operation.
// The reference should be in format "connector_name.operation_name".
func (r *Registry) Execute(ctx context.Context, reference string, inputs map[string]interface{}) (*Result, error) {
	connectorName, operationName, err := parseReference(reference)
	if err != nil {
		return nil, err
	}

	connector, err := r.Get(connectorName)
	if err != nil {
		return nil, err
	}

	return connector.Execute(ctx, operationName, inputs)
}

// List returns the names of all registered connectors in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.connectors))
	for name := range r.connectors {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// parseReference splits an operation reference into connector and operation names.
func parseReference(reference string) (string, string, error) {
	connectorName, operationName, found := strings.Cut(reference, ".")
	if !found {
		return "", "", &Error{
			Type:    ErrorTypeValidation,
			Message: fmt.Sprintf("invalid operation reference %q: must be in format 'connector.operation'", reference),
		}
	}

	if connectorName == "" || operationName == "" {
		return "", "", &Error{
			Type:    ErrorTypeValidation,
			Message: fmt.Sprintf("invalid operation reference %q: connector and operation names cannot be empty", reference),
		}
	}

	return connectorName, operationName, nil
}
