package executor

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MockResolver resolves one field instance for MockRuntime.
type MockResolver func(ctx context.Context, source any, args map[string]any) (any, error)

// NewMockValueResolver returns a resolver that always yields val.
func NewMockValueResolver(val any) MockResolver {
	return func(context.Context, any, map[string]any) (any, error) { return val, nil }
}

// NewMockErrorResolver returns a resolver that always fails with err.
func NewMockErrorResolver(err error) MockResolver {
	return func(context.Context, any, map[string]any) (any, error) { return nil, err }
}

// Call is one field resolution seen by MockRuntime.
type Call struct {
	Key    string // "Type.field"
	Source any
	Args   map[string]any
	// Batch numbers the BatchResolveAsync call that carried the field,
	// starting at 1. Zero means ResolveSync.
	Batch int
}

// String renders the call as "Type.field", suffixed with "@<batch>" for
// async calls.
func (c Call) String() string {
	if c.Batch == 0 {
		return c.Key
	}
	return fmt.Sprintf("%s@%d", c.Key, c.Batch)
}

// MockRuntime is a Runtime for tests. Fields without a resolver are read
// from map sources. Every resolution is recorded.
type MockRuntime struct {
	mu        sync.Mutex
	resolvers map[string]MockResolver
	calls     []Call
	batches   int

	// TypeOf picks the concrete type of an abstract value. By default the
	// "__typename" key of a map value is used.
	TypeOf func(abstractType string, value any) (string, error)
	// Serialize converts leaf values. By default values pass through.
	Serialize func(typeName string, value any) (any, error)
}

var _ Runtime = (*MockRuntime)(nil)

// NewMockRuntime returns a runtime serving resolvers keyed by "Type.field".
func NewMockRuntime(resolvers map[string]MockResolver) *MockRuntime {
	m := &MockRuntime{resolvers: make(map[string]MockResolver, len(resolvers))}
	for k, r := range resolvers {
		m.resolvers[k] = r
	}
	return m
}

// SetResolver binds r to objectType.field.
func (m *MockRuntime) SetResolver(objectType, field string, r MockResolver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolvers[objectType+"."+field] = r
}

func (m *MockRuntime) resolve(ctx context.Context, c Call) (any, error) {
	m.mu.Lock()
	r := m.resolvers[c.Key]
	m.calls = append(m.calls, c)
	m.mu.Unlock()

	if r != nil {
		return r(ctx, c.Source, c.Args)
	}
	if src, ok := c.Source.(map[string]any); ok {
		_, field, _ := strings.Cut(c.Key, ".")
		return src[field], nil
	}
	return nil, nil
}

func (m *MockRuntime) ResolveSync(ctx context.Context, objectType, field string, source any, args map[string]any) (any, error) {
	return m.resolve(ctx, Call{Key: objectType + "." + field, Source: source, Args: args})
}

// BatchResolveAsync resolves the tasks one by one in task order.
func (m *MockRuntime) BatchResolveAsync(ctx context.Context, tasks []AsyncResolveTask) []AsyncResolveResult {
	m.mu.Lock()
	m.batches++
	batch := m.batches
	m.mu.Unlock()

	results := make([]AsyncResolveResult, len(tasks))
	for i, t := range tasks {
		v, err := m.resolve(ctx, Call{Key: t.ObjectType + "." + t.Field, Source: t.Source, Args: t.Args, Batch: batch})
		results[i] = AsyncResolveResult{Value: v, Error: err}
	}
	return results
}

func (m *MockRuntime) ResolveType(_ context.Context, abstractType string, value any) (string, error) {
	if m.TypeOf != nil {
		return m.TypeOf(abstractType, value)
	}
	if v, ok := value.(map[string]any); ok {
		if name, ok := v["__typename"].(string); ok {
			return name, nil
		}
	}
	return "", fmt.Errorf("cannot resolve concrete type of %s", abstractType)
}

func (m *MockRuntime) SerializeLeafValue(_ context.Context, typeName string, value any) (any, error) {
	if m.Serialize != nil {
		return m.Serialize(typeName, value)
	}
	return value, nil
}

// GetCalls returns the recorded calls in order.
func (m *MockRuntime) GetCalls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// Trace renders the recorded calls with Call.String.
func (m *MockRuntime) Trace() []string {
	calls := m.GetCalls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.String()
	}
	return out
}
