// Package resolver binds Go functions to schema fields and exposes them as an
// executor.Runtime.
//
// Bound fields are resolved asynchronously in per-depth batches; every other
// field is projected from the parent value (a map[string]any), which is how
// documents coming out of the store are shaped.
package resolver

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	executor "github.com/hanpama/stitchgate/internal/executor"
	schema "github.com/hanpama/stitchgate/internal/schema"
)

// Func resolves a single field instance. ctx carries the request context.
type Func func(ctx context.Context, source any, args map[string]any) (any, error)

// BatchFunc resolves every instance of one field collected at an execution
// depth. It must return one value per source, in order. A returned error
// fails the whole group.
type BatchFunc func(ctx context.Context, sources []any, args []map[string]any) ([]any, error)

// Serializer turns a custom scalar value into a JSON-safe value.
type Serializer func(value any) (any, error)

// TypeResolver picks the concrete object type for an interface or union value.
type TypeResolver func(abstractType string, value any) (string, error)

// Map collects resolver bindings keyed by "Type.field".
type Map struct {
	funcs       map[string]Func
	batches     map[string]BatchFunc
	scalars     map[string]Serializer
	resolveType TypeResolver
	concurrency int
}

// NewMap returns an empty binding set. Groups of one depth run with at most
// 8 goroutines unless changed with Concurrency.
func NewMap() *Map {
	return &Map{
		funcs:       map[string]Func{},
		batches:     map[string]BatchFunc{},
		scalars:     map[string]Serializer{},
		concurrency: 8,
	}
}

func key(objectType, field string) string { return objectType + "." + field }

// Field binds fn to objectType.field.
func (m *Map) Field(objectType, field string, fn Func) *Map {
	m.funcs[key(objectType, field)] = fn
	return m
}

// Batch binds a batch function to objectType.field.
func (m *Map) Batch(objectType, field string, fn BatchFunc) *Map {
	m.batches[key(objectType, field)] = fn
	return m
}

// Scalar registers the serializer of a custom scalar.
func (m *Map) Scalar(name string, fn Serializer) *Map {
	m.scalars[name] = fn
	return m
}

// TypeResolver overrides the default __typename lookup for abstract types.
func (m *Map) TypeResolver(fn TypeResolver) *Map {
	m.resolveType = fn
	return m
}

// Concurrency bounds the number of field groups resolved in parallel.
func (m *Map) Concurrency(n int) *Map {
	if n > 0 {
		m.concurrency = n
	}
	return m
}

// Keys returns the bound "Type.field" keys, sorted.
func (m *Map) Keys() []string {
	out := make([]string, 0, len(m.funcs)+len(m.batches))
	for k := range m.funcs {
		out = append(out, k)
	}
	for k := range m.batches {
		if _, dup := m.funcs[k]; !dup {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// UnboundFieldError reports a binding whose field the schema does not declare.
type UnboundFieldError struct {
	Key string
}

func (e *UnboundFieldError) Error() string {
	return fmt.Sprintf("resolver bound to undeclared field %s", e.Key)
}

// Bind checks every binding against sch, marks the bound fields async, and
// returns the runtime serving sch. sch is modified in place and must not be
// shared with other runtimes.
func (m *Map) Bind(sch *schema.Schema) (*Runtime, error) {
	for _, k := range m.Keys() {
		typeName, fieldName, _ := strings.Cut(k, ".")
		t := sch.Types[typeName]
		if t == nil {
			return nil, &UnboundFieldError{Key: k}
		}
		f := t.Field(fieldName)
		if f == nil {
			return nil, &UnboundFieldError{Key: k}
		}
		f.SetAsync(true)
	}
	return &Runtime{bindings: m, schema: sch}, nil
}

// Runtime implements executor.Runtime over a Map.
type Runtime struct {
	bindings *Map
	schema   *schema.Schema
}

var _ executor.Runtime = (*Runtime)(nil)

// ResolveSync projects field from a map source. Missing keys resolve to null.
func (r *Runtime) ResolveSync(ctx context.Context, objectType, field string, source any, args map[string]any) (any, error) {
	switch src := source.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return src[field], nil
	default:
		return nil, fmt.Errorf("cannot read %s.%s from %T", objectType, field, source)
	}
}

// BatchResolveAsync groups tasks by (objectType, field) and resolves the
// groups concurrently. Results keep task order.
func (r *Runtime) BatchResolveAsync(ctx context.Context, tasks []executor.AsyncResolveTask) []executor.AsyncResolveResult {
	results := make([]executor.AsyncResolveResult, len(tasks))
	if len(tasks) == 0 {
		return results
	}
	groups := []string{}
	idxs := map[string][]int{}
	for i, t := range tasks {
		k := key(t.ObjectType, t.Field)
		if _, ok := idxs[k]; !ok {
			groups = append(groups, k)
		}
		idxs[k] = append(idxs[k], i)
	}

	var g errgroup.Group
	g.SetLimit(r.bindings.concurrency)
	for _, k := range groups {
		g.Go(func() error {
			r.runGroup(ctx, k, tasks, idxs[k], results)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// runGroup writes into results only at the indexes it owns.
func (r *Runtime) runGroup(ctx context.Context, k string, tasks []executor.AsyncResolveTask, idxs []int, results []executor.AsyncResolveResult) {
	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("resolver %s panicked: %v", k, p)
			for _, i := range idxs {
				results[i] = executor.AsyncResolveResult{Error: err}
			}
		}
	}()

	if fn, ok := r.bindings.batches[k]; ok {
		sources := make([]any, len(idxs))
		args := make([]map[string]any, len(idxs))
		for j, i := range idxs {
			sources[j] = tasks[i].Source
			args[j] = tasks[i].Args
		}
		values, err := fn(ctx, sources, args)
		if err == nil && len(values) != len(idxs) {
			err = fmt.Errorf("batch resolver %s returned %d values for %d sources", k, len(values), len(idxs))
		}
		for j, i := range idxs {
			if err != nil {
				results[i] = executor.AsyncResolveResult{Error: err}
				continue
			}
			results[i] = executor.AsyncResolveResult{Value: values[j]}
		}
		return
	}

	fn, ok := r.bindings.funcs[k]
	if !ok {
		err := fmt.Errorf("no resolver bound for %s", k)
		for _, i := range idxs {
			results[i] = executor.AsyncResolveResult{Error: err}
		}
		return
	}
	for _, i := range idxs {
		if err := ctx.Err(); err != nil {
			results[i] = executor.AsyncResolveResult{Error: err}
			continue
		}
		v, err := fn(ctx, tasks[i].Source, tasks[i].Args)
		results[i] = executor.AsyncResolveResult{Value: v, Error: err}
	}
}

// ResolveType uses the configured TypeResolver, falling back to the
// "__typename" key of a map value.
func (r *Runtime) ResolveType(ctx context.Context, abstractType string, value any) (string, error) {
	if fn := r.bindings.resolveType; fn != nil {
		return fn(abstractType, value)
	}
	if m, ok := value.(map[string]any); ok {
		if name, ok := m["__typename"].(string); ok && name != "" {
			return name, nil
		}
	}
	return "", fmt.Errorf("cannot resolve concrete type of %s from %T", abstractType, value)
}

// SerializeLeafValue serializes built-in scalars per GraphQL result coercion,
// enums by name, and custom scalars through their registered Serializer.
func (r *Runtime) SerializeLeafValue(ctx context.Context, typeName string, value any) (any, error) {
	if fn, ok := r.bindings.scalars[typeName]; ok {
		return fn(value)
	}
	switch typeName {
	case "Int":
		return serializeInt(value)
	case "Float":
		return serializeFloat(value)
	case "String":
		return serializeString(value)
	case "ID":
		return serializeID(value)
	case "Boolean":
		if b, ok := value.(bool); ok {
			return b, nil
		}
		return nil, fmt.Errorf("Boolean cannot represent %v (%T)", value, value)
	}
	if def := r.schema.Types[typeName]; def != nil && def.Kind == schema.TypeKindEnum {
		return serializeEnum(def, value)
	}
	return serializeCustom(value), nil
}

func serializeInt(value any) (any, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		if v == float64(int64(v)) {
			return int(v), nil
		}
	}
	return nil, fmt.Errorf("Int cannot represent %v (%T)", value, value)
}

func serializeFloat(value any) (any, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	}
	return nil, fmt.Errorf("Float cannot represent %v (%T)", value, value)
}

func serializeString(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	case bool, int, int32, int64, float64:
		return fmt.Sprint(v), nil
	}
	return nil, fmt.Errorf("String cannot represent %v (%T)", value, value)
}

func serializeID(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case int:
		return strconv.Itoa(v), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case fmt.Stringer:
		return v.String(), nil
	}
	return nil, fmt.Errorf("ID cannot represent %v (%T)", value, value)
}

func serializeEnum(def *schema.Type, value any) (any, error) {
	name := fmt.Sprint(value)
	for _, ev := range def.EnumValues {
		if ev.Name == name {
			return name, nil
		}
	}
	return nil, fmt.Errorf("enum %s cannot represent %v", def.Name, value)
}

func serializeCustom(value any) any {
	switch v := value.(type) {
	case []byte:
		return base64.StdEncoding.EncodeToString(v)
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	default:
		return v
	}
}
