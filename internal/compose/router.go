package compose

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	executor "github.com/hanpama/stitchgate/internal/executor"
)

// router implements executor.Runtime for a ComposedSchema by sending every
// call to the source owning the type (or root field) involved.
type router struct {
	sources []executor.Runtime
	// fields maps composed root fields ("Query.restaurants") to a source.
	fields map[string]int
	// types maps non-root type names to their first declaring source.
	types map[string]int
	// rootNames maps, per source, composed root names to the source's own.
	rootNames []map[string]string
}

var _ executor.Runtime = (*router)(nil)

func newRouter(sources []*ExecutableSchema) *router {
	r := &router{
		sources:   make([]executor.Runtime, len(sources)),
		fields:    map[string]int{},
		types:     map[string]int{},
		rootNames: make([]map[string]string, len(sources)),
	}
	for i, s := range sources {
		r.sources[i] = s.Runtime
	}
	return r
}

func route(objectType, field string) string { return objectType + "." + field }

func (r *router) owner(objectType, field string) (int, bool) {
	if i, ok := r.fields[route(objectType, field)]; ok {
		return i, true
	}
	i, ok := r.types[objectType]
	return i, ok
}

// sourceType translates a composed root name back to the owner's root name.
func (r *router) sourceType(i int, objectType string) string {
	if name, ok := r.rootNames[i][objectType]; ok {
		return name
	}
	return objectType
}

func (r *router) ResolveSync(ctx context.Context, objectType, field string, source any, args map[string]any) (any, error) {
	i, ok := r.owner(objectType, field)
	if !ok {
		return nil, fmt.Errorf("no source resolves %s.%s", objectType, field)
	}
	return r.sources[i].ResolveSync(ctx, r.sourceType(i, objectType), field, source, args)
}

// BatchResolveAsync splits the depth batch per owning source, resolves the
// parts concurrently and reassembles the results in task order.
func (r *router) BatchResolveAsync(ctx context.Context, tasks []executor.AsyncResolveTask) []executor.AsyncResolveResult {
	results := make([]executor.AsyncResolveResult, len(tasks))
	parts := make(map[int][]int)
	var order []int
	for idx, t := range tasks {
		i, ok := r.owner(t.ObjectType, t.Field)
		if !ok {
			results[idx] = executor.AsyncResolveResult{Error: fmt.Errorf("no source resolves %s.%s", t.ObjectType, t.Field)}
			continue
		}
		if _, seen := parts[i]; !seen {
			order = append(order, i)
		}
		parts[i] = append(parts[i], idx)
	}

	var g errgroup.Group
	for _, i := range order {
		idxs := parts[i]
		g.Go(func() error {
			sub := make([]executor.AsyncResolveTask, len(idxs))
			for j, idx := range idxs {
				sub[j] = tasks[idx]
				sub[j].ObjectType = r.sourceType(i, tasks[idx].ObjectType)
			}
			res := r.sources[i].BatchResolveAsync(ctx, sub)
			for j, idx := range idxs {
				if j < len(res) {
					results[idx] = res[j]
				} else {
					results[idx] = executor.AsyncResolveResult{Error: fmt.Errorf("source returned %d results for %d tasks", len(res), len(idxs))}
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (r *router) ResolveType(ctx context.Context, abstractType string, value any) (string, error) {
	i, ok := r.types[abstractType]
	if !ok {
		return "", fmt.Errorf("no source declares %s", abstractType)
	}
	return r.sources[i].ResolveType(ctx, abstractType, value)
}

// SerializeLeafValue routes custom scalars and enums to their declaring
// source; built-in scalars go to the first source.
func (r *router) SerializeLeafValue(ctx context.Context, typeName string, value any) (any, error) {
	i := r.types[typeName]
	return r.sources[i].SerializeLeafValue(ctx, typeName, value)
}
