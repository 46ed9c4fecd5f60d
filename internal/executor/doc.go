// Package executor implements a breadth-first, batch-friendly GraphQL executor
// with explicit runtime hooks for synchronous resolution, depth-wise batching of
// asynchronous work, abstract-type resolution, and leaf serialization.
//
// # Execution model
//
// The executor works level by level:
//   - Synchronous fields (schema.Field.Async == false) are resolved immediately
//     through Runtime.ResolveSync and expanded without adding batch depth.
//   - Asynchronous fields discovered while expanding a depth are queued and
//     resolved with a single Runtime.BatchResolveAsync call per depth.
//   - Values are completed per GraphQL rules (lists, leaves, objects, abstract
//     types) and written into the response tree at their response paths.
//
// Sources that keep their data on the parent value (map projections) mark
// fields sync; resolver-backed fields, including most root fields, are async.
//
// Root mutation fields are the exception to depth batching: each one runs to
// completion, subtree included, before the next field in document order.
//
// # Fragments
//
// Inline fragments and fragment spreads apply when their type condition is the
// object type itself or an interface/union the object type belongs to
// (Schema.IsPossibleType). Fragment spreads are visited once per selection set.
//
// # Errors
//
// Errors are accumulated as located GraphQLError values and execution continues
// (partial success). A resolver failure carries a *ResolverError in
// GraphQLError.Err so callers can log the cause while returning only the
// message. Panics raised by the runtime are recovered into ResolverError, and a
// cancelled context fails every task of the pending batch.
//
// Non-Null violations null the nearest nullable ancestor; tasks queued under a
// nullified path are dropped before the next batch.
//
// # Values
//
// Variables and arguments are coerced against the schema: built-in scalars,
// enums by name, input objects (unknown fields rejected, defaults applied,
// required fields enforced, @oneOf checked), and lists with single-value
// promotion.
package executor
