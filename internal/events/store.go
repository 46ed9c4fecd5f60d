package events

import "time"

// StoreOpStart is emitted before a document store operation.
type StoreOpStart struct {
	Collection string
	Op         string
}

// StoreOpFinish is emitted after a document store operation completes.
type StoreOpFinish struct {
	Collection string
	Op         string
	Err        error
	Duration   time.Duration
}

// DependencyCheck is emitted after a readiness probe of a backing dependency.
type DependencyCheck struct {
	Dependency string
	Err        error
	Duration   time.Duration
}
