package events

import "time"

// GraphQLStart is emitted before executing a GraphQL operation.
type GraphQLStart struct {
	Query         string
	OperationName string
	OperationType string
}

// GraphQLFinish is emitted after executing a GraphQL operation.
type GraphQLFinish struct {
	Query         string
	OperationName string
	OperationType string
	Errors        []error
	Duration      time.Duration
}

// RequestRejected is emitted when the gateway refuses a request before
// execution. Code is the error code returned to the client.
type RequestRejected struct {
	Code   string
	Status int
	Err    error
}
