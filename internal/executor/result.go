package executor

// GraphQLError represents an error that occurred during execution
type GraphQLError struct {
	Message    string         `json:"message"`
	Path       Path           `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
	// Err is the underlying cause, kept for logging and classification.
	Err error `json:"-"`
}

func (e GraphQLError) Error() string {
	return e.Message
}

func (e GraphQLError) Unwrap() error { return e.Err }

// ExecutionResult represents the result of executing a GraphQL query
type ExecutionResult struct {
	Data   any            `json:"data"`
	Errors []GraphQLError `json:"errors,omitempty"`
}
