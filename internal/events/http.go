package events

import (
	"net/http"
	"time"
)

// HTTPStart is published once the request id is known, before the CORS
// policy runs. Rejected requests therefore still produce a start/finish pair.
type HTTPStart struct {
	Request   *http.Request
	RequestID string
}

// HTTPFinish is published after the response status is decided.
type HTTPFinish struct {
	Request   *http.Request
	RequestID string
	Status    int
	Duration  time.Duration
}
