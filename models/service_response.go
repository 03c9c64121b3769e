package models

import (
	"encoding/json"
)

// ServiceResponse is the envelope for every response from
// swordv3_service.
type ServiceResponse struct {
	Succeeded    bool
	ErrorMessage string
	// FieldErrors maps settings form fields to validation
	// messages when a service configuration is rejected.
	FieldErrors map[string]string `json:",omitempty"`
	Data        json.RawMessage   `json:",omitempty"`
}

// DisableRequest is the body of a request to disable a service.
type DisableRequest struct {
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

// DisableResult reports whether a disable request changed anything.
type DisableResult struct {
	Changed bool `json:"changed"`
}

// Summary is what GET /summary/:contextId returns.
type Summary struct {
	ContextId int64          `json:"contextId"`
	Counts    *DepositCounts `json:"counts"`
	// QueueDepth maps NSQ topic names to the number of messages
	// waiting or in flight. It is empty if nsqd is unreachable.
	QueueDepth map[string]int64 `json:"queueDepth"`
	Services   []*Service       `json:"services"`
}
