package models

import (
	"path"
	"time"
)

// Endpoint is a registered delivery target. The dispatch engine treats
// endpoints as read-only snapshots; management of the registry happens
// through the API and CLI.
type Endpoint struct {
	ID         string            `json:"id"`
	URL        string            `json:"url"`
	Secret     string            `json:"secret,omitempty"`
	EventTypes []string          `json:"event_types"`
	Active     bool              `json:"active"`
	Timeout    time.Duration     `json:"timeout,omitempty"`
	Retry      int               `json:"retry,omitempty"`
	RetryDelay time.Duration     `json:"retry_delay,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// ShouldReceive reports whether the endpoint subscribes to the event.
// An empty pattern list means "all events". Patterns are exact names or
// globs like "payment.*".
func (e *Endpoint) ShouldReceive(event string) bool {
	if !e.Active {
		return false
	}
	if len(e.EventTypes) == 0 {
		return true
	}
	for _, pattern := range e.EventTypes {
		if pattern == event {
			return true
		}
		if ok, err := path.Match(pattern, event); err == nil && ok {
			return true
		}
	}
	return false
}
