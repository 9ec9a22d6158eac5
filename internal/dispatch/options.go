package dispatch

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultRetry is the number of additional attempts after the first.
	DefaultRetry   = 3
	DefaultTimeout = 30 * time.Second
)

var (
	ErrUnsupportedMethod = errors.New("unsupported HTTP method")
	ErrQueueUnavailable  = errors.New("no dispatch queue configured")
)

// Options configure one logical dispatch. The zero value is valid: POST,
// three retries, 30s per-attempt timeout, unsigned, untracked.
//
// A snapshot of the normalized options is persisted with every dead-letter
// record so the exact call can be replayed.
type Options struct {
	// Retry is the number of additional attempts after the first.
	// Zero means DefaultRetry; negative means no retries at all.
	Retry int `json:"retry"`
	// Timeout bounds each individual HTTP attempt, not the whole dispatch.
	Timeout time.Duration `json:"timeout"`
	Method  string        `json:"method"`
	// Secret, when set, enables HMAC signing of the wire payload.
	Secret string `json:"secret,omitempty"`
	// EndpointID enables outcome recording. Empty means "dispatch without
	// tracking", a deliberate opt-out.
	EndpointID string            `json:"endpoint_id,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	// RetryDelay overrides the 1s base of the backoff curve when positive.
	RetryDelay time.Duration `json:"retry_delay,omitempty"`
}

// normalize applies defaults and validates once, at the dispatch boundary.
func (o Options) normalize() (Options, error) {
	// Normalization must be idempotent: persisted option snapshots are
	// normalized again on replay. 0 maps to the default once; "no
	// retries" stays -1.
	if o.Retry == 0 {
		o.Retry = DefaultRetry
	} else if o.Retry < 0 {
		o.Retry = -1
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Method == "" {
		o.Method = http.MethodPost
	}
	o.Method = strings.ToUpper(o.Method)
	switch o.Method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return o, fmt.Errorf("%w: %q", ErrUnsupportedMethod, o.Method)
	}
	return o, nil
}
