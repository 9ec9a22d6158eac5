package receiver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/shohag/hookrelay/internal/signing"
)

// ErrInvalidSignature is the only error Process surfaces for inbound
// authentication problems; the HTTP layer maps it to 401.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// DefaultTolerance is the replay window: maximum age, and future clock
// skew, accepted for an inbound timestamp.
const DefaultTolerance = 300 * time.Second

const maxBodySize = 1 << 20

// Signature headers in priority order. Values like "sha256=<hex>" from
// third-party senders are supported by splitting on the first "=".
var signatureHeaders = []string{
	"X-Webhook-Signature",
	"X-Hub-Signature-256",
	"X-Hub-Signature",
	"X-Signature",
	"Signature",
}

// Event name headers in priority order, before the body "event" field.
var eventHeaders = []string{
	"X-Webhook-Event",
	"X-GitHub-Event",
	"X-Event-Type",
	"X-Event-Name",
}

// Handler is invoked synchronously inside Process once the request is
// authenticated. Panics and failures inside it propagate to the caller.
type Handler func(event string, payload map[string]any, r *http.Request)

type Result struct {
	Event     string         `json:"event"`
	Payload   map[string]any `json:"payload"`
	Headers   http.Header    `json:"-"`
	Timestamp time.Time      `json:"timestamp"`
}

// Receiver authenticates inbound webhook calls: signature verification
// plus a replay-window check over the payload timestamp, then event and
// payload extraction.
type Receiver struct {
	signer    *signing.Signer
	tolerance time.Duration
	now       func() time.Time
	log       zerolog.Logger
}

func New(signer *signing.Signer, tolerance time.Duration, log zerolog.Logger) *Receiver {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Receiver{
		signer:    signer,
		tolerance: tolerance,
		now:       func() time.Time { return time.Now().UTC() },
		log:       log,
	}
}

// Process runs the single-pass inbound state machine:
// extract signature → verify → replay check → extract event/payload →
// optional handler. A missing or bad signature, or a stale timestamp,
// fails with ErrInvalidSignature before the handler is ever reached.
func (rc *Receiver) Process(r *http.Request, secret string, handler Handler) (*Result, error) {
	payload := rc.extractPayload(r)

	sig := extractSignature(r.Header)
	if sig == "" {
		rc.log.Debug().Str("path", r.URL.Path).Msg("inbound webhook without signature")
		return nil, ErrInvalidSignature
	}
	if !rc.signer.Verify(sig, payload, secret) {
		rc.log.Debug().Str("path", r.URL.Path).Msg("inbound webhook signature mismatch")
		return nil, ErrInvalidSignature
	}

	ts, err := rc.checkReplay(payload)
	if err != nil {
		rc.log.Debug().Err(err).Str("path", r.URL.Path).Msg("inbound webhook replay check failed")
		return nil, err
	}

	event := extractEvent(r.Header, payload)

	if handler != nil {
		handler(event, payload, r)
	}

	return &Result{
		Event:     event,
		Payload:   payload,
		Headers:   r.Header.Clone(),
		Timestamp: ts,
	}, nil
}

// extractPayload prefers the parsed JSON body. A missing or malformed
// body falls back to the request's query parameters plus, for
// form-encoded posts, fields decoded from the body bytes already read.
func (rc *Receiver) extractPayload(r *http.Request) map[string]any {
	var body []byte
	if r.Body != nil {
		if b, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize)); err == nil {
			body = b
		}
	}

	if len(body) > 0 {
		var payload map[string]any
		if json.Unmarshal(body, &payload) == nil && payload != nil {
			return payload
		}
	}

	payload := map[string]any{}
	for k, vs := range r.URL.Query() {
		if len(vs) > 0 {
			payload[k] = vs[0]
		}
	}
	if len(body) > 0 && strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		if form, err := url.ParseQuery(string(body)); err == nil {
			for k, vs := range form {
				if len(vs) > 0 {
					payload[k] = vs[0]
				}
			}
		}
	}
	return payload
}

func (rc *Receiver) checkReplay(payload map[string]any) (time.Time, error) {
	raw, ok := payload["timestamp"]
	if !ok {
		return time.Time{}, fmt.Errorf("%w: missing timestamp", ErrInvalidSignature)
	}

	var unix int64
	switch v := raw.(type) {
	case float64:
		unix = int64(v)
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: malformed timestamp", ErrInvalidSignature)
		}
		unix = n
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: malformed timestamp", ErrInvalidSignature)
		}
		unix = n
	default:
		return time.Time{}, fmt.Errorf("%w: malformed timestamp", ErrInvalidSignature)
	}

	ts := time.Unix(unix, 0).UTC()
	delta := rc.now().Sub(ts)
	if delta < 0 {
		delta = -delta
	}
	if delta > rc.tolerance {
		return time.Time{}, fmt.Errorf("%w: timestamp outside replay window", ErrInvalidSignature)
	}
	return ts, nil
}

func extractSignature(h http.Header) string {
	for _, name := range signatureHeaders {
		v := strings.TrimSpace(h.Get(name))
		if v == "" {
			continue
		}
		if i := strings.Index(v, "="); i >= 0 {
			v = v[i+1:]
		}
		return v
	}
	return ""
}

func extractEvent(h http.Header, payload map[string]any) string {
	for _, name := range eventHeaders {
		if v := strings.TrimSpace(h.Get(name)); v != "" {
			return v
		}
	}
	if v, ok := payload["event"].(string); ok && v != "" {
		return v
	}
	return "unknown"
}
