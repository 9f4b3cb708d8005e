// Package audit publishes best-effort audit events for completed and failed
// operations. Publishing never blocks the caller and delivery failures are
// logged and dropped; they never change the outcome of the operation.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gowebpki/jcs"
)

// ServiceName is stamped on every event emitted by this service.
const ServiceName = "accounts"

// Status is the outcome recorded on an event.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusError   Status = "error"
)

// Event is the wire shape sent to sinks.
type Event struct {
	ID           uuid.UUID       `json:"id"`
	Service      string          `json:"service"`
	Action       string          `json:"action"`
	Status       Status          `json:"status"`
	UserID       int64           `json:"user_id,omitempty"`
	ResourceType string          `json:"resource_type,omitempty"`
	ResourceID   string          `json:"resource_id,omitempty"`
	IPAddress    string          `json:"ip_address,omitempty"`
	UserAgent    string          `json:"user_agent,omitempty"`
	Details      json.RawMessage `json:"details,omitempty"`
	OccurredAt   time.Time       `json:"occurred_at"`
}

// RequestInfo carries caller network details from the transport layer.
type RequestInfo struct {
	IPAddress string
	UserAgent string
}

type ctxKey struct{}

// WithRequestInfo attaches info to ctx.
func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, ctxKey{}, info)
}

// RequestInfoFrom returns the info attached by WithRequestInfo, if any.
func RequestInfoFrom(ctx context.Context) RequestInfo {
	info, _ := ctx.Value(ctxKey{}).(RequestInfo)
	return info
}

// NewEvent builds an event stamped with the request info in ctx. details is
// encoded as RFC 8785 canonical JSON so identical details hash identically
// downstream; encoding problems drop the details, never the event.
func NewEvent(ctx context.Context, action string, status Status, userID int64, resourceType, resourceID string, details any) Event {
	info := RequestInfoFrom(ctx)
	ev := Event{
		ID:           uuid.New(),
		Service:      ServiceName,
		Action:       action,
		Status:       status,
		UserID:       userID,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    info.IPAddress,
		UserAgent:    info.UserAgent,
		OccurredAt:   time.Now().UTC(),
	}
	if details != nil {
		if raw, err := json.Marshal(details); err == nil {
			if canon, err := jcs.Transform(raw); err == nil {
				ev.Details = canon
			}
		}
	}
	return ev
}

// Publisher accepts events without blocking.
type Publisher interface {
	Publish(ev Event)
}

// Sink delivers a single event to an external system.
type Sink interface {
	Send(ctx context.Context, ev Event) error
}

// Discard is a Publisher that drops everything.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(Event) {}
