// Package audit emits structured events for record lifecycle changes so
// governance tooling can follow what the bus did and who asked for it. The
// persisted validation record is the audit of record; these events are an
// operational trail, emitted fail-open.
package audit

import (
	"context"
	"time"
)

// Action names a lifecycle event.
type Action string

const (
	ActionRecordValidated   Action = "record_validated"
	ActionRecordSoftDeleted Action = "record_soft_deleted"
	ActionRecordRestored    Action = "record_restored"
	ActionGoldenRecordSet   Action = "golden_record_set"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so publishers can fan out.
type Event struct {
	Timestamp      time.Time `json:"timestamp"`
	Action         Action    `json:"action"`
	AppName        string    `json:"app_name"`
	RecordID       string    `json:"record_id"`
	ValidationType string    `json:"validation_type,omitempty"`
	RequestID      string    `json:"request_id,omitempty"`
	Detail         string    `json:"detail,omitempty"`
}

// Publisher delivers audit events to a sink.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
	Close() error
}
