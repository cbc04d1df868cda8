// Package validation defines the core types of the validation bus: the audit
// record, the duplicate fingerprint, validator outcomes, and the result
// envelope returned to calling applications.
package validation

import (
	"context"
	"time"

	"validbus/pkg/domain"
)

// Outcome is what a validator produces for one piece of data. Details is an
// opaque, caller-defined map; the core stores it and passes it through without
// inspecting its shape.
type Outcome struct {
	IsValid bool           `json:"is_valid"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Validator is the capability set every registered validator implements.
// Implementations must be pure and safe for concurrent use.
type Validator interface {
	// Normalize converts raw input to its canonical form. A failure to
	// normalize means the input cannot even be parsed; infrastructure faults
	// are wrapped with sentinel.ErrUnavailable.
	Normalize(raw string) (string, error)
	// Check evaluates the normalized form and reports validity.
	Check(ctx context.Context, normalized string) (Outcome, error)
}

// Fingerprint is the duplicate-detection tuple. At most one non-deleted
// record may exist per fingerprint at any time.
type Fingerprint struct {
	NormalizedData   string
	ValidationType   domain.ValidationType
	AppName          string
	ClientIdentifier string
}

// Record is the audit-of-record entity persisted for every validation.
type Record struct {
	ID               domain.RecordID
	ValidationType   domain.ValidationType
	OriginalData     string
	NormalizedData   string
	IsValid          bool
	Message          string
	Details          map[string]any
	RuleCode         string // set only by the decision rule engine, empty when no rule matched
	AppName          string
	ClientIdentifier string
	IsGoldenRecord   bool
	IsDeleted        bool
	ValidatedAt      time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Fingerprint derives the duplicate fingerprint of the record.
func (r *Record) Fingerprint() Fingerprint {
	return Fingerprint{
		NormalizedData:   r.NormalizedData,
		ValidationType:   r.ValidationType,
		AppName:          r.AppName,
		ClientIdentifier: r.ClientIdentifier,
	}
}

// Clone returns a deep copy so stores can hand out records without aliasing
// their internal state.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	dup := *r
	if r.Details != nil {
		dup.Details = make(map[string]any, len(r.Details))
		for k, v := range r.Details {
			dup.Details[k] = v
		}
	}
	return &dup
}

// Result is the envelope returned to a calling application. It is
// intentionally decoupled from the stored record's full shape.
type Result struct {
	RecordID          domain.RecordID
	IsValid           bool
	Message           string
	Details           map[string]any
	InputDataOriginal string
	InputDataCleaned  string
	RuleCode          string
}
