// Package store defines the persistence boundary for validation records and
// provides the in-memory and PostgreSQL implementations.
package store

import (
	"context"
	"time"

	"validbus/internal/validation"
	"validbus/pkg/domain"
)

// UpdateFields is a partial update applied to an existing record. Nil fields
// are left untouched; updated_at is always refreshed by the store.
type UpdateFields struct {
	IsValid        *bool
	Message        *string
	Details        map[string]any
	RuleCode       *string
	ValidatedAt    *time.Time
	IsGoldenRecord *bool
}

// Store is the repository interface the orchestrator consumes. Every
// operation executes within a single storage transaction. Implementations
// return sentinel.ErrNotFound and sentinel.ErrConflict; services translate
// those into domain errors.
type Store interface {
	// FindActiveByFingerprint returns the single non-deleted match for the
	// fingerprint, or sentinel.ErrNotFound.
	FindActiveByFingerprint(ctx context.Context, fp validation.Fingerprint) (*validation.Record, error)

	// GetByID returns the record regardless of its deleted flag, or
	// sentinel.ErrNotFound.
	GetByID(ctx context.Context, id domain.RecordID) (*validation.Record, error)

	// Insert persists a new record, assigning identifier and audit timestamps
	// when unset. Returns sentinel.ErrConflict if a concurrent insert for the
	// same fingerprint commits first.
	Insert(ctx context.Context, rec *validation.Record) (*validation.Record, error)

	// Update applies a partial update and refreshes updated_at. Returns
	// sentinel.ErrNotFound if the id is absent.
	Update(ctx context.Context, id domain.RecordID, fields UpdateFields) (*validation.Record, error)

	// SoftDelete flags the record deleted and refreshes updated_at. A record
	// that is already deleted is a no-op success; an absent id is
	// sentinel.ErrNotFound.
	SoftDelete(ctx context.Context, id domain.RecordID) error

	// Restore clears the deleted flag. Idempotent on an active record; an
	// absent id is sentinel.ErrNotFound.
	Restore(ctx context.Context, id domain.RecordID) error

	// HardDelete irreversibly removes the row. Returns sentinel.ErrNotFound
	// if the id is absent.
	HardDelete(ctx context.Context, id domain.RecordID) error

	// ListRecent returns the caller's most recent records ordered by
	// validated_at descending, optionally including soft-deleted rows.
	ListRecent(ctx context.Context, appName string, limit int, includeDeleted bool) ([]*validation.Record, error)

	// FindGoldenRecord returns the non-deleted record flagged as the
	// authoritative instance for (normalized data, type), or
	// sentinel.ErrNotFound. The flag is governance-supplied; the store only
	// reads it.
	FindGoldenRecord(ctx context.Context, normalized string, t domain.ValidationType) (*validation.Record, error)
}
