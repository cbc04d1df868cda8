// Package cache memoizes validator outcomes. Validators are pure, so the
// (type, raw input) pair fully determines normalization and check results;
// caching them skips repeated parsing for hot inputs. Persistence and rule
// application still run on every call, so the audit trail is unaffected.
package cache

import (
	"context"

	"validbus/internal/validation"
	"validbus/pkg/domain"
)

// Entry is a memoized validator result.
type Entry struct {
	Normalized string             `json:"normalized"`
	Outcome    validation.Outcome `json:"outcome"`
}

// OutcomeCache is the optional memoization layer consumed by the
// orchestrator. Implementations must treat errors as misses; a cache outage
// never fails a validation.
type OutcomeCache interface {
	Get(ctx context.Context, t domain.ValidationType, raw string) (Entry, bool)
	Set(ctx context.Context, t domain.ValidationType, raw string, entry Entry)
}
