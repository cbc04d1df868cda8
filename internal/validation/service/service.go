// Package service implements the validation orchestrator: the public entry
// point that dispatches to validators, applies decision rules, reconciles
// against existing records via the upsert discipline, and gates destructive
// operations behind caller permissions.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"validbus/internal/audit"
	"validbus/internal/validation"
	"validbus/internal/validation/cache"
	"validbus/internal/validation/metrics"
	"validbus/internal/validation/rules"
	"validbus/internal/validation/store"
	"validbus/pkg/domain"
	dErrors "validbus/pkg/domain-errors"
	"validbus/pkg/platform/sentinel"
	"validbus/pkg/requestcontext"
)

const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 100
)

// Service orchestrates validation requests. It holds no mutable state of its
// own; the persisted record set is the only shared resource, mediated
// entirely through the store.
type Service struct {
	registry *validation.Registry
	rules    *rules.Engine
	store    store.Store
	cache    cache.OutcomeCache
	audit    audit.Publisher
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithAuditPublisher sets the audit event sink.
func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(s *Service) {
		s.audit = publisher
	}
}

// WithOutcomeCache enables validator outcome memoization.
func WithOutcomeCache(c cache.OutcomeCache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

// New constructs the orchestrator.
func New(registry *validation.Registry, engine *rules.Engine, recordStore store.Store, opts ...Option) (*Service, error) {
	if registry == nil {
		return nil, fmt.Errorf("validator registry is required")
	}
	if engine == nil {
		return nil, fmt.Errorf("rule engine is required")
	}
	if recordStore == nil {
		return nil, fmt.Errorf("record store is required")
	}

	svc := &Service{
		registry: registry,
		rules:    engine,
		store:    recordStore,
		tracer:   otel.Tracer("validbus/validation"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Validate runs one validation request end to end: resolve the validator,
// normalize and check the data, apply decision rules, and upsert the audit
// record for the fingerprint. Re-validation of the same subject never creates
// a duplicate row.
func (s *Service) Validate(ctx context.Context, identity domain.CallerIdentity, t domain.ValidationType, raw string, clientIdentifier string) (*validation.Result, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "validation.validate", trace.WithAttributes(
		attribute.String("validation.type", string(t)),
		attribute.String("app.name", identity.AppName),
	))
	defer span.End()

	validator, err := s.registry.Resolve(t)
	if err != nil {
		return nil, err
	}

	normalized, outcome, err := s.runValidator(ctx, validator, t, raw)
	if err != nil {
		return nil, err
	}

	final, ruleCode := s.rules.Apply(t, identity.AppName, outcome)
	s.metrics.IncrementRuleApplication(ruleCode)

	rec, err := s.upsert(ctx, identity, t, raw, normalized, clientIdentifier, final, ruleCode)
	if err != nil {
		return nil, err
	}

	s.emitAudit(ctx, audit.Event{
		Action:         audit.ActionRecordValidated,
		AppName:        identity.AppName,
		RecordID:       rec.ID.String(),
		ValidationType: string(t),
		RequestID:      requestcontext.RequestID(ctx),
	})
	s.metrics.IncrementValidation(string(t), rec.IsValid)
	s.metrics.ObserveValidateLatency(time.Since(start))
	s.logValidated(ctx, rec, time.Since(start))

	return &validation.Result{
		RecordID:          rec.ID,
		IsValid:           rec.IsValid,
		Message:           rec.Message,
		Details:           rec.Details,
		InputDataOriginal: rec.OriginalData,
		InputDataCleaned:  rec.NormalizedData,
		RuleCode:          rec.RuleCode,
	}, nil
}

// runValidator normalizes and checks raw data, consulting the outcome cache
// first. A validator that cannot classify its input yields an invalid-data
// outcome; only infrastructure faults use the error channel.
func (s *Service) runValidator(ctx context.Context, validator validation.Validator, t domain.ValidationType, raw string) (string, validation.Outcome, error) {
	if s.cache != nil {
		if entry, ok := s.cache.Get(ctx, t, raw); ok {
			s.metrics.IncrementCacheLookup(true)
			return entry.Normalized, entry.Outcome, nil
		}
		s.metrics.IncrementCacheLookup(false)
	}

	normalized, err := validator.Normalize(raw)
	if err != nil {
		if errors.Is(err, sentinel.ErrUnavailable) {
			return "", validation.Outcome{}, dErrors.Wrap(err, dErrors.CodeInternal, "validator backend unavailable")
		}
		// Unclassifiable input is an invalid-data result, not a fault. Fall
		// back to the trimmed raw form so the fingerprint stays stable.
		return strings.TrimSpace(raw), validation.Outcome{
			IsValid: false,
			Message: err.Error(),
			Details: map[string]any{"reason": "normalization_failed"},
		}, nil
	}

	outcome, err := validator.Check(ctx, normalized)
	if err != nil {
		if errors.Is(err, sentinel.ErrUnavailable) {
			return "", validation.Outcome{}, dErrors.Wrap(err, dErrors.CodeInternal, "validator backend unavailable")
		}
		return normalized, validation.Outcome{
			IsValid: false,
			Message: err.Error(),
			Details: map[string]any{"reason": "check_failed"},
		}, nil
	}

	if s.cache != nil {
		s.cache.Set(ctx, t, raw, cache.Entry{Normalized: normalized, Outcome: outcome})
	}
	return normalized, outcome, nil
}

// upsert reconciles the outcome against any pre-existing active record for
// the fingerprint. Two concurrent first-time validations can both observe
// "not found"; the storage layer's uniqueness constraint fails the losing
// insert, which is retried exactly once as an update against the winner's
// row. A second conflict indicates a deeper inconsistency and escalates.
func (s *Service) upsert(ctx context.Context, identity domain.CallerIdentity, t domain.ValidationType, raw, normalized, clientIdentifier string, outcome validation.Outcome, ruleCode string) (*validation.Record, error) {
	fp := validation.Fingerprint{
		NormalizedData:   normalized,
		ValidationType:   t,
		AppName:          identity.AppName,
		ClientIdentifier: clientIdentifier,
	}
	now := requestcontext.Now(ctx)

	existing, err := s.store.FindActiveByFingerprint(ctx, fp)
	switch {
	case err == nil:
		return s.applyOutcome(ctx, existing.ID, outcome, ruleCode, now)
	case errors.Is(err, sentinel.ErrNotFound):
		// fall through to insert
	default:
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "fingerprint lookup failed")
	}

	rec := &validation.Record{
		ValidationType:   t,
		OriginalData:     raw,
		NormalizedData:   normalized,
		IsValid:          outcome.IsValid,
		Message:          outcome.Message,
		Details:          outcome.Details,
		RuleCode:         ruleCode,
		AppName:          identity.AppName,
		ClientIdentifier: clientIdentifier,
		ValidatedAt:      now,
	}
	inserted, err := s.store.Insert(ctx, rec)
	if err == nil {
		return inserted, nil
	}
	if !errors.Is(err, sentinel.ErrConflict) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to insert validation record")
	}

	// Lost the insert race: reconcile against the now-existing row.
	s.metrics.IncrementUpsertConflict()
	winner, err := s.store.FindActiveByFingerprint(ctx, fp)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "fingerprint conflict with no active record")
	}
	return s.applyOutcome(ctx, winner.ID, outcome, ruleCode, now)
}

func (s *Service) applyOutcome(ctx context.Context, id domain.RecordID, outcome validation.Outcome, ruleCode string, now time.Time) (*validation.Record, error) {
	details := outcome.Details
	if details == nil {
		details = map[string]any{}
	}
	updated, err := s.store.Update(ctx, id, store.UpdateFields{
		IsValid:     &outcome.IsValid,
		Message:     &outcome.Message,
		Details:     details,
		RuleCode:    &ruleCode,
		ValidatedAt: &now,
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update validation record")
	}
	return updated, nil
}

// SoftDeleteRecord logically deactivates a record. Only callers holding the
// delete permission may invoke it; the check happens here because this is the
// only enforcement point the core controls.
func (s *Service) SoftDeleteRecord(ctx context.Context, identity domain.CallerIdentity, id domain.RecordID) error {
	if err := requireDeletePermission(identity); err != nil {
		return err
	}
	if err := s.store.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "validation record not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to soft delete record")
	}

	s.emitAudit(ctx, audit.Event{
		Action:    audit.ActionRecordSoftDeleted,
		AppName:   identity.AppName,
		RecordID:  id.String(),
		RequestID: requestcontext.RequestID(ctx),
	})
	s.metrics.IncrementLifecycleOp("soft_delete")
	return nil
}

// RestoreRecord reactivates a soft-deleted record under the same permission
// gate as SoftDeleteRecord.
func (s *Service) RestoreRecord(ctx context.Context, identity domain.CallerIdentity, id domain.RecordID) error {
	if err := requireDeletePermission(identity); err != nil {
		return err
	}
	if err := s.store.Restore(ctx, id); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "validation record not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to restore record")
	}

	s.emitAudit(ctx, audit.Event{
		Action:    audit.ActionRecordRestored,
		AppName:   identity.AppName,
		RecordID:  id.String(),
		RequestID: requestcontext.RequestID(ctx),
	})
	s.metrics.IncrementLifecycleOp("restore")
	return nil
}

// SetGoldenRecord flags or unflags a record as the authoritative instance for
// its fingerprint. The flag is governance-supplied metadata: the bus stores it
// but never computes it, so only governance callers may set it.
func (s *Service) SetGoldenRecord(ctx context.Context, identity domain.CallerIdentity, id domain.RecordID, golden bool) error {
	if identity.AccessLevel != domain.AccessLevelGovernance {
		return dErrors.New(dErrors.CodeForbidden, "golden record updates require governance access")
	}
	if _, err := s.store.Update(ctx, id, store.UpdateFields{IsGoldenRecord: &golden}); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "validation record not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update golden record flag")
	}

	s.emitAudit(ctx, audit.Event{
		Action:    audit.ActionGoldenRecordSet,
		AppName:   identity.AppName,
		RecordID:  id.String(),
		RequestID: requestcontext.RequestID(ctx),
		Detail:    strconv.FormatBool(golden),
	})
	s.metrics.IncrementLifecycleOp("golden_update")
	return nil
}

// History returns the caller's most recent validation records.
func (s *Service) History(ctx context.Context, identity domain.CallerIdentity, limit int, includeDeleted bool) ([]*validation.Record, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	records, err := s.store.ListRecent(ctx, identity.AppName, limit, includeDeleted)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list validation history")
	}
	return records, nil
}

// GoldenRecord returns the governance-flagged authoritative record for a
// normalized value and type, if one exists.
func (s *Service) GoldenRecord(ctx context.Context, normalized string, t domain.ValidationType) (*validation.Record, error) {
	rec, err := s.store.FindGoldenRecord(ctx, normalized, t)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no golden record for this value")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to find golden record")
	}
	return rec, nil
}

// SupportedTypes lists the registered validation type tags.
func (s *Service) SupportedTypes() []string {
	return s.registry.Types()
}

func requireDeletePermission(identity domain.CallerIdentity) error {
	if !identity.CanDeleteRecords {
		return dErrors.New(dErrors.CodeForbidden, "caller is not permitted to manage record lifecycle")
	}
	return nil
}

func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Emit(ctx, event); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "audit emit failed",
			"action", event.Action,
			"record_id", event.RecordID,
			"error", err,
		)
	}
}

func (s *Service) logValidated(ctx context.Context, rec *validation.Record, elapsed time.Duration) {
	if s.logger == nil {
		return
	}
	s.logger.InfoContext(ctx, "validation recorded",
		"request_id", requestcontext.RequestID(ctx),
		"record_id", rec.ID,
		"type", rec.ValidationType,
		"app", rec.AppName,
		"valid", rec.IsValid,
		"rule_code", rec.RuleCode,
		"duration_ms", elapsed.Milliseconds(),
	)
}
