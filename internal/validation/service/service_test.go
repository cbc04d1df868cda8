package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"validbus/internal/audit"
	"validbus/internal/validation"
	"validbus/internal/validation/cache"
	"validbus/internal/validation/rules"
	"validbus/internal/validation/store"
	"validbus/pkg/domain"
	dErrors "validbus/pkg/domain-errors"
	"validbus/pkg/platform/sentinel"
	"validbus/pkg/requestcontext"
)

type stubValidator struct {
	mu           sync.Mutex
	normalizeErr error
	checkErr     error
	outcome      validation.Outcome
	normalize    func(raw string) string
	checkCalls   int
}

func (v *stubValidator) Normalize(raw string) (string, error) {
	if v.normalizeErr != nil {
		return "", v.normalizeErr
	}
	if v.normalize != nil {
		return v.normalize(raw), nil
	}
	return raw, nil
}

func (v *stubValidator) Check(_ context.Context, _ string) (validation.Outcome, error) {
	v.mu.Lock()
	v.checkCalls++
	v.mu.Unlock()
	if v.checkErr != nil {
		return validation.Outcome{}, v.checkErr
	}
	return v.outcome, nil
}

func (v *stubValidator) calls() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.checkCalls
}

func newTestService(t *testing.T, st store.Store, opts ...Option) (*Service, *stubValidator) {
	t.Helper()

	validator := &stubValidator{
		outcome:   validation.Outcome{IsValid: true, Message: "phone is valid"},
		normalize: func(raw string) string { return "+5511999998888" },
	}
	registry := validation.NewRegistry()
	registry.Register("phone", validator)

	svc, err := New(registry, rules.NewEngine(rules.Default()...), st, opts...)
	require.NoError(t, err)
	return svc, validator
}

func standardCaller() domain.CallerIdentity {
	return domain.CallerIdentity{AppName: "CRM", AccessLevel: domain.AccessLevelStandard}
}

func deletingCaller() domain.CallerIdentity {
	return domain.CallerIdentity{AppName: "CRM", CanDeleteRecords: true, AccessLevel: domain.AccessLevelStandard}
}

func TestNewRequiresDependencies(t *testing.T) {
	registry := validation.NewRegistry()
	engine := rules.NewEngine()
	st := store.NewMemory()

	_, err := New(nil, engine, st)
	require.Error(t, err)
	_, err = New(registry, nil, st)
	require.Error(t, err)
	_, err = New(registry, engine, nil)
	require.Error(t, err)
}

func TestValidateInsertsThenUpdatesSameRecord(t *testing.T) {
	st := store.NewMemory()
	svc, validator := newTestService(t, st)
	ctx := context.Background()

	first, err := svc.Validate(ctx, standardCaller(), "phone", "(11) 99999-8888", "cli-1")
	require.NoError(t, err)
	assert.True(t, first.IsValid)
	assert.Equal(t, "(11) 99999-8888", first.InputDataOriginal)
	assert.Equal(t, "+5511999998888", first.InputDataCleaned)
	assert.False(t, first.RecordID.IsNil())

	// Same subject again, different raw formatting: must reuse the record.
	validator.outcome = validation.Outcome{IsValid: false, Message: "number was ported out"}
	second, err := svc.Validate(ctx, standardCaller(), "phone", "11999998888", "cli-1")
	require.NoError(t, err)
	assert.Equal(t, first.RecordID, second.RecordID)
	assert.False(t, second.IsValid)
	assert.Equal(t, "number was ported out", second.Message)

	history, err := svc.History(ctx, standardCaller(), 10, false)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, first.RecordID, history[0].ID)
}

func TestValidateDistinctFingerprintsGetDistinctRecords(t *testing.T) {
	st := store.NewMemory()
	svc, _ := newTestService(t, st)
	ctx := context.Background()

	a, err := svc.Validate(ctx, standardCaller(), "phone", "11999998888", "cli-1")
	require.NoError(t, err)
	b, err := svc.Validate(ctx, standardCaller(), "phone", "11999998888", "cli-2")
	require.NoError(t, err)
	assert.NotEqual(t, a.RecordID, b.RecordID)

	c, err := svc.Validate(ctx, domain.CallerIdentity{AppName: "Billing"}, "phone", "11999998888", "cli-1")
	require.NoError(t, err)
	assert.NotEqual(t, a.RecordID, c.RecordID)
}

func TestValidateUnsupportedType(t *testing.T) {
	svc, _ := newTestService(t, store.NewMemory())

	_, err := svc.Validate(context.Background(), standardCaller(), "passport", "AB123456", "")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnsupportedType))
}

func TestValidateAppliesDemotionRule(t *testing.T) {
	st := store.NewMemory()
	svc, validator := newTestService(t, st)
	validator.outcome = validation.Outcome{
		IsValid: true,
		Message: "phone is valid",
		Details: map[string]any{"line_type": "premium_rate"},
	}

	result, err := svc.Validate(context.Background(), standardCaller(), "phone", "0900123456", "")
	require.NoError(t, err)
	assert.False(t, result.IsValid)
	assert.Equal(t, "RN_BLK001", result.RuleCode)
	assert.Equal(t, "premium-rate and toll-free numbers are not accepted", result.Message)
	// The validator's finding survives in the details.
	assert.Equal(t, "premium_rate", result.Details["line_type"])
}

func TestValidateNormalizeFailureIsInvalidNotError(t *testing.T) {
	st := store.NewMemory()
	svc, validator := newTestService(t, st)
	validator.normalizeErr = fmt.Errorf("input contains no digits")

	result, err := svc.Validate(context.Background(), standardCaller(), "phone", "  garbage  ", "")
	require.NoError(t, err)
	assert.False(t, result.IsValid)
	assert.Equal(t, "input contains no digits", result.Message)
	assert.Equal(t, "normalization_failed", result.Details["reason"])
	// Fingerprint falls back to the trimmed raw form.
	assert.Equal(t, "garbage", result.InputDataCleaned)
}

func TestValidateBackendUnavailableEscalates(t *testing.T) {
	st := store.NewMemory()
	svc, validator := newTestService(t, st)
	validator.checkErr = fmt.Errorf("carrier lookup: %w", sentinel.ErrUnavailable)

	_, err := svc.Validate(context.Background(), standardCaller(), "phone", "11999998888", "")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))

	// Nothing persisted on infrastructure failure.
	history, err := svc.History(context.Background(), standardCaller(), 10, true)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestValidateUsesRequestTime(t *testing.T) {
	st := store.NewMemory()
	svc, _ := newTestService(t, st)
	fixed := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), fixed)

	result, err := svc.Validate(ctx, standardCaller(), "phone", "11999998888", "")
	require.NoError(t, err)

	rec, err := st.GetByID(ctx, result.RecordID)
	require.NoError(t, err)
	assert.Equal(t, fixed, rec.ValidatedAt)
}

func TestValidateEmitsAuditEvent(t *testing.T) {
	sink := audit.NewMemoryPublisher()
	svc, _ := newTestService(t, store.NewMemory(), WithAuditPublisher(sink))
	ctx := requestcontext.WithRequestID(context.Background(), "req-42")

	result, err := svc.Validate(ctx, standardCaller(), "phone", "11999998888", "")
	require.NoError(t, err)

	events := sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, audit.ActionRecordValidated, events[0].Action)
	assert.Equal(t, "CRM", events[0].AppName)
	assert.Equal(t, result.RecordID.String(), events[0].RecordID)
	assert.Equal(t, "req-42", events[0].RequestID)
}

// mapCache is an in-process OutcomeCache for tests.
type mapCache struct {
	mu      sync.Mutex
	entries map[string]cache.Entry
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string]cache.Entry)}
}

func (c *mapCache) Get(_ context.Context, t domain.ValidationType, raw string) (cache.Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[string(t)+":"+raw]
	return entry, ok
}

func (c *mapCache) Set(_ context.Context, t domain.ValidationType, raw string, entry cache.Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[string(t)+":"+raw] = entry
}

func TestValidateMemoizesValidatorOutcome(t *testing.T) {
	st := store.NewMemory()
	svc, validator := newTestService(t, st, WithOutcomeCache(newMapCache()))
	ctx := context.Background()

	_, err := svc.Validate(ctx, standardCaller(), "phone", "11999998888", "")
	require.NoError(t, err)
	require.Equal(t, 1, validator.calls())

	// Second call for the same raw input skips the validator but still
	// touches the record.
	second, err := svc.Validate(ctx, standardCaller(), "phone", "11999998888", "")
	require.NoError(t, err)
	assert.Equal(t, 1, validator.calls())
	assert.True(t, second.IsValid)
}

// conflictStore wraps the memory store to force an insert conflict, simulating
// a concurrent first-time validation winning the race.
type conflictStore struct {
	store.Store
	winner *validation.Record
	finds  int
}

func (s *conflictStore) FindActiveByFingerprint(ctx context.Context, fp validation.Fingerprint) (*validation.Record, error) {
	s.finds++
	if s.finds == 1 {
		return nil, sentinel.ErrNotFound
	}
	return s.Store.FindActiveByFingerprint(ctx, fp)
}

func (s *conflictStore) Insert(ctx context.Context, rec *validation.Record) (*validation.Record, error) {
	if s.winner == nil {
		// The racing request's row lands between our find and insert.
		winner, err := s.Store.Insert(ctx, rec.Clone())
		if err != nil {
			return nil, err
		}
		s.winner = winner
		return nil, sentinel.ErrConflict
	}
	return s.Store.Insert(ctx, rec)
}

func TestValidateRetriesOnceOnInsertConflict(t *testing.T) {
	cs := &conflictStore{Store: store.NewMemory()}
	svc, _ := newTestService(t, cs)

	result, err := svc.Validate(context.Background(), standardCaller(), "phone", "11999998888", "")
	require.NoError(t, err)
	assert.Equal(t, cs.winner.ID, result.RecordID)
	assert.Equal(t, 2, cs.finds)
}

func TestLifecyclePermissionEnforcedBeforeStore(t *testing.T) {
	spy := &spyStore{Store: store.NewMemory()}
	svc, _ := newTestService(t, spy)
	ctx := context.Background()

	err := svc.SoftDeleteRecord(ctx, standardCaller(), domain.NewRecordID())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))

	err = svc.RestoreRecord(ctx, standardCaller(), domain.NewRecordID())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))

	assert.Zero(t, spy.lifecycleCalls, "store must not be touched for forbidden callers")
}

type spyStore struct {
	store.Store
	lifecycleCalls int
}

func (s *spyStore) SoftDelete(ctx context.Context, id domain.RecordID) error {
	s.lifecycleCalls++
	return s.Store.SoftDelete(ctx, id)
}

func (s *spyStore) Restore(ctx context.Context, id domain.RecordID) error {
	s.lifecycleCalls++
	return s.Store.Restore(ctx, id)
}

func TestSoftDeleteAndRestoreLifecycle(t *testing.T) {
	st := store.NewMemory()
	sink := audit.NewMemoryPublisher()
	svc, _ := newTestService(t, st, WithAuditPublisher(sink))
	ctx := context.Background()

	result, err := svc.Validate(ctx, standardCaller(), "phone", "11999998888", "")
	require.NoError(t, err)

	require.NoError(t, svc.SoftDeleteRecord(ctx, deletingCaller(), result.RecordID))
	rec, err := st.GetByID(ctx, result.RecordID)
	require.NoError(t, err)
	assert.True(t, rec.IsDeleted)

	// Idempotent: deleting again succeeds without another state change.
	require.NoError(t, svc.SoftDeleteRecord(ctx, deletingCaller(), result.RecordID))

	require.NoError(t, svc.RestoreRecord(ctx, deletingCaller(), result.RecordID))
	rec, err = st.GetByID(ctx, result.RecordID)
	require.NoError(t, err)
	assert.False(t, rec.IsDeleted)

	var actions []audit.Action
	for _, e := range sink.Events() {
		actions = append(actions, e.Action)
	}
	assert.Equal(t, []audit.Action{
		audit.ActionRecordValidated,
		audit.ActionRecordSoftDeleted,
		audit.ActionRecordSoftDeleted,
		audit.ActionRecordRestored,
	}, actions)
}

func TestSoftDeleteUnknownRecord(t *testing.T) {
	svc, _ := newTestService(t, store.NewMemory())

	err := svc.SoftDeleteRecord(context.Background(), deletingCaller(), domain.NewRecordID())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestSoftDeleteFreesFingerprintForNewRecord(t *testing.T) {
	st := store.NewMemory()
	svc, _ := newTestService(t, st)
	ctx := context.Background()

	first, err := svc.Validate(ctx, standardCaller(), "phone", "11999998888", "")
	require.NoError(t, err)
	require.NoError(t, svc.SoftDeleteRecord(ctx, deletingCaller(), first.RecordID))

	// The deleted row no longer occupies the fingerprint slot.
	second, err := svc.Validate(ctx, standardCaller(), "phone", "11999998888", "")
	require.NoError(t, err)
	assert.NotEqual(t, first.RecordID, second.RecordID)
}

func TestSetGoldenRecordRequiresGovernance(t *testing.T) {
	st := store.NewMemory()
	svc, _ := newTestService(t, st)
	ctx := context.Background()

	result, err := svc.Validate(ctx, standardCaller(), "phone", "11999998888", "")
	require.NoError(t, err)

	err = svc.SetGoldenRecord(ctx, deletingCaller(), result.RecordID, true)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))

	governance := domain.CallerIdentity{AppName: "DataGov", CanDeleteRecords: true, AccessLevel: domain.AccessLevelGovernance}
	require.NoError(t, svc.SetGoldenRecord(ctx, governance, result.RecordID, true))

	rec, err := st.GetByID(ctx, result.RecordID)
	require.NoError(t, err)
	assert.True(t, rec.IsGoldenRecord)

	require.NoError(t, svc.SetGoldenRecord(ctx, governance, result.RecordID, false))
	rec, err = st.GetByID(ctx, result.RecordID)
	require.NoError(t, err)
	assert.False(t, rec.IsGoldenRecord)

	err = svc.SetGoldenRecord(ctx, governance, domain.NewRecordID(), true)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestHistoryScopedToCallerAndLimited(t *testing.T) {
	st := store.NewMemory()
	svc, _ := newTestService(t, st)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Validate(ctx, standardCaller(), "phone", "11999998888", fmt.Sprintf("cli-%d", i))
		require.NoError(t, err)
	}
	_, err := svc.Validate(ctx, domain.CallerIdentity{AppName: "Billing"}, "phone", "11999998888", "")
	require.NoError(t, err)

	records, err := svc.History(ctx, standardCaller(), 2, false)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	for _, rec := range records {
		assert.Equal(t, "CRM", rec.AppName)
	}
}

func TestGoldenRecordLookup(t *testing.T) {
	st := store.NewMemory()
	svc, _ := newTestService(t, st)
	ctx := context.Background()

	result, err := svc.Validate(ctx, standardCaller(), "phone", "11999998888", "")
	require.NoError(t, err)

	_, err = svc.GoldenRecord(ctx, "+5511999998888", "phone")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))

	golden := true
	_, err = st.Update(ctx, result.RecordID, store.UpdateFields{IsGoldenRecord: &golden})
	require.NoError(t, err)

	rec, err := svc.GoldenRecord(ctx, "+5511999998888", "phone")
	require.NoError(t, err)
	assert.Equal(t, result.RecordID, rec.ID)
}
