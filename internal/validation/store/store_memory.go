package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"validbus/internal/validation"
	"validbus/pkg/domain"
	"validbus/pkg/platform/sentinel"
)

// InMemoryStore keeps validation records in process memory. It mirrors the
// PostgreSQL store's semantics, including the active-fingerprint uniqueness
// constraint, so unit tests exercise the same contract.
type InMemoryStore struct {
	mu      sync.Mutex
	records map[domain.RecordID]*validation.Record
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *InMemoryStore {
	return &InMemoryStore{records: make(map[domain.RecordID]*validation.Record)}
}

func (s *InMemoryStore) FindActiveByFingerprint(_ context.Context, fp validation.Fingerprint) (*validation.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec := s.findActiveLocked(fp); rec != nil {
		return rec.Clone(), nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) GetByID(_ context.Context, id domain.RecordID) (*validation.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *InMemoryStore) Insert(_ context.Context, rec *validation.Record) (*validation.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// The partial unique index equivalent: one active record per fingerprint.
	if existing := s.findActiveLocked(rec.Fingerprint()); existing != nil {
		return nil, sentinel.ErrConflict
	}

	stored := rec.Clone()
	if stored.ID.IsNil() {
		stored.ID = domain.NewRecordID()
	}
	now := time.Now()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = stored.CreatedAt
	if stored.ValidatedAt.IsZero() {
		stored.ValidatedAt = now
	}
	s.records[stored.ID] = stored
	return stored.Clone(), nil
}

func (s *InMemoryStore) Update(_ context.Context, id domain.RecordID, fields UpdateFields) (*validation.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}

	if fields.IsValid != nil {
		rec.IsValid = *fields.IsValid
	}
	if fields.Message != nil {
		rec.Message = *fields.Message
	}
	if fields.Details != nil {
		rec.Details = fields.Details
	}
	if fields.RuleCode != nil {
		rec.RuleCode = *fields.RuleCode
	}
	if fields.ValidatedAt != nil {
		rec.ValidatedAt = *fields.ValidatedAt
	}
	if fields.IsGoldenRecord != nil {
		rec.IsGoldenRecord = *fields.IsGoldenRecord
	}
	rec.UpdatedAt = s.tickLocked(rec.UpdatedAt)
	return rec.Clone(), nil
}

func (s *InMemoryStore) SoftDelete(_ context.Context, id domain.RecordID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if rec.IsDeleted {
		return nil
	}
	rec.IsDeleted = true
	rec.UpdatedAt = s.tickLocked(rec.UpdatedAt)
	return nil
}

func (s *InMemoryStore) Restore(_ context.Context, id domain.RecordID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if !rec.IsDeleted {
		return nil
	}
	rec.IsDeleted = false
	rec.UpdatedAt = s.tickLocked(rec.UpdatedAt)
	return nil
}

func (s *InMemoryStore) HardDelete(_ context.Context, id domain.RecordID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.records, id)
	return nil
}

func (s *InMemoryStore) ListRecent(_ context.Context, appName string, limit int, includeDeleted bool) ([]*validation.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*validation.Record
	for _, rec := range s.records {
		if rec.AppName != appName {
			continue
		}
		if rec.IsDeleted && !includeDeleted {
			continue
		}
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ValidatedAt.After(out[j].ValidatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) FindGoldenRecord(_ context.Context, normalized string, t domain.ValidationType) (*validation.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.records {
		if rec.IsGoldenRecord && !rec.IsDeleted &&
			rec.NormalizedData == normalized && rec.ValidationType == t {
			return rec.Clone(), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) findActiveLocked(fp validation.Fingerprint) *validation.Record {
	for _, rec := range s.records {
		if !rec.IsDeleted && rec.Fingerprint() == fp {
			return rec
		}
	}
	return nil
}

// tickLocked returns a timestamp strictly after prev so updated_at advances
// even when two mutations land within clock resolution.
func (s *InMemoryStore) tickLocked(prev time.Time) time.Time {
	now := time.Now()
	if !now.After(prev) {
		now = prev.Add(time.Nanosecond)
	}
	return now
}
