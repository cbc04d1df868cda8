package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"validbus/internal/validation"
	"validbus/pkg/domain"
	"validbus/pkg/platform/sentinel"
)

func validationFingerprint() validation.Fingerprint {
	return validation.Fingerprint{
		NormalizedData:   "+5511999998888",
		ValidationType:   "phone",
		AppName:          "CRM",
		ClientIdentifier: "cli-1",
	}
}

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgres(db), mock
}

func sampleRows(id domain.RecordID, now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "validation_type", "original_data", "normalized_data", "is_valid", "message",
		"validation_details", "rule_code", "app_name", "client_identifier",
		"is_golden_record", "is_deleted", "validated_at", "created_at", "updated_at",
	}).AddRow(
		id.String(), "phone", "(11) 99999-8888", "+5511999998888", true, "valid Brazilian phone number",
		[]byte(`{"line_type":"mobile"}`), nil, "CRM", "cli-1",
		false, false, now, now, now,
	)
}

func TestPostgresFindActiveByFingerprint(t *testing.T) {
	store, mock := newMockStore(t)
	id := domain.NewRecordID()
	now := time.Now()

	mock.ExpectQuery(`(?s)SELECT .+ FROM validation_records`).
		WithArgs("+5511999998888", "phone", "CRM", "cli-1").
		WillReturnRows(sampleRows(id, now))

	rec, err := store.FindActiveByFingerprint(context.Background(), validationFingerprint())
	require.NoError(t, err)
	assert.Equal(t, id, rec.ID)
	assert.Equal(t, "mobile", rec.Details["line_type"])
	assert.Empty(t, rec.RuleCode)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFindActiveByFingerprintNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`(?s)SELECT .+ FROM validation_records`).
		WillReturnError(sql.ErrNoRows)

	_, err := store.FindActiveByFingerprint(context.Background(), validationFingerprint())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInsertMapsUniqueViolation(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("INSERT INTO validation_records").
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})

	_, err := store.Insert(context.Background(), newRecord("cli-1"))
	assert.ErrorIs(t, err, sentinel.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInsertReturnsStoredRecord(t *testing.T) {
	store, mock := newMockStore(t)
	id := domain.NewRecordID()
	now := time.Now()

	mock.ExpectQuery("INSERT INTO validation_records").
		WillReturnRows(sampleRows(id, now))

	rec, err := store.Insert(context.Background(), newRecord("cli-1"))
	require.NoError(t, err)
	assert.Equal(t, id, rec.ID)
	assert.False(t, rec.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("UPDATE validation_records").
		WillReturnError(sql.ErrNoRows)

	valid := false
	_, err := store.Update(context.Background(), domain.NewRecordID(), UpdateFields{IsValid: &valid})
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSoftDeleteIdempotent(t *testing.T) {
	store, mock := newMockStore(t)
	id := domain.NewRecordID()

	// Row already deleted: zero rows updated, but the record exists.
	mock.ExpectExec("UPDATE validation_records").
		WithArgs(id.String(), true).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(id.String()).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	require.NoError(t, store.SoftDelete(context.Background(), id))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSoftDeleteMissingRecord(t *testing.T) {
	store, mock := newMockStore(t)
	id := domain.NewRecordID()

	mock.ExpectExec("UPDATE validation_records").
		WithArgs(id.String(), true).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(id.String()).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	assert.ErrorIs(t, store.SoftDelete(context.Background(), id), sentinel.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresHardDeleteMissingRecord(t *testing.T) {
	store, mock := newMockStore(t)
	id := domain.NewRecordID()

	mock.ExpectExec("DELETE FROM validation_records").
		WithArgs(id.String()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, store.HardDelete(context.Background(), id), sentinel.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
