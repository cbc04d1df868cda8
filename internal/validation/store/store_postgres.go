package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"validbus/internal/validation"
	"validbus/pkg/domain"
	"validbus/pkg/platform/sentinel"
)

// PostgresStore persists validation records in PostgreSQL. The store is pure
// I/O; upsert discipline, permission checks, and retry policy belong to the
// orchestrator. The active-fingerprint uniqueness is enforced by a partial
// unique index (see migrations), so concurrent inserts for the same
// fingerprint surface here as sentinel.ErrConflict.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed record store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const recordColumns = `
	id, validation_type, original_data, normalized_data, is_valid, message,
	validation_details, rule_code, app_name, client_identifier,
	is_golden_record, is_deleted, validated_at, created_at, updated_at`

func (s *PostgresStore) FindActiveByFingerprint(ctx context.Context, fp validation.Fingerprint) (*validation.Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM validation_records
		WHERE normalized_data = $1
		  AND validation_type = $2
		  AND app_name = $3
		  AND client_identifier = $4
		  AND NOT is_deleted
		LIMIT 1
	`
	rec, err := scanRecord(s.db.QueryRowContext(ctx, query,
		fp.NormalizedData, string(fp.ValidationType), fp.AppName, fp.ClientIdentifier))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find active by fingerprint: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id domain.RecordID) (*validation.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM validation_records WHERE id = $1`
	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get record by id: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) Insert(ctx context.Context, rec *validation.Record) (*validation.Record, error) {
	if rec == nil {
		return nil, fmt.Errorf("record is required")
	}
	stored := rec.Clone()
	if stored.ID.IsNil() {
		stored.ID = domain.NewRecordID()
	}
	details, err := marshalDetails(stored.Details)
	if err != nil {
		return nil, fmt.Errorf("encode validation details: %w", err)
	}

	query := `
		INSERT INTO validation_records (
			id, validation_type, original_data, normalized_data, is_valid,
			message, validation_details, rule_code, app_name,
			client_identifier, is_golden_record, is_deleted, validated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, FALSE, $12)
		RETURNING ` + recordColumns
	inserted, err := scanRecord(s.db.QueryRowContext(ctx, query,
		stored.ID.String(),
		string(stored.ValidationType),
		stored.OriginalData,
		stored.NormalizedData,
		stored.IsValid,
		stored.Message,
		details,
		nullString(stored.RuleCode),
		stored.AppName,
		stored.ClientIdentifier,
		stored.IsGoldenRecord,
		stored.ValidatedAt,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, sentinel.ErrConflict
		}
		return nil, fmt.Errorf("insert validation record: %w", err)
	}
	return inserted, nil
}

func (s *PostgresStore) Update(ctx context.Context, id domain.RecordID, fields UpdateFields) (*validation.Record, error) {
	set := []string{"updated_at = NOW()"}
	args := []any{id.String()}
	next := 2

	add := func(column string, value any) {
		set = append(set, fmt.Sprintf("%s = $%d", column, next))
		args = append(args, value)
		next++
	}

	if fields.IsValid != nil {
		add("is_valid", *fields.IsValid)
	}
	if fields.Message != nil {
		add("message", *fields.Message)
	}
	if fields.Details != nil {
		details, err := marshalDetails(fields.Details)
		if err != nil {
			return nil, fmt.Errorf("encode validation details: %w", err)
		}
		add("validation_details", details)
	}
	if fields.RuleCode != nil {
		add("rule_code", nullString(*fields.RuleCode))
	}
	if fields.ValidatedAt != nil {
		add("validated_at", *fields.ValidatedAt)
	}
	if fields.IsGoldenRecord != nil {
		add("is_golden_record", *fields.IsGoldenRecord)
	}

	query := `
		UPDATE validation_records
		SET ` + strings.Join(set, ", ") + `
		WHERE id = $1
		RETURNING ` + recordColumns
	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("update validation record: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) SoftDelete(ctx context.Context, id domain.RecordID) error {
	return s.setDeleted(ctx, id, true)
}

func (s *PostgresStore) Restore(ctx context.Context, id domain.RecordID) error {
	return s.setDeleted(ctx, id, false)
}

// setDeleted flips the soft-delete flag. Already-in-target-state rows are a
// no-op success; only an absent id is an error.
func (s *PostgresStore) setDeleted(ctx context.Context, id domain.RecordID, deleted bool) error {
	query := `
		UPDATE validation_records
		SET is_deleted = $2, updated_at = NOW()
		WHERE id = $1 AND is_deleted <> $2
	`
	result, err := s.db.ExecContext(ctx, query, id.String(), deleted)
	if err != nil {
		return fmt.Errorf("set deleted flag: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set deleted flag rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	var exists bool
	err = s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM validation_records WHERE id = $1)`, id.String()).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check record existence: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) HardDelete(ctx context.Context, id domain.RecordID) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM validation_records WHERE id = $1`, id.String())
	if err != nil {
		return fmt.Errorf("hard delete validation record: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("hard delete rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListRecent(ctx context.Context, appName string, limit int, includeDeleted bool) ([]*validation.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM validation_records WHERE app_name = $1`
	if !includeDeleted {
		query += ` AND NOT is_deleted`
	}
	query += ` ORDER BY validated_at DESC LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, appName, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent records: %w", err)
	}
	defer rows.Close()

	var out []*validation.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recent record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent records: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) FindGoldenRecord(ctx context.Context, normalized string, t domain.ValidationType) (*validation.Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM validation_records
		WHERE normalized_data = $1
		  AND validation_type = $2
		  AND is_golden_record
		  AND NOT is_deleted
		LIMIT 1
	`
	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, normalized, string(t)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find golden record: %w", err)
	}
	return rec, nil
}

type recordRow interface {
	Scan(dest ...any) error
}

func scanRecord(row recordRow) (*validation.Record, error) {
	var (
		rec      validation.Record
		id       string
		vType    string
		details  []byte
		ruleCode sql.NullString
	)
	if err := row.Scan(
		&id,
		&vType,
		&rec.OriginalData,
		&rec.NormalizedData,
		&rec.IsValid,
		&rec.Message,
		&details,
		&ruleCode,
		&rec.AppName,
		&rec.ClientIdentifier,
		&rec.IsGoldenRecord,
		&rec.IsDeleted,
		&rec.ValidatedAt,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return nil, err
	}

	parsed, err := domain.ParseRecordID(id)
	if err != nil {
		return nil, fmt.Errorf("parse stored record id %q: %w", id, err)
	}
	rec.ID = parsed
	rec.ValidationType = domain.ValidationType(vType)
	if ruleCode.Valid {
		rec.RuleCode = ruleCode.String
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &rec.Details); err != nil {
			return nil, fmt.Errorf("decode validation details: %w", err)
		}
	}
	return &rec, nil
}

func marshalDetails(details map[string]any) ([]byte, error) {
	if details == nil {
		details = map[string]any{}
	}
	return json.Marshal(details)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
