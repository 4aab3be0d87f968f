package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/Lllllllleong/bonafideflow/internal/approval"
	"github.com/Lllllllleong/bonafideflow/internal/config"
	"github.com/Lllllllleong/bonafideflow/internal/models"
)

// Schema creates the requests table. The full request is kept in data; the
// columns duplicate what list queries filter and sort on.
const Schema = `
CREATE TABLE IF NOT EXISTS requests (
	id            UUID PRIMARY KEY,
	kind          TEXT NOT NULL,
	student_id    TEXT NOT NULL,
	status        TEXT NOT NULL,
	current_stage TEXT NOT NULL,
	version       BIGINT NOT NULL,
	data          JSONB NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS requests_stage_idx ON requests (current_stage, created_at DESC);
CREATE INDEX IF NOT EXISTS requests_student_idx ON requests (student_id, created_at DESC);
`

// OpenPostgres opens a pooled connection to PostgreSQL.
func OpenPostgres(cfg config.PostgresConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}

// PostgresStore keeps requests in a single table. Update locks the row with
// SELECT ... FOR UPDATE and writes back only if the version is unchanged.
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

// Migrate creates the table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to migrate requests table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, req *models.Request) (*models.Request, error) {
	now := s.now().UTC()
	if req.ID == "" {
		req.ID = uuid.New().String()
	} else if _, err := uuid.Parse(req.ID); err != nil {
		return nil, fmt.Errorf("invalid request id %q: %w", req.ID, err)
	}
	req.Version = 1
	req.CreatedAt = now
	req.UpdatedAt = now

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO requests (id, kind, student_id, status, current_stage, version, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		req.ID, string(req.Kind), req.StudentID, string(req.Approval.Status), string(req.Approval.CurrentStage),
		req.Version, data, req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert request: %w", err)
	}
	return req, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*models.Request, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM requests WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get request %s: %w", id, err)
	}
	return decodeRow(data)
}

func (s *PostgresStore) Update(ctx context.Context, id string, fn Mutation) (*models.Request, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var data []byte
	err = tx.QueryRowContext(ctx, `SELECT data FROM requests WHERE id = $1 FOR UPDATE`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock request %s: %w", id, err)
	}
	req, err := decodeRow(data)
	if err != nil {
		return nil, err
	}

	prevVersion := req.Version
	if err := fn(req); err != nil {
		return nil, err
	}
	req.ID = id
	req.Version = prevVersion + 1
	req.UpdatedAt = s.now().UTC()

	updated, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE requests
		SET status = $1, current_stage = $2, version = $3, data = $4, updated_at = $5
		WHERE id = $6 AND version = $7`,
		string(req.Approval.Status), string(req.Approval.CurrentStage), req.Version, updated, req.UpdatedAt,
		id, prevVersion,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update request %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, fmt.Errorf("%w: %s", ErrConflict, id)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit request %s: %w", id, err)
	}
	return req, nil
}

func (s *PostgresStore) ListByStage(ctx context.Context, stage approval.Stage) ([]*models.Request, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM requests WHERE current_stage = $1 ORDER BY created_at DESC`, string(stage))
	if err != nil {
		return nil, fmt.Errorf("failed to list requests at %s: %w", stage, err)
	}
	return scanRows(rows)
}

func (s *PostgresStore) ListByStudent(ctx context.Context, studentID string, st approval.Status) ([]*models.Request, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if st == "" {
		rows, err = s.db.QueryContext(ctx,
			`SELECT data FROM requests WHERE student_id = $1 ORDER BY created_at DESC`, studentID)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT data FROM requests WHERE student_id = $1 AND status = $2 ORDER BY created_at DESC`, studentID, string(st))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list requests of %s: %w", studentID, err)
	}
	return scanRows(rows)
}

func scanRows(rows *sql.Rows) ([]*models.Request, error) {
	defer rows.Close()
	var out []*models.Request
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		req, err := decodeRow(data)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate requests: %w", err)
	}
	return out, nil
}

func decodeRow(data []byte) (*models.Request, error) {
	var req models.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to decode request: %w", err)
	}
	return &req, nil
}
