package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/models"
)

type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
}

func (c *Config) ConnectionString() string {
	return fmt.Sprintf("postgresql://%s:%s@%s:%s/%s?sslmode=%s", c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

const schema = `
CREATE TABLE IF NOT EXISTS governed_runs (
	seq         BIGSERIAL,
	run_id      TEXT PRIMARY KEY,
	prompt_hash TEXT NOT NULL,
	mode        TEXT NOT NULL,
	model_id    TEXT NOT NULL,
	grounded    BOOLEAN NOT NULL,
	status      TEXT NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	record      JSONB NOT NULL,
	telemetry   JSONB
);
CREATE INDEX IF NOT EXISTS governed_runs_prompt_idx ON governed_runs (prompt_hash, seq);
`

// uniqueViolation is the Postgres SQLSTATE for a duplicate key.
const uniqueViolation = "23505"

type PostgresStore struct {
	Pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, config Config) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, config.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("Failed to connect to database, Error: %w", err)
	}
	return &PostgresStore{Pool: pool}, nil
}

// Migrate creates the runs table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create governed_runs table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

func (s *PostgresStore) Close() {
	s.Pool.Close()
}

func (s *PostgresStore) Append(ctx context.Context, record *models.RunRecord) error {
	data, err := json.Marshal(stripTelemetry(record))
	if err != nil {
		return fmt.Errorf("failed to marshal run %s: %w", record.RunID, err)
	}

	query := `
	INSERT INTO governed_runs (run_id, prompt_hash, mode, model_id, grounded, status, started_at, record)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = s.Pool.Exec(ctx, query,
		record.RunID, record.PromptHash, string(record.Mode), record.ModelID,
		record.Grounded, string(record.Status), record.StartedAt, data)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateRun
		}
		return fmt.Errorf("failed to insert run %s: %w", record.RunID, err)
	}
	return nil
}

func (s *PostgresStore) Annotate(ctx context.Context, runID string, telemetry models.Telemetry) error {
	data, err := json.Marshal(telemetry)
	if err != nil {
		return fmt.Errorf("failed to marshal telemetry for %s: %w", runID, err)
	}

	tag, err := s.Pool.Exec(ctx, `UPDATE governed_runs SET telemetry = $2 WHERE run_id = $1`, runID, data)
	if err != nil {
		return fmt.Errorf("failed to store telemetry for %s: %w", runID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, runID string) (*models.RunRecord, error) {
	var recordData, telemetryData []byte
	err := s.Pool.QueryRow(ctx,
		`SELECT record, telemetry FROM governed_runs WHERE run_id = $1`, runID,
	).Scan(&recordData, &telemetryData)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read run %s: %w", runID, err)
	}
	return decodeRow(runID, recordData, telemetryData)
}

func (s *PostgresStore) ListByPrompt(ctx context.Context, promptHash string) ([]*models.RunRecord, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT run_id, record, telemetry FROM governed_runs WHERE prompt_hash = $1 ORDER BY seq ASC`, promptHash)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs for %s: %w", promptHash, err)
	}
	defer rows.Close()

	out := []*models.RunRecord{}
	for rows.Next() {
		var runID string
		var recordData, telemetryData []byte
		if err := rows.Scan(&runID, &recordData, &telemetryData); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		record, err := decodeRow(runID, recordData, telemetryData)
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

func decodeRow(runID string, recordData, telemetryData []byte) (*models.RunRecord, error) {
	var record models.RunRecord
	if err := json.Unmarshal(recordData, &record); err != nil {
		return nil, fmt.Errorf("failed to decode run %s: %w", runID, err)
	}
	if len(telemetryData) > 0 {
		if err := attachTelemetry(&record, telemetryData); err != nil {
			return nil, err
		}
	}
	return &record, nil
}
