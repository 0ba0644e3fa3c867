package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/mohammad-safakhou/deepresearch/internal/research/config"
)

// RunRecord is one archived research run.
type RunRecord struct {
	ID              string    `json:"id"`
	Query           string    `json:"query"`
	Report          string    `json:"report"`
	Satisfied       bool      `json:"satisfied"`
	BudgetExhausted bool      `json:"budget_exhausted"`
	Iterations      int       `json:"iterations"`
	SourceCount     int       `json:"source_count"`
	Cost            float64   `json:"cost"`
	Tokens          int64     `json:"tokens"`
	CreatedAt       time.Time `json:"created_at"`
}

// Store archives completed runs in Postgres.
type Store struct {
	DB *sql.DB
}

func NewStore(cfg config.PostgresConfig) (*Store, error) {
	dsn := cfg.DSN()
	if dsn == "" {
		return nil, fmt.Errorf("postgres not configured")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

func (s *Store) Close() error { return s.DB.Close() }

// SaveRun upserts a finished run.
func (s *Store) SaveRun(ctx context.Context, rec RunRecord) error {
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO runs (
  id, query, report, satisfied, budget_exhausted, iterations, source_count, cost, tokens, created_at
) VALUES (
  $1, $2, $3, $4, $5, $6, $7, $8, $9, NOW()
)
ON CONFLICT (id) DO UPDATE SET
  query = EXCLUDED.query,
  report = EXCLUDED.report,
  satisfied = EXCLUDED.satisfied,
  budget_exhausted = EXCLUDED.budget_exhausted,
  iterations = EXCLUDED.iterations,
  source_count = EXCLUDED.source_count,
  cost = EXCLUDED.cost,
  tokens = EXCLUDED.tokens;
`,
		rec.ID, rec.Query, rec.Report, rec.Satisfied, rec.BudgetExhausted,
		rec.Iterations, rec.SourceCount, rec.Cost, rec.Tokens,
	)
	return err
}

// GetRun retrieves one archived run by id.
func (s *Store) GetRun(ctx context.Context, id string) (RunRecord, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT id, query, report, satisfied, budget_exhausted,
        iterations, source_count, cost, tokens, created_at FROM runs WHERE id = $1`, id)

	var rec RunRecord
	if err := row.Scan(&rec.ID, &rec.Query, &rec.Report, &rec.Satisfied, &rec.BudgetExhausted,
		&rec.Iterations, &rec.SourceCount, &rec.Cost, &rec.Tokens, &rec.CreatedAt); err != nil {
		return RunRecord{}, err
	}
	return rec, nil
}

// ListRuns returns recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT id, query, satisfied, budget_exhausted,
        iterations, source_count, cost, tokens, created_at FROM runs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var rec RunRecord
		if err := rows.Scan(&rec.ID, &rec.Query, &rec.Satisfied, &rec.BudgetExhausted,
			&rec.Iterations, &rec.SourceCount, &rec.Cost, &rec.Tokens, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
