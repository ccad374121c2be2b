// Package store persists backtest runs in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/nexus-trading/nexus-backtest/internal/backtest"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// ErrRunNotFound is returned by LoadRun for an unknown id.
var ErrRunNotFound = errors.New("run not found")

// StrategyMetrics is one strategy's scored record inside a run.
type StrategyMetrics struct {
	Strategy string
	Metrics  backtest.Metrics
}

// Run is one invocation of the runner over one price series.
type Run struct {
	ID        string
	CreatedAt time.Time
	Source    string
	Bars      int
	Benchmark string
	Results   []StrategyMetrics
}

// RunFrom builds a Run from runner output. ID and CreatedAt are set by SaveRun.
func RunFrom(source string, bars int, benchmark string, scored []backtest.Scored) Run {
	run := Run{Source: source, Bars: bars, Benchmark: benchmark}
	for _, s := range scored {
		run.Results = append(run.Results, StrategyMetrics{Strategy: s.Name, Metrics: s.Metrics})
	}
	return run
}

// SQLiteStore keeps runs and their per-strategy metrics.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (or creates) the database at path.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Metric columns are nullable: SQLite binds NaN as NULL, and a NULL metric
// reads back as NaN. has_information separates "no benchmark" from a NaN
// information ratio.
const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL,
	source     TEXT NOT NULL,
	bars       INTEGER NOT NULL,
	benchmark  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS run_metrics (
	run_id            TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	strategy          TEXT NOT NULL,
	total_return      REAL,
	annualized_return REAL,
	max_drawdown      REAL,
	sharpe_ratio      REAL,
	sortino_ratio     REAL,
	calmar_ratio      REAL,
	has_information   INTEGER NOT NULL,
	information_ratio REAL,
	annual_volatility REAL,
	PRIMARY KEY (run_id, strategy)
);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

// Migrate creates the tables if they do not exist.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// SaveRun inserts run with a fresh id and returns it.
func (s *SQLiteStore) SaveRun(ctx context.Context, run Run) (string, error) {
	run.ID = uuid.NewString()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, created_at, source, bars, benchmark) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt.UnixMilli(), run.Source, run.Bars, run.Benchmark)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	for _, r := range run.Results {
		m := r.Metrics
		ir, hasIR := m.Information()
		_, err = tx.ExecContext(ctx,
			`INSERT INTO run_metrics (run_id, strategy, total_return, annualized_return, max_drawdown,
				sharpe_ratio, sortino_ratio, calmar_ratio, has_information, information_ratio, annual_volatility)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, r.Strategy, nullable(m.TotalReturn), nullable(m.AnnualizedReturn), nullable(m.MaxDrawdown),
			nullable(m.SharpeRatio), nullable(m.SortinoRatio), nullable(m.CalmarRatio),
			hasIR, nullableIf(ir, hasIR), nullable(m.AnnualVolatility))
		if err != nil {
			return "", fmt.Errorf("insert metrics %q: %w", r.Strategy, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return run.ID, nil
}

// LoadRun returns a run with its strategies ordered by name.
func (s *SQLiteStore) LoadRun(ctx context.Context, id string) (Run, error) {
	var (
		run       Run
		createdMs int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, source, bars, benchmark FROM runs WHERE id = ?`, id).
		Scan(&run.ID, &createdMs, &run.Source, &run.Bars, &run.Benchmark)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("select run: %w", err)
	}
	run.CreatedAt = time.UnixMilli(createdMs).UTC()

	rows, err := s.db.QueryContext(ctx,
		`SELECT strategy, total_return, annualized_return, max_drawdown, sharpe_ratio,
			sortino_ratio, calmar_ratio, has_information, information_ratio, annual_volatility
		FROM run_metrics WHERE run_id = ? ORDER BY strategy`, id)
	if err != nil {
		return Run{}, fmt.Errorf("select metrics: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r                        StrategyMetrics
			hasIR                    bool
			total, ann, dd, sharpe   sql.NullFloat64
			sortino, calmar, ir, vol sql.NullFloat64
		)
		if err := rows.Scan(&r.Strategy, &total, &ann, &dd, &sharpe,
			&sortino, &calmar, &hasIR, &ir, &vol); err != nil {
			return Run{}, fmt.Errorf("scan metrics: %w", err)
		}
		r.Metrics = backtest.Metrics{
			TotalReturn:      orNaN(total),
			AnnualizedReturn: orNaN(ann),
			MaxDrawdown:      orNaN(dd),
			SharpeRatio:      orNaN(sharpe),
			SortinoRatio:     orNaN(sortino),
			CalmarRatio:      orNaN(calmar),
			AnnualVolatility: orNaN(vol),
		}
		if hasIR {
			v := orNaN(ir)
			r.Metrics.InformationRatio = &v
		}
		run.Results = append(run.Results, r)
	}
	return run, rows.Err()
}

func nullable(v float64) sql.NullFloat64 {
	return nullableIf(v, true)
}

func nullableIf(v float64, ok bool) sql.NullFloat64 {
	if !ok || math.IsNaN(v) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func orNaN(n sql.NullFloat64) float64 {
	if !n.Valid {
		return math.NaN()
	}
	return n.Float64
}

// RunSummary is a row of ListRuns.
type RunSummary struct {
	ID         string
	CreatedAt  time.Time
	Source     string
	Strategies int
}

// ListRuns returns every run, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.created_at, r.source, COUNT(m.strategy)
		FROM runs r LEFT JOIN run_metrics m ON m.run_id = r.id
		GROUP BY r.id ORDER BY r.created_at DESC, r.id`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			rs        RunSummary
			createdMs int64
		)
		if err := rows.Scan(&rs.ID, &createdMs, &rs.Source, &rs.Strategies); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		rs.CreatedAt = time.UnixMilli(createdMs).UTC()
		out = append(out, rs)
	}
	return out, rows.Err()
}
