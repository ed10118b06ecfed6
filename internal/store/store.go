package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Checker-Finance/qa-suite/pkg/model"
)

// ErrNoPostgres is returned by history queries when no Postgres pool is configured.
var ErrNoPostgres = errors.New("postgres unavailable")

// Store persists suite runs: the latest per suite in Redis, full history in Postgres.
type Store interface {
	SaveRun(ctx context.Context, run model.RunResult) error
	LatestRun(ctx context.Context, suite string) (*model.RunResult, error)
	GetRun(ctx context.Context, runID uuid.UUID) (*model.RunResult, error)
	RecentRuns(ctx context.Context, suite string, limit int) ([]RunSummary, error)
	HealthCheck(ctx context.Context) error
	Close() error
}

// RunSummary is one row of qa.test_run.
type RunSummary struct {
	RunID      uuid.UUID    `json:"run_id"`
	Suite      string       `json:"suite"`
	Status     model.Status `json:"status"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Passed     int          `json:"passed"`
	Failed     int          `json:"failed"`
	Skipped    int          `json:"skipped"`
}

type HybridStore struct {
	redis  *redis.Client
	PG     *pgxpool.Pool
	ttl    time.Duration
	logger *zap.Logger
}

type PGPoolConfig struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// NewHybrid connects to Redis and, when pgURL is set, Postgres. ttl bounds how
// long run documents stay in Redis.
func NewHybrid(redisAddr string, redisDB int, pgURL string, pgPoolConfig PGPoolConfig, ttl time.Duration, logger *zap.Logger) (*HybridStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr, DB: redisDB})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	var pgPool *pgxpool.Pool
	if pgURL != "" {
		cfg, err := pgxpool.ParseConfig(pgURL)
		if err != nil {
			return nil, fmt.Errorf("invalid pg config: %w", err)
		}
		if pgPoolConfig.MaxConns > 0 {
			cfg.MaxConns = pgPoolConfig.MaxConns
		}
		if pgPoolConfig.MinConns > 0 {
			cfg.MinConns = pgPoolConfig.MinConns
		}
		if pgPoolConfig.MaxConnLifetime > 0 {
			cfg.MaxConnLifetime = pgPoolConfig.MaxConnLifetime
		}
		if pgPoolConfig.MaxConnIdleTime > 0 {
			cfg.MaxConnIdleTime = pgPoolConfig.MaxConnIdleTime
		}
		pgPool, err = pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
	}

	return newHybrid(rdb, pgPool, ttl, logger), nil
}

func newHybrid(rdb *redis.Client, pg *pgxpool.Pool, ttl time.Duration, logger *zap.Logger) *HybridStore {
	return &HybridStore{redis: rdb, PG: pg, ttl: ttl, logger: logger}
}

func latestKey(suite string) string { return "qa:run:latest:" + suite }

func runKey(id uuid.UUID) string { return "qa:run:" + id.String() }

// Name identifies the store as a run reporter.
func (s *HybridStore) Name() string { return "store" }

// Report saves run; it lets the store subscribe to finished runs.
func (s *HybridStore) Report(ctx context.Context, run model.RunResult) error {
	return s.SaveRun(ctx, run)
}

// SaveRun caches run as the suite's latest and records it in Postgres.
func (s *HybridStore) SaveRun(ctx context.Context, run model.RunResult) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}

	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, latestKey(run.Suite), data, s.ttl)
	pipe.Set(ctx, runKey(run.RunID), data, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Error("store.redis.save_failed", zap.String("suite", run.Suite), zap.Error(err))
		return fmt.Errorf("redis save run: %w", err)
	}

	if err := s.insertRun(ctx, run); err != nil {
		s.logger.Error("store.pg.insert_run_failed", zap.String("run_id", run.RunID.String()), zap.Error(err))
		return err
	}
	s.logger.Debug("store.run_saved", zap.String("suite", run.Suite), zap.String("run_id", run.RunID.String()))
	return nil
}

func (s *HybridStore) insertRun(ctx context.Context, run model.RunResult) error {
	if s.PG == nil {
		return nil
	}
	return pgx.BeginFunc(ctx, s.PG, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO qa.test_run (run_id, suite, status, started_at, finished_at, passed, failed, skipped)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (run_id) DO NOTHING
		`, run.RunID, run.Suite, string(run.Status), run.StartedAt, run.FinishedAt,
			run.Count(model.StatusPassed), run.Count(model.StatusFailed), run.Count(model.StatusSkipped)); err != nil {
			return fmt.Errorf("insert test_run: %w", err)
		}

		batch := &pgx.Batch{}
		for i, step := range run.Steps {
			batch.Queue(`
				INSERT INTO qa.test_step (run_id, position, name, status, error, duration_ms)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (run_id, position) DO NOTHING
			`, run.RunID, i, step.Name, string(step.Status), step.Error, step.Duration.Milliseconds())
		}
		if batch.Len() == 0 {
			return nil
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert test_step: %w", err)
		}
		return nil
	})
}

// LatestRun returns the most recent run of suite, or nil when none is cached.
func (s *HybridStore) LatestRun(ctx context.Context, suite string) (*model.RunResult, error) {
	return s.getRun(ctx, latestKey(suite))
}

// GetRun returns a cached run by ID, or nil when it has expired or never existed.
func (s *HybridStore) GetRun(ctx context.Context, runID uuid.UUID) (*model.RunResult, error) {
	return s.getRun(ctx, runKey(runID))
}

func (s *HybridStore) getRun(ctx context.Context, key string) (*model.RunResult, error) {
	data, err := s.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	var run model.RunResult
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// RecentRuns lists the newest runs of suite from Postgres. An empty suite lists all.
func (s *HybridStore) RecentRuns(ctx context.Context, suite string, limit int) ([]RunSummary, error) {
	if s.PG == nil {
		return nil, ErrNoPostgres
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.PG.Query(ctx, `
		SELECT run_id, suite, status, started_at, finished_at, passed, failed, skipped
		FROM qa.test_run
		WHERE ($1 = '' OR suite = $1)
		ORDER BY started_at DESC
		LIMIT $2;
	`, suite, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		var status string
		if err := rows.Scan(&r.RunID, &r.Suite, &status, &r.StartedAt, &r.FinishedAt, &r.Passed, &r.Failed, &r.Skipped); err != nil {
			return nil, err
		}
		r.Status = model.Status(status)
		out = append(out, r)
	}
	return out, rows.Err()
}

// EnsureSchema creates the qa schema and tables when they do not exist.
func (s *HybridStore) EnsureSchema(ctx context.Context) error {
	if s.PG == nil {
		return nil
	}
	_, err := s.PG.Exec(ctx, `
		CREATE SCHEMA IF NOT EXISTS qa;
		CREATE TABLE IF NOT EXISTS qa.test_run (
			run_id      UUID PRIMARY KEY,
			suite       TEXT NOT NULL,
			status      TEXT NOT NULL,
			started_at  TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ NOT NULL,
			passed      INT NOT NULL DEFAULT 0,
			failed      INT NOT NULL DEFAULT 0,
			skipped     INT NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS test_run_suite_started_idx ON qa.test_run (suite, started_at DESC);
		CREATE TABLE IF NOT EXISTS qa.test_step (
			run_id      UUID NOT NULL REFERENCES qa.test_run (run_id) ON DELETE CASCADE,
			position    INT NOT NULL,
			name        TEXT NOT NULL,
			status      TEXT NOT NULL,
			error       TEXT NOT NULL DEFAULT '',
			duration_ms BIGINT NOT NULL DEFAULT 0,
			PRIMARY KEY (run_id, position)
		);
	`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *HybridStore) HealthCheck(ctx context.Context) error {
	if s.redis == nil {
		return fmt.Errorf("redis not initialized")
	}
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	if s.PG != nil {
		if err := s.PG.Ping(ctx); err != nil {
			return fmt.Errorf("postgres ping failed: %w", err)
		}
	}
	return nil
}

func (s *HybridStore) Close() error {
	if s.PG != nil {
		s.PG.Close()
	}
	if s.redis != nil {
		return s.redis.Close()
	}
	return nil
}
