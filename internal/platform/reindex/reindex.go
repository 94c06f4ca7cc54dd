// Package reindex rebuilds token rows from stored resource bodies. It is used
// after search parameter definitions change and to move rows written under
// older normalization rules.
package reindex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ehr/searchindex/internal/platform/db"
	"github.com/ehr/searchindex/internal/platform/sqlexpr"
	"github.com/ehr/searchindex/internal/platform/tokenindex"
)

// Job statuses recorded in reindex_job.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// DB is the connection the runner needs: transactions for batches and plain
// statements for job bookkeeping. *pgxpool.Pool satisfies it.
type DB interface {
	db.Beginner
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Options controls batch size and parallelism.
type Options struct {
	BatchSize int
	Workers   int
}

// TypeStats summarizes the reindex of one resource type.
type TypeStats struct {
	ResourceType string        `json:"resourceType"`
	Indexed      int64         `json:"indexed"`
	Batches      int           `json:"batches"`
	Duration     time.Duration `json:"duration"`
	Failed       bool          `json:"failed,omitempty"`
}

// Report is the outcome of a Run.
type Report struct {
	JobID uuid.UUID   `json:"jobId"`
	Types []TypeStats `json:"types"`
}

// Indexed returns the number of resources reindexed across all types.
func (r *Report) Indexed() int64 {
	var n int64
	for _, t := range r.Types {
		n += t.Indexed
	}
	return n
}

// Runner walks resource tables in id order and rewrites their token rows.
type Runner struct {
	db     DB
	store  *tokenindex.Store
	opts   Options
	logger zerolog.Logger
}

// NewRunner creates a Runner. Non-positive options fall back to one worker
// and batches of 500.
func NewRunner(conn DB, store *tokenindex.Store, opts Options, logger zerolog.Logger) *Runner {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Runner{db: conn, store: store, opts: opts, logger: logger}
}

type storedResource struct {
	id      uuid.UUID
	content map[string]any
}

// Run reindexes every resource of the given types. Types run in parallel up
// to the worker limit; within a type each batch commits in its own
// transaction, so a failure leaves earlier batches reindexed. The first
// failure cancels the remaining types.
func (r *Runner) Run(ctx context.Context, resourceTypes []string) (*Report, error) {
	report := &Report{JobID: uuid.New(), Types: make([]TypeStats, len(resourceTypes))}
	if err := r.startJob(ctx, report.JobID, resourceTypes); err != nil {
		return nil, err
	}
	r.logger.Info().
		Str("job_id", report.JobID.String()).
		Strs("resource_types", resourceTypes).
		Int("workers", r.opts.Workers).
		Int("batch_size", r.opts.BatchSize).
		Msg("reindex started")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)
	for i, rt := range resourceTypes {
		g.Go(func() error {
			stats, err := r.reindexType(gctx, rt)
			// Types stopped because another one failed are not failures.
			stats.Failed = err != nil && !errors.Is(err, context.Canceled)
			report.Types[i] = stats
			return err
		})
	}
	runErr := g.Wait()

	// Record the outcome even when ctx was cancelled.
	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := r.finishJob(finishCtx, report, runErr); err != nil {
		r.logger.Error().Err(err).Str("job_id", report.JobID.String()).Msg("record reindex outcome")
	}

	if runErr != nil {
		return report, runErr
	}
	r.logger.Info().
		Str("job_id", report.JobID.String()).
		Int64("indexed", report.Indexed()).
		Msg("reindex completed")
	return report, nil
}

func (r *Runner) reindexType(ctx context.Context, resourceType string) (TypeStats, error) {
	start := time.Now()
	stats := TypeStats{ResourceType: resourceType}
	last := uuid.Nil

	for {
		var n int
		err := db.RunInTx(ctx, r.db, func(ctx context.Context, tx pgx.Tx) error {
			batch, err := r.loadBatch(ctx, tx, resourceType, last)
			if err != nil {
				return err
			}
			for _, res := range batch {
				if err := r.store.IndexResource(ctx, tx, res.id, resourceType, res.content, false); err != nil {
					return fmt.Errorf("resource %s: %w", res.id, err)
				}
			}
			n = len(batch)
			if n > 0 {
				last = batch[n-1].id
			}
			return nil
		})
		stats.Duration = time.Since(start)
		if err != nil {
			return stats, fmt.Errorf("reindex %s: %w", resourceType, err)
		}
		if n == 0 {
			break
		}

		stats.Indexed += int64(n)
		stats.Batches++
		r.logger.Debug().
			Str("resource_type", resourceType).
			Int("batch", stats.Batches).
			Int64("indexed", stats.Indexed).
			Msg("reindex batch committed")

		if n < r.opts.BatchSize {
			break
		}
	}

	r.logger.Info().
		Str("resource_type", resourceType).
		Int64("indexed", stats.Indexed).
		Dur("duration", stats.Duration).
		Msg("resource type reindexed")
	return stats, nil
}

func (r *Runner) loadBatch(ctx context.Context, tx pgx.Tx, resourceType string, after uuid.UUID) ([]storedResource, error) {
	table := tokenindex.ResourceTable(resourceType)
	q := sqlexpr.NewSelect(table, sqlexpr.Col(table, "id"), sqlexpr.Col(table, "content"))
	q.Where = &sqlexpr.Condition{Left: sqlexpr.Col(table, "id"), Op: sqlexpr.OpGreater, Right: after}
	q.Order(sqlexpr.OrderBy{Expr: sqlexpr.Col(table, "id")})
	q.Limit = r.opts.BatchSize

	sql, args := sqlexpr.Render(q)
	rows, err := tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("load batch: %w", err)
	}
	defer rows.Close()

	// Rows must be drained before the token writes reuse the connection.
	batch := make([]storedResource, 0, r.opts.BatchSize)
	for rows.Next() {
		var res storedResource
		if err := rows.Scan(&res.id, &res.content); err != nil {
			return nil, fmt.Errorf("scan resource: %w", err)
		}
		batch = append(batch, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load batch: %w", err)
	}
	return batch, nil
}

func (r *Runner) startJob(ctx context.Context, id uuid.UUID, resourceTypes []string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO reindex_job (id, resource_types, status) VALUES ($1, $2, $3)`,
		id, resourceTypes, StatusRunning)
	if err != nil {
		return fmt.Errorf("record reindex job: %w", err)
	}
	return nil
}

func (r *Runner) finishJob(ctx context.Context, report *Report, runErr error) error {
	status := StatusCompleted
	var msg *string
	if runErr != nil {
		status = StatusFailed
		s := runErr.Error()
		msg = &s
	}
	var failed int
	for _, t := range report.Types {
		if t.Failed {
			failed++
		}
	}
	_, err := r.db.Exec(ctx,
		`UPDATE reindex_job SET status = $2, indexed = $3, failed_types = $4, error = $5, finished_at = NOW() WHERE id = $1`,
		report.JobID, status, report.Indexed(), failed, msg)
	return err
}
