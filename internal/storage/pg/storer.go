package pg

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ProDevCodePoland/ringrtc/internal/sim/spec"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const table = "run_results"

var columns = []string{
	"id", "test_set", "group_name", "test_case", "profile",
	"started_at", "duration_ms", "succeeded", "mos", "error_stage", "result",
}

// Storer keeps run results in the run_results table. The full result is kept
// as JSONB next to the columns used for filtering.
type Storer struct {
	db *pgxpool.Pool
}

func NewStorer(pool *ConnectionPool) *Storer {
	return &Storer{db: pool.conn}
}

func (s *Storer) Save(ctx context.Context, results []spec.RunResult) error {
	if len(results) == 0 {
		return nil
	}

	rows := make([][]any, len(results))
	for i, r := range results {
		id, err := uuid.Parse(r.ID)
		if err != nil {
			id = uuid.New()
			r.ID = id.String()
		}

		payload, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to marshal result %s: %w", r.Key(), err)
		}

		var mos *float64
		if v, ok := r.Metrics[spec.MetricMos]; ok {
			mos = &v
		}
		var stage *string
		if r.Error != nil && r.Error.Stage != "" {
			stage = &r.Error.Stage
		}

		rows[i] = []any{
			id,
			r.TestSet,
			r.Group,
			r.TestCase,
			r.Profile,
			r.StartedAt,
			r.Duration.Milliseconds(),
			r.Succeeded,
			mos,
			stage,
			payload,
		}
	}

	n, err := s.db.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("failed to bulk insert results: %w", err)
	}
	slog.Info("Results stored", "storage", "pg", "count", n)
	return nil
}

// List returns stored results in start order.
func (s *Storer) List(ctx context.Context, testSet string) ([]spec.RunResult, error) {
	query := `SELECT result FROM run_results WHERE ($1 = '' OR test_set = $1) ORDER BY started_at, id`

	rows, err := s.db.Query(ctx, query, testSet)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (spec.RunResult, error) {
		var payload []byte
		if err := row.Scan(&payload); err != nil {
			return spec.RunResult{}, err
		}
		var r spec.RunResult
		if err := json.Unmarshal(payload, &r); err != nil {
			return spec.RunResult{}, fmt.Errorf("failed to unmarshal result: %w", err)
		}
		return r, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read results: %w", err)
	}
	return results, nil
}
