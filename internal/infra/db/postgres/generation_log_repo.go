package postgres

import (
	"context"
	"errors"
	"time"

	"imagegen-dashboard/internal/domain"
	"imagegen-dashboard/internal/domain/model"
	"imagegen-dashboard/internal/domain/ports/adapter"
	"imagegen-dashboard/internal/infra/httpx"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4/pgxpool"
)

var (
	_ adapter.RowLog    = (*generationLogRepo)(nil)
	_ adapter.RowReader = (*generationLogRepo)(nil)
)

type generationLogRepo struct {
	pool *pgxpool.Pool
}

// NewGenerationLogRepo returns a row log backed by the generation_log table.
func NewGenerationLogRepo(pool *pgxpool.Pool) *generationLogRepo {
	return &generationLogRepo{pool: pool}
}

func (r *generationLogRepo) Append(ctx context.Context, row model.LogRow) error {
	const q = `
INSERT INTO generation_log (logged_at, model, prompt, image_url, drive_link, task_id, status, tags)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	ts := row.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := r.pool.Exec(ctx, q, ts, row.Model, row.Prompt, row.SourceURL, row.StoreLink, row.JobID, row.Status, row.Tags)
	return classify(err)
}

// Rows returns every logged row, oldest first.
func (r *generationLogRepo) Rows(ctx context.Context) ([]model.LogRow, error) {
	const q = `
SELECT logged_at, model, prompt, image_url, drive_link, task_id, status, tags
FROM generation_log
ORDER BY logged_at, id`

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []model.LogRow
	for rows.Next() {
		var lr model.LogRow
		if err := rows.Scan(&lr.Timestamp, &lr.Model, &lr.Prompt, &lr.SourceURL, &lr.StoreLink, &lr.JobID, &lr.Status, &lr.Tags); err != nil {
			return nil, classify(err)
		}
		out = append(out, lr)
	}
	return out, classify(rows.Err())
}

// classify maps pgx errors: server-side errors are rejections, timeouts are transient.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return domain.NewStepError(domain.StepLog, domain.ErrRemoteRejected, err)
	}
	if pgconn.Timeout(err) {
		return domain.NewStepError(domain.StepLog, domain.ErrTransient, err)
	}
	return httpx.Classify(domain.StepLog, err)
}
