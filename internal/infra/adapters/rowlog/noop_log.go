package rowlog

import (
	"context"

	"imagegen-dashboard/internal/domain"
	"imagegen-dashboard/internal/domain/model"
	"imagegen-dashboard/internal/domain/ports/adapter"
)

var _ adapter.RowLog = NoopLog{}

// NoopLog is used when no row log backend is configured.
type NoopLog struct{}

func (NoopLog) Append(context.Context, model.LogRow) error {
	return domain.NewStepError(domain.StepLog, domain.ErrNotAuthenticated, nil)
}

func (NoopLog) Connected() bool { return false }
