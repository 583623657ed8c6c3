package redis

import (
	"errors"

	"imagegen-dashboard/internal/domain"
	"imagegen-dashboard/internal/infra/httpx"

	"github.com/go-redis/redis/v8"
)

// classify tags redis failures for the log step. Server replies are rejections;
// network failures go through the shared transport classifier.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var rerr redis.Error
	if errors.As(err, &rerr) && !errors.Is(err, redis.Nil) {
		return domain.NewStepError(domain.StepLog, domain.ErrRemoteRejected, err)
	}
	return httpx.Classify(domain.StepLog, err)
}
