package redis

import (
	"context"
	"encoding/json"
	"time"

	"imagegen-dashboard/internal/domain"
	"imagegen-dashboard/internal/domain/model"
	"imagegen-dashboard/internal/domain/ports/adapter"
)

var (
	_ adapter.RowLog    = (*GenerationLog)(nil)
	_ adapter.RowReader = (*GenerationLog)(nil)
)

// GenerationLog appends rows as JSON to a Redis list.
type GenerationLog struct {
	client RedisClient
	key    string
}

func NewGenerationLog(client RedisClient, key string) *GenerationLog {
	if key == "" {
		key = "imagegen:log"
	}
	return &GenerationLog{client: client, key: key}
}

func (g *GenerationLog) Append(ctx context.Context, row model.LogRow) error {
	if row.Timestamp.IsZero() {
		row.Timestamp = time.Now()
	}
	data, err := json.Marshal(row)
	if err != nil {
		return domain.NewStepError(domain.StepLog, domain.ErrInvalidArgument, err)
	}
	if _, err := g.client.RPush(ctx, g.key, data); err != nil {
		return classify(err)
	}
	return nil
}

func (g *GenerationLog) Rows(ctx context.Context) ([]model.LogRow, error) {
	raw, err := g.client.LRange(ctx, g.key, 0, -1)
	if err != nil {
		return nil, classify(err)
	}
	out := make([]model.LogRow, 0, len(raw))
	for _, s := range raw {
		var row model.LogRow
		if err := json.Unmarshal([]byte(s), &row); err != nil {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}
