package rowlog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"imagegen-dashboard/internal/domain"
	"imagegen-dashboard/internal/domain/model"
	"imagegen-dashboard/internal/domain/ports/adapter"
)

var (
	_ adapter.RowLog    = (*CSVLog)(nil)
	_ adapter.RowReader = (*CSVLog)(nil)
)

// CSVLog is the in-memory CSV mirror of the generation log.
type CSVLog struct {
	mu   sync.RWMutex
	rows []model.LogRow
}

func NewCSVLog() *CSVLog { return &CSVLog{} }

func (c *CSVLog) Append(ctx context.Context, row model.LogRow) error {
	if row.Timestamp.IsZero() {
		row.Timestamp = time.Now()
	}
	c.mu.Lock()
	c.rows = append(c.rows, row)
	c.mu.Unlock()
	return nil
}

func (c *CSVLog) Rows(ctx context.Context) ([]model.LogRow, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]model.LogRow(nil), c.rows...), nil
}

func (c *CSVLog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rows)
}

// Export writes the header and every row. An empty log writes nothing and returns false.
func (c *CSVLog) Export(w io.Writer) (bool, error) {
	c.mu.RLock()
	rows := append([]model.LogRow(nil), c.rows...)
	c.mu.RUnlock()
	if len(rows) == 0 {
		return false, nil
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(model.LogColumns); err != nil {
		return false, err
	}
	for _, r := range rows {
		if err := cw.Write(r.Values()); err != nil {
			return false, err
		}
	}
	cw.Flush()
	return true, cw.Error()
}

// Import appends rows from a CSV with a header line naming the log columns.
// Columns are matched by name; unknown columns are ignored and missing ones left empty.
func (c *CSVLog) Import(r io.Reader) (int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return 0, nil
	}
	if err != nil {
		return 0, domain.NewStepError(domain.StepLog, domain.ErrInvalidArgument, fmt.Errorf("read header: %w", err))
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	if _, ok := idx["timestamp"]; !ok {
		return 0, domain.NewStepError(domain.StepLog, domain.ErrInvalidArgument, errors.New("csv header has no timestamp column"))
	}

	var parsed []model.LogRow
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, domain.NewStepError(domain.StepLog, domain.ErrInvalidArgument, err)
		}
		get := func(col string) string {
			if i, ok := idx[col]; ok && i < len(rec) {
				return rec[i]
			}
			return ""
		}
		ts, _ := time.ParseInLocation(model.LogTimeLayout, get("timestamp"), time.Local)
		parsed = append(parsed, model.LogRow{
			Timestamp: ts,
			Model:     get("model"),
			Prompt:    get("prompt"),
			SourceURL: get("image_url"),
			StoreLink: get("drive_link"),
			JobID:     get("task_id"),
			Status:    get("status"),
			Tags:      get("tags"),
		})
	}

	c.mu.Lock()
	c.rows = append(c.rows, parsed...)
	c.mu.Unlock()
	return len(parsed), nil
}
