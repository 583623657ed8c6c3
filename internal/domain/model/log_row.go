package model

import "time"

// LogTimeLayout is the timestamp format used in row logs and CSV exports.
const LogTimeLayout = "2006-01-02 15:04:05"

// LogRow is one line of the generation log.
type LogRow struct {
	Timestamp time.Time `json:"timestamp"`
	Model     string    `json:"model"`
	Prompt    string    `json:"prompt"`
	SourceURL string    `json:"image_url"`
	StoreLink string    `json:"drive_link"`
	JobID     string    `json:"task_id"`
	Status    string    `json:"status"`
	Tags      string    `json:"tags"`
}

// Values returns the row in column order.
func (r LogRow) Values() []string {
	return []string{
		r.Timestamp.Format(LogTimeLayout),
		r.Model,
		r.Prompt,
		r.SourceURL,
		r.StoreLink,
		r.JobID,
		r.Status,
		r.Tags,
	}
}

// LogColumns are the column names matching Values.
var LogColumns = []string{"timestamp", "model", "prompt", "image_url", "drive_link", "task_id", "status", "tags"}
