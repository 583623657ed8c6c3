package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"imagegen-dashboard/internal/domain/model"
	"imagegen-dashboard/internal/domain/ports/adapter"
	"imagegen-dashboard/internal/infra/metrics"

	"github.com/rs/zerolog"
)

const logStatusSuccess = "success"

type PersistConfig struct {
	AutoUpload bool
	AutoLog    bool
}

// PersistReport describes what happened to each result of a succeeded job.
// Errors are collected here and never fail the job.
type PersistReport struct {
	JobID         string           `json:"job_id"`
	Artifacts     []model.Artifact `json:"artifacts,omitempty"`
	Errors        []string         `json:"errors,omitempty"`
	Uploaded      int              `json:"uploaded"`
	RowLogEntries int              `json:"row_log_entries"`
	CSVEntries    int              `json:"csv_entries"`
}

// Persister mirrors the results of succeeded jobs into the store and the logs.
type Persister struct {
	uploader UploaderUseCase
	rowLog   adapter.RowLog
	csv      adapter.RowLog
	stats    StatsUseCase
	cfg      PersistConfig
	log      *zerolog.Logger
}

// NewPersister wires the sinks. rowLog and csv may be nil.
func NewPersister(uploader UploaderUseCase, rowLog, csv adapter.RowLog, stats StatsUseCase, cfg PersistConfig, logger *zerolog.Logger) *Persister {
	l := logger.With().Str("component", "persister").Logger()
	return &Persister{uploader: uploader, rowLog: rowLog, csv: csv, stats: stats, cfg: cfg, log: &l}
}

// FileName builds the stored name of the j-th (zero based) result of a job.
func FileName(modelName, jobID string, j int, sourceURL string) string {
	return fmt.Sprintf("%s_%s_%d%s", strings.ReplaceAll(modelName, "/", "_"), jobID, j+1, model.ImageExtForURL(sourceURL))
}

func (p *Persister) Persist(ctx context.Context, job *model.Job) PersistReport {
	rep := PersistReport{JobID: job.ID}
	log := p.log.With().Str("job_id", job.ID).Logger()
	logRows := p.cfg.AutoLog && p.rowLog != nil && adapter.IsConnected(p.rowLog)

	for j, src := range job.ResultURLs {
		var storeLink string
		if p.cfg.AutoUpload && p.uploader != nil {
			a, err := p.uploader.Upload(ctx, src, FileName(job.Model, job.ID, j, src), job.ID)
			if err != nil {
				rep.Errors = append(rep.Errors, err.Error())
				log.Warn().Err(err).Int("result", j+1).Msg("result upload failed")
			} else {
				rep.Artifacts = append(rep.Artifacts, *a)
				rep.Uploaded++
				storeLink = a.URLs.View
			}
		}

		row := model.LogRow{
			Timestamp: time.Now(),
			Model:     job.Model,
			Prompt:    job.Prompt(),
			SourceURL: src,
			StoreLink: storeLink,
			JobID:     job.ID,
			Status:    logStatusSuccess,
			Tags:      job.Tags,
		}

		if logRows {
			err := p.rowLog.Append(ctx, row)
			metrics.IncRowLogAppend("row_log", err == nil)
			if err != nil {
				rep.Errors = append(rep.Errors, err.Error())
				log.Warn().Err(err).Int("result", j+1).Msg("row log append failed")
			} else {
				rep.RowLogEntries++
				if p.stats != nil {
					p.stats.RowLogged()
				}
			}
		}

		if p.csv != nil {
			err := p.csv.Append(ctx, row)
			metrics.IncRowLogAppend("csv", err == nil)
			if err != nil {
				rep.Errors = append(rep.Errors, err.Error())
			} else {
				rep.CSVEntries++
				if p.stats != nil {
					p.stats.CSVLogged()
				}
			}
		}
	}

	log.Info().Int("results", len(job.ResultURLs)).Int("uploaded", rep.Uploaded).
		Int("errors", len(rep.Errors)).Msg("results persisted")
	return rep
}
