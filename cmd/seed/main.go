// Command seed replays a CSV export of the generation log into the configured row log backend.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"imagegen-dashboard/internal/application"
	"imagegen-dashboard/internal/config"
	"imagegen-dashboard/internal/domain/ports/adapter"
	"imagegen-dashboard/internal/infra/adapters/rowlog"
	"imagegen-dashboard/internal/infra/logging"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	csvPath := flag.String("csv", "", "CSV export to replay (required)")
	dryRun := flag.Bool("dry-run", false, "parse and count rows without writing")
	flag.Parse()

	if *csvPath == "" {
		fmt.Fprintln(os.Stderr, "seed: -csv is required")
		os.Exit(2)
	}

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, true)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	f, err := os.Open(*csvPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("open csv")
	}
	defer f.Close()

	mirror := rowlog.NewCSVLog()
	n, err := mirror.Import(f)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse csv")
	}
	logger.Info().Int("rows", n).Str("file", *csvPath).Msg("csv parsed")
	if *dryRun {
		return
	}

	app, err := application.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("startup failed")
	}
	defer app.Close()

	if !adapter.IsConnected(app.RowLog) {
		logger.Warn().Str("backend", cfg.RowLog.Backend).Msg("no row log backend configured, nothing to seed")
		return
	}

	rows, err := mirror.Rows(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("read rows")
	}
	written := 0
	for _, row := range rows {
		if err := app.RowLog.Append(ctx, row); err != nil {
			logger.Error().Err(err).Str("task_id", row.JobID).Msg("append failed")
			continue
		}
		written++
	}
	logger.Info().Int("written", written).Int("total", len(rows)).Msg("seed complete")
}
