package rowlog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"imagegen-dashboard/internal/domain"
	"imagegen-dashboard/internal/domain/model"
	"imagegen-dashboard/internal/domain/ports/adapter"
	"imagegen-dashboard/internal/infra/httpx"

	"github.com/rs/zerolog"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

var (
	_ adapter.RowLog    = (*SheetsLog)(nil)
	_ adapter.RowReader = (*SheetsLog)(nil)
)

const (
	DefaultSheetRange       = "Image Log!A:H"
	DefaultSpreadsheetTitle = "AI_Image_Generation_Log"
	sheetTitle              = "Image Log"
)

var sheetHeaders = []interface{}{"Timestamp", "Model", "Prompt", "Image URL", "Drive Link", "Task ID", "Status", "Tags"}

// SheetsLog appends generation rows to a Google Sheets range. Without a
// configured spreadsheet id it creates one on first append.
type SheetsLog struct {
	srv   *sheets.Service
	rng   string
	title string
	log   *zerolog.Logger

	mu            sync.Mutex
	spreadsheetID string
}

func NewSheetsLog(ctx context.Context, spreadsheetID, rng string, log *zerolog.Logger, opts ...option.ClientOption) (*SheetsLog, error) {
	opts = append(opts, option.WithScopes(sheets.SpreadsheetsScope))
	srv, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("init sheets service: %w", err)
	}
	if rng == "" {
		rng = DefaultSheetRange
	}
	l := log.With().Str("adapter", "sheets").Logger()
	return &SheetsLog{srv: srv, rng: rng, title: DefaultSpreadsheetTitle, log: &l, spreadsheetID: spreadsheetID}, nil
}

// SpreadsheetID returns the spreadsheet in use, empty until one exists.
func (s *SheetsLog) SpreadsheetID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spreadsheetID
}

func (s *SheetsLog) Append(ctx context.Context, row model.LogRow) error {
	id, err := s.ensureSpreadsheet(ctx)
	if err != nil {
		return err
	}
	if row.Timestamp.IsZero() {
		row.Timestamp = time.Now()
	}
	values := row.Values()
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	_, err = s.srv.Spreadsheets.Values.Append(id, s.rng, &sheets.ValueRange{Values: [][]interface{}{cells}}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return sheetsErr(err)
	}
	return nil
}

// Rows reads the whole range back, skipping the header row.
func (s *SheetsLog) Rows(ctx context.Context) ([]model.LogRow, error) {
	id := s.SpreadsheetID()
	if id == "" {
		return nil, nil
	}
	res, err := s.srv.Spreadsheets.Values.Get(id, s.rng).Context(ctx).Do()
	if err != nil {
		return nil, sheetsErr(err)
	}
	if len(res.Values) <= 1 {
		return nil, nil
	}
	out := make([]model.LogRow, 0, len(res.Values)-1)
	for _, cells := range res.Values[1:] {
		out = append(out, rowFromCells(cells))
	}
	return out, nil
}

func rowFromCells(cells []interface{}) model.LogRow {
	get := func(i int) string {
		if i < len(cells) {
			return fmt.Sprint(cells[i])
		}
		return ""
	}
	ts, _ := time.ParseInLocation(model.LogTimeLayout, get(0), time.Local)
	return model.LogRow{
		Timestamp: ts,
		Model:     get(1),
		Prompt:    get(2),
		SourceURL: get(3),
		StoreLink: get(4),
		JobID:     get(5),
		Status:    get(6),
		Tags:      get(7),
	}
}

// ensureSpreadsheet creates the log spreadsheet with a styled header row once.
func (s *SheetsLog) ensureSpreadsheet(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.spreadsheetID != "" {
		return s.spreadsheetID, nil
	}

	created, err := s.srv.Spreadsheets.Create(&sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{Title: s.title},
		Sheets: []*sheets.Sheet{{
			Properties: &sheets.SheetProperties{
				Title:          sheetTitle,
				GridProperties: &sheets.GridProperties{FrozenRowCount: 1},
			},
		}},
	}).Fields("spreadsheetId", "sheets.properties.sheetId").Context(ctx).Do()
	if err != nil {
		return "", sheetsErr(err)
	}
	id := created.SpreadsheetId

	_, err = s.srv.Spreadsheets.Values.Update(id, sheetTitle+"!A1:H1", &sheets.ValueRange{Values: [][]interface{}{sheetHeaders}}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return "", sheetsErr(err)
	}

	var sheetID int64
	if len(created.Sheets) > 0 && created.Sheets[0].Properties != nil {
		sheetID = created.Sheets[0].Properties.SheetId
	}
	_, err = s.srv.Spreadsheets.BatchUpdate(id, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{SheetId: sheetID, StartRowIndex: 0, EndRowIndex: 1},
				Cell: &sheets.CellData{UserEnteredFormat: &sheets.CellFormat{
					BackgroundColor: &sheets.Color{Red: 0.26, Green: 0.52, Blue: 0.96},
					TextFormat: &sheets.TextFormat{
						Bold:            true,
						ForegroundColor: &sheets.Color{Red: 1, Green: 1, Blue: 1},
					},
				}},
				Fields: "userEnteredFormat(backgroundColor,textFormat)",
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		// Styling is cosmetic; the sheet is usable without it.
		s.log.Warn().Err(err).Str("spreadsheet_id", id).Msg("header formatting failed")
	}

	s.spreadsheetID = id
	s.log.Info().Str("spreadsheet_id", id).Msg("log spreadsheet created")
	return id, nil
}

func sheetsErr(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return httpx.Classify(domain.StepLog, err)
	}
	switch {
	case gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500:
		return domain.NewStepError(domain.StepLog, domain.ErrTransient, err)
	case gerr.Code == http.StatusUnauthorized:
		return domain.NewStepError(domain.StepLog, domain.ErrNotAuthenticated, err)
	default:
		return domain.NewStepError(domain.StepLog, domain.ErrRemoteRejected, fmt.Errorf("%s: %w", strings.TrimSpace(gerr.Message), err))
	}
}
