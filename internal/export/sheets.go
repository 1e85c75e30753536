package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"budgetwatch/internal/analysis"
	"budgetwatch/internal/core"
)

// SheetsExporter appends report rows to a Google Sheets spreadsheet.
type SheetsExporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

// NewSheetsExporter creates a Sheets exporter using Service Account
// credentials resolved from the environment.
// Uses GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or
// GOOGLE_APPLICATION_CREDENTIALS.
func NewSheetsExporter(ctx context.Context, spreadsheetID, sheetName string) (*SheetsExporter, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if strings.TrimSpace(sheetName) == "" {
		sheetName = "Reports"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &SheetsExporter{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}, nil
}

func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))

	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return service, nil
}

// AppendSummary appends one row per summary group, prefixed with the
// export timestamp so consecutive exports stay distinguishable.
func (e *SheetsExporter) AppendSummary(ctx context.Context, groupBy analysis.GroupBy, summary []analysis.GroupSummary) error {
	if e.svc == nil {
		return errors.New("sheets service not initialized")
	}

	stamp := time.Now().UTC().Format(time.RFC3339)
	values := make([][]any, 0, len(summary))
	for _, g := range summary {
		values = append(values, []any{
			stamp,
			string(groupBy),
			g.Key,
			core.FormatUnits(g.Sum.Cents),
			g.Count,
			core.FormatUnits(g.Mean.Cents),
		})
	}
	if len(values) == 0 {
		return nil
	}

	rng := fmt.Sprintf("%s!A:F", e.sheetName)
	vr := &gsheet.ValueRange{Values: values}

	_, err := e.svc.Spreadsheets.Values.Append(e.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append summary to sheet %s: %w", e.sheetName, err)
	}

	slog.InfoContext(ctx, "Appended summary to Google Sheets",
		"spreadsheet_id", e.spreadsheetID,
		"sheet", e.sheetName,
		"rows", len(values))
	return nil
}

// AppendAlerts appends one row per budget alert currently above none.
func (e *SheetsExporter) AppendAlerts(ctx context.Context, alerts []core.AlertResult) error {
	if e.svc == nil {
		return errors.New("sheets service not initialized")
	}

	stamp := time.Now().UTC().Format(time.RFC3339)
	values := make([][]any, 0, len(alerts))
	for _, a := range alerts {
		if a.Level == core.LevelNone {
			continue
		}
		values = append(values, []any{
			stamp,
			a.Category,
			string(a.Level),
			core.FormatUnits(a.Spent.Cents),
			core.FormatUnits(a.Limit.Cents),
			a.Percent,
		})
	}
	if len(values) == 0 {
		return nil
	}

	rng := fmt.Sprintf("%s!A:F", e.sheetName)
	vr := &gsheet.ValueRange{Values: values}

	_, err := e.svc.Spreadsheets.Values.Append(e.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append alerts to sheet %s: %w", e.sheetName, err)
	}

	slog.InfoContext(ctx, "Appended alerts to Google Sheets",
		"spreadsheet_id", e.spreadsheetID,
		"sheet", e.sheetName,
		"rows", len(values))
	return nil
}
