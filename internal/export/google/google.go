// Package google exports computed budget reports to a Google Sheets
// spreadsheet. One sheet holds one month's report; each export rewrites the
// sheet from the top.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"pocketsight/internal/core"
	"pocketsight/internal/insight"
	"pocketsight/internal/ports"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Exporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

var _ ports.ReportExporter = (*Exporter)(nil)

// NewFromEnv creates a Sheets exporter using environment variables.
// Required: GOOGLE_SPREADSHEET_ID. Optional: GOOGLE_SHEET_NAME (default
// "Budget Report"); credentials via GOOGLE_SERVICE_ACCOUNT_JSON,
// GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS.
func NewFromEnv(ctx context.Context) (*Exporter, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	sheetName := strings.TrimSpace(os.Getenv("GOOGLE_SHEET_NAME"))
	if sheetName == "" {
		sheetName = "Budget Report"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Exporter{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}, nil
}

// newSheetsService initializes a Sheets Service using Service Account
// credentials.
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

// Ref identifies the export destination for log output.
func (e *Exporter) Ref() string {
	return fmt.Sprintf("sheets:%s/%s", e.spreadsheetID, e.sheetName)
}

// ExportBudgetReport implements ports.ReportExporter. The sheet is cleared
// and rewritten in one pass: a header, the per-category performance table,
// and the monthly spend series.
func (e *Exporter) ExportBudgetReport(ctx context.Context, monthKey string, rows []insight.PerformanceRow, series []insight.SpendPoint) error {
	if e.svc == nil {
		return errors.New("sheets service not initialized")
	}

	values := buildReportValues(monthKey, rows, series)

	clearRange := fmt.Sprintf("%s!A:F", e.sheetName)
	_, err := e.svc.Spreadsheets.Values.Clear(e.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear sheet %s: %w", e.sheetName, err)
	}

	writeRange := fmt.Sprintf("%s!A1", e.sheetName)
	vr := &gsheet.ValueRange{Values: values}
	_, err = e.svc.Spreadsheets.Values.Update(e.spreadsheetID, writeRange, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write report to sheet %s: %w", e.sheetName, err)
	}

	slog.InfoContext(ctx, "Budget report exported",
		"month_key", monthKey,
		"sheet", e.sheetName,
		"performance_rows", len(rows),
		"series_points", len(series))

	return nil
}

func buildReportValues(monthKey string, rows []insight.PerformanceRow, series []insight.SpendPoint) [][]any {
	values := [][]any{
		{"Budget Report", monthKey},
		{"Generated", time.Now().UTC().Format(time.RFC3339)},
		{},
		{"Category", "Target", "Actual", "Variance", "Variance %", "Status"},
	}

	for _, row := range rows {
		values = append(values, []any{
			row.CategoryName,
			major(row.Target),
			major(row.Actual),
			major(row.Variance),
			row.VariancePct,
			string(row.Status),
		})
	}

	values = append(values, []any{}, []any{"Month", "Spend"})
	for _, point := range series {
		values = append(values, []any{point.Label, major(point.Amount)})
	}

	return values
}

func major(m core.Money) float64 {
	return float64(m.Cents) / 100.0
}
