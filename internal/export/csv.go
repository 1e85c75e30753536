package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"budgetwatch/internal/analysis"
	"budgetwatch/internal/core"
)

// CSVExporter writes point-in-time report files under a target directory.
// File names carry a UTC timestamp so successive exports never clobber
// each other.
type CSVExporter struct {
	dir string
}

func NewCSVExporter(dir string) (*CSVExporter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	return &CSVExporter{dir: dir}, nil
}

// WriteRecords dumps the full history to a CSV file and returns its path.
func (e *CSVExporter) WriteRecords(ctx context.Context, records []core.ExpenseRecord) (string, error) {
	path := e.filename("records")

	rows := make([][]string, 0, len(records)+1)
	rows = append(rows, []string{"id", "date", "category", "amount", "description"})
	for _, r := range records {
		rows = append(rows, []string{
			strconv.FormatInt(r.ID, 10),
			r.Date.DayKey(),
			r.Category,
			core.FormatUnits(r.Amount.Cents),
			r.Description,
		})
	}

	if err := writeCSV(path, rows); err != nil {
		return "", err
	}

	slog.InfoContext(ctx, "Exported records to CSV", "path", path, "rows", len(records))
	return path, nil
}

// WriteSummary dumps a grouped summary to a CSV file and returns its path.
func (e *CSVExporter) WriteSummary(ctx context.Context, groupBy analysis.GroupBy, summary []analysis.GroupSummary) (string, error) {
	path := e.filename("summary-" + string(groupBy))

	rows := make([][]string, 0, len(summary)+1)
	rows = append(rows, []string{string(groupBy), "sum", "count", "mean"})
	for _, g := range summary {
		rows = append(rows, []string{
			g.Key,
			core.FormatUnits(g.Sum.Cents),
			strconv.Itoa(g.Count),
			core.FormatUnits(g.Mean.Cents),
		})
	}

	if err := writeCSV(path, rows); err != nil {
		return "", err
	}

	slog.InfoContext(ctx, "Exported summary to CSV", "path", path, "group_by", groupBy, "rows", len(summary))
	return path, nil
}

// WriteAnomalies dumps flagged records to a CSV file and returns its path.
func (e *CSVExporter) WriteAnomalies(ctx context.Context, flags []core.AnomalyFlag) (string, error) {
	path := e.filename("anomalies")

	rows := make([][]string, 0, len(flags)+1)
	rows = append(rows, []string{"record_id", "category", "score", "reason"})
	for _, f := range flags {
		rows = append(rows, []string{
			strconv.FormatInt(f.RecordID, 10),
			f.Category,
			strconv.FormatFloat(f.Score, 'f', 2, 64),
			f.Reason,
		})
	}

	if err := writeCSV(path, rows); err != nil {
		return "", err
	}

	slog.InfoContext(ctx, "Exported anomalies to CSV", "path", path, "rows", len(flags))
	return path, nil
}

func (e *CSVExporter) filename(prefix string) string {
	stamp := time.Now().UTC().Format("20060102-150405")
	return filepath.Join(e.dir, fmt.Sprintf("%s-%s.csv", prefix, stamp))
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
