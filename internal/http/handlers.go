package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"budgetwatch/internal/analysis"
	"budgetwatch/internal/core"
)

type recordJSON struct {
	ID          int64  `json:"id"`
	Date        string `json:"date"`
	Category    string `json:"category"`
	Amount      string `json:"amount"`
	Description string `json:"description,omitempty"`
}

type alertJSON struct {
	Category string  `json:"category"`
	Spent    string  `json:"spent"`
	Limit    string  `json:"limit"`
	Percent  float64 `json:"percent"`
	Level    string  `json:"level"`
}

type anomalyJSON struct {
	RecordID  int64   `json:"record_id"`
	Category  string  `json:"category"`
	Anomalous bool    `json:"anomalous"`
	Score     float64 `json:"score"`
	Reason    string  `json:"reason,omitempty"`
}

type budgetJSON struct {
	Category string `json:"category"`
	Limit    string `json:"limit"`
}

type summaryJSON struct {
	Key   string `json:"key"`
	Sum   string `json:"sum"`
	Count int    `json:"count"`
	Mean  string `json:"mean"`
}

type trendPointJSON struct {
	Day     string `json:"day"`
	Average string `json:"average"`
}

type totalsJSON struct {
	Total        string `json:"total"`
	SpendDays    int    `json:"spend_days"`
	AverageDaily string `json:"average_daily"`
}

// summaryPayload is the cached unit for GET /summary: the grouped rows
// plus the grand-total footer.
type summaryPayload struct {
	Groups []analysis.GroupSummary
	Totals analysis.Totals
}

type errorJSON struct {
	Error string `json:"error"`
}

func toRecordJSON(r core.ExpenseRecord) recordJSON {
	return recordJSON{
		ID:          r.ID,
		Date:        r.Date.DayKey(),
		Category:    r.Category,
		Amount:      core.FormatUnits(r.Amount.Cents),
		Description: r.Description,
	}
}

func toAlertJSON(a core.AlertResult) alertJSON {
	return alertJSON{
		Category: a.Category,
		Spent:    core.FormatUnits(a.Spent.Cents),
		Limit:    core.FormatUnits(a.Limit.Cents),
		Percent:  a.Percent,
		Level:    string(a.Level),
	}
}

func toAnomalyJSON(f core.AnomalyFlag) anomalyJSON {
	return anomalyJSON{
		RecordID:  f.RecordID,
		Category:  f.Category,
		Anomalous: f.Anomalous,
		Score:     f.Score,
		Reason:    f.Reason,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorJSON{Error: err.Error()})
}

// isInvalidInput reports whether err stems from rejected user input.
func isInvalidInput(err error) bool {
	return errors.Is(err, core.ErrInvalidDate) ||
		errors.Is(err, core.ErrNegativeAmount) ||
		errors.Is(err, core.ErrInvalidAmount) ||
		errors.Is(err, core.ErrEmptyCategory) ||
		errors.Is(err, core.ErrNegativeLimit)
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateRecord(w, r)
	case http.MethodGet:
		s.handleListRecords(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date        string `json:"date"`
		Category    string `json:"category"`
		Amount      string `json:"amount"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("malformed request body"))
		return
	}

	date, err := time.Parse("2006-01-02", strings.TrimSpace(req.Date))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, core.ErrInvalidDate)
		return
	}

	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	record := core.ExpenseRecord{
		Date:        core.NewDate(date.Year(), int(date.Month()), date.Day()),
		Category:    req.Category,
		Amount:      core.Money{Cents: cents},
		Description: strings.TrimSpace(req.Description),
	}

	saved, res, err := s.service.AddRecord(r.Context(), record)
	if err != nil {
		if isInvalidInput(err) {
			writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
		slog.ErrorContext(r.Context(), "Failed to save record", "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("failed to save record"))
		return
	}

	// History changed, cached aggregates are stale
	s.summaryCache.Purge()

	alerts := make([]alertJSON, 0, len(res.Alerts))
	for _, a := range res.Alerts {
		alerts = append(alerts, toAlertJSON(a))
	}

	writeJSON(w, http.StatusCreated, struct {
		Record  recordJSON  `json:"record"`
		Alerts  []alertJSON `json:"alerts"`
		Anomaly anomalyJSON `json:"anomaly"`
	}{
		Record:  toRecordJSON(saved),
		Alerts:  alerts,
		Anomaly: toAnomalyJSON(res.Anomaly),
	})
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	var (
		records []core.ExpenseRecord
		err     error
	)

	yearStr := r.URL.Query().Get("year")
	monthStr := r.URL.Query().Get("month")
	if yearStr != "" || monthStr != "" {
		year, yerr := strconv.Atoi(yearStr)
		month, merr := strconv.Atoi(monthStr)
		if yerr != nil || merr != nil || month < 1 || month > 12 {
			writeError(w, http.StatusBadRequest, errors.New("year and month must be numeric, month 1-12"))
			return
		}
		records, err = s.service.MonthRecords(r.Context(), year, month)
	} else {
		records, err = s.service.Records(r.Context())
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to list records", "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("failed to list records"))
		return
	}

	out := make([]recordJSON, 0, len(records))
	for _, rec := range records {
		out = append(out, toRecordJSON(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleBudgets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPut:
		s.handleSetBudget(w, r)
	case http.MethodGet:
		s.handleListBudgets(w, r)
	default:
		w.Header().Set("Allow", "GET, PUT")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("malformed request body"))
		return
	}

	cents, err := core.ParseDecimalToCents(req.Limit)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	budget := core.BudgetLimit{
		Category: req.Category,
		Limit:    core.Money{Cents: cents},
	}
	if err := s.service.SetBudget(r.Context(), budget); err != nil {
		if isInvalidInput(err) {
			writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
		slog.ErrorContext(r.Context(), "Failed to set budget", "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("failed to set budget"))
		return
	}

	writeJSON(w, http.StatusOK, budgetJSON{
		Category: core.NormalizeCategory(req.Category),
		Limit:    core.FormatUnits(cents),
	})
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	budgets, err := s.service.Budgets(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to list budgets", "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("failed to list budgets"))
		return
	}

	out := make([]budgetJSON, 0, len(budgets))
	for _, b := range budgets {
		out = append(out, budgetJSON{Category: b.Category, Limit: core.FormatUnits(b.Limit.Cents)})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	groupBy := analysis.GroupBy(r.URL.Query().Get("group_by"))
	if groupBy == "" {
		groupBy = analysis.GroupByMonth
	}

	payload, ok := s.summaryCache.Get(string(groupBy))
	if !ok {
		summary, err := s.service.Summary(r.Context(), groupBy)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		totals, err := s.service.Totals(r.Context())
		if err != nil {
			slog.ErrorContext(r.Context(), "Failed to compute totals", "error", err)
			writeError(w, http.StatusInternalServerError, errors.New("failed to compute totals"))
			return
		}
		payload = summaryPayload{Groups: summary, Totals: totals}
		s.summaryCache.Set(string(groupBy), payload)
	}

	groups := make([]summaryJSON, 0, len(payload.Groups))
	for _, g := range payload.Groups {
		groups = append(groups, summaryJSON{
			Key:   g.Key,
			Sum:   core.FormatUnits(g.Sum.Cents),
			Count: g.Count,
			Mean:  core.FormatUnits(g.Mean.Cents),
		})
	}
	writeJSON(w, http.StatusOK, struct {
		GroupBy string        `json:"group_by"`
		Groups  []summaryJSON `json:"groups"`
		Totals  totalsJSON    `json:"totals"`
	}{
		GroupBy: string(groupBy),
		Groups:  groups,
		Totals: totalsJSON{
			Total:        core.FormatUnits(payload.Totals.Total.Cents),
			SpendDays:    payload.Totals.SpendDays,
			AverageDaily: core.FormatUnits(payload.Totals.AverageDaily.Cents),
		},
	})
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	window := 0
	if v := r.URL.Query().Get("window"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, errors.New("window must be a positive integer"))
			return
		}
		window = n
	}

	points, err := s.service.Trend(r.Context(), window)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to compute trend", "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("failed to compute trend"))
		return
	}

	out := make([]trendPointJSON, 0, len(points))
	for _, p := range points {
		out = append(out, trendPointJSON{Day: p.Day, Average: core.FormatUnits(p.Average.Cents)})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	flags, err := s.service.Anomalies(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to scan anomalies", "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("failed to scan anomalies"))
		return
	}

	out := make([]anomalyJSON, 0, len(flags))
	for _, f := range flags {
		out = append(out, toAnomalyJSON(f))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.reports == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("export not configured"))
		return
	}

	paths, err := s.reports.ExportNow(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Export failed", "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("export failed"))
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Files []string `json:"files"`
	}{Files: paths})
}
