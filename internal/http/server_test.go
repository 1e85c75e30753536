package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"budgetwatch/internal/analysis"
	"budgetwatch/internal/services"
	"budgetwatch/internal/store/memory"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	analyzer := analysis.NewAnalyzer(
		analysis.NewBudgetEvaluator(analysis.DefaultThresholds()),
		analysis.NewDetector(0, 0),
		0,
	)
	svc, err := services.NewAnalysisService(context.Background(), memory.New(), analyzer, nil)
	if err != nil {
		t.Fatalf("NewAnalysisService() error = %v", err)
	}

	s := NewServer(":0", svc, nil)
	t.Cleanup(func() { s.Shutdown(context.Background()) })
	return s
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return v
}

func TestServer_CreateRecord(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodPut, "/budgets", map[string]string{
		"category": "food",
		"limit":    "1000.00",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT /budgets status = %d, body %s", rec.Code, rec.Body.String())
	}

	// Budget evaluation covers the current calendar month, so the record
	// must be dated inside it.
	today := time.Now().UTC().Format("2006-01-02")
	rec = doJSON(t, s, http.MethodPost, "/records", map[string]string{
		"date":        today,
		"category":    "Food",
		"amount":      "650.00",
		"description": "groceries",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /records status = %d, body %s", rec.Code, rec.Body.String())
	}

	resp := decodeJSON[struct {
		Record  recordJSON  `json:"record"`
		Alerts  []alertJSON `json:"alerts"`
		Anomaly anomalyJSON `json:"anomaly"`
	}](t, rec)

	if resp.Record.ID == 0 {
		t.Error("record id should be assigned")
	}
	if resp.Record.Category != "food" {
		t.Errorf("record category = %q, want normalized %q", resp.Record.Category, "food")
	}
	if resp.Record.Amount != "650.00" {
		t.Errorf("record amount = %q, want %q", resp.Record.Amount, "650.00")
	}

	alert := alertJSON{}
	for _, a := range resp.Alerts {
		if a.Category == "food" {
			alert = a
		}
	}
	if alert.Level != "warning" {
		t.Errorf("alert level = %q, want %q", alert.Level, "warning")
	}
	if alert.Percent != 65 {
		t.Errorf("alert percent = %v, want 65", alert.Percent)
	}
}

func TestServer_CreateRecord_InvalidInput(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body map[string]string
		want int
	}{
		{
			name: "bad date",
			body: map[string]string{"date": "10/06/2025", "category": "food", "amount": "10.00"},
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "negative amount",
			body: map[string]string{"date": "2025-06-10", "category": "food", "amount": "-10.00"},
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "empty category",
			body: map[string]string{"date": "2025-06-10", "category": "  ", "amount": "10.00"},
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "garbage amount",
			body: map[string]string{"date": "2025-06-10", "category": "food", "amount": "abc"},
			want: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, s, http.MethodPost, "/records", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/records", bytes.NewBufferString("{"))
		rec := httptest.NewRecorder()
		s.Server.Handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
	})
}

func TestServer_ListRecords_MonthFilter(t *testing.T) {
	s := newTestServer(t)

	for _, body := range []map[string]string{
		{"date": "2025-06-10", "category": "food", "amount": "10.00"},
		{"date": "2025-07-01", "category": "food", "amount": "20.00"},
	} {
		if rec := doJSON(t, s, http.MethodPost, "/records", body); rec.Code != http.StatusCreated {
			t.Fatalf("POST /records status = %d", rec.Code)
		}
	}

	rec := doJSON(t, s, http.MethodGet, "/records?year=2025&month=6", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /records status = %d", rec.Code)
	}
	records := decodeJSON[[]recordJSON](t, rec)
	if len(records) != 1 {
		t.Fatalf("got %d records for 2025-06, want 1", len(records))
	}
	if records[0].Date != "2025-06-10" {
		t.Errorf("record date = %q", records[0].Date)
	}

	rec = doJSON(t, s, http.MethodGet, "/records?year=2025&month=13", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("month=13 status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestServer_Budgets(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodPut, "/budgets", map[string]string{"category": "rent", "limit": "800.00"})
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT /budgets status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, s, http.MethodPut, "/budgets", map[string]string{"category": "rent", "limit": "-1.00"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("negative limit status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}

	rec = doJSON(t, s, http.MethodGet, "/budgets", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /budgets status = %d", rec.Code)
	}
	budgets := decodeJSON[[]budgetJSON](t, rec)
	if len(budgets) != 1 {
		t.Fatalf("got %d budgets, want 1", len(budgets))
	}
	if budgets[0].Category != "rent" || budgets[0].Limit != "800.00" {
		t.Errorf("budget = %+v", budgets[0])
	}
}

func TestServer_Summary(t *testing.T) {
	s := newTestServer(t)

	for _, body := range []map[string]string{
		{"date": "2025-06-10", "category": "food", "amount": "10.00"},
		{"date": "2025-06-11", "category": "food", "amount": "20.00"},
		{"date": "2025-06-01", "category": "rent", "amount": "800.00"},
	} {
		if rec := doJSON(t, s, http.MethodPost, "/records", body); rec.Code != http.StatusCreated {
			t.Fatalf("POST /records status = %d", rec.Code)
		}
	}

	type summaryResp struct {
		GroupBy string        `json:"group_by"`
		Groups  []summaryJSON `json:"groups"`
		Totals  totalsJSON    `json:"totals"`
	}

	rec := doJSON(t, s, http.MethodGet, "/summary?group_by=category", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /summary status = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decodeJSON[summaryResp](t, rec)
	if len(resp.Groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(resp.Groups))
	}
	if g := resp.Groups[0]; g.Key != "food" || g.Sum != "30.00" || g.Count != 2 || g.Mean != "15.00" {
		t.Errorf("food summary = %+v", g)
	}
	if resp.Totals.Total != "830.00" {
		t.Errorf("total = %q, want 830.00", resp.Totals.Total)
	}
	if resp.Totals.SpendDays != 3 {
		t.Errorf("spend days = %d, want 3", resp.Totals.SpendDays)
	}

	// Default grouping is by month
	rec = doJSON(t, s, http.MethodGet, "/summary", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /summary default status = %d", rec.Code)
	}
	resp = decodeJSON[summaryResp](t, rec)
	if resp.GroupBy != "month" || len(resp.Groups) != 1 || resp.Groups[0].Key != "2025-06" {
		t.Errorf("month summary = %+v", resp)
	}

	rec = doJSON(t, s, http.MethodGet, "/summary?group_by=week", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown group_by status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestServer_SummaryCacheInvalidation(t *testing.T) {
	s := newTestServer(t)

	post := func(amount string) {
		t.Helper()
		body := map[string]string{"date": "2025-06-10", "category": "food", "amount": amount}
		if rec := doJSON(t, s, http.MethodPost, "/records", body); rec.Code != http.StatusCreated {
			t.Fatalf("POST /records status = %d", rec.Code)
		}
	}

	type summaryResp struct {
		Groups []summaryJSON `json:"groups"`
	}

	post("10.00")

	rec := doJSON(t, s, http.MethodGet, "/summary?group_by=category", nil)
	resp := decodeJSON[summaryResp](t, rec)
	if resp.Groups[0].Sum != "10.00" {
		t.Fatalf("sum = %q, want 10.00", resp.Groups[0].Sum)
	}

	// A new record must invalidate the cached summary
	post("5.00")

	rec = doJSON(t, s, http.MethodGet, "/summary?group_by=category", nil)
	resp = decodeJSON[summaryResp](t, rec)
	if resp.Groups[0].Sum != "15.00" {
		t.Errorf("sum after append = %q, want 15.00", resp.Groups[0].Sum)
	}
}

func TestServer_Trend(t *testing.T) {
	s := newTestServer(t)

	for _, body := range []map[string]string{
		{"date": "2025-06-01", "category": "food", "amount": "10.00"},
		{"date": "2025-06-02", "category": "food", "amount": "20.00"},
		{"date": "2025-06-03", "category": "food", "amount": "30.00"},
	} {
		if rec := doJSON(t, s, http.MethodPost, "/records", body); rec.Code != http.StatusCreated {
			t.Fatalf("POST /records status = %d", rec.Code)
		}
	}

	rec := doJSON(t, s, http.MethodGet, "/trend?window=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /trend status = %d", rec.Code)
	}
	points := decodeJSON[[]trendPointJSON](t, rec)
	if len(points) != 2 {
		t.Fatalf("got %d points, want 2", len(points))
	}
	if points[0].Day != "2025-06-02" || points[0].Average != "15.00" {
		t.Errorf("first point = %+v", points[0])
	}
	if points[1].Day != "2025-06-03" || points[1].Average != "25.00" {
		t.Errorf("second point = %+v", points[1])
	}

	rec = doJSON(t, s, http.MethodGet, "/trend?window=0", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("window=0 status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestServer_Anomalies(t *testing.T) {
	s := newTestServer(t)

	for _, amount := range []string{"100.00", "102.00", "98.00", "101.00", "500.00"} {
		body := map[string]string{"date": "2025-06-10", "category": "food", "amount": amount}
		if rec := doJSON(t, s, http.MethodPost, "/records", body); rec.Code != http.StatusCreated {
			t.Fatalf("POST /records status = %d", rec.Code)
		}
	}

	rec := doJSON(t, s, http.MethodGet, "/anomalies", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /anomalies status = %d", rec.Code)
	}
	flags := decodeJSON[[]anomalyJSON](t, rec)
	if len(flags) != 1 {
		t.Fatalf("got %d anomalies, want 1", len(flags))
	}
	if !flags[0].Anomalous || flags[0].Category != "food" {
		t.Errorf("anomaly = %+v", flags[0])
	}
}

func TestServer_ExportNotConfigured(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/export", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("GET /export status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestServer_HealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := doJSON(t, s, http.MethodGet, path, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, rec.Code)
		}
	}
}

func TestServer_MethodNotAllowed(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodDelete, "/records", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("DELETE /records status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
	if allow := rec.Header().Get("Allow"); allow != "GET, POST" {
		t.Errorf("Allow header = %q, want %q", allow, "GET, POST")
	}
}
