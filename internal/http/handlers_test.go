package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pocketsight/internal/core"
	"pocketsight/internal/insight"
	"pocketsight/internal/services"
)

type stubAPI struct {
	series      []insight.SpendPoint
	merchants   insight.MerchantResult
	narrative   string
	performance []insight.PerformanceRow
	targets     []core.BudgetTarget

	savedTarget   *core.BudgetTarget
	exportedMonth string
	removedMonth  string
	removedCat    int64
	savedSortCol  string
	savedSortDir  string
	lastMonthKey  string
	lastCategory  int64
	lastSortCol   string
	lastSortDir   string
	forcedErr     error
}

func (a *stubAPI) SpendSeries(_ context.Context, monthKey string, _ int, categoryID int64) ([]insight.SpendPoint, error) {
	a.lastMonthKey = monthKey
	a.lastCategory = categoryID
	return a.series, a.forcedErr
}

func (a *stubAPI) MerchantInsights(_ context.Context, monthKey string, _ int, sortColumn, sortDirection string) (insight.MerchantResult, error) {
	a.lastMonthKey = monthKey
	a.lastSortCol = sortColumn
	a.lastSortDir = sortDirection
	return a.merchants, a.forcedErr
}

func (a *stubAPI) Narrative(_ context.Context, monthKey string, _ int, categoryID int64) (string, error) {
	a.lastMonthKey = monthKey
	a.lastCategory = categoryID
	return a.narrative, a.forcedErr
}

func (a *stubAPI) BudgetPerformance(_ context.Context, monthKey string) ([]insight.PerformanceRow, error) {
	a.lastMonthKey = monthKey
	return a.performance, a.forcedErr
}

func (a *stubAPI) ListTargets(_ context.Context, monthKey string) ([]core.BudgetTarget, error) {
	a.lastMonthKey = monthKey
	return a.targets, a.forcedErr
}

func (a *stubAPI) SaveTarget(_ context.Context, target core.BudgetTarget) error {
	a.savedTarget = &target
	return a.forcedErr
}

func (a *stubAPI) RemoveTarget(_ context.Context, monthKey string, categoryID int64) error {
	a.removedMonth = monthKey
	a.removedCat = categoryID
	return a.forcedErr
}

func (a *stubAPI) SaveSortPreference(_ context.Context, column, direction string) error {
	a.savedSortCol = column
	a.savedSortDir = direction
	return a.forcedErr
}

func (a *stubAPI) RequestReportRefresh(_ context.Context, monthKey string) error {
	a.exportedMonth = monthKey
	return a.forcedErr
}

func newTestServer(api *stubAPI) *Server {
	return NewServer(":0", api)
}

func doRequest(t *testing.T, srv *Server, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
}

func TestSpendSeriesEndpoint(t *testing.T) {
	api := &stubAPI{
		series: []insight.SpendPoint{
			{Month: "2026-01", Label: "Jan 2026", Amount: core.Money{Cents: 12000}},
			{Month: "2026-02", Label: "Feb 2026", Amount: core.Money{Cents: 7000}},
		},
	}
	srv := newTestServer(api)
	defer srv.Shutdown(context.Background())

	rec := doRequest(t, srv, http.MethodGet, "/api/insights/spend-series?month=2026-02&months=2&categoryId=10", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %q)", rec.Code, rec.Body.String())
	}
	if api.lastMonthKey != "2026-02" {
		t.Errorf("month passed to service = %q, want 2026-02", api.lastMonthKey)
	}
	if api.lastCategory != 10 {
		t.Errorf("categoryId passed to service = %d, want 10", api.lastCategory)
	}

	var resp struct {
		Month  string `json:"month"`
		Series []struct {
			Month  string `json:"month"`
			Amount struct {
				Cents int64 `json:"cents"`
			} `json:"amount"`
		} `json:"series"`
	}
	decodeBody(t, rec, &resp)
	if resp.Month != "2026-02" {
		t.Errorf("response month = %q, want 2026-02", resp.Month)
	}
	if len(resp.Series) != 2 {
		t.Fatalf("series length = %d, want 2", len(resp.Series))
	}
	if resp.Series[0].Amount.Cents != 12000 {
		t.Errorf("first point cents = %d, want 12000", resp.Series[0].Amount.Cents)
	}
}

func TestSpendSeriesDefaultsMonth(t *testing.T) {
	api := &stubAPI{}
	srv := newTestServer(api)
	defer srv.Shutdown(context.Background())

	rec := doRequest(t, srv, http.MethodGet, "/api/insights/spend-series", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !core.IsMonthKey(api.lastMonthKey) {
		t.Errorf("defaulted month %q is not a month key", api.lastMonthKey)
	}
}

func TestSpendSeriesRejectsPost(t *testing.T) {
	srv := newTestServer(&stubAPI{})
	defer srv.Shutdown(context.Background())

	rec := doRequest(t, srv, http.MethodPost, "/api/insights/spend-series", "{}")

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); allow != "GET" {
		t.Errorf("Allow header = %q, want GET", allow)
	}
}

func TestSpendSeriesUpstreamFailure(t *testing.T) {
	api := &stubAPI{forcedErr: errors.New("connection refused")}
	srv := newTestServer(api)
	defer srv.Shutdown(context.Background())

	rec := doRequest(t, srv, http.MethodGet, "/api/insights/spend-series?month=2026-02", "")

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	var resp struct {
		Error string `json:"error"`
	}
	decodeBody(t, rec, &resp)
	if resp.Error == "" {
		t.Error("expected error message in body")
	}
}

func TestSpendSeriesValidationFailure(t *testing.T) {
	api := &stubAPI{forcedErr: core.ErrInvalidMonthKey}
	srv := newTestServer(api)
	defer srv.Shutdown(context.Background())

	rec := doRequest(t, srv, http.MethodGet, "/api/insights/spend-series?month=2026-02", "")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestMerchantsEndpoint(t *testing.T) {
	api := &stubAPI{
		merchants: insight.MerchantResult{
			Rows: []insight.MerchantRow{
				{Merchant: "Coffee Spot", CurrentCount: 2, CurrentSpend: core.Money{Cents: 7000}},
			},
			EffectiveAverageMonths: 3,
		},
	}
	srv := newTestServer(api)
	defer srv.Shutdown(context.Background())

	rec := doRequest(t, srv, http.MethodGet, "/api/insights/merchants?month=2026-02&sort=currentSpend&direction=desc", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %q)", rec.Code, rec.Body.String())
	}
	if api.lastSortCol != "currentSpend" || api.lastSortDir != "desc" {
		t.Errorf("sort passed to service = %q/%q, want currentSpend/desc", api.lastSortCol, api.lastSortDir)
	}

	var resp struct {
		Rows []struct {
			Merchant string `json:"merchant"`
		} `json:"rows"`
		EffectiveAverageMonths int `json:"effectiveAverageMonths"`
	}
	decodeBody(t, rec, &resp)
	if len(resp.Rows) != 1 || resp.Rows[0].Merchant != "Coffee Spot" {
		t.Errorf("rows = %+v, want one Coffee Spot row", resp.Rows)
	}
	if resp.EffectiveAverageMonths != 3 {
		t.Errorf("effectiveAverageMonths = %d, want 3", resp.EffectiveAverageMonths)
	}
}

func TestNarrativeEndpoint(t *testing.T) {
	api := &stubAPI{narrative: "Spending held steady."}
	srv := newTestServer(api)
	defer srv.Shutdown(context.Background())

	rec := doRequest(t, srv, http.MethodGet, "/api/insights/narrative?month=2026-02", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Narrative string `json:"narrative"`
	}
	decodeBody(t, rec, &resp)
	if resp.Narrative != "Spending held steady." {
		t.Errorf("narrative = %q", resp.Narrative)
	}
}

func TestPerformanceEndpoint(t *testing.T) {
	api := &stubAPI{
		performance: []insight.PerformanceRow{
			{
				CategoryID:   10,
				CategoryName: "Food",
				Target:       core.Money{Cents: 40000},
				Actual:       core.Money{Cents: 46000},
				Variance:     core.Money{Cents: -6000},
				VariancePct:  -15,
				Status:       insight.StatusOver,
			},
		},
	}
	srv := newTestServer(api)
	defer srv.Shutdown(context.Background())

	rec := doRequest(t, srv, http.MethodGet, "/api/budgets/performance?month=2026-02", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Rows []struct {
			CategoryName string  `json:"categoryName"`
			VariancePct  float64 `json:"variancePct"`
			Status       string  `json:"status"`
		} `json:"rows"`
	}
	decodeBody(t, rec, &resp)
	if len(resp.Rows) != 1 {
		t.Fatalf("rows length = %d, want 1", len(resp.Rows))
	}
	if resp.Rows[0].Status != "over" || resp.Rows[0].VariancePct != -15 {
		t.Errorf("row = %+v, want status over and pct -15", resp.Rows[0])
	}
}

func TestListTargetsEndpoint(t *testing.T) {
	api := &stubAPI{
		targets: []core.BudgetTarget{
			{MonthKey: "2026-02", CategoryID: 10, CategoryName: "Food", Target: core.Money{Cents: 40000}},
		},
	}
	srv := newTestServer(api)
	defer srv.Shutdown(context.Background())

	rec := doRequest(t, srv, http.MethodGet, "/api/budgets/targets?month=2026-02", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Targets []struct {
			CategoryID  int64 `json:"categoryId"`
			TargetCents int64 `json:"targetCents"`
		} `json:"targets"`
	}
	decodeBody(t, rec, &resp)
	if len(resp.Targets) != 1 || resp.Targets[0].TargetCents != 40000 {
		t.Errorf("targets = %+v, want one 40000-cent target", resp.Targets)
	}
}

func TestSaveTargetEndpoint(t *testing.T) {
	api := &stubAPI{}
	srv := newTestServer(api)
	defer srv.Shutdown(context.Background())

	body := `{"monthKey":"2026-02","categoryId":10,"categoryName":"Food","targetCents":40000,"notes":"tighten up"}`
	rec := doRequest(t, srv, http.MethodPut, "/api/budgets/targets", body)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %q)", rec.Code, rec.Body.String())
	}
	if api.savedTarget == nil {
		t.Fatal("target was not saved")
	}
	if api.savedTarget.Target.Cents != 40000 || api.savedTarget.CategoryName != "Food" {
		t.Errorf("saved target = %+v", api.savedTarget)
	}
}

func TestSaveTargetValidation(t *testing.T) {
	srv := newTestServer(&stubAPI{})
	defer srv.Shutdown(context.Background())

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"monthKey": `},
		{"bad month", `{"monthKey":"2026-13","categoryId":10,"categoryName":"Food","targetCents":100}`},
		{"missing category name", `{"monthKey":"2026-02","categoryId":10,"targetCents":100}`},
		{"negative target", `{"monthKey":"2026-02","categoryId":10,"categoryName":"Food","targetCents":-100}`},
		{"zero category id", `{"monthKey":"2026-02","categoryName":"Food","targetCents":100}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodPut, "/api/budgets/targets", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (body %q)", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestDeleteTargetEndpoint(t *testing.T) {
	api := &stubAPI{}
	srv := newTestServer(api)
	defer srv.Shutdown(context.Background())

	rec := doRequest(t, srv, http.MethodDelete, "/api/budgets/targets?month=2026-02&categoryId=10", "")

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if api.removedMonth != "2026-02" || api.removedCat != 10 {
		t.Errorf("removed %q/%d, want 2026-02/10", api.removedMonth, api.removedCat)
	}
}

func TestDeleteTargetRequiresCategory(t *testing.T) {
	srv := newTestServer(&stubAPI{})
	defer srv.Shutdown(context.Background())

	rec := doRequest(t, srv, http.MethodDelete, "/api/budgets/targets?month=2026-02", "")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSortPreferenceEndpoint(t *testing.T) {
	api := &stubAPI{}
	srv := newTestServer(api)
	defer srv.Shutdown(context.Background())

	rec := doRequest(t, srv, http.MethodPut, "/api/preferences/merchants-sort", `{"column":"avgSpend","direction":"desc"}`)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204 (body %q)", rec.Code, rec.Body.String())
	}
	if api.savedSortCol != "avgSpend" || api.savedSortDir != "desc" {
		t.Errorf("saved sort = %q/%q, want avgSpend/desc", api.savedSortCol, api.savedSortDir)
	}
}

func TestSortPreferenceRequiresColumn(t *testing.T) {
	srv := newTestServer(&stubAPI{})
	defer srv.Shutdown(context.Background())

	rec := doRequest(t, srv, http.MethodPut, "/api/preferences/merchants-sort", `{"direction":"desc"}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSortPreferenceRejectsUnknownColumn(t *testing.T) {
	api := &stubAPI{}
	srv := newTestServer(api)
	defer srv.Shutdown(context.Background())

	rec := doRequest(t, srv, http.MethodPut, "/api/preferences/merchants-sort", `{"column":"totallyNotAColumn","direction":"desc"}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 (body %q)", rec.Code, rec.Body.String())
	}
	if api.savedSortCol != "" {
		t.Errorf("saved sort column = %q, want no save", api.savedSortCol)
	}
}

func TestExportEndpoint(t *testing.T) {
	api := &stubAPI{}
	srv := newTestServer(api)
	defer srv.Shutdown(context.Background())

	rec := doRequest(t, srv, http.MethodPost, "/api/budgets/export?month=2026-02", "")

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202 (body %q)", rec.Code, rec.Body.String())
	}
	if api.exportedMonth != "2026-02" {
		t.Errorf("exported month = %q, want 2026-02", api.exportedMonth)
	}
}

func TestExportEndpointWithoutPublisher(t *testing.T) {
	api := &stubAPI{forcedErr: services.ErrRefreshUnavailable}
	srv := newTestServer(api)
	defer srv.Shutdown(context.Background())

	rec := doRequest(t, srv, http.MethodPost, "/api/budgets/export?month=2026-02", "")

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestExportEndpointRejectsGet(t *testing.T) {
	srv := newTestServer(&stubAPI{})
	defer srv.Shutdown(context.Background())

	rec := doRequest(t, srv, http.MethodGet, "/api/budgets/export", "")

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(&stubAPI{})
	defer srv.Shutdown(context.Background())

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := doRequest(t, srv, http.MethodGet, path, "")
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, rec.Code)
		}
	}
}

func TestSecurityHeadersApplied(t *testing.T) {
	srv := newTestServer(&stubAPI{})
	defer srv.Shutdown(context.Background())

	rec := doRequest(t, srv, http.MethodGet, "/healthz", "")

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := rec.Header().Get("Content-Security-Policy"); !strings.Contains(got, "default-src 'none'") {
		t.Errorf("CSP = %q, want default-src 'none'", got)
	}
}
