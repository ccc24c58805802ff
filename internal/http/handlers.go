package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"pocketsight/internal/core"
	"pocketsight/internal/insight"
	"pocketsight/internal/log"
	"pocketsight/internal/services"
)

// InsightAPI is the service surface the handlers need.
type InsightAPI interface {
	SpendSeries(ctx context.Context, monthKey string, historyMonths int, categoryID int64) ([]insight.SpendPoint, error)
	MerchantInsights(ctx context.Context, monthKey string, averageMonths int, sortColumn, sortDirection string) (insight.MerchantResult, error)
	Narrative(ctx context.Context, monthKey string, historyMonths int, categoryID int64) (string, error)
	BudgetPerformance(ctx context.Context, monthKey string) ([]insight.PerformanceRow, error)
	ListTargets(ctx context.Context, monthKey string) ([]core.BudgetTarget, error)
	SaveTarget(ctx context.Context, target core.BudgetTarget) error
	RemoveTarget(ctx context.Context, monthKey string, categoryID int64) error
	SaveSortPreference(ctx context.Context, column, direction string) error
	RequestReportRefresh(ctx context.Context, monthKey string) error
}

// GET /api/insights/spend-series?month=&months=&categoryId=
func (s *Server) handleSpendSeries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}

	monthKey := monthParam(r)
	series, err := s.api.SpendSeries(r.Context(), monthKey, intParam(r, "months"), int64Param(r, "categoryId"))
	if err != nil {
		s.serviceError(w, r, "spend series", err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Month  string               `json:"month"`
		Series []insight.SpendPoint `json:"series"`
	}{Month: monthKey, Series: series})
}

// GET /api/insights/merchants?month=&months=&sort=&direction=
func (s *Server) handleMerchants(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}

	monthKey := monthParam(r)
	result, err := s.api.MerchantInsights(r.Context(), monthKey,
		intParam(r, "months"),
		strings.TrimSpace(r.URL.Query().Get("sort")),
		strings.TrimSpace(r.URL.Query().Get("direction")))
	if err != nil {
		s.serviceError(w, r, "merchant insights", err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Month                  string                `json:"month"`
		Rows                   []insight.MerchantRow `json:"rows"`
		EffectiveAverageMonths int                   `json:"effectiveAverageMonths"`
	}{Month: monthKey, Rows: result.Rows, EffectiveAverageMonths: result.EffectiveAverageMonths})
}

// GET /api/insights/narrative?month=&months=
func (s *Server) handleNarrative(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}

	monthKey := monthParam(r)
	text, err := s.api.Narrative(r.Context(), monthKey, intParam(r, "months"), int64Param(r, "categoryId"))
	if err != nil {
		s.serviceError(w, r, "narrative", err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Month     string `json:"month"`
		Narrative string `json:"narrative"`
	}{Month: monthKey, Narrative: text})
}

// GET /api/budgets/performance?month=
func (s *Server) handlePerformance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}

	monthKey := monthParam(r)
	rows, err := s.api.BudgetPerformance(r.Context(), monthKey)
	if err != nil {
		s.serviceError(w, r, "budget performance", err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Month string                   `json:"month"`
		Rows  []insight.PerformanceRow `json:"rows"`
	}{Month: monthKey, Rows: rows})
}

type targetRequest struct {
	MonthKey     string `json:"monthKey"`
	CategoryID   int64  `json:"categoryId"`
	CategoryName string `json:"categoryName"`
	TargetCents  int64  `json:"targetCents"`
	Notes        string `json:"notes"`
}

type targetResponse struct {
	MonthKey     string `json:"monthKey"`
	CategoryID   int64  `json:"categoryId"`
	CategoryName string `json:"categoryName"`
	TargetCents  int64  `json:"targetCents"`
	Notes        string `json:"notes,omitempty"`
}

// /api/budgets/targets: GET lists, PUT upserts, DELETE removes.
func (s *Server) handleTargets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listTargets(w, r)
	case http.MethodPut, http.MethodPost:
		s.saveTarget(w, r)
	case http.MethodDelete:
		s.deleteTarget(w, r)
	default:
		methodNotAllowed(w, "GET, PUT, POST, DELETE")
	}
}

func (s *Server) listTargets(w http.ResponseWriter, r *http.Request) {
	monthKey := monthParam(r)
	targets, err := s.api.ListTargets(r.Context(), monthKey)
	if err != nil {
		s.serviceError(w, r, "list targets", err)
		return
	}

	out := make([]targetResponse, len(targets))
	for i, t := range targets {
		out[i] = targetResponse{
			MonthKey:     t.MonthKey,
			CategoryID:   t.CategoryID,
			CategoryName: t.CategoryName,
			TargetCents:  t.Target.Cents,
			Notes:        t.Notes,
		}
	}

	writeJSON(w, http.StatusOK, struct {
		Month   string           `json:"month"`
		Targets []targetResponse `json:"targets"`
	}{Month: monthKey, Targets: out})
}

func (s *Server) saveTarget(w http.ResponseWriter, r *http.Request) {
	var req targetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	target := core.BudgetTarget{
		MonthKey:     req.MonthKey,
		CategoryID:   req.CategoryID,
		CategoryName: strings.TrimSpace(req.CategoryName),
		Target:       core.Money{Cents: req.TargetCents},
		Notes:        strings.TrimSpace(req.Notes),
	}
	if err := target.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.api.SaveTarget(r.Context(), target); err != nil {
		s.serviceError(w, r, "save target", err)
		return
	}

	writeJSON(w, http.StatusOK, targetResponse{
		MonthKey:     target.MonthKey,
		CategoryID:   target.CategoryID,
		CategoryName: target.CategoryName,
		TargetCents:  target.Target.Cents,
		Notes:        target.Notes,
	})
}

func (s *Server) deleteTarget(w http.ResponseWriter, r *http.Request) {
	monthKey := monthParam(r)
	categoryID := int64Param(r, "categoryId")
	if categoryID == 0 {
		writeError(w, http.StatusBadRequest, "categoryId is required")
		return
	}

	if err := s.api.RemoveTarget(r.Context(), monthKey, categoryID); err != nil {
		s.serviceError(w, r, "delete target", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type sortPreferenceRequest struct {
	Column    string `json:"column"`
	Direction string `json:"direction"`
}

// PUT /api/preferences/merchants-sort
func (s *Server) handleSortPreference(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut && r.Method != http.MethodPost {
		methodNotAllowed(w, "PUT, POST")
		return
	}

	var req sortPreferenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	column, ok := insight.ParseSortColumn(req.Column)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown sort column")
		return
	}

	if err := s.api.SaveSortPreference(r.Context(), string(column), req.Direction); err != nil {
		s.serviceError(w, r, "save sort preference", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// POST /api/budgets/export?month= asks the worker to re-export the month's
// report. 202 because the export happens out of band.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}

	monthKey := monthParam(r)
	if err := s.api.RequestReportRefresh(r.Context(), monthKey); err != nil {
		if errors.Is(err, services.ErrRefreshUnavailable) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		s.serviceError(w, r, "request export", err)
		return
	}

	writeJSON(w, http.StatusAccepted, struct {
		Month  string `json:"month"`
		Status string `json:"status"`
	}{Month: monthKey, Status: "queued"})
}

// serviceError maps service failures to responses: validation problems are
// the caller's fault, everything else is a 502 because this service fronts
// the upstream ledger.
func (s *Server) serviceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if errors.Is(err, core.ErrInvalidMonthKey) || errors.Is(err, core.ErrInvalidAmount) || errors.Is(err, core.ErrEmptyCategory) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
		log.FieldOperation, op,
		log.FieldPath, r.URL.Path,
		log.FieldError, err.Error())
	writeError(w, http.StatusBadGateway, "upstream data unavailable")
}
