package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"toll-calculator/internal/audit"
	"toll-calculator/internal/auth"
	"toll-calculator/internal/observability/metrics"
	tollapp "toll-calculator/internal/toll/application"
	toll "toll-calculator/internal/toll/domain"
	rules "toll-calculator/internal/toll/infrastructure/rules"
	tollinterfaces "toll-calculator/internal/toll/interfaces"
)

const (
	timeLayout       = time.RFC3339
	maxTimestamps    = 10000
	maxRequestBytes  = 1 << 20
	defaultCurrency  = "SEK"
	routeReports     = "/api/v1/toll/reports"
	routeExportPDF   = "/api/v1/toll/reports/export.pdf"
	routeExportXLSX  = "/api/v1/toll/reports/export.xlsx"
	routeRules       = "/api/v1/toll/rules"
	routeRulesReload = "/api/v1/toll/rules/refresh"
)

// RuleRefresher forces a rule set refresh.
type RuleRefresher interface {
	Refresh(ctx context.Context) (*toll.RuleSet, error)
}

// Handler provides toll HTTP endpoints.
type Handler struct {
	service     *tollapp.CalculationService
	refresher   RuleRefresher
	location    *time.Location
	currency    string
	auditLogger audit.Logger
	logger      *log.Logger
	now         func() time.Time
}

// Option configures the handler.
type Option func(*Handler)

// WithLocation sets the zone for timestamps given without an offset.
func WithLocation(loc *time.Location) Option {
	return func(h *Handler) {
		if loc != nil {
			h.location = loc
		}
	}
}

// WithCurrency sets the currency label of reports and exports.
func WithCurrency(currency string) Option {
	return func(h *Handler) {
		if currency != "" {
			h.currency = currency
		}
	}
}

// WithAuditLogger records refreshes and exports.
func WithAuditLogger(logger audit.Logger) Option {
	return func(h *Handler) {
		h.auditLogger = logger
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHandler constructs a handler. refresher may be nil when the rule
// source is static.
func NewHandler(service *tollapp.CalculationService, refresher RuleRefresher, opts ...Option) (*Handler, error) {
	if service == nil {
		return nil, errors.New("toll handler: nil service")
	}
	h := &Handler{
		service:   service,
		refresher: refresher,
		location:  time.Local,
		currency:  defaultCurrency,
		logger:    log.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Register mounts the toll routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.Handle(routeReports, h)
	mux.Handle(routeReports+"/", h)
	mux.Handle(routeRules, h)
	mux.Handle(routeRules+"/", h)
}

// ServeHTTP handles toll routes under /api/v1/toll.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case routeReports:
		if r.Method == http.MethodPost {
			h.handleReports(w, r)
			return
		}
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	case routeExportPDF, routeExportXLSX:
		if r.Method == http.MethodPost {
			h.handleExport(w, r, strings.TrimPrefix(r.URL.Path, routeReports+"/export."))
			return
		}
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	case routeRules:
		if r.Method == http.MethodGet {
			h.handleRules(w, r)
			return
		}
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	case routeRulesReload:
		if r.Method == http.MethodPost {
			h.handleRefresh(w, r)
			return
		}
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

type reportsRequest struct {
	VehicleType string   `json:"vehicle_type"`
	Timestamps  []string `json:"timestamps"`
}

type passageDTO struct {
	At           string           `json:"at"`
	Time         string           `json:"time"`
	PotentialFee decimal.Decimal  `json:"potential_fee"`
	ChargedFee   decimal.Decimal  `json:"charged_fee"`
	Kind         toll.PassageKind `json:"kind"`
	Label        string           `json:"label"`
}

type dailyReportDTO struct {
	Date      string          `json:"date"`
	Exemption string          `json:"exemption"`
	TotalFee  decimal.Decimal `json:"total_fee"`
	Windows   [][]passageDTO  `json:"windows"`
}

type reportsResponse struct {
	VehicleType string           `json:"vehicle_type"`
	Currency    string           `json:"currency"`
	TotalFee    decimal.Decimal  `json:"total_fee"`
	Reports     []dailyReportDTO `json:"reports"`
}

func (h *Handler) handleReports(w http.ResponseWriter, r *http.Request) {
	vehicle, reports, err := h.compute(w, r)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	resp := reportsResponse{
		VehicleType: string(vehicle),
		Currency:    h.currency,
		TotalFee:    toll.TotalFee(reports),
		Reports:     make([]dailyReportDTO, 0, len(reports)),
	}
	for _, report := range reports {
		resp.Reports = append(resp.Reports, toReportDTO(report))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request, format string) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveReportExport(format, result, time.Since(start))
	}()

	vehicle, reports, err := h.compute(w, r)
	if err != nil {
		result = metrics.ResultError
		respondServiceError(w, err)
		return
	}
	export := tollinterfaces.ReportExport{
		Vehicle:     vehicle,
		Currency:    h.currency,
		GeneratedAt: h.now().UTC(),
		Reports:     reports,
	}

	var (
		data        []byte
		contentType string
	)
	switch format {
	case "pdf":
		data, err = tollinterfaces.BuildReportPDF(export)
		contentType = "application/pdf"
	default:
		data, err = tollinterfaces.BuildReportXLSX(export)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	if err != nil {
		result = metrics.ResultError
		h.logger.Printf("toll export %s error: %v", format, err)
		http.Error(w, "export "+format+" error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"toll-report.%s\"", format))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
	h.logAudit(r, "report.export", "report", string(vehicle), map[string]any{
		"format": format,
		"days":   len(reports),
	})
}

func (h *Handler) handleRules(w http.ResponseWriter, r *http.Request) {
	current, err := h.service.Rules(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rules.FromDomain(current))
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if h.refresher == nil {
		respondServiceError(w, fmt.Errorf("%w: no provider configured", tollapp.ErrRulesUnavailable))
		return
	}
	refreshed, err := h.refresher.Refresh(r.Context())
	if err != nil {
		h.logger.Printf("toll rules manual refresh error: %v", err)
		respondServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rules.FromDomain(refreshed))

	validUntil := ""
	if !refreshed.ValidUntil.IsZero() {
		validUntil = refreshed.ValidUntil.Format(timeLayout)
	}
	h.logAudit(r, "rules.refresh", "rule_set", "", map[string]any{
		"fees":        len(refreshed.Fees),
		"valid_until": validUntil,
	})
}

func (h *Handler) compute(w http.ResponseWriter, r *http.Request) (toll.VehicleType, []toll.DailyReport, error) {
	var req reportsRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		return "", nil, fmt.Errorf("%w: invalid json", errBadRequest)
	}
	vehicle, err := toll.ParseVehicleType(req.VehicleType)
	if err != nil {
		return "", nil, err
	}
	if len(req.Timestamps) > maxTimestamps {
		return "", nil, fmt.Errorf("%w: at most %d timestamps", errBadRequest, maxTimestamps)
	}
	timestamps := make([]time.Time, 0, len(req.Timestamps))
	for _, value := range req.Timestamps {
		ts, err := tollinterfaces.ParseTimestamp(value, h.location)
		if err != nil {
			return "", nil, err
		}
		timestamps = append(timestamps, ts)
	}
	reports, err := h.service.DailyReports(r.Context(), vehicle, timestamps)
	if err != nil {
		return "", nil, err
	}
	return vehicle, reports, nil
}

func toReportDTO(report toll.DailyReport) dailyReportDTO {
	dto := dailyReportDTO{
		Date:      report.Date.String(),
		Exemption: report.Exemption.String(),
		TotalFee:  report.TotalFee(),
		Windows:   make([][]passageDTO, 0, len(report.Windows)),
	}
	for _, window := range report.Windows {
		passages := make([]passageDTO, 0, len(window))
		for _, passage := range window {
			passages = append(passages, passageDTO{
				At:           passage.At.Format(time.RFC3339Nano),
				Time:         toll.TimeOfDayOf(passage.At).String(),
				PotentialFee: passage.PotentialFee,
				ChargedFee:   passage.ChargedFee,
				Kind:         passage.Kind,
				Label:        tollinterfaces.KindLabel(passage.Kind),
			})
		}
		dto.Windows = append(dto.Windows, passages)
	}
	return dto
}

func (h *Handler) logAudit(r *http.Request, action, resourceType, resourceID string, meta map[string]any) {
	if h.auditLogger == nil {
		return
	}
	entry := audit.RequestEntry(r, action, resourceType, resourceID)
	entry.Actor = auth.SubjectFromContext(r.Context())
	entry.Role = string(auth.RoleFromContext(r.Context()))
	entry.Metadata, _ = json.Marshal(meta)
	if err := h.auditLogger.Log(r.Context(), entry); err != nil {
		h.logger.Printf("toll audit %s error: %v", action, err)
	}
}

var errBadRequest = errors.New("toll http: bad request")

func respondServiceError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, tollapp.ErrRulesUnavailable):
		http.Error(w, "toll rules unavailable", http.StatusServiceUnavailable)
	case errors.Is(err, errBadRequest),
		errors.Is(err, tollinterfaces.ErrInvalidTimestamp),
		errors.Is(err, toll.ErrInvalidVehicleType):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
