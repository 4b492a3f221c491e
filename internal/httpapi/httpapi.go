package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"doradori/backend/internal/domain"
	"doradori/backend/internal/service"
	"doradori/backend/internal/store"
	"doradori/backend/internal/xid"
)

const (
	apiPrefix       = "/api"
	masterTablePath = "/master-table/"
	maxBodyBytes    = 1 << 20
)

type Options struct {
	AllowedOrigin string
	// Development adds driver error text to 500 responses.
	Development bool
}

type API struct {
	service       *service.Service
	allowedOrigin string
	development   bool
}

func New(svc *service.Service, opts Options) *API {
	if opts.AllowedOrigin == "" {
		opts.AllowedOrigin = "*"
	}
	return &API{
		service:       svc,
		allowedOrigin: opts.AllowedOrigin,
		development:   opts.Development,
	}
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", a.handleRoot)
	a.route(mux, "/health", a.handleHealth)

	a.route(mux, "/kpis", a.handleKPIs)
	a.route(mux, "/top-skus", a.handleTopSKUs)
	a.route(mux, "/stockout-risks", a.handleStockoutRisks)
	a.route(mux, "/trends/channel-performance", a.handleChannelPerformance)
	a.route(mux, "/trends/return-rate-by-category", a.handleReturnRateByCategory)
	a.route(mux, "/trends/units-vs-returns", a.handleUnitsVsReturns)
	a.route(mux, "/trends/fabric-usage", a.handleFabricUsage)
	a.route(mux, "/alerts", a.handleAlerts)
	a.route(mux, "/schema", a.handleSchema)

	a.route(mux, "/master-table", a.handleMasterTable)
	a.route(mux, "/master-table/export", a.handleMasterTableExport)
	a.route(mux, masterTablePath, a.handleStyleUpdate)

	return a.withMiddleware(mux)
}

// route serves path both at the root and under /api.
func (a *API) route(mux *http.ServeMux, path string, handler http.HandlerFunc) {
	mux.HandleFunc(path, handler)
	mux.HandleFunc(apiPrefix+path, handler)
}

func (a *API) handleRoot(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/", apiPrefix, apiPrefix + "/":
		a.handleHealth(w, r)
	default:
		writeError(w, http.StatusNotFound, errors.New("route not found"))
	}
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, a.service.Health(r.Context()))
}

func (a *API) handleKPIs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	resp, err := a.service.KPIs(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err, "Failed to fetch KPI data")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleTopSKUs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	resp, err := a.service.TopSKUs(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err, "Failed to fetch top SKUs")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleStockoutRisks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	resp, err := a.service.StockoutRisks(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err, "Failed to fetch stockout risks")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleChannelPerformance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	resp, err := a.service.ChannelPerformance(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err, "Failed to fetch channel performance data")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleReturnRateByCategory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	resp, err := a.service.ReturnRateByCategory(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err, "Failed to fetch return rate by category data")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleUnitsVsReturns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	resp, err := a.service.UnitsVsReturns(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err, "Failed to fetch units vs returns data")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleFabricUsage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	resp, err := a.service.FabricUsage(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err, "Failed to fetch fabric usage data")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	query := r.URL.Query()
	resp, err := a.service.Alerts(r.Context(), domain.AlertFilter{
		Severity: query.Get("severity"),
		Platform: query.Get("platform"),
	})
	if err != nil {
		a.writeServiceError(w, r, err, "Failed to fetch alerts")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleSchema(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, a.service.Schema())
}

func (a *API) handleMasterTable(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	query := r.URL.Query()
	resp, err := a.service.MasterTable(r.Context(), query.Get("search"), parsePositiveLimit(query.Get("limit"), 0, 0))
	if err != nil {
		a.writeServiceError(w, r, err, "Failed to fetch master table")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleMasterTableExport shares its path with a style whose id is "export",
// so PUT falls through to the update handler.
func (a *API) handleMasterTableExport(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPut:
		a.handleStyleUpdate(w, r)
		return
	default:
		writeMethodNotAllowed(w)
		return
	}

	page, err := a.service.MasterTable(r.Context(), r.URL.Query().Get("search"), 0)
	if err != nil {
		a.writeServiceError(w, r, err, "Failed to export master table")
		return
	}

	var buf bytes.Buffer
	if err := writeMasterTableWorkbook(&buf, page.Data); err != nil {
		a.writeServiceError(w, r, err, "Failed to export master table")
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"master-table-%s.xlsx\"", time.Now().UTC().Format("20060102")))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (a *API) handleStyleUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeMethodNotAllowed(w)
		return
	}

	// the escaped path keeps %20 and friends for the service to decode
	_, rawID, _ := strings.Cut(r.URL.EscapedPath(), masterTablePath)

	var fields map[string]any
	if err := decodeJSON(r, &fields); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid JSON body: %w", err))
		return
	}

	resp, err := a.service.UpdateStyle(r.Context(), rawID, fields)
	if err != nil {
		a.writeServiceError(w, r, err, "Failed to update style")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n
	return n, err
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if !xid.Valid(requestID) {
			requestID = xid.New("req")
		}
		logger := log.With().Str("request_id", requestID).Logger()
		r = r.WithContext(logger.WithContext(r.Context()))

		w.Header().Set("X-Request-ID", requestID)
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
		w.Header().Set("Access-Control-Allow-Methods", "GET,PUT,OPTIONS")
		w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, Content-Disposition")
		if a.allowedOrigin != "*" {
			w.Header().Set("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		if r.Method == http.MethodPut {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		}

		rec := &statusRecorder{ResponseWriter: w}
		startedAt := time.Now()
		next.ServeHTTP(rec, r)

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		event := logger.Info()
		if status >= 500 {
			event = logger.Error()
		}
		event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", rec.bytes).
			Dur("duration", time.Since(startedAt)).
			Msg("request")
	})
}

// writeServiceError maps store sentinels onto status codes. 5xx bodies
// carry the route's generic message and, in development, the cause.
func (a *API) writeServiceError(w http.ResponseWriter, r *http.Request, err error, message string) {
	switch {
	case errors.Is(err, store.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusConflict, err)
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg(message)
		body := map[string]any{"error": message}
		if a.development {
			body["details"] = err.Error()
		}
		writeJSON(w, http.StatusInternalServerError, body)
	}
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.UseNumber()
	if err := decoder.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty body")
		}
		return err
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	msg := err.Error()
	if status >= 500 {
		log.Error().Err(err).Int("status", status).Msg("internal error")
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
