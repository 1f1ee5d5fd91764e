// internal/catalog/handler.go
package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"shelfsort/internal/auth"
	"shelfsort/internal/blob"
)

// HandlerOptions configures the HTTP surface of the catalog.
type HandlerOptions struct {
	// Sink receives exports posted to /exports. Optional.
	Sink blob.Sink
	// Verifier guards mutating routes. Nil disables auth.
	Verifier *auth.Verifier
	// ProbeCount is the number of random ids searched when none are given.
	ProbeCount int
	// Registry backs /metrics. Nil gives the handler a registry of its own.
	Registry *prometheus.Registry
	Logger   *slog.Logger
}

type Handler struct {
	service    Service
	sink       blob.Sink
	verifier   *auth.Verifier
	probeCount int
	logger     *slog.Logger

	registry *prometheus.Registry
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

func NewHandler(service Service, opts HandlerOptions) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	probeCount := opts.ProbeCount
	if probeCount <= 0 {
		probeCount = 100
	}
	registry := opts.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	h := &Handler{
		service:    service,
		sink:       opts.Sink,
		verifier:   opts.Verifier,
		probeCount: probeCount,
		logger:     logger.With("component", "http"),
		registry:   registry,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shelfsort",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "shelfsort",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
	h.registry.MustRegister(h.requests, h.latency)
	return h
}

// Routes returns the router serving the catalog API.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.instrument)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Handle("/metrics", promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{}))

	r.Get("/books", h.handleBooks)
	r.Get("/search", h.handleSearch)
	r.Get("/probes", h.handleProbes)
	r.Get("/reports/value", h.handleTotalValue)
	r.Get("/reports/rated", h.handleHighlyRated)
	r.Get("/export.csv", h.handleExportCSV)
	r.Get("/runs", h.handleRuns)
	r.Get("/runs/summary", h.handleRunSummary)

	r.Group(func(r chi.Router) {
		r.Use(h.verifier.Middleware)
		r.Post("/sort", h.handleSort)
		r.Post("/purchase", h.handlePurchase)
		r.Post("/regenerate", h.handleRegenerate)
		r.Post("/exports", h.handleExport)
	})
	return r
}

func (h *Handler) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		h.requests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		h.latency.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

func (h *Handler) handleBooks(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", DisplayLimit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	books, err := h.service.Books(r.Context(), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, books)
}

func (h *Handler) handleSort(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Algorithm Algorithm `json:"algorithm"`
		Order     Order     `json:"order"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Order == "" {
		req.Order = OrderID
	}

	result, err := h.service.Sort(r.Context(), req.Algorithm, req.Order)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	algorithm := Algorithm(q.Get("algorithm"))
	if algorithm == "" {
		algorithm = AlgorithmLinear
	}

	var ids []int
	for _, raw := range q["id"] {
		id, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid id %q", raw), http.StatusBadRequest)
			return
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		n, err := intParam(r, "probes", h.probeCount)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if ids, err = h.service.ProbeIDs(r.Context(), n); err != nil {
			h.writeError(w, r, err)
			return
		}
	}

	result, err := h.service.Search(r.Context(), algorithm, ids)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleProbes(w http.ResponseWriter, r *http.Request) {
	n, err := intParam(r, "n", h.probeCount)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ids, err := h.service.ProbeIDs(r.Context(), n)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ids)
}

func (h *Handler) handleTotalValue(w http.ResponseWriter, r *http.Request) {
	total, err := h.service.TotalValue(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"total_value": total})
}

func (h *Handler) handleHighlyRated(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("threshold")
	if raw == "" {
		http.Error(w, "missing threshold", http.StatusBadRequest)
		return
	}
	threshold, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid threshold %q", raw), http.StatusBadRequest)
		return
	}
	books, err := h.service.HighlyRated(r.Context(), threshold)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if books == nil {
		books = []Book{}
	}
	writeJSON(w, http.StatusOK, books)
}

func (h *Handler) handlePurchase(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BookID   int `json:"book_id"`
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	receipt, err := h.service.Purchase(r.Context(), req.BookID, req.Quantity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (h *Handler) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Seed int64 `json:"seed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.service.Regenerate(r.Context(), req.Seed); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.service.ExportCSV(r.Context(), &buf); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="LibraryData.csv"`)
	w.Write(buf.Bytes())
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	if h.sink == nil {
		http.Error(w, "no export sink configured", http.StatusServiceUnavailable)
		return
	}

	var buf bytes.Buffer
	if err := h.service.ExportCSV(r.Context(), &buf); err != nil {
		h.writeError(w, r, err)
		return
	}
	key := fmt.Sprintf("exports/LibraryData-%s.csv", time.Now().UTC().Format("20060102T150405.000Z"))
	location, err := h.sink.Put(r.Context(), key, bytes.NewReader(buf.Bytes()), "text/csv")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"location": location, "driver": string(h.sink.Driver())})
}

func (h *Handler) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 50)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	runs, err := h.service.Runs(r.Context(), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if runs == nil {
		runs = []Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *Handler) handleRunSummary(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.RunSummary(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if stats == nil {
		stats = []RunStats{}
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, ErrorBody{Error: err.Error(), Code: ErrorCode(err)})
}

// ErrorBody is the JSON payload of a failed service call.
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// errorCodes names the sentinel errors that survive the trip over HTTP.
var errorCodes = []struct {
	err  error
	code string
}{
	{ErrBookNotFound, "book_not_found"},
	{ErrInsufficientCopies, "insufficient_copies"},
	{ErrInvalidQuantity, "invalid_quantity"},
	{ErrUnknownAlgorithm, "unknown_algorithm"},
	{ErrUnknownOrder, "unknown_order"},
	{ErrRateLimited, "rate_limited"},
	{ErrTooManyIDs, "too_many_ids"},
	{ErrRunLogDisabled, "run_log_disabled"},
}

// ErrorCode returns the wire code for err, or "" when it wraps no known
// sentinel.
func ErrorCode(err error) string {
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return ""
}

// ErrorForCode is the inverse of ErrorCode. Unknown codes give nil.
func ErrorForCode(code string) error {
	for _, c := range errorCodes {
		if c.code == code {
			return c.err
		}
	}
	return nil
}

// StatusFor maps service errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrUnknownAlgorithm), errors.Is(err, ErrUnknownOrder),
		errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrTooManyIDs):
		return http.StatusBadRequest
	case errors.Is(err, ErrBookNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInsufficientCopies):
		return http.StatusConflict
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrRunLogDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
