package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"lanscope/core-go/internal/device"
	"lanscope/core-go/internal/discoveryworker"
	"lanscope/core-go/internal/inventory"
	"lanscope/core-go/internal/metrics"
)

// Inventory is the device service behind the API. *inventory.Service
// satisfies this.
type Inventory interface {
	Discover(ctx context.Context) ([]device.Record, error)
	Inventory(ctx context.Context) (inventory.InventoryView, error)
	Summary(ctx context.Context) (inventory.SummaryView, error)
	Filtered(ctx context.Context, c inventory.Criteria) (inventory.FilteredView, error)
	Topology(ctx context.Context) (inventory.Topology, error)
	AccessPoints(ctx context.Context) ([]device.AccessPoint, error)
	Annotate(key string, a inventory.Annotation) (device.Record, error)
	Status() inventory.Status
}

// RunQueue accepts on-demand discovery runs. *discoveryworker.Worker
// satisfies this.
type RunQueue interface {
	Enqueue(req discoveryworker.Request) (discoveryworker.Request, error)
}

type Handler struct {
	log     zerolog.Logger
	inv     Inventory
	runs    RunQueue
	metrics *metrics.Metrics
	timeout time.Duration
}

type Options struct {
	Runs    RunQueue
	Metrics *metrics.Metrics
	// Timeout bounds each request, including a discovery pass it triggers.
	Timeout time.Duration
}

func NewHandler(log zerolog.Logger, inv Inventory, opts Options) *Handler {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Handler{log: log, inv: inv, runs: opts.Runs, metrics: opts.Metrics, timeout: timeout}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(h.timeout))
	r.Use(h.accessLog)

	// Health
	r.Get("/healthz", h.handleHealthz)
	r.Get("/readyz", h.handleReadyZ)
	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())

	// API
	r.Route("/api", func(r chi.Router) {
		r.Route("/v1/network", func(r chi.Router) {
			r.Route("/devices", func(r chi.Router) {
				r.Get("/discover", h.handleDiscover)
				r.Get("/inventory", h.handleInventory)
				r.Get("/summary", h.handleSummary)
				r.Get("/filtered", h.handleFiltered)
				r.Get("/topology", h.handleTopology)
				r.Get("/map", h.handleTopology)
				r.Put("/{key}/annotations", h.handleAnnotate)
			})

			r.Get("/aps", h.handleAccessPoints)

			r.Route("/discovery", func(r chi.Router) {
				r.Post("/run", h.handleDiscoveryRun)
				r.Get("/status", h.handleDiscoveryStatus)
			})
		})
	})

	return r
}

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		h.metrics.ObserveHTTPRequest(r.Method, routePattern(r), status, time.Since(start))

		h.log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("http_request")
	})
}

// routePattern keeps metric labels bounded by using the matched chi pattern
// instead of the raw path.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, msg string, details map[string]any) {
	resp := map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": msg,
		},
	}
	if details != nil {
		resp["error"].(map[string]any)["details"] = details
	}
	h.writeJSON(w, status, resp)
}

func decodeJSONStrict(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return errors.New("unexpected extra data after JSON body")
		}
		return err
	}
	return nil
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleReadyZ(w http.ResponseWriter, r *http.Request) {
	if h.inv == nil {
		h.writeError(w, http.StatusServiceUnavailable, "inventory_unavailable", "inventory not configured", nil)
		return
	}
	st := h.inv.Status()
	h.writeJSON(w, http.StatusOK, map[string]any{"ready": true, "passes": st.Passes})
}

func (h *Handler) ensureInventory(w http.ResponseWriter) bool {
	if h.inv == nil {
		h.writeError(w, http.StatusServiceUnavailable, "inventory_unavailable", "inventory not configured", nil)
		return false
	}
	return true
}

// writePassError maps a failed discovery pass to a response. The partial
// device set of a failed pass is never returned.
func (h *Handler) writePassError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
		h.log.Debug().Err(err).Str("op", op).Msg("client went away during discovery")
		h.writeError(w, http.StatusServiceUnavailable, "canceled", "request canceled", nil)
		return
	}
	if errors.Is(err, context.DeadlineExceeded) {
		h.log.Warn().Err(err).Str("op", op).Msg("discovery pass timed out")
		h.writeError(w, http.StatusGatewayTimeout, "timeout", "discovery pass timed out", nil)
		return
	}
	h.log.Error().Err(err).Str("op", op).Msg("discovery pass failed")
	h.writeError(w, http.StatusInternalServerError, "discovery_failed", "discovery pass failed", map[string]any{"error": err.Error()})
}

type discoverResponse struct {
	Devices []device.Record `json:"devices"`
}

func (h *Handler) handleDiscover(w http.ResponseWriter, r *http.Request) {
	if !h.ensureInventory(w) {
		return
	}
	recs, err := h.inv.Discover(r.Context())
	if err != nil {
		h.writePassError(w, r, "discover", err)
		return
	}
	if recs == nil {
		recs = []device.Record{}
	}
	h.writeJSON(w, http.StatusOK, discoverResponse{Devices: recs})
}

func (h *Handler) handleInventory(w http.ResponseWriter, r *http.Request) {
	if !h.ensureInventory(w) {
		return
	}
	view, err := h.inv.Inventory(r.Context())
	if err != nil {
		h.writePassError(w, r, "inventory", err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	if !h.ensureInventory(w) {
		return
	}
	view, err := h.inv.Summary(r.Context())
	if err != nil {
		h.writePassError(w, r, "summary", err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleFiltered(w http.ResponseWriter, r *http.Request) {
	if !h.ensureInventory(w) {
		return
	}
	view, err := h.inv.Filtered(r.Context(), criteriaFromQuery(r))
	if err != nil {
		h.writePassError(w, r, "filtered", err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

// criteriaFromQuery never rejects input: unparsable page numbers become zero
// and the inventory clamps them to defaults.
func criteriaFromQuery(r *http.Request) inventory.Criteria {
	q := r.URL.Query()
	return inventory.Criteria{
		DeviceType: strings.TrimSpace(q.Get("device_type")),
		Vendor:     strings.TrimSpace(q.Get("vendor")),
		Status:     strings.TrimSpace(q.Get("status")),
		Tag:        strings.TrimSpace(q.Get("tag")),
		Search:     strings.TrimSpace(q.Get("search")),
		Page:       atoiOrZero(q.Get("page")),
		PerPage:    atoiOrZero(q.Get("per_page")),
	}
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func (h *Handler) handleTopology(w http.ResponseWriter, r *http.Request) {
	if !h.ensureInventory(w) {
		return
	}
	topo, err := h.inv.Topology(r.Context())
	if err != nil {
		h.writePassError(w, r, "topology", err)
		return
	}
	h.writeJSON(w, http.StatusOK, topo)
}

type annotationRequest struct {
	Tags  *[]string `json:"tags,omitempty"`
	Notes *string   `json:"notes,omitempty"`
}

func (h *Handler) handleAnnotate(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(chi.URLParam(r, "key"))
	var req annotationRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	if req.Tags == nil && req.Notes == nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "tags or notes required", nil)
		return
	}
	if device.NormalizeMAC(key) == "" && !device.IsValidIPv4(key) {
		h.writeError(w, http.StatusBadRequest, "invalid_key", "device key must be a mac or ipv4 address", map[string]any{"key": key})
		return
	}

	if !h.ensureInventory(w) {
		return
	}

	rec, err := h.inv.Annotate(key, inventory.Annotation{Tags: req.Tags, Notes: req.Notes})
	if err != nil {
		if errors.Is(err, inventory.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "not_found", "device not found", map[string]any{"key": key})
			return
		}
		h.log.Error().Err(err).Str("key", key).Msg("annotate device failed")
		h.writeError(w, http.StatusInternalServerError, "annotate_failed", "failed to annotate device", nil)
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

type accessPointsResponse struct {
	NearbyAPs []device.AccessPoint `json:"nearby_aps"`
}

func (h *Handler) handleAccessPoints(w http.ResponseWriter, r *http.Request) {
	if !h.ensureInventory(w) {
		return
	}
	aps, err := h.inv.AccessPoints(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("access point scan failed")
		h.writeError(w, http.StatusInternalServerError, "scan_failed", "failed to scan access points", nil)
		return
	}
	if aps == nil {
		aps = []device.AccessPoint{}
	}
	h.writeJSON(w, http.StatusOK, accessPointsResponse{NearbyAPs: aps})
}

type discoveryRunRequest struct {
	Preset string   `json:"preset"`
	Tags   []string `json:"tags"`
}

func (h *Handler) handleDiscoveryRun(w http.ResponseWriter, r *http.Request) {
	var req discoveryRunRequest
	if r.ContentLength != 0 {
		if err := decodeJSONStrict(r, &req); err != nil {
			h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
			return
		}
	}
	if h.runs == nil {
		h.writeError(w, http.StatusServiceUnavailable, "worker_unavailable", "discovery worker not running", nil)
		return
	}
	queued, err := h.runs.Enqueue(discoveryworker.Request{Preset: req.Preset, Tags: req.Tags})
	if err != nil {
		if errors.Is(err, discoveryworker.ErrQueueFull) {
			h.writeError(w, http.StatusConflict, "run_pending", "a discovery run is already queued", nil)
			return
		}
		h.log.Error().Err(err).Msg("enqueue discovery run failed")
		h.writeError(w, http.StatusInternalServerError, "enqueue_failed", "failed to queue discovery run", nil)
		return
	}
	h.writeJSON(w, http.StatusAccepted, map[string]any{"status": "queued", "preset": queued.Preset, "tags": queued.Tags})
}

func (h *Handler) handleDiscoveryStatus(w http.ResponseWriter, r *http.Request) {
	if !h.ensureInventory(w) {
		return
	}
	h.writeJSON(w, http.StatusOK, h.inv.Status())
}
