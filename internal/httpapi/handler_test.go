package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"syscall"
	"testing"
	"time"

	"lanscope/core-go/internal/device"
	"lanscope/core-go/internal/discovery"
	"lanscope/core-go/internal/discoveryworker"
	"lanscope/core-go/internal/inventory"
	"lanscope/core-go/internal/metrics"
)

type fakeInventory struct {
	discoverFn  func(ctx context.Context) ([]device.Record, error)
	inventoryFn func(ctx context.Context) (inventory.InventoryView, error)
	summaryFn   func(ctx context.Context) (inventory.SummaryView, error)
	filteredFn  func(ctx context.Context, c inventory.Criteria) (inventory.FilteredView, error)
	topologyFn  func(ctx context.Context) (inventory.Topology, error)
	apsFn       func(ctx context.Context) ([]device.AccessPoint, error)
	annotateFn  func(key string, a inventory.Annotation) (device.Record, error)
	statusFn    func() inventory.Status
}

func (f fakeInventory) Discover(ctx context.Context) ([]device.Record, error) {
	return f.discoverFn(ctx)
}

func (f fakeInventory) Inventory(ctx context.Context) (inventory.InventoryView, error) {
	return f.inventoryFn(ctx)
}

func (f fakeInventory) Summary(ctx context.Context) (inventory.SummaryView, error) {
	return f.summaryFn(ctx)
}

func (f fakeInventory) Filtered(ctx context.Context, c inventory.Criteria) (inventory.FilteredView, error) {
	return f.filteredFn(ctx, c)
}

func (f fakeInventory) Topology(ctx context.Context) (inventory.Topology, error) {
	return f.topologyFn(ctx)
}

func (f fakeInventory) AccessPoints(ctx context.Context) ([]device.AccessPoint, error) {
	if f.apsFn == nil {
		return nil, nil
	}
	return f.apsFn(ctx)
}

func (f fakeInventory) Annotate(key string, a inventory.Annotation) (device.Record, error) {
	return f.annotateFn(key, a)
}

func (f fakeInventory) Status() inventory.Status {
	if f.statusFn == nil {
		return inventory.Status{}
	}
	return f.statusFn()
}

type fakeRuns struct {
	enqueueFn func(req discoveryworker.Request) (discoveryworker.Request, error)
}

func (f fakeRuns) Enqueue(req discoveryworker.Request) (discoveryworker.Request, error) {
	return f.enqueueFn(req)
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var v map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode body as json: %v\nbody=%s", err, rr.Body.String())
	}
	return v
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	body := decodeBody(t, rr)
	e, ok := body["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected error envelope, got %v", body)
	}
	code, _ := e["code"].(string)
	return code
}

func serve(h *Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rr := httptest.NewRecorder()
	h.Router().ServeHTTP(rr, req)
	return rr
}

func sampleRecord() device.Record {
	r := device.NewRecord("192.168.1.20", "aa:bb:cc:dd:ee:20", time.Unix(1_700_000_000, 0))
	r.Hostname = "living-room"
	r.DeviceType = device.TypeTV
	return r
}

func TestHealthz(t *testing.T) {
	rr := serve(NewHandler(NewLogger("debug"), nil, Options{}), http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestReadyz_NoInventory(t *testing.T) {
	rr := serve(NewHandler(NewLogger("debug"), nil, Options{}), http.MethodGet, "/readyz", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	if code := errorCode(t, rr); code != "inventory_unavailable" {
		t.Fatalf("unexpected code %q", code)
	}
}

func TestDiscover_OK(t *testing.T) {
	h := NewHandler(NewLogger("debug"), fakeInventory{
		discoverFn: func(ctx context.Context) ([]device.Record, error) {
			return []device.Record{sampleRecord()}, nil
		},
	}, Options{})

	rr := serve(h, http.MethodGet, "/api/v1/network/devices/discover", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Devices []device.Record `json:"devices"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Devices) != 1 || resp.Devices[0].Hostname != "living-room" || resp.Devices[0].DeviceType != device.TypeTV {
		t.Fatalf("unexpected devices %+v", resp.Devices)
	}
}

func TestDiscover_EmptyIsArray(t *testing.T) {
	h := NewHandler(NewLogger("debug"), fakeInventory{
		discoverFn: func(ctx context.Context) ([]device.Record, error) { return nil, nil },
	}, Options{})

	rr := serve(h, http.MethodGet, "/api/v1/network/devices/discover", "")
	if got := strings.TrimSpace(rr.Body.String()); got != `{"devices":[]}` {
		t.Fatalf("expected empty array, got %s", got)
	}
}

func TestDiscover_FatalIs500(t *testing.T) {
	h := NewHandler(NewLogger("debug"), fakeInventory{
		discoverFn: func(ctx context.Context) ([]device.Record, error) {
			return nil, fmt.Errorf("driver ssdp: %w", discovery.Fatal(syscall.EMFILE))
		},
	}, Options{})

	rr := serve(h, http.MethodGet, "/api/v1/network/devices/discover", "")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if code := errorCode(t, rr); code != "discovery_failed" {
		t.Fatalf("unexpected code %q", code)
	}
	if strings.Contains(rr.Body.String(), "devices") {
		t.Fatalf("expected no partial devices in failure body, got %s", rr.Body.String())
	}
}

func TestInventory_OK(t *testing.T) {
	h := NewHandler(NewLogger("debug"), fakeInventory{
		inventoryFn: func(ctx context.Context) (inventory.InventoryView, error) {
			return inventory.InventoryView{Devices: []device.Record{sampleRecord()}, TotalCount: 1, OnlineCount: 1, LastScan: 1_700_000_000}, nil
		},
	}, Options{})

	rr := serve(h, http.MethodGet, "/api/v1/network/devices/inventory", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["total_count"].(float64) != 1 || body["online_count"].(float64) != 1 || body["last_scan"].(float64) != 1_700_000_000 {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestSummary_Shape(t *testing.T) {
	h := NewHandler(NewLogger("debug"), fakeInventory{
		summaryFn: func(ctx context.Context) (inventory.SummaryView, error) {
			return inventory.Summarize([]device.Record{sampleRecord()}), nil
		},
	}, Options{})

	rr := serve(h, http.MethodGet, "/api/v1/network/devices/summary", "")
	body := decodeBody(t, rr)
	summary, ok := body["summary"].(map[string]any)
	if !ok || summary["total_devices"].(float64) != 1 || summary["offline_devices"].(float64) != 0 {
		t.Fatalf("unexpected summary %v", body)
	}
	for _, k := range []string{"by_type", "by_vendor", "recent_devices"} {
		if _, ok := body[k]; !ok {
			t.Fatalf("missing %s in %v", k, body)
		}
	}
}

func TestFiltered_PassesCriteriaAndClamps(t *testing.T) {
	var got inventory.Criteria
	h := NewHandler(NewLogger("debug"), fakeInventory{
		filteredFn: func(ctx context.Context, c inventory.Criteria) (inventory.FilteredView, error) {
			got = c
			return inventory.Filter(nil, c, 100), nil
		},
	}, Options{})

	rr := serve(h, http.MethodGet, "/api/v1/network/devices/filtered?device_type=Printer&status=online&tag=trusted&search=hp&page=abc&per_page=-4", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for bad pagination input, got %d", rr.Code)
	}
	if got.DeviceType != "Printer" || got.Status != "online" || got.Tag != "trusted" || got.Search != "hp" {
		t.Fatalf("unexpected criteria %+v", got)
	}
	body := decodeBody(t, rr)
	p := body["pagination"].(map[string]any)
	if p["page"].(float64) != 1 || p["per_page"].(float64) != 20 {
		t.Fatalf("expected clamped pagination, got %v", p)
	}
}

func TestTopology_MapAlias(t *testing.T) {
	h := NewHandler(NewLogger("debug"), fakeInventory{
		topologyFn: func(ctx context.Context) (inventory.Topology, error) {
			return inventory.BuildTopology([]device.Record{sampleRecord()}), nil
		},
	}, Options{})

	for _, path := range []string{"/api/v1/network/devices/topology", "/api/v1/network/devices/map"} {
		rr := serve(h, http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rr.Code)
		}
		var topo inventory.Topology
		if err := json.Unmarshal(rr.Body.Bytes(), &topo); err != nil {
			t.Fatalf("%s: decode: %v", path, err)
		}
		if len(topo.Nodes) != 3 || len(topo.Links) != 2 {
			t.Fatalf("%s: unexpected topology %+v", path, topo)
		}
	}
}

func TestAnnotate(t *testing.T) {
	var gotKey string
	var gotNotes string
	h := NewHandler(NewLogger("debug"), fakeInventory{
		annotateFn: func(key string, a inventory.Annotation) (device.Record, error) {
			gotKey = key
			if a.Notes != nil {
				gotNotes = *a.Notes
			}
			if key == "10.9.9.9" {
				return device.Record{}, inventory.ErrNotFound
			}
			rec := sampleRecord()
			rec.Notes = gotNotes
			return rec, nil
		},
	}, Options{})

	rr := serve(h, http.MethodPut, "/api/v1/network/devices/aa:bb:cc:dd:ee:20/annotations", `{"notes":"tv","tags":["trusted"]}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if gotKey != "aa:bb:cc:dd:ee:20" || gotNotes != "tv" {
		t.Fatalf("unexpected call key=%q notes=%q", gotKey, gotNotes)
	}

	rr = serve(h, http.MethodPut, "/api/v1/network/devices/10.9.9.9/annotations", `{"notes":"x"}`)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}

	rr = serve(h, http.MethodPut, "/api/v1/network/devices/10.0.0.1/annotations", `{"color":"red"}`)
	if rr.Code != http.StatusBadRequest || errorCode(t, rr) != "validation_failed" {
		t.Fatalf("expected strict decode failure, got %d", rr.Code)
	}

	rr = serve(h, http.MethodPut, "/api/v1/network/devices/not-a-key/annotations", `{"notes":"x"}`)
	if rr.Code != http.StatusBadRequest || errorCode(t, rr) != "invalid_key" {
		t.Fatalf("expected invalid key, got %d", rr.Code)
	}
}

func TestAccessPoints_EmptyList(t *testing.T) {
	h := NewHandler(NewLogger("debug"), fakeInventory{}, Options{})
	rr := serve(h, http.MethodGet, "/api/v1/network/aps", "")
	if got := strings.TrimSpace(rr.Body.String()); got != `{"nearby_aps":[]}` {
		t.Fatalf("unexpected body %s", got)
	}
}

func TestDiscoveryRun(t *testing.T) {
	calls := 0
	runs := fakeRuns{enqueueFn: func(req discoveryworker.Request) (discoveryworker.Request, error) {
		calls++
		if calls > 1 {
			return req, discoveryworker.ErrQueueFull
		}
		req.Preset = strings.ToLower(req.Preset)
		return req, nil
	}}
	h := NewHandler(NewLogger("debug"), fakeInventory{}, Options{Runs: runs})

	rr := serve(h, http.MethodPost, "/api/v1/network/discovery/run", `{"preset":"DEEP"}`)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rr.Code)
	}
	if body := decodeBody(t, rr); body["preset"] != "deep" {
		t.Fatalf("unexpected body %v", body)
	}

	rr = serve(h, http.MethodPost, "/api/v1/network/discovery/run", "")
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 when queue is full, got %d", rr.Code)
	}

	noWorker := NewHandler(NewLogger("debug"), fakeInventory{}, Options{})
	rr = serve(noWorker, http.MethodPost, "/api/v1/network/discovery/run", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without worker, got %d", rr.Code)
	}
}

func TestDiscoveryStatus(t *testing.T) {
	h := NewHandler(NewLogger("debug"), fakeInventory{
		statusFn: func() inventory.Status {
			return inventory.Status{Passes: 2, Session: []inventory.Entry{{Message: "pass started"}}}
		},
	}, Options{})
	rr := serve(h, http.MethodGet, "/api/v1/network/discovery/status", "")
	body := decodeBody(t, rr)
	if body["passes"].(float64) != 2 || len(body["session"].([]any)) != 1 {
		t.Fatalf("unexpected status %v", body)
	}
}

func TestMetricsEndpointCountsRequests(t *testing.T) {
	m := metrics.New()
	h := NewHandler(NewLogger("debug"), fakeInventory{}, Options{Metrics: m})

	_ = serve(h, http.MethodGet, "/healthz", "")
	rr := serve(h, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `lanscope_http_requests_total{method="GET",path="/healthz",status="200"} 1`) {
		t.Fatalf("expected request counter, got:\n%s", rr.Body.String())
	}
}

func TestWritePassError_Timeout(t *testing.T) {
	h := NewHandler(NewLogger("debug"), fakeInventory{
		inventoryFn: func(ctx context.Context) (inventory.InventoryView, error) {
			return inventory.InventoryView{}, errors.Join(errors.New("pass"), context.DeadlineExceeded)
		},
	}, Options{})
	rr := serve(h, http.MethodGet, "/api/v1/network/devices/inventory", "")
	if rr.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", rr.Code)
	}
}
