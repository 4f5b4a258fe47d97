package httpserver

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PratikDhanave/capi-relay/internal/config"
	"github.com/PratikDhanave/capi-relay/internal/handlers"
	"github.com/PratikDhanave/capi-relay/internal/meta"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeGraph stands in for graph.facebook.com.
type fakeGraph struct {
	srv      *httptest.Server
	calls    atomic.Int32
	lastPath atomic.Value
	lastBody atomic.Value
}

func newFakeGraph(t *testing.T, status int, body string) *fakeGraph {
	t.Helper()

	g := &fakeGraph{}
	g.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.calls.Add(1)
		g.lastPath.Store(r.URL.Path + "?" + r.URL.RawQuery)
		b, _ := io.ReadAll(r.Body)
		g.lastBody.Store(b)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(g.srv.Close)
	return g
}

func newTestServer(t *testing.T, cfg config.Config, graph *fakeGraph) *httptest.Server {
	t.Helper()

	client := meta.NewClient(graph.srv.URL, "v19.0", cfg.PixelID, cfg.AccessToken, 2*time.Second)
	h := NewRouter(cfg, client, quietLogger(),
		handlers.WithClock(func() time.Time { return time.Unix(1700000000, 0) }),
		handlers.WithEventIDGenerator(func() (string, error) { return "evt_0123456789abcdef01234567", nil }),
	)

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func baseConfig() config.Config {
	return config.Config{
		Port:        "0",
		PixelID:     "123456",
		AccessToken: "tok",
		Timeout:     2 * time.Second,
		CORSOrigins: []string{"*"},
	}
}

func postTrigger(t *testing.T, url, body string) (int, map[string]any) {
	t.Helper()

	req, _ := http.NewRequest(http.MethodPost, url+"/api/trigger-capi", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", "1.2.3.4, 10.0.0.1")
	req.Header.Set("User-Agent", "TestAgent/1.0")

	resp, err := (&http.Client{Timeout: 5 * time.Second}).Do(req)
	if err != nil {
		t.Fatalf("POST trigger failed: %v", err)
	}
	defer resp.Body.Close()

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("invalid json response: %v", err)
	}
	return resp.StatusCode, out
}

func TestRelay_EndToEndSuccess(t *testing.T) {
	cfg := baseConfig()
	cfg.TestCode = "TESTCODE1"
	graph := newFakeGraph(t, http.StatusOK, `{"events_received":1,"fbtrace_id":"F1"}`)
	srv := newTestServer(t, cfg, graph)

	status, out := postTrigger(t, srv.URL, `{"eventName":"Lead","eventUrl":"https://example.com/thanks"}`)

	if status != http.StatusOK || out["success"] != true {
		t.Fatalf("expected 200 success, got %d %v", status, out)
	}
	if graph.calls.Load() != 1 {
		t.Fatalf("expected one call to graph, got %d", graph.calls.Load())
	}
	if p := graph.lastPath.Load().(string); p != "/v19.0/123456/events?access_token=tok" {
		t.Fatalf("unexpected graph path %q", p)
	}

	var sent map[string]any
	if err := json.Unmarshal(graph.lastBody.Load().([]byte), &sent); err != nil {
		t.Fatal(err)
	}
	if sent["test_event_code"] != "TESTCODE1" {
		t.Errorf("test_event_code: got %v", sent["test_event_code"])
	}
	ev := sent["data"].([]any)[0].(map[string]any)
	ud := ev["user_data"].(map[string]any)
	if ud["client_ip_address"] != "1.2.3.4" || ud["client_user_agent"] != "TestAgent/1.0" {
		t.Errorf("user_data: got %v", ud)
	}
	if ev["event_id"] != "evt_0123456789abcdef01234567" || ev["event_time"] != float64(1700000000) {
		t.Errorf("event: got %v", ev)
	}

	metaResp := out["meta_response"].(map[string]any)
	if metaResp["fbtrace_id"] != "F1" {
		t.Errorf("meta_response not relayed: %v", metaResp)
	}
}

func TestRelay_EndToEndProviderError(t *testing.T) {
	graph := newFakeGraph(t, http.StatusBadRequest, `{"error":{"message":"Invalid token","type":"OAuthException","code":190}}`)
	srv := newTestServer(t, baseConfig(), graph)

	status, out := postTrigger(t, srv.URL, `{"eventName":"Lead","eventUrl":"https://example.com/thanks"}`)

	if status != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", status)
	}
	if out["success"] != false || out["error"] != "Invalid token" {
		t.Fatalf("unexpected body %v", out)
	}
	if graph.calls.Load() != 1 {
		t.Fatalf("expected exactly one attempt, got %d", graph.calls.Load())
	}
}

func TestRelay_ValidationNeverReachesGraph(t *testing.T) {
	graph := newFakeGraph(t, http.StatusOK, `{}`)
	srv := newTestServer(t, baseConfig(), graph)

	status, out := postTrigger(t, srv.URL, `{"eventName":"Lead"}`)

	if status != http.StatusBadRequest || out["error"] != "Missing eventName or eventUrl" {
		t.Fatalf("unexpected %d %v", status, out)
	}
	if graph.calls.Load() != 0 {
		t.Fatalf("graph must not be called")
	}
}

func TestRelay_LivenessAndCORS(t *testing.T) {
	graph := newFakeGraph(t, http.StatusOK, `{}`)
	srv := newTestServer(t, baseConfig(), graph)

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || len(b) == 0 {
		t.Fatalf("liveness: got %d %q", resp.StatusCode, b)
	}

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/trigger-capi", nil)
	req.Header.Set("Origin", "https://landing.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")

	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if resp.StatusCode >= 300 {
		t.Fatalf("preflight: got %d", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") == "" {
		t.Fatal("preflight: missing Access-Control-Allow-Origin")
	}
	if graph.calls.Load() != 0 {
		t.Fatal("preflight must not reach graph")
	}
}

func TestNewServer_Timeouts(t *testing.T) {
	cfg := baseConfig()
	cfg.Port = "9090"
	s := NewServer(cfg, http.NotFoundHandler())

	if s.Addr != ":9090" {
		t.Errorf("addr: got %q", s.Addr)
	}
	if s.WriteTimeout <= cfg.Timeout {
		t.Errorf("write timeout %s must exceed outbound timeout %s", s.WriteTimeout, cfg.Timeout)
	}
	if s.ReadHeaderTimeout == 0 {
		t.Error("read header timeout must be set")
	}
}
