package net

import (
	"encoding/json"
	"io"
	"math/rand"
	nethttp "net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	server "pipe-rush/server"
	"pipe-rush/server/internal/telemetry"
)

func testMatchConfig() server.Config {
	cfg := server.DefaultConfig()
	cfg.PipeCount = 2
	cfg.MinValue = 100
	cfg.MaxValue = 200
	cfg.MinDelaySecs = 0
	cfg.MaxDelaySecs = 0
	cfg.PipeValueDelaySecs = 0
	return cfg
}

func newTestServer(t *testing.T, cfg server.Config, handlerCfg HTTPHandlerConfig, roster ...string) *httptest.Server {
	t.Helper()
	engine := server.NewEngine(server.EngineConfig{
		Match:  cfg,
		Roster: roster,
		Logger: telemetry.Nop(),
		Rand:   rand.New(rand.NewSource(1)),
	})
	handlerCfg.Logger = telemetry.Nop()
	srv := httptest.NewServer(NewHTTPHandler(engine, handlerCfg))
	t.Cleanup(srv.Close)
	return srv
}

func doRequest(t *testing.T, method, url, token, body string) (*nethttp.Response, string) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := nethttp.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("building request failed: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := nethttp.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body failed: %v", err)
	}
	return resp, strings.TrimSpace(string(data))
}

func TestMissingTokenIsUnauthorized(t *testing.T) {
	srv := newTestServer(t, testMatchConfig(), HTTPHandlerConfig{})

	for _, route := range []struct{ method, path string }{
		{nethttp.MethodGet, "/api/pipe/1/value"},
		{nethttp.MethodPut, "/api/pipe/1"},
		{nethttp.MethodPost, "/api/pipe/1/modifier"},
	} {
		resp, body := doRequest(t, route.method, srv.URL+route.path, "", "")
		if resp.StatusCode != nethttp.StatusUnauthorized {
			t.Fatalf("%s %s status = %d, want 401", route.method, route.path, resp.StatusCode)
		}
		if body != `{"error":"MissingToken"}` {
			t.Fatalf("%s %s body = %s", route.method, route.path, body)
		}
		if resp.Header.Get("WWW-Authenticate") != "Bearer" {
			t.Fatalf("missing WWW-Authenticate challenge")
		}
	}
}

func TestUnknownPlayerOnClosedRoster(t *testing.T) {
	srv := newTestServer(t, testMatchConfig(), HTTPHandlerConfig{}, "alice")

	resp, body := doRequest(t, nethttp.MethodPut, srv.URL+"/api/pipe/1", "mallory", "")
	if resp.StatusCode != nethttp.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	if body != `{"error":"PlayerUnknown"}` {
		t.Fatalf("body = %s", body)
	}
}

func TestInspectValue(t *testing.T) {
	srv := newTestServer(t, testMatchConfig(), HTTPHandlerConfig{}, "alice")

	resp, body := doRequest(t, nethttp.MethodGet, srv.URL+"/api/pipe/1/value", "alice", "")
	if resp.StatusCode != nethttp.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, body)
	}
	var payload struct {
		Value server.Score `json:"value"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		t.Fatalf("decoding body failed: %v", err)
	}
	if payload.Value < 100 || payload.Value > 200 {
		t.Fatalf("value = %d, outside the configured range", payload.Value)
	}
}

func TestCollectReturnsAwardedValue(t *testing.T) {
	srv := newTestServer(t, testMatchConfig(), HTTPHandlerConfig{}, "alice")

	resp, body := doRequest(t, nethttp.MethodPut, srv.URL+"/api/pipe/1", "alice", "")
	if resp.StatusCode != nethttp.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, body)
	}
	var payload struct {
		Value server.Score `json:"value"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		t.Fatalf("decoding body failed: %v", err)
	}
	if payload.Value < 100 || payload.Value > 200 {
		t.Fatalf("value = %d, outside the configured range", payload.Value)
	}
}

func TestInvalidPipeIDIsBadRequest(t *testing.T) {
	srv := newTestServer(t, testMatchConfig(), HTTPHandlerConfig{}, "alice")

	resp, _ := doRequest(t, nethttp.MethodGet, srv.URL+"/api/pipe/abc/value", "alice", "")
	if resp.StatusCode != nethttp.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestUnknownPipeIsNotFound(t *testing.T) {
	srv := newTestServer(t, testMatchConfig(), HTTPHandlerConfig{}, "alice")

	resp, body := doRequest(t, nethttp.MethodPut, srv.URL+"/api/pipe/99", "alice", "")
	if resp.StatusCode != nethttp.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	if body != `{"error":"PipeNotFound"}` {
		t.Fatalf("body = %s", body)
	}
}

func TestApplyModifierWithoutScore(t *testing.T) {
	srv := newTestServer(t, testMatchConfig(), HTTPHandlerConfig{}, "alice")

	resp, body := doRequest(t, nethttp.MethodPost, srv.URL+"/api/pipe/1/modifier", "alice", `{"type":"double"}`)
	if resp.StatusCode != nethttp.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
	if body != `{"error":"InsufficientScore"}` {
		t.Fatalf("body = %s", body)
	}
}

func TestApplyModifierRejectsBadPayload(t *testing.T) {
	srv := newTestServer(t, testMatchConfig(), HTTPHandlerConfig{}, "alice")

	for _, payload := range []string{`{"type":"mega"}`, `{"type":`, ``} {
		resp, _ := doRequest(t, nethttp.MethodPost, srv.URL+"/api/pipe/1/modifier", "alice", payload)
		if resp.StatusCode != nethttp.StatusBadRequest {
			t.Fatalf("payload %q status = %d, want 400", payload, resp.StatusCode)
		}
	}
}

func TestApplyModifierSucceedsAfterEarningScore(t *testing.T) {
	srv := newTestServer(t, testMatchConfig(), HTTPHandlerConfig{}, "alice")

	// A collection funds the purchase; every pipe value covers the cost.
	resp, body := doRequest(t, nethttp.MethodPut, srv.URL+"/api/pipe/1", "alice", "")
	if resp.StatusCode != nethttp.StatusOK {
		t.Fatalf("collect status = %d, body = %s", resp.StatusCode, body)
	}

	resp, body = doRequest(t, nethttp.MethodPost, srv.URL+"/api/pipe/1/modifier", "alice", `{"type":"reverse"}`)
	if resp.StatusCode != nethttp.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, body)
	}
	if body != `{}` {
		t.Fatalf("body = %s, want empty object", body)
	}
}

func TestBusyPlayerIsForbidden(t *testing.T) {
	cfg := testMatchConfig()
	cfg.PipeValueDelaySecs = 0.3
	srv := newTestServer(t, cfg, HTTPHandlerConfig{}, "alice")

	done := make(chan struct{})
	go func() {
		defer close(done)
		doRequest(t, nethttp.MethodGet, srv.URL+"/api/pipe/1/value", "alice", "")
	}()
	time.Sleep(50 * time.Millisecond)

	resp, body := doRequest(t, nethttp.MethodPut, srv.URL+"/api/pipe/1", "alice", "")
	if resp.StatusCode != nethttp.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
	if body != `{"error":"PlayerBusy"}` {
		t.Fatalf("body = %s", body)
	}
	<-done
}

func TestLogsRouteDisabledByDefault(t *testing.T) {
	srv := newTestServer(t, testMatchConfig(), HTTPHandlerConfig{}, "alice")

	resp, _ := doRequest(t, nethttp.MethodGet, srv.URL+"/logs", "", "")
	if resp.StatusCode != nethttp.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestStaticFileHosting(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>scoreboard</h1>"), 0o644); err != nil {
		t.Fatalf("writing fixture failed: %v", err)
	}
	srv := newTestServer(t, testMatchConfig(), HTTPHandlerConfig{ServeDir: dir}, "alice")

	resp, body := doRequest(t, nethttp.MethodGet, srv.URL+"/", "", "")
	if resp.StatusCode != nethttp.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body != "<h1>scoreboard</h1>" {
		t.Fatalf("body = %s", body)
	}
}
