package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"diagramport/pkg/backend"
	"diagramport/pkg/export"
)

type stubBackend struct {
	name    string
	probeOK bool
	fail    bool
}

func (s *stubBackend) Name() string               { return s.name }
func (s *stubBackend) Probe(context.Context) bool { return s.probeOK }
func (s *stubBackend) Render(_ context.Context, text string, opts backend.RenderOptions) ([]byte, error) {
	if s.fail {
		return nil, io.ErrUnexpectedEOF
	}
	return []byte("<svg>" + text + "</svg>"), nil
}

func newTestServer(stub *stubBackend) *httptest.Server {
	logger := log.NewWithOptions(io.Discard, log.Options{})
	runner := export.NewRunner(backend.NewSelector(0, stub), nil, nil, logger)
	return httptest.NewServer(New(runner, logger).Handler())
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestRenderEndpoint(t *testing.T) {
	srv := newTestServer(&stubBackend{name: "stub", probeOK: true})
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/render", map[string]any{
		"text":   "flowchart TD\n  A-->B",
		"format": "svg",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/svg+xml" {
		t.Errorf("content type = %q, want image/svg+xml", ct)
	}
	if got := resp.Header.Get("X-Diagramport-Backend"); got != "stub" {
		t.Errorf("backend header = %q, want stub", got)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.HasPrefix(string(body), "<svg>") {
		t.Errorf("unexpected body %q", body)
	}
}

func TestRenderEndpointValidation(t *testing.T) {
	srv := newTestServer(&stubBackend{name: "stub", probeOK: true})
	defer srv.Close()

	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{"missing text", map[string]any{"format": "svg"}, http.StatusBadRequest},
		{"bad format", map[string]any{"text": "x", "format": "gif"}, http.StatusBadRequest},
		{"bad theme", map[string]any{"text": "x", "theme": "solarized"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, srv.URL+"/render", tt.body)
			defer resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
			var e struct {
				Error string `json:"error"`
				Code  string `json:"code"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&e); err != nil {
				t.Fatal(err)
			}
			if e.Error == "" {
				t.Error("error body missing message")
			}
		})
	}
}

func TestRenderEndpointNoBackend(t *testing.T) {
	srv := newTestServer(&stubBackend{name: "stub", probeOK: false})
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/render", map[string]any{"text": "flowchart TD\n  A-->B"})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestExportEndpoint(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "auth.mmd"), []byte("flowchart TD\n  A-->B\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	srv := newTestServer(&stubBackend{name: "stub", probeOK: true})
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/export", map[string]any{"root": dir})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var result export.BatchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if result.Total != 1 || result.Succeeded != 1 {
		t.Errorf("got total=%d succeeded=%d, want 1/1", result.Total, result.Succeeded)
	}
	if result.State != export.StateCompleted {
		t.Errorf("state = %q, want completed", result.State)
	}
}

func TestExportEndpointMissingRoot(t *testing.T) {
	srv := newTestServer(&stubBackend{name: "stub", probeOK: true})
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/export", map[string]any{})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(&stubBackend{name: "stub", probeOK: true})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var health struct {
		Status   string          `json:"status"`
		Backends map[string]bool `json:"backends"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatal(err)
	}
	if health.Status != "ok" {
		t.Errorf("status = %q, want ok", health.Status)
	}
	if !health.Backends["stub"] {
		t.Error("stub backend should report healthy")
	}
}
