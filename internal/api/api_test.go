package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jarness/jarness/internal/runner"
	"github.com/jarness/jarness/pkg/config"
)

func newTestRouter(t *testing.T, apiCfg config.ControlAPIConfig) (http.Handler, *runner.Runner) {
	t.Helper()

	cfg := &config.Config{
		Containers: map[string]*config.ContainerConfig{
			"default": {
				Variant:    config.VariantBootable,
				JarFile:    "app.jar",
				Management: config.ManagementConfig{Host: "127.0.0.1", Port: 10090},
				ConsoleLog: config.ConsoleLogConfig{TailLines: 50},
			},
		},
	}

	r, err := runner.New(cfg, nil)
	if err != nil {
		t.Fatalf("failed to build runner: %v", err)
	}
	t.Cleanup(r.Close)

	return NewRouter(apiCfg, r, nil), r
}

func doRequest(t *testing.T, h http.Handler, method, path string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestListContainers(t *testing.T) {
	router, _ := newTestRouter(t, config.ControlAPIConfig{})

	w := doRequest(t, router, http.MethodGet, "/api/containers")
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", w.Code, w.Body.String())
	}

	var out []struct {
		ID      string `json:"id"`
		Variant string `json:"variant"`
		State   string `json:"state"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected one container, got %d", len(out))
	}
	if out[0].ID != "default" || out[0].Variant != "bootable" || out[0].State != "stopped" {
		t.Fatalf("unexpected summary: %+v", out[0])
	}
}

func TestGetContainer(t *testing.T) {
	router, _ := newTestRouter(t, config.ControlAPIConfig{})

	w := doRequest(t, router, http.MethodGet, "/api/containers/default")
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", w.Code, w.Body.String())
	}

	var out struct {
		ID         string `json:"id"`
		Management string `json:"management"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if out.ID != "default" {
		t.Fatalf("unexpected id: %q", out.ID)
	}
	if out.Management != "http://127.0.0.1:10090/management" {
		t.Fatalf("unexpected management endpoint: %q", out.Management)
	}
}

func TestGetUnknownContainer(t *testing.T) {
	router, _ := newTestRouter(t, config.ControlAPIConfig{})
	w := doRequest(t, router, http.MethodGet, "/api/containers/nope")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestStopStoppedContainer(t *testing.T) {
	router, _ := newTestRouter(t, config.ControlAPIConfig{})
	w := doRequest(t, router, http.MethodPost, "/api/containers/default/stop")
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", w.Code, w.Body.String())
	}
}

func TestConsoleTail(t *testing.T) {
	router, r := newTestRouter(t, config.ControlAPIConfig{})

	capture := r.Instance("default").Container.Console()
	io.WriteString(capture, "line one\nline two\n")

	w := doRequest(t, router, http.MethodGet, "/api/containers/default/console?lines=1")
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", w.Code, w.Body.String())
	}

	var out struct {
		Lines []string `json:"lines"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(out.Lines) != 1 || out.Lines[0] != "line two" {
		t.Fatalf("unexpected tail: %v", out.Lines)
	}
}

func TestTokenAuth(t *testing.T) {
	router, _ := newTestRouter(t, config.ControlAPIConfig{Token: "hunter2"})

	if w := doRequest(t, router, http.MethodGet, "/api/containers"); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
	if w := doRequest(t, router, http.MethodGet, "/api/containers",
		"Authorization", "Bearer wrong"); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", w.Code)
	}
	if w := doRequest(t, router, http.MethodGet, "/api/containers",
		"Authorization", "Bearer hunter2"); w.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", w.Code)
	}
}
