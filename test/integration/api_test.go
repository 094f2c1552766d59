package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/eugenenazirov/bluegreen/internal/application"
	"github.com/eugenenazirov/bluegreen/internal/config"
)

type versionBody struct {
	Pool    string `json:"pool"`
	Release string `json:"release"`
	Port    string `json:"port"`
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"APP_POOL", "RELEASE_ID", "PORT", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}
}

// startInstance loads configuration the way a binary does and serves it on a
// loopback port chosen by the kernel.
func startInstance(t *testing.T, defaults config.Defaults) *application.App {
	t.Helper()

	port := "127.0.0.1:0"
	cfg, err := config.Load(defaults, &config.CLIOverrides{Port: &port})
	if err != nil {
		t.Fatalf("config.Load returned error: %v", err)
	}

	app, err := application.New(cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("application.New returned error: %v", err)
	}
	if err := app.Start(); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	t.Cleanup(func() {
		_ = app.Server().Close()
	})
	return app
}

func get(t *testing.T, method, url string) (*http.Response, []byte) {
	t.Helper()

	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, body
}

func TestEnvironmentValuesAreReported(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_POOL", "blue-canary")
	t.Setenv("RELEASE_ID", "2025.10.30-abc123")

	app := startInstance(t, config.BlueDefaults)

	resp, body := get(t, http.MethodGet, "http://"+app.Addr()+"/version")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("expected JSON content type, got %q", ct)
	}

	var got versionBody
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if got.Pool != "blue-canary" || got.Release != "2025.10.30-abc123" || got.Port != "127.0.0.1:0" {
		t.Fatalf("unexpected body: %+v", got)
	}
}

func TestDefaultBodies(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name     string
		defaults config.Defaults
		want     string
	}{
		{name: "blue", defaults: config.BlueDefaults, want: `{"pool":"blue","release":"1.0.0","port":"8080"}`},
		{name: "green", defaults: config.GreenDefaults, want: `{"pool":"green","release":"2.0.0","port":"8080"}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := config.Load(tc.defaults, nil)
			if err != nil {
				t.Fatalf("config.Load returned error: %v", err)
			}
			app, err := application.New(cfg, zaptest.NewLogger(t))
			if err != nil {
				t.Fatalf("application.New returned error: %v", err)
			}

			// Serve through the handler only: the default port may be taken on the test host.
			rec := httptest.NewRecorder()
			app.Server().Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

			if got := rec.Body.String(); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestTwoInstancesDoNotInterfere(t *testing.T) {
	clearEnv(t)

	blue := startInstance(t, config.BlueDefaults)
	green := startInstance(t, config.GreenDefaults)

	if blue.Addr() == green.Addr() {
		t.Fatalf("instances bound to the same address %s", blue.Addr())
	}

	for i := 0; i < 3; i++ {
		for _, tc := range []struct {
			app  *application.App
			pool string
		}{{blue, "blue"}, {green, "green"}} {
			_, body := get(t, http.MethodGet, "http://"+tc.app.Addr()+"/version")
			var got versionBody
			if err := json.Unmarshal(body, &got); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if got.Pool != tc.pool {
				t.Fatalf("instance at %s reported pool %q, want %q", tc.app.Addr(), got.Pool, tc.pool)
			}
		}
	}
}

func TestNotFoundNeverReturnsPayload(t *testing.T) {
	clearEnv(t)
	app := startInstance(t, config.GreenDefaults)
	base := "http://" + app.Addr()

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/version"},
		{http.MethodPut, "/version"},
		{http.MethodDelete, "/version"},
		{http.MethodGet, "/"},
		{http.MethodGet, "/versions"},
		{http.MethodGet, "/version/extra"},
	}

	for _, tc := range cases {
		resp, body := get(t, tc.method, base+tc.path)
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("%s %s: expected 404, got %d", tc.method, tc.path, resp.StatusCode)
		}
		if bytes.Contains(body, []byte(`"release"`)) {
			t.Fatalf("%s %s: version payload leaked", tc.method, tc.path)
		}
	}
}

func TestRepeatedCallsAreByteIdentical(t *testing.T) {
	clearEnv(t)
	app := startInstance(t, config.BlueDefaults)

	_, first := get(t, http.MethodGet, "http://"+app.Addr()+"/version")
	for i := 0; i < 10; i++ {
		_, body := get(t, http.MethodGet, "http://"+app.Addr()+"/version")
		if !bytes.Equal(first, body) {
			t.Fatalf("call %d returned %q, first was %q", i, body, first)
		}
	}
}
