package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/eugenenazirov/bluegreen/internal/config"
)

func newTestHandler(t *testing.T, svc config.ServiceConfig) *Handler {
	t.Helper()

	handler, err := NewHandler(svc)
	if err != nil {
		t.Fatalf("NewHandler returned error: %v", err)
	}
	return handler
}

func TestHandleVersion(t *testing.T) {
	handler := newTestHandler(t, config.ServiceConfig{Pool: "blue", Release: "1.0.0", Port: "8080"})

	req := httptest.NewRequest(http.MethodGet, "/version", nil)
	rec := httptest.NewRecorder()
	handler.handleVersion(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("expected JSON content type, got %q", ct)
	}
	if got, want := rec.Body.String(), `{"pool":"blue","release":"1.0.0","port":"8080"}`; got != want {
		t.Fatalf("unexpected body %q, want %q", got, want)
	}
}

func TestHandleVersionIgnoresRequestInput(t *testing.T) {
	handler := newTestHandler(t, config.ServiceConfig{Pool: "green", Release: "2.0.0", Port: "9001"})

	req := httptest.NewRequest(http.MethodGet, "/version?pool=blue&release=9", strings.NewReader(`{"pool":"blue"}`))
	req.Header.Set("X-Pool", "blue")
	rec := httptest.NewRecorder()
	handler.handleVersion(rec, req)

	var resp versionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Pool != "green" || resp.Release != "2.0.0" || resp.Port != "9001" {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}

func TestHandleVersionRejectsOtherMethods(t *testing.T) {
	handler := newTestHandler(t, config.ServiceConfig{Pool: "blue", Release: "1.0.0", Port: "8080"})

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch, http.MethodHead, http.MethodOptions} {
		t.Run(method, func(t *testing.T) {
			req := httptest.NewRequest(method, "/version", nil)
			rec := httptest.NewRecorder()
			handler.handleVersion(rec, req)

			if rec.Code != http.StatusNotFound {
				t.Fatalf("expected 404 for %s, got %d", method, rec.Code)
			}
			if strings.Contains(rec.Body.String(), `"pool"`) {
				t.Fatalf("version payload leaked for %s", method)
			}
		})
	}
}

func TestHandleVersionIsByteIdentical(t *testing.T) {
	handler := newTestHandler(t, config.ServiceConfig{Pool: "blue", Release: "1.0.0", Port: "8080"})

	var first []byte
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		handler.handleVersion(rec, httptest.NewRequest(http.MethodGet, "/version", nil))
		if first == nil {
			first = rec.Body.Bytes()
			continue
		}
		if !bytes.Equal(first, rec.Body.Bytes()) {
			t.Fatalf("response %d differs: %q vs %q", i, rec.Body.Bytes(), first)
		}
	}
}

func TestNewHandlerEscapesValues(t *testing.T) {
	handler := newTestHandler(t, config.ServiceConfig{Pool: `quo"te`, Release: "<b>", Port: "80"})

	var resp versionResponse
	if err := json.Unmarshal(handler.body, &resp); err != nil {
		t.Fatalf("body is not valid JSON: %v", err)
	}
	if resp.Pool != `quo"te` || resp.Release != "<b>" {
		t.Fatalf("values did not round-trip: %+v", resp)
	}
}

func TestRequestIDFromContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := requestIDFromContext(req.Context()); got != "" {
		t.Fatalf("expected empty request ID, got %q", got)
	}

	ctx := contextWithRequestID(req.Context(), "abc")
	if got := requestIDFromContext(ctx); got != "abc" {
		t.Fatalf("expected abc, got %q", got)
	}
}
