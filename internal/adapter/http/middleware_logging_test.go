package adapthttp

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"prism/internal/app"
	"prism/internal/domain"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggingMiddleware(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s := &Server{log: zap.New(core)}

	var seenID string
	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = requestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("OK"))
	})
	handler := s.loggingMiddleware(nextHandler)

	req := httptest.NewRequest("GET", "/test-path", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusTeapot {
		t.Errorf("Expected status %d, got %d", http.StatusTeapot, w.Code)
	}
	if seenID == "" || w.Header().Get("X-Request-ID") != seenID {
		t.Errorf("request id not propagated: ctx=%q header=%q", seenID, w.Header().Get("X-Request-ID"))
	}

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["method"] != "GET" || fields["path"] != "/test-path" || fields["status"] != int64(418) {
		t.Errorf("Log entry missing expected fields. Got: %v", fields)
	}
}

func TestLoggingMiddleware_KeepsIncomingRequestID(t *testing.T) {
	s := &Server{log: zap.NewNop()}
	handler := s.loggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("expected incoming id, got %q", got)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&domain.ValidationError{Field: "name", Reason: "is required"}, http.StatusBadRequest},
		{fmt.Errorf("meal 3: %w", domain.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("phone %w", domain.ErrDuplicate), http.StatusConflict},
		{app.ErrUserInactive, http.StatusForbidden},
		{app.ErrSessionExpired, http.StatusUnauthorized},
		{fmt.Errorf("%w: timeout", app.ErrModel), http.StatusBadGateway},
		{errTooLarge, http.StatusRequestEntityTooLarge},
		{errInternal, http.StatusInternalServerError},
	}
	for _, tc := range tests {
		if got := statusFor(tc.err); got != tc.want {
			t.Errorf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc", "abc"},
		{"bearer abc", "abc"},
		{"Basic abc", ""},
		{"", ""},
	}
	for _, tc := range tests {
		req := httptest.NewRequest("GET", "/", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		if got := bearerToken(req); got != tc.want {
			t.Errorf("bearerToken(%q) = %q, want %q", tc.header, got, tc.want)
		}
	}
}
