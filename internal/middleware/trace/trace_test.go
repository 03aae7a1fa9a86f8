package trace

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"carteira/internal/log"
)

func TestMiddlewareAssignsRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Output: &buf})

	var seen string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	})
	m := NewMiddleware(func(*http.Request) string { return "9.9.9.9" })
	h := log.Middleware(logger)(m.Middleware(handler))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/transactions?year=2024", nil))

	if !strings.HasPrefix(seen, "req_") {
		t.Fatalf("request id = %q", seen)
	}
	if got := rec.Header().Get(HeaderRequestID); got != seen {
		t.Fatalf("response header %q, context %q", got, seen)
	}
	out := buf.String()
	for _, want := range []string{"HTTP request completed", "request_id=" + seen, "status_code=418", "client_ip=9.9.9.9"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
	if m.GetMetrics().TotalRequests != 1 {
		t.Errorf("metrics = %+v", m.GetMetrics())
	}
}

func TestIncomingRequestID(t *testing.T) {
	tests := []struct {
		header string
		keep   bool
	}{
		{"abc-123_x.y", true},
		{"", false},
		{"has space", false},
		{strings.Repeat("a", 65), false},
		{"<script>", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set(HeaderRequestID, tt.header)
		got := incomingID(r)
		if (got != "") != tt.keep {
			t.Errorf("incomingID(%q) = %q, keep %v", tt.header, got, tt.keep)
		}
	}
}

func TestGetRequestIDMissing(t *testing.T) {
	if id := GetRequestID(httptest.NewRequest(http.MethodGet, "/", nil).Context()); id != "" {
		t.Fatalf("GetRequestID() = %q", id)
	}
}
