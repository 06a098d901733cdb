package httpserver

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMethodOverride(t *testing.T) {
	tests := []struct {
		name, method, target, body, want string
	}{
		{"query", http.MethodPost, "/x?_method=DELETE", "", http.MethodDelete},
		{"form field", http.MethodPost, "/x", "_method=put", http.MethodPut},
		{"patch", http.MethodPost, "/x", "_method=PATCH", http.MethodPatch},
		{"unsupported verb", http.MethodPost, "/x?_method=TRACE", "", http.MethodPost},
		{"only on post", http.MethodGet, "/x?_method=DELETE", "", http.MethodGet},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := MethodOverride(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { got = r.Method }))
			req := httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body))
			if tt.body != "" {
				req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			if got != tt.want {
				t.Fatalf("want %s, got %s", tt.want, got)
			}
		})
	}
}

func TestStatusRecorder(t *testing.T) {
	rec := &statusRecorder{ResponseWriter: httptest.NewRecorder()}
	if rec.status() != http.StatusOK {
		t.Fatalf("default status: %d", rec.status())
	}
	rec.WriteHeader(http.StatusTeapot)
	_, _ = rec.Write([]byte("short"))
	if rec.status() != http.StatusTeapot || rec.bytes != 5 {
		t.Fatalf("got %d / %d bytes", rec.status(), rec.bytes)
	}
}

func TestClientHost(t *testing.T) {
	for in, want := range map[string]string{
		"10.0.0.1:5555": "10.0.0.1",
		"[::1]:80":      "::1",
		"10.0.0.2":      "10.0.0.2",
	} {
		if got := clientHost(in); got != want {
			t.Fatalf("clientHost(%q) = %q, want %q", in, got, want)
		}
	}
}
