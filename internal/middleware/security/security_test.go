package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestExtractClientIP(t *testing.T) {
	d := NewDetector()
	tests := []struct {
		name   string
		remote string
		xff    string
		want   string
	}{
		{"direct peer", "203.0.113.9:5000", "", "203.0.113.9"},
		{"untrusted peer ignores header", "203.0.113.9:5000", "198.51.100.1", "203.0.113.9"},
		{"trusted proxy forwards", "10.0.0.2:5000", "198.51.100.1, 10.0.0.2", "198.51.100.1"},
		{"trusted proxy bad header", "10.0.0.2:5000", "garbage", "10.0.0.2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if got := d.ExtractClientIP(r); got != tt.want {
				t.Fatalf("ExtractClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDetectorMiddleware(t *testing.T) {
	d := NewDetector()
	h := d.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		method string
		target string
		want   int
	}{
		{http.MethodGet, "/api/v1/companies?q=cairo", http.StatusNoContent},
		{http.MethodGet, "/.env", http.StatusBadRequest},
		{http.MethodGet, "/api/v1/companies?q=1%20union%20select%20*", http.StatusBadRequest},
		{http.MethodGet, "/api/v1/companies?q=union+select", http.StatusBadRequest},
		{http.MethodGet, "/api/v1/companies?q=%3Cscript%3Ealert(1)", http.StatusBadRequest},
		{http.MethodGet, "/api/v1/companies?q=100%25", http.StatusNoContent},
		{"TRACE", "/api/v1/users", http.StatusBadRequest},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.target, nil))
		if rec.Code != tt.want {
			t.Errorf("%s %s: status %d, want %d", tt.method, tt.target, rec.Code, tt.want)
		}
	}
	if d.Suspicious() != 5 {
		t.Fatalf("Suspicious = %d, want 5", d.Suspicious())
	}
}

func TestDecodedQuery(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"q=1%20union%20select", "q=1 union select"},
		{"q=union+select", "q=union select"},
		{"q=%zz", "q=%zz"},
	}
	for _, tt := range tests {
		if got := decodedQuery(tt.raw); got != tt.want {
			t.Errorf("decodedQuery(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestHeadersMiddleware(t *testing.T) {
	h := NewHeadersMiddleware(DefaultHeadersConfig()).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Cache-Control":          "no-store",
	} {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
	if rec.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS must not be sent over plain HTTP")
	}
}
