package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDetectSuspiciousRequest(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		target     string
		userAgent  string
		suspicious bool
	}{
		{"plain api call", http.MethodGet, "/api/insights/spend-series?month=2026-02", "curl/8.5.0", false},
		{"script client", http.MethodGet, "/api/budgets/performance?month=2026-02", "python-requests/2.31", false},
		{"wp scan", http.MethodGet, "/wp-admin/setup.php", "Mozilla/5.0", true},
		{"path traversal", http.MethodGet, "/../../etc/passwd", "Mozilla/5.0", true},
		{"injection in query", http.MethodGet, "/api/insights/merchants?sort=union%20select", "Mozilla/5.0", true},
		{"scanner agent", http.MethodGet, "/api/insights/merchants?month=2026-02", "sqlmap/1.7", true},
		{"trace method", http.MethodTrace, "/healthz", "Mozilla/5.0", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDetector()
			r := httptest.NewRequest(tt.method, tt.target, nil)
			r.Header.Set("User-Agent", tt.userAgent)
			if got := d.DetectSuspiciousRequest(r); got != tt.suspicious {
				t.Errorf("DetectSuspiciousRequest() = %v, want %v", got, tt.suspicious)
			}
		})
	}
}

func TestDefaultHeaders(t *testing.T) {
	m := NewHeadersMiddleware(DefaultHeadersConfig())
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/budgets/targets", nil))

	if got := rec.Header().Get("Content-Security-Policy"); got != "default-src 'none'; frame-ancestors 'none'; base-uri 'none'" {
		t.Errorf("CSP = %q", got)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", got)
	}
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	// HSTS only applies to TLS connections
	if got := rec.Header().Get("Strict-Transport-Security"); got != "" {
		t.Errorf("Strict-Transport-Security = %q, want unset over plain HTTP", got)
	}
}

func TestExtractClientIPHonorsTrustedProxyOnly(t *testing.T) {
	d := NewDetector()

	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	r.RemoteAddr = "127.0.0.1:4123"
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if got := d.ExtractClientIP(r); got != "203.0.113.9" {
		t.Errorf("behind trusted proxy: ip = %q, want 203.0.113.9", got)
	}

	r = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	r.RemoteAddr = "198.51.100.7:4123"
	r.Header.Set("X-Forwarded-For", "203.0.113.9")
	if got := d.ExtractClientIP(r); got != "198.51.100.7" {
		t.Errorf("untrusted peer: ip = %q, want 198.51.100.7", got)
	}
}
