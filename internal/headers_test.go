package internal

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestXForwardedForToXRealIP(t *testing.T) {
	for _, tt := range []struct {
		name     string
		xff      string
		xRealIP  string
		expected string
	}{
		{
			name:     "no headers",
			expected: "",
		},
		{
			name:     "first public hop wins",
			xff:      "1.1.1.1, 10.0.0.1",
			expected: "1.1.1.1",
		},
		{
			name:     "existing x-real-ip is kept",
			xff:      "1.1.1.1",
			xRealIP:  "8.8.8.8",
			expected: "8.8.8.8",
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := XForwardedForToXRealIP(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.Header.Get("X-Real-Ip")
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xRealIP != "" {
				req.Header.Set("X-Real-Ip", tt.xRealIP)
			}

			h.ServeHTTP(httptest.NewRecorder(), req)

			if got != tt.expected {
				t.Errorf("wanted x-real-ip %q, got: %q", tt.expected, got)
			}
		})
	}
}

func TestRemoteXRealIP(t *testing.T) {
	for _, tt := range []struct {
		name        string
		enabled     bool
		bindNetwork string
		remoteAddr  string
		expected    string
	}{
		{
			name:       "disabled",
			remoteAddr: "1.2.3.4:5678",
			expected:   "",
		},
		{
			name:        "tcp",
			enabled:     true,
			bindNetwork: "tcp",
			remoteAddr:  "1.2.3.4:5678",
			expected:    "1.2.3.4",
		},
		{
			name:        "unix",
			enabled:     true,
			bindNetwork: "unix",
			remoteAddr:  "@",
			expected:    "127.0.0.1",
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := RemoteXRealIP(tt.enabled, tt.bindNetwork, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.Header.Get("X-Real-Ip")
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr

			h.ServeHTTP(httptest.NewRecorder(), req)

			if got != tt.expected {
				t.Errorf("wanted x-real-ip %q, got: %q", tt.expected, got)
			}
		})
	}
}

func TestComputeXFFHeader(t *testing.T) {
	for _, tt := range []struct {
		name         string
		remoteAddr   string
		orig         string
		stripPrivate bool
		expected     string
	}{
		{
			name:       "empty header",
			remoteAddr: "1.1.1.1",
			expected:   "1.1.1.1",
		},
		{
			name:       "appends peer",
			remoteAddr: "10.0.0.1",
			orig:       "1.1.1.1, 8.8.8.8",
			expected:   "1.1.1.1,8.8.8.8,10.0.0.1",
		},
		{
			name:         "strips private hops",
			remoteAddr:   "10.0.0.1",
			orig:         "1.1.1.1, 192.168.1.1, 127.0.0.1",
			stripPrivate: true,
			expected:     "1.1.1.1",
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if got := computeXFFHeader(tt.remoteAddr, tt.orig, tt.stripPrivate); got != tt.expected {
				t.Errorf("wanted %q, got: %q", tt.expected, got)
			}
		})
	}
}

func TestNoStoreCache(t *testing.T) {
	h := NoStoreCache(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("wanted Cache-Control no-store, got: %q", got)
	}
}
