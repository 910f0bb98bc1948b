package internal

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAcceptsGzip(t *testing.T) {
	for _, tt := range []struct {
		header string
		want   bool
	}{
		{header: "", want: false},
		{header: "gzip", want: true},
		{header: "deflate, gzip;q=0.8", want: true},
		{header: "br, GZIP", want: true},
		{header: "gzip;q=0", want: false},
		{header: "x-gzip-not", want: false},
	} {
		t.Run(tt.header, func(t *testing.T) {
			if got := acceptsGzip(tt.header); got != tt.want {
				t.Errorf("acceptsGzip(%q) = %v, want %v", tt.header, got, tt.want)
			}
		})
	}
}

func TestGzipMiddleware(t *testing.T) {
	const body = `{"token":"abc"}`
	h := GzipMiddleware(1, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Length", "15")
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, body)
	}))

	t.Run("compressed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/auth", nil)
		req.Header.Set("Accept-Encoding", "gzip")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if got := rec.Header().Get("Content-Encoding"); got != "gzip" {
			t.Fatalf("wanted gzip encoding, got %q", got)
		}
		if got := rec.Header().Get("Content-Length"); got != "" {
			t.Errorf("content length leaked through compression: %q", got)
		}

		gz, err := gzip.NewReader(rec.Body)
		if err != nil {
			t.Fatal(err)
		}
		data, err := io.ReadAll(gz)
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != body {
			t.Errorf("wanted %q, got %q", body, data)
		}
	})

	t.Run("plain", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/auth", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if got := rec.Header().Get("Content-Encoding"); got != "" {
			t.Errorf("wanted no encoding, got %q", got)
		}
		if rec.Body.String() != body {
			t.Errorf("wanted %q, got %q", body, rec.Body.String())
		}
	})
}
