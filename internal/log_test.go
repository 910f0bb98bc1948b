package internal

import (
	"bytes"
	"log"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestErrorLogFilter(t *testing.T) {
	for _, tt := range []struct {
		name    string
		msg     string
		written bool
	}{
		{
			name:    "canceled",
			msg:     "http: proxy error: context canceled",
			written: false,
		},
		{
			name:    "canceled in the middle",
			msg:     "before http: proxy error: context canceled and after",
			written: false,
		},
		{
			name:    "timeout",
			msg:     "http: TLS handshake error from 192.0.2.1:4242: read tcp: i/o timeout",
			written: false,
		},
		{
			name:    "other error",
			msg:     "http: superfluous response.WriteHeader call",
			written: true,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			lg := log.New(&ErrorLogFilter{Unwrap: log.New(&buf, "", 0)}, "", 0)
			lg.Println(tt.msg)

			if !tt.written {
				if buf.Len() != 0 {
					t.Errorf("suppressed message was written: %q", buf.String())
				}
				return
			}

			if !strings.Contains(buf.String(), tt.msg) {
				t.Errorf("message was not written: %q", buf.String())
			}
			if !strings.HasSuffix(buf.String(), "\n") {
				t.Errorf("message is missing newline: %q", buf.String())
			}
		})
	}
}

func TestErrorLogFilterNilUnwrap(t *testing.T) {
	elf := &ErrorLogFilter{}
	n, err := elf.Write([]byte("hello"))
	if err != nil {
		t.Fatal(err)
	}
	if n != 5 {
		t.Errorf("wanted 5 bytes consumed, got %d", n)
	}
}

func TestGetRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	req := httptest.NewRequest("POST", "/auth", nil)
	req.Header.Set("X-Real-Ip", "192.0.2.10")
	req.Header.Set("X-Request-Id", "req-1")

	GetRequestLogger(req).Info("hi")

	for _, want := range []string{`"method":"POST"`, `"path":"/auth"`, `"x-real-ip":"192.0.2.10"`, `"request_id":"req-1"`} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("log line %q is missing %s", buf.String(), want)
		}
	}
}
