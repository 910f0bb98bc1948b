package internal

import (
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/TecharoHQ/webauth"
)

func InitSlog(level string) {
	var programLevel slog.Level
	if err := (&programLevel).UnmarshalText([]byte(level)); err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %s: %v, using info\n", level, err)
		programLevel = slog.LevelInfo
	}

	leveler := &slog.LevelVar{}
	leveler.Set(programLevel)

	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		AddSource: true,
		Level:     leveler,
	})
	slog.SetDefault(slog.New(h).With("service", "webauth", "version", webauth.Version))
}

// GetRequestLogger returns a logger carrying the request attributes every
// handler log line should have.
func GetRequestLogger(r *http.Request) *slog.Logger {
	attrs := []any{
		"method", r.Method,
		"path", r.URL.Path,
		"user_agent", r.UserAgent(),
		"x-forwarded-for", r.Header.Get("X-Forwarded-For"),
		"x-real-ip", r.Header.Get("X-Real-Ip"),
	}

	if id := r.Header.Get("X-Request-Id"); id != "" {
		attrs = append(attrs, "request_id", id)
	}

	return slog.With(attrs...)
}

// Lines the net/http server logs when clients go away mid-request.
var suppressedHTTPErrors = []string{
	"context canceled",
	"client disconnected",
	"i/o timeout",
}

// ErrorLogFilter drops net/http server log lines caused by clients going
// away and forwards everything else to Unwrap.
type ErrorLogFilter struct {
	Unwrap *log.Logger
}

func (elf *ErrorLogFilter) Write(p []byte) (int, error) {
	msg := string(p)
	for _, s := range suppressedHTTPErrors {
		if strings.Contains(msg, s) {
			return len(p), nil
		}
	}

	if elf.Unwrap == nil {
		return len(p), nil
	}

	return elf.Unwrap.Writer().Write(p)
}

func GetFilteredHTTPLogger() *log.Logger {
	return log.New(&ErrorLogFilter{Unwrap: log.New(os.Stderr, "", log.LstdFlags)}, "", 0)
}
