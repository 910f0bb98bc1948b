package internal

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"
)

var gzipWriters = map[int]*sync.Pool{}
var gzipWritersLock sync.Mutex

func gzipPool(level int) *sync.Pool {
	gzipWritersLock.Lock()
	defer gzipWritersLock.Unlock()

	p, ok := gzipWriters[level]
	if !ok {
		p = &sync.Pool{
			New: func() any {
				gz, err := gzip.NewWriterLevel(io.Discard, level)
				if err != nil {
					panic(err)
				}
				return gz
			},
		}
		gzipWriters[level] = p
	}

	return p
}

// GzipMiddleware compresses responses for clients that accept gzip. HEAD
// requests pass through untouched.
func GzipMiddleware(level int, next http.Handler) http.Handler {
	if _, err := gzip.NewWriterLevel(io.Discard, level); err != nil {
		panic(err)
	}
	pool := gzipPool(level)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Accept-Encoding")

		if r.Method == http.MethodHead || !acceptsGzip(r.Header.Get("Accept-Encoding")) {
			next.ServeHTTP(w, r)
			return
		}

		gz := pool.Get().(*gzip.Writer)
		gz.Reset(w)
		defer func() {
			gz.Close()
			pool.Put(gz)
		}()

		w.Header().Set("Content-Encoding", "gzip")
		next.ServeHTTP(&gzipResponseWriter{ResponseWriter: w, sink: gz}, r)
	})
}

func acceptsGzip(header string) bool {
	for _, part := range strings.Split(header, ",") {
		coding, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if !strings.EqualFold(strings.TrimSpace(coding), "gzip") {
			continue
		}

		if strings.ReplaceAll(strings.TrimSpace(params), " ", "") == "q=0" {
			return false
		}

		return true
	}

	return false
}

type gzipResponseWriter struct {
	http.ResponseWriter
	sink *gzip.Writer
}

func (w *gzipResponseWriter) WriteHeader(status int) {
	w.Header().Del("Content-Length")
	w.ResponseWriter.WriteHeader(status)
}

func (w *gzipResponseWriter) Write(b []byte) (int, error) {
	return w.sink.Write(b)
}
