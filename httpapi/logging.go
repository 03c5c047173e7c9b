package httpapi

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"pkt.systems/pslog"
)

// statusWriter records the response status and size. It passes Hijack
// through so websocket upgrades work behind the logging middleware.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (w *statusWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.bytes += int64(n)
	return n, err
}

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	if w.status == 0 {
		w.status = http.StatusSwitchingProtocols
	}
	return h.Hijack()
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

type profileLookupFunc func(*http.Request) string

// withRequestLogging puts a request logger carrying the client address and
// profile on the request context and logs one line per request.
func withRequestLogging(next http.Handler, lookup profileLookupFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log := pslog.Ctx(r.Context()).With("remote", clientIP(r))
		if lookup != nil {
			if profile := lookup(r); profile != "" {
				log = log.With("profile", profile)
			}
		}
		r = r.WithContext(pslog.ContextWithLogger(r.Context(), log))

		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)
		if sw.status == 0 {
			sw.status = http.StatusOK
		}

		kv := []any{
			"method", r.Method,
			"path", r.URL.RequestURI(),
			"status", sw.status,
			"bytes", sw.bytes,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if sw.status >= http.StatusInternalServerError {
			log.Warn("http request", kv...)
			return
		}
		log.Info("http request", kv...)
	})
}

// clientIP prefers the first X-Forwarded-For hop, then the peer host.
func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
