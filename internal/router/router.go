package router

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-fanscore-go/internal/artist"
	"github.com/ovaphlow/pitchfork/service-fanscore-go/internal/cohort"
	"github.com/ovaphlow/pitchfork/service-fanscore-go/internal/fan"
	"github.com/ovaphlow/pitchfork/service-fanscore-go/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-fanscore-go/internal/snapshot"
	"github.com/ovaphlow/pitchfork/service-fanscore-go/internal/verification"
)

// statusRecorder remembers what a handler wrote so middleware can log and
// count it afterwards.
type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.size += n
	return n, err
}

func (sr *statusRecorder) code() int {
	if sr.status == 0 {
		return http.StatusOK
	}
	return sr.status
}

// LoggingMiddleware logs every request at debug level and server errors at warn.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)
			kv := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", rec.code(),
				"duration_ms", float64(time.Since(start).Microseconds()) / 1000.0,
				"size", rec.size,
			}
			if rec.code() >= http.StatusInternalServerError {
				logger.Warnw("http request failed", kv...)
				return
			}
			logger.Debugw("http request", kv...)
		})
	}
}

// SecurityHeadersMiddleware sets headers for a JSON API that also serves
// tokens: nothing may be framed, sniffed or cached.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Cache-Control", "no-store")
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			if r.TLS != nil {
				h.Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// MetricsMiddleware records request counts and latencies, labelled with the
// matched ServeMux pattern rather than the raw path.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)
			path := r.Pattern
			if path == "" {
				path = "unmatched"
			}
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.code())).Inc()
			metrics.HTTPResponseTime.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// Handlers groups the feature handlers mounted by RegisterRoutes.
type Handlers struct {
	Fan          *fan.Handler
	Cohort       *cohort.Handler
	Snapshot     *snapshot.Handler
	Verification *verification.Handler
	Artist       *artist.Handler
}

const prefix = "/fanscore-api"

// RegisterRoutes mounts HTTP handlers using the standard library's http.ServeMux.
func RegisterRoutes(logger *zap.SugaredLogger, h Handlers) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET "+prefix+"/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET "+prefix+"/artists", h.Artist.List)
	mux.HandleFunc("POST "+prefix+"/artists", h.Artist.Create)
	mux.HandleFunc("GET "+prefix+"/artists/{artistID}", h.Artist.Get)

	mux.HandleFunc("POST "+prefix+"/artists/{artistID}/metrics", h.Fan.Ingest)
	mux.HandleFunc("POST "+prefix+"/artists/{artistID}/fans/{fanID}/recalculate", h.Fan.Recalculate)
	mux.HandleFunc("GET "+prefix+"/artists/{artistID}/fans/{fanID}/score", h.Fan.Score)
	mux.HandleFunc("GET "+prefix+"/artists/{artistID}/fans/{fanID}/events", h.Fan.Events)
	mux.HandleFunc("GET "+prefix+"/artists/{artistID}/fans/{fanID}/tokens", h.Verification.Tokens)

	mux.HandleFunc("GET "+prefix+"/artists/{artistID}/scr", h.Cohort.SCR)
	mux.HandleFunc("GET "+prefix+"/artists/{artistID}/history", h.Cohort.History)
	mux.HandleFunc("POST "+prefix+"/artists/{artistID}/snapshots", h.Snapshot.Run)

	mux.HandleFunc("POST "+prefix+"/tokens", h.Verification.Issue)
	mux.HandleFunc("POST "+prefix+"/tokens/revoke", h.Verification.Revoke)
	mux.HandleFunc("POST "+prefix+"/tokens/export", h.Verification.Export)
	mux.HandleFunc("GET "+prefix+"/tokens/qr", h.Verification.QR)
	mux.HandleFunc("POST "+prefix+"/verify", h.Verification.Verify)
	mux.HandleFunc("POST "+prefix+"/verify/export", h.Verification.VerifyExport)

	// the mux fills in r.Pattern, which MetricsMiddleware reads after the call returns
	return LoggingMiddleware(logger)(SecurityHeadersMiddleware()(MetricsMiddleware()(mux)))
}
