// Package metrics provides Prometheus metrics for the lending service.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "obc_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration tracks request latency by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "obc_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// BorrowsTotal counts borrow attempts by outcome.
	BorrowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "obc_borrows_total",
			Help: "Total number of borrow attempts",
		},
		[]string{"outcome"},
	)

	// ReturnsTotal counts completed returns.
	ReturnsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "obc_returns_total",
			Help: "Total number of returned loans",
		},
	)

	// SessionsOpenedTotal counts successful sign-ins. Sessions also end by
	// TTL expiry in Redis, so opened minus closed is not a live count.
	SessionsOpenedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "obc_sessions_opened_total",
			Help: "Total number of sessions opened by sign-in",
		},
	)

	// SessionsClosedTotal counts explicit logouts.
	SessionsClosedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "obc_sessions_closed_total",
			Help: "Total number of sessions closed by logout",
		},
	)

	// RemindersSentTotal counts reminder emails by kind.
	RemindersSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "obc_reminders_sent_total",
			Help: "Total number of reminder notifications sent",
		},
		[]string{"kind"},
	)

	// MailSendErrorsTotal counts failed outbound emails.
	MailSendErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "obc_mail_send_errors_total",
			Help: "Total number of failed email sends",
		},
	)
)

// Middleware records request counts and latency per route.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		path := routePattern(r)

		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rw.statusCode)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// routePattern prefers the mux route template over the raw path so that ids
// do not explode label cardinality.
func routePattern(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return r.URL.Path
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Server serves /metrics on its own port.
type Server struct {
	server *http.Server
	logger *zap.Logger
}

// NewServer creates a metrics server.
func NewServer(port int, logger *zap.Logger) *Server {
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())

	return &Server{
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: metricsMux,
		},
		logger: logger,
	}
}

// Start begins serving metrics in the background.
func (s *Server) Start() {
	go func() {
		s.logger.Info("metrics server starting", zap.String("addr", s.server.Addr))
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("metrics server failed", zap.Error(err))
		}
	}()
}

// Close shuts the metrics server down.
func (s *Server) Close() error {
	return s.server.Close()
}
