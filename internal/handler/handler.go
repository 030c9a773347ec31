package handler

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angeloszaimis/jsonlog/pkg/logger"
)

// RequestIDHeader carries the request id in and out.
const RequestIDHeader = "X-Request-ID"

// RequestLogger binds request_id and client_ip to a per-request Logger,
// stores it in the request context and logs one record per completed
// request. Handlers retrieve it with logger.FromContext(r.Context()).
type RequestLogger struct {
	log  *logger.Logger
	next http.Handler
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	bytes      int
}

func NewRequestLogger(log *logger.Logger, next http.Handler) *RequestLogger {
	return &RequestLogger{
		log:  log,
		next: next,
	}
}

func (rl *RequestLogger) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := strings.TrimSpace(r.Header.Get(RequestIDHeader))
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set(RequestIDHeader, requestID)

	reqLog := rl.log.Bind(
		slog.String("request_id", requestID),
		slog.String("client_ip", extractClientIP(r)),
	)

	start := time.Now()
	wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
	rl.next.ServeHTTP(wrapped, r.WithContext(logger.NewContext(r.Context(), reqLog)))

	reqLog.Log(r.Context(), levelForStatus(wrapped.statusCode), "request completed",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", wrapped.statusCode),
		slog.Int("bytes", wrapped.bytes),
		slog.Duration("duration", time.Since(start)),
		slog.String("user_agent", r.UserAgent()))
}

func levelForStatus(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return logger.LevelError
	case status >= http.StatusBadRequest:
		return logger.LevelWarning
	default:
		return logger.LevelInfo
	}
}

func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(p []byte) (int, error) {
	n, err := r.ResponseWriter.Write(p)
	r.bytes += n
	return n, err
}
