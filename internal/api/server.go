package api

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Frederic94500/PRLive-Video-to-S3Audio/internal/convert"
	"github.com/Frederic94500/PRLive-Video-to-S3Audio/internal/metrics"
)

// DefaultMaxBodyBytes bounds POST /upload bodies.
const DefaultMaxBodyBytes int64 = 1 << 20

// Plain-text responses outside the validation reasons.
const (
	MessageSuccess  = "Success"
	MessageBusy     = "Server busy"
	MessageTooLarge = "Request too large"
)

const indexPage = `<!DOCTYPE html>
<html>
<head><title>vts3a</title></head>
<body><h1>vts3a</h1><p>POST a JSON job to /upload.</p></body>
</html>
`

// Config controls the HTTP surface.
type Config struct {
	MaxBodyBytes   int64
	RequestTimeout time.Duration
}

// Server wires HTTP handlers to the job submitter.
type Server struct {
	router    chi.Router
	submitter convert.Submitter
	cfg       Config
	logger    *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(submitter convert.Submitter, cfg Config, logger *zap.Logger) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		submitter: submitter,
		cfg:       cfg,
		logger:    logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(cfg.RequestTimeout))

	r.Get("/", s.index)
	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Post("/upload", s.upload)

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) index(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, indexPage); err != nil {
		s.logger.Warn("index write failed", zap.Error(err))
	}
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeText(w, http.StatusOK, "ok")
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	s.writeText(w, http.StatusOK, "ready")
}

// upload validates synchronously and hands valid jobs to the background pool.
// The response never reflects the job's eventual outcome.
func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	if !isJSON(r.Header.Get("Content-Type")) {
		s.reject(w, &convert.ValidationError{Kind: convert.KindMalformedPayload, Reason: convert.ReasonNotJSON})
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeText(w, http.StatusRequestEntityTooLarge, MessageTooLarge)
			return
		}
		s.reject(w, &convert.ValidationError{Kind: convert.KindMalformedPayload, Reason: convert.ReasonNotJSON})
		return
	}

	job, err := convert.ParseJob(body)
	if err != nil {
		s.reject(w, err)
		return
	}

	// The request context ends with the response; the job must not.
	if err := s.submitter.Submit(context.WithoutCancel(r.Context()), job); err != nil {
		if errors.Is(err, convert.ErrQueueFull) {
			s.logger.Warn("job rejected, pool full", zap.String("uuid", job.UUID))
			s.writeText(w, http.StatusServiceUnavailable, MessageBusy)
			return
		}
		s.logger.Error("job submission failed", zap.String("uuid", job.UUID), zap.Error(err))
		s.writeText(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.logger.Info("job accepted",
		zap.String("uuid", job.UUID),
		zap.String("folder", job.Folder),
		zap.String("url", job.URL),
	)
	s.writeText(w, http.StatusOK, MessageSuccess)
}

func (s *Server) reject(w http.ResponseWriter, err error) {
	kind := "unknown"
	var vErr *convert.ValidationError
	if errors.As(err, &vErr) {
		kind = string(vErr.Kind)
	}
	metrics.ObserveRejected("http", kind)
	s.logger.Info("job rejected", zap.String("kind", kind), zap.String("reason", err.Error()))
	s.writeText(w, http.StatusBadRequest, err.Error())
}

func (s *Server) writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	if _, err := io.WriteString(w, msg); err != nil {
		s.logger.Warn("response write failed", zap.Error(err))
	}
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" ||
		(strings.HasPrefix(mediaType, "application/") && strings.HasSuffix(mediaType, "+json"))
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Debug("request completed",
				zap.String("request_id", requestID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered",
						zap.String("request_id", requestID(r.Context())),
						zap.Any("error", rec),
					)
					w.Header().Set("Content-Type", "text/plain; charset=utf-8")
					w.WriteHeader(http.StatusInternalServerError)
					_, _ = io.WriteString(w, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
