package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MayankTamakuwala/TranscriBelt/internal/api"
	"github.com/MayankTamakuwala/TranscriBelt/internal/config"
	"github.com/MayankTamakuwala/TranscriBelt/internal/logging"
	"github.com/MayankTamakuwala/TranscriBelt/internal/metrics"
	"github.com/MayankTamakuwala/TranscriBelt/internal/services"
)

// RequestIDHeader carries the correlation id echoed on every response.
const RequestIDHeader = "X-Request-ID"

// apiDeps are the services the HTTP surface delegates to.
type apiDeps struct {
	submitter *api.Submitter
	statuses  *api.StatusService
	downloads *api.DownloadService
	review    *api.ReviewService
	health    func(context.Context) api.HealthResponse
	metrics   *metrics.Metrics
}

type apiServer struct {
	cfg    *config.Config
	deps   apiDeps
	logger *slog.Logger

	handler  http.Handler
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, deps apiDeps, logger *slog.Logger) *apiServer {
	s := &apiServer{
		cfg:    cfg,
		deps:   deps,
		logger: logging.NewComponentLogger(logger, "api-server"),
	}

	mux := http.NewServeMux()
	s.route(mux, "POST /upload", s.handleUpload)
	s.route(mux, "GET /status/{job_id}", s.handleStatus)
	s.route(mux, "GET /download/{filename}", s.handleDownload)
	s.route(mux, "GET /folders", s.handleFolders)
	s.route(mux, "GET /folders/{folder_id}/summary", s.handleSummary)
	s.route(mux, "GET /folders/{folder_id}/comments", s.handleListComments)
	s.route(mux, "POST /folders/{folder_id}/comments", s.handleAddComment)
	s.route(mux, "PUT /folders/{folder_id}/comments/{comment_id}", s.handleEditComment)
	s.route(mux, "DELETE /folders/{folder_id}/comments/{comment_id}", s.handleDeleteComment)
	s.route(mux, "GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", deps.metrics.Handler())
	s.handler = mux

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Duration(cfg.API.ReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.API.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.cfg.API.Bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	s.logger.Info("api server listening",
		logging.String("address", listener.Addr().String()),
		logging.String(logging.FieldEventType, "api_listening"),
	)
	return nil
}

func (s *apiServer) stop() {
	if s == nil || s.listener == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("api server shutdown incomplete", logging.Error(err))
	}
	s.listener = nil
}

func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// route registers h under pattern with request ids and metrics. The pattern
// doubles as the metrics route label so ids never become label values.
func (s *apiServer) route(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.Handle(pattern, s.instrument(pattern, h))
}

func (s *apiServer) instrument(route string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)
		r = r.WithContext(services.WithRequestID(r.Context(), requestID))

		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next(rec, r)

		elapsed := time.Since(start)
		s.deps.metrics.HTTPRequest(route, rec.code, elapsed)
		logging.WithContext(r.Context(), s.logger).Debug("request handled",
			logging.String("route", route),
			logging.Int("status", rec.code),
			logging.Duration("duration", elapsed),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	code        int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.code = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// clientKey identifies the submitter for rate limiting. Forwarded headers are
// only honored behind a trusted proxy.
func (s *apiServer) clientKey(r *http.Request) string {
	if s.cfg.API.TrustProxyHeaders {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if first = strings.TrimSpace(first); first != "" {
				return first
			}
		}
		if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
			return realIP
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

// writeError maps err onto the HTTP taxonomy. Server-side failures are
// logged with their cause; the client only sees a generic message.
func (s *apiServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := api.StatusCode(err)
	var throttle *api.ThrottleError
	if errors.As(err, &throttle) {
		seconds := int(throttle.RetryAfter.Round(time.Second) / time.Second)
		if seconds < 1 {
			seconds = 1
		}
		w.Header().Set("Retry-After", fmt.Sprint(seconds))
	}
	if code >= http.StatusInternalServerError {
		details := services.Details(err)
		logging.WithContext(r.Context(), s.logger).Error("request failed",
			logging.String("path", r.URL.Path),
			logging.String(logging.FieldErrorKind, string(details.Kind)),
			logging.String(logging.FieldErrorHint, details.Hint),
			logging.Error(err),
			logging.String(logging.FieldEventType, "request_failed"),
		)
	}
	s.writeJSON(w, code, api.ErrorResponse{Error: api.ClientMessage(err)})
}
