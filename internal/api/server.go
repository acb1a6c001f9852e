// Package api exposes backtests and composite signals over HTTP and websocket.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"whaleflow-lab/internal/backtest"
	"whaleflow-lab/internal/domain"
	"whaleflow-lab/internal/logging"
	"whaleflow-lab/internal/observability"
	"whaleflow-lab/internal/reporting"
	"whaleflow-lab/internal/storage"
)

const (
	// DefaultHistoryWindow is the history range when the request gives no bounds.
	DefaultHistoryWindow = 24 * time.Hour
	// MaxRequestBodyBytes caps a backtest request body.
	MaxRequestBodyBytes = 64 << 10
)

// BacktestRunner runs one backtest. Implemented by *backtest.Runner.
type BacktestRunner interface {
	Run(ctx context.Context, cfg domain.BacktestConfig) (*reporting.BacktestReport, error)
}

// Options configures a Server.
type Options struct {
	Addr     string
	Runner   BacktestRunner
	Signals  storage.CompositeSignalStore
	Hub      *Hub
	Defaults domain.BacktestConfig // applied to fields a request omits

	Logger *zap.Logger
	Now    func() time.Time
}

// Server is the HTTP surface of whaleflow.
type Server struct {
	router   *mux.Router
	server   *http.Server
	runner   BacktestRunner
	signals  storage.CompositeSignalStore
	hub      *Hub
	defaults domain.BacktestConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewServer creates a new Server and registers its routes.
func NewServer(opts Options) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		runner:   opts.Runner,
		signals:  opts.Signals,
		hub:      opts.Hub,
		defaults: opts.Defaults,
		logger:   logging.OrNop(opts.Logger),
		now:      opts.Now,
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	s.setupRoutes()
	s.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.requestLoggingMiddleware)

	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", observability.Handler()).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/backtest", s.handleBacktest).Methods(http.MethodPost)
	api.HandleFunc("/signals/{token}", s.handleLatestSignal).Methods(http.MethodGet)
	api.HandleFunc("/signals/{token}/history", s.handleSignalHistory).Methods(http.MethodGet)

	if s.hub != nil {
		s.router.Handle("/ws/signals", s.hub).Methods(http.MethodGet)
	}

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.server.Addr))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return ctx.Err()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleBacktest runs one backtest. The body is a BacktestConfig; omitted
// fields take the server defaults. ?format=markdown returns the rendered report.
func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	if s.runner == nil {
		writeError(w, http.StatusServiceUnavailable, "backtest runner not configured")
		return
	}

	cfg := s.defaults
	cfg.Tokens = nil
	cfg.StartMs = nil
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxRequestBodyBytes))
	dec.DisallowUnknownFields()
	// An empty body, chunked or not, runs with the defaults.
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	report, err := s.runner.Run(r.Context(), cfg)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, backtest.ErrInvalidConfig), errors.Is(err, backtest.ErrNoTokens):
			status = http.StatusBadRequest
		case errors.Is(err, backtest.ErrDeadlineExceeded):
			status = http.StatusGatewayTimeout
		}
		s.logger.Warn("backtest request failed", zap.Int("status", status), zap.Error(err))
		writeError(w, status, err.Error())
		return
	}

	if strings.EqualFold(r.URL.Query().Get("format"), "markdown") {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(reporting.RenderMarkdown(report)))
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleLatestSignal(w http.ResponseWriter, r *http.Request) {
	if s.signals == nil {
		writeError(w, http.StatusServiceUnavailable, "signal store not configured")
		return
	}
	token := strings.ToUpper(mux.Vars(r)["token"])

	sig, err := s.signals.GetLatest(r.Context(), token)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no composite signal for "+token)
			return
		}
		s.logger.Error("get latest signal", zap.String("token", token), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, sig)
}

// handleSignalHistory returns signals in [from, to] (unix ms). Missing bounds
// default to the last DefaultHistoryWindow.
func (s *Server) handleSignalHistory(w http.ResponseWriter, r *http.Request) {
	if s.signals == nil {
		writeError(w, http.StatusServiceUnavailable, "signal store not configured")
		return
	}
	token := strings.ToUpper(mux.Vars(r)["token"])

	to := s.now().UnixMilli()
	from := to - DefaultHistoryWindow.Milliseconds()
	var err error
	if v := r.URL.Query().Get("to"); v != "" {
		if to, err = strconv.ParseInt(v, 10, 64); err != nil {
			writeError(w, http.StatusBadRequest, "invalid to: "+v)
			return
		}
		from = to - DefaultHistoryWindow.Milliseconds()
	}
	if v := r.URL.Query().Get("from"); v != "" {
		if from, err = strconv.ParseInt(v, 10, 64); err != nil {
			writeError(w, http.StatusBadRequest, "invalid from: "+v)
			return
		}
	}
	if from > to {
		writeError(w, http.StatusBadRequest, "from must not be after to")
		return
	}

	signals, err := s.signals.GetByTimeRange(r.Context(), token, from, to)
	if err != nil {
		s.logger.Error("get signal history", zap.String("token", token), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if signals == nil {
		signals = []*domain.CompositeSignal{}
	}
	writeJSON(w, http.StatusOK, signals)
}

type requestIDKey struct{}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()[:8]
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		observability.RecordHTTPRequest(route, strconv.Itoa(wrapper.statusCode))

		requestID, _ := r.Context().Value(requestIDKey{}).(string)
		s.logger.Debug("http request",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", wrapper.statusCode),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// responseWrapper captures the status code. Hijack is forwarded so websocket
// upgrades pass through the middleware chain.
type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWrapper) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

func (rw *responseWrapper) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
