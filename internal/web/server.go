package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/KNICEX/crypto-alert/internal/service/llm"
	"github.com/KNICEX/crypto-alert/internal/service/monitor"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

//go:embed templates/*.html
var templateFS embed.FS

var indexTmpl = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// Monitor 网页需要的监控能力
type Monitor interface {
	Check(ctx context.Context, skipNotify bool) monitor.Summary
	Pending(ctx context.Context) (int, error)
}

type page struct {
	UserMessage string
	Response    string
	IsCheck     bool
	Suppressed  bool
}

type ctxKey struct{}

type Server struct {
	router     *mux.Router
	monitor    Monitor
	chat       llm.Service
	gatherer   prometheus.Gatherer
	suppressed bool
	started    time.Time
}

type Option func(s *Server)

// WithSuppressed 静默部署上网页触发的检查跳过通知
func WithSuppressed(suppressed bool) Option {
	return func(s *Server) {
		s.suppressed = suppressed
	}
}

func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

func NewServer(mon Monitor, chat llm.Service, opts ...Option) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		monitor: mon,
		chat:    chat,
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.chat == nil {
		s.chat = llm.Unavailable{}
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)

	s.router.HandleFunc("/", s.index).Methods(http.MethodGet)
	s.router.HandleFunc("/", s.submit).Methods(http.MethodPost)
	s.router.HandleFunc("/health", s.health).Methods(http.MethodGet)
	if s.gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run 监听直到 ctx 结束, 然后优雅关闭
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("web server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("web server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("web server shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	s.render(w, page{Suppressed: s.suppressed})
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	p := page{Suppressed: s.suppressed}
	switch {
	case r.PostForm.Has("message"):
		p.UserMessage = r.PostForm.Get("message")
		p.Response = s.ask(r.Context(), p.UserMessage)
	case r.PostForm.Has("check_prices"):
		p.IsCheck = true
		p.Response = s.monitor.Check(r.Context(), s.suppressed).String()
	}
	s.render(w, p)
}

func (s *Server) ask(ctx context.Context, prompt string) string {
	ans, err := s.chat.AskOnce(ctx, llm.Question{Content: prompt})
	switch {
	case errors.Is(err, llm.ErrMissingKey):
		return "❌ ERROR: LLM API key is missing on server."
	case errors.Is(err, llm.ErrEmptyPrompt):
		return "Please enter a message."
	case err != nil:
		slog.Error("chat request failed", "request_id", requestID(ctx), "error", err)
		return fmt.Sprintf("Error from LLM: %v", err)
	}
	return ans.Content
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":     "ok",
		"suppressed": s.suppressed,
		"uptime":     time.Since(s.started).Round(time.Second).String(),
	}
	status := http.StatusOK
	if pending, err := s.monitor.Pending(r.Context()); err != nil {
		resp["status"] = "degraded"
		resp["error"] = err.Error()
		status = http.StatusServiceUnavailable
	} else {
		resp["pending_alerts"] = pending
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) render(w http.ResponseWriter, p page) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTmpl.Execute(w, p); err != nil {
		slog.Error("render page failed", "error", err)
	}
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New().String()[:8]
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		slog.Info("http request", "request_id", requestID(r.Context()), "method", r.Method,
			"path", r.URL.Path, "status", rw.status, "duration", time.Since(start))
	})
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
