// Package server exposes the request layer over HTTP so the dashboard editor
// can preview a widget request from the backend.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	rslt "github.com/stdutil/result"
	"go.uber.org/zap"

	"github.com/stdutil/dashhttp"
	"github.com/stdutil/dashhttp/internal/app"
	"github.com/stdutil/dashhttp/internal/config"
	"github.com/stdutil/dashhttp/notify"
	"github.com/stdutil/dashhttp/session"
)

// AllowList holds the paths served without a session token
var AllowList = []string{
	"/sys/auth-login",
	"/project/getData",
}

type ctxKey struct{}

type (
	// Server is the preview API
	Server struct {
		app    *app.App
		router chi.Router
		logger *zap.Logger
	}

	// PreviewRequest is the body of the preview endpoints
	PreviewRequest struct {
		Target *dashhttp.RequestConfig       `json:"target"`
		Global *dashhttp.GlobalRequestConfig `json:"global"`
	}

	// PreviewResponse is the result envelope plus the notifications raised
	// while assembling the call
	PreviewResponse struct {
		dashhttp.ResultData
		Notices []notify.Message `json:"notices,omitempty"`
	}
)

// New creates the server
func New(a *app.App) *Server {
	s := &Server{
		app:    a,
		router: chi.NewRouter(),
		logger: a.Logger.With(zap.String("component", "server")),
	}
	switch a.Config.Session.Backend {
	case config.SessionFile, config.SessionRedis:
		s.logger.Warn("session backend is not served to remote callers",
			zap.String("session", a.Config.Session.Backend))
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.sessionMiddleware)
		r.Post("/project/getData", s.handleGetData)
		r.Post("/request/build", s.handleBuild)
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
	s.router.ServeHTTP(ww, r)
	s.logger.Info("http_request",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", ww.Status()),
		zap.Duration("elapsed", time.Since(start)))
}

// HTTPServer creates an *http.Server ready to ListenAndServe.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.app.Config.Server.Addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Run serves until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	hs := s.HTTPServer()
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", hs.Addr))
		errCh <- hs.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// sessionMiddleware picks the session store of the request. With the jwt
// backend the bearer token is required outside AllowList and must be valid
// when present. Other backends give remote callers no session.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var token string
		if s.app.Config.Session.Backend == config.SessionJWT {
			t, err := session.BearerToken(r)
			if err != nil && !allowed(r.URL.Path) {
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}
			token = t
		}
		store := s.app.CallerStore(token)
		if token != "" {
			if _, err := store.Load(r.Context()); err != nil {
				s.logger.Warn("session token rejected", zap.Error(err))
				writeError(w, http.StatusUnauthorized, "invalid session token")
				return
			}
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, store)))
	})
}

func allowed(path string) bool {
	for _, p := range AllowList {
		if strings.HasSuffix(path, p) {
			return true
		}
	}
	return false
}

func storeFrom(ctx context.Context) session.Store {
	st, _ := ctx.Value(ctxKey{}).(session.Store)
	return st
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetData(w http.ResponseWriter, r *http.Request) {
	var in PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	rec := notify.NewRecorder()
	resp, err := s.app.Assembler(rec, storeFrom(r.Context())).
		Customize(r.Context(), in.Target, in.Global)
	if err != nil {
		s.logger.Warn("preview request failed", zap.Error(err))
	}
	writeJSON(w, statusOf(err), PreviewResponse{
		ResultData: dashhttp.DecodeResult(resp, err),
		Notices:    rec.Messages(),
	})
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	var in PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	rec := notify.NewRecorder()
	req, err := s.app.Assembler(rec, storeFrom(r.Context())).
		Build(r.Context(), in.Target, in.Global)

	out := PreviewResponse{
		ResultData: dashhttp.ResultData{Result: rslt.InitResult()},
		Notices:    rec.Messages(),
	}
	switch {
	case err != nil:
		out.Result.AddErr(err)
		out.Return(rslt.EXCEPTION)
	case req != nil:
		b, merr := json.Marshal(s.app.Describe(req))
		if merr != nil {
			out.Result.AddErr(merr)
			out.Return(rslt.EXCEPTION)
			break
		}
		out.Data = b
		out.Return(rslt.OK)
	default:
		out.Return(rslt.OK)
	}
	writeJSON(w, statusOf(err), out)
}

// statusOf maps an assembly or transport error to a response status
func statusOf(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, dashhttp.ErrInvalidConfig),
		errors.Is(err, dashhttp.ErrInvalidBody),
		errors.Is(err, dashhttp.ErrInvalidURL),
		errors.Is(err, dashhttp.ErrInvalidParams):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
