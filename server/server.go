package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	logging "github.com/ipfs/go-log/v2"
	"go.uber.org/atomic"
	"golang.org/x/xerrors"

	"github.com/rqzrqh/multisig_coordinator/engine"
	"github.com/rqzrqh/multisig_coordinator/executor"
)

var log = logging.Logger("server")

type Config struct {
	Listen          string
	ShutdownTimeout time.Duration
}

type Server struct {
	cfg      Config
	engine   *engine.Engine
	executor *executor.Executor
	ready    atomic.Bool
}

func NewServer(cfg Config, eng *engine.Engine, exec *executor.Executor) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	return &Server{cfg: cfg, engine: eng, executor: exec}
}

// SetReady flips the health check. The server reports unavailable until
// startup checks pass and again once shutdown begins.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(accessLog)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "no route for "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", r.Method+" not allowed on "+r.URL.Path)
	})

	r.Get("/health", s.health)

	r.Post("/api/user", s.linkOwner)
	r.Get("/api/user", s.lookupOwner)
	r.Post("/api/owners", s.grantOwnership)

	r.Post("/api/requests", s.propose)
	r.Get("/api/requests", s.listRequests)
	r.Get("/api/requests/{account}", s.getRequest)
	r.Get("/api/requests/{account}/message", s.signingMessage)
	r.Post("/api/requests/{account}/status", s.setStatus)
	r.Post("/api/requests/{account}/executed", s.markExecuted)
	r.Post("/api/requests/{account}/execute", s.execute)

	r.Post("/api/signatures", s.submitSignature)
	return r
}

// Serve handles requests on l until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		s.SetReady(false)
		sctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Warnw("shutdown", "err", err)
		}
	}()

	log.Infow("http server listening", "addr", l.Addr().String())
	err := srv.Serve(l)
	if xerrors.Is(err, http.ErrServerClosed) {
		<-done
		return nil
	}
	return err
}

func (s *Server) ListenAndServe(ctx context.Context) error {
	l, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return xerrors.Errorf("listen %s: %w", s.cfg.Listen, err)
	}
	return s.Serve(ctx, l)
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Debugw("http", "method", r.Method, "path", r.URL.Path, "status", ww.Status(), "took", time.Since(start))
	})
}
