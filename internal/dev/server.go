package dev

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/shipsite/shipsite/internal/build"
	"github.com/shipsite/shipsite/internal/config"
	"github.com/shipsite/shipsite/internal/errors"
	"github.com/shipsite/shipsite/internal/metrics"
)

// ServerOptions configures the preview server.
type ServerOptions struct {
	// Config is the project configuration.
	Config *config.Config

	// Logger receives server logs. If nil, slog.Default() is used.
	Logger *slog.Logger

	// Metrics records build metrics. May be nil.
	Metrics *metrics.Metrics

	// OnBuild is called after every build with its result or error.
	OnBuild func(result *build.Result, err error)

	// OnReload is called when browsers are reloaded.
	OnReload func(clients int)
}

// Server is the preview server.
type Server struct {
	config       *config.Config
	options      ServerOptions
	logger       *slog.Logger
	builder      *build.Builder
	watcher      *Watcher
	reloadServer *ReloadServer
	changeCh     chan []Change

	mu         sync.Mutex
	buildMu    sync.Mutex
	running    bool
	httpServer *http.Server
}

// NewServer creates a new preview server.
func NewServer(options ServerOptions) *Server {
	cfg := options.Config
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:  cfg,
		options: options,
		logger:  logger,
		builder: build.New(cfg, build.Options{Logger: logger, Metrics: options.Metrics}),
		watcher: NewWatcher(WatcherConfig{
			Paths:    WatchPaths(cfg),
			Ignore:   append(append([]string(nil), DefaultIgnore...), cfg.Serve.Ignore...),
			SkipDirs: []string{cfg.OutputPath()},
		}),
	}
	if cfg.Serve.HotReload {
		s.reloadServer = NewReloadServer(logger)
	}
	return s
}

// Handler returns the HTTP handler serving the output directory.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.NoCache)
	r.Use(s.requestLogging)

	if s.reloadEnabled() {
		r.Get(ReloadPath, s.reloadServer.ServeHTTP)
	}
	r.Get("/*", s.serveStatic)
	r.Head("/*", s.serveStatic)
	return r
}

// Start builds the project, serves it and, with hot reload, rebuilds on
// change. It blocks until ctx is done or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.mu.Unlock()

	s.Rebuild(ctx, nil)

	if s.reloadEnabled() {
		s.changeCh = make(chan []Change, 16)
		s.watcher.OnChange(func(changes []Change) {
			select {
			case s.changeCh <- changes:
			default:
			}
		})
		go s.watcher.Start(ctx)
		go s.processChanges(ctx)
	}

	ln, err := net.Listen("tcp", s.config.ServeAddress())
	if err != nil {
		s.Stop()
		return errors.New("E240").WithDetail("Could not listen on " + s.config.ServeAddress()).Wrap(err)
	}

	s.mu.Lock()
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.httpServer
	s.mu.Unlock()

	s.logger.Info("preview server running", "url", s.config.ServeURL(), "hot_reload", s.reloadEnabled())

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		s.Stop()
		return nil
	case err := <-errCh:
		s.Stop()
		if err != nil {
			return errors.New("E240").Wrap(err)
		}
		return nil
	}
}

// Stop stops the preview server.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false
	s.watcher.Stop()
	if s.reloadServer != nil {
		s.reloadServer.Close()
	}
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(ctx)
	}
}

// processChanges serializes rebuilds and coalesces bursts of changes.
func (s *Server) processChanges(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case changes := <-s.changeCh:
			for draining := true; draining; {
				select {
				case next := <-s.changeCh:
					changes = append(changes, next...)
				default:
					draining = false
				}
			}
			s.Rebuild(ctx, changes)
		}
	}
}

// Rebuild runs a build and tells connected browsers about the outcome.
// A batch made only of stylesheet changes swaps stylesheets in place;
// anything else reloads the page.
func (s *Server) Rebuild(ctx context.Context, changes []Change) {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	for _, c := range changes {
		s.logger.Info("changed", "file", c.Path, "type", c.Type.String())
	}

	result, err := s.builder.Build(ctx)
	if s.options.OnBuild != nil {
		s.options.OnBuild(result, err)
	}
	if err != nil {
		s.logger.Error("build failed", "error", err)
		if s.reloadEnabled() {
			s.reloadServer.NotifyError(overlayText(err))
		}
		return
	}
	s.logger.Info("built", "files", result.Files, "duration", result.Duration.Round(time.Millisecond))

	if !s.reloadEnabled() || changes == nil {
		return
	}
	s.reloadServer.ClearError()

	if css, ok := onlyCSS(changes); ok {
		s.reloadServer.NotifyCSS(css)
	} else {
		s.reloadServer.NotifyReload()
	}
	if s.options.OnReload != nil {
		s.options.OnReload(s.reloadServer.ClientCount())
	}
}

// onlyCSS reports whether every change is a stylesheet, returning the first.
func onlyCSS(changes []Change) (string, bool) {
	if len(changes) == 0 {
		return "", false
	}
	for _, c := range changes {
		if c.Type != ChangeCSS {
			return "", false
		}
	}
	return filepath.Base(changes[0].Path), true
}

// serveStatic serves files from the output directory. Directories resolve to
// their index.html; HTML pages get the reload script when hot reload is on.
func (s *Server) serveStatic(w http.ResponseWriter, r *http.Request) {
	root := s.config.OutputPath()
	rel := path.Clean("/" + r.URL.Path)
	p := filepath.Join(root, filepath.FromSlash(rel))

	info, err := os.Stat(p)
	if err == nil && info.IsDir() {
		p = filepath.Join(p, "index.html")
		info, err = os.Stat(p)
	}
	if err != nil {
		http.NotFound(w, r)
		return
	}

	if s.reloadEnabled() && isHTML(p) {
		data, err := os.ReadFile(p)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(InjectScript(data))
		return
	}

	f, err := os.Open(p)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

func (s *Server) requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"size", ww.BytesWritten(),
			"duration", time.Since(start).String())
	})
}

func (s *Server) reloadEnabled() bool {
	return s.reloadServer != nil
}

// overlayText renders a build error for the browser overlay.
func overlayText(err error) string {
	se, ok := errors.As(err)
	if !ok {
		return err.Error()
	}
	text := se.FormatCompact()
	if se.Detail != "" {
		text += "\n" + se.Detail
	}
	if se.Wrapped != nil {
		text += "\n\n" + se.Wrapped.Error()
	}
	return text
}

func isHTML(p string) bool {
	ext := strings.ToLower(filepath.Ext(p))
	return ext == ".html" || ext == ".htm"
}
