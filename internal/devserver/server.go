// Package devserver implements the dev server of spec §4.E: a single
// HTTP listener with WebSocket upgrade on a fixed path, servicing the
// URL families in a fixed priority order, with filesystem-watcher-
// driven route rebuilds and hot-module-reload broadcast.
package devserver

import (
	"context"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"peaque.dev/peaque/internal/csrf"
	"peaque.dev/peaque/internal/jobs"
	"peaque.dev/peaque/internal/logging"
	"peaque.dev/peaque/internal/platform"
	"peaque.dev/peaque/internal/reqcontext"
	"peaque.dev/peaque/internal/router"
	"peaque.dev/peaque/internal/routetree"
	"peaque.dev/peaque/internal/rpc"
	"peaque.dev/peaque/internal/transform"
)

// Invoker runs one exported function of a loaded module to completion.
// Satisfied by *internal/jsruntime.Runtime in production.
type Invoker interface {
	Invoke(ctx context.Context, module, export string, args, out any) error
}

// Config carries the project-relative directories and network/runtime
// settings the dev server needs.
type Config struct {
	Root          string // project root
	PagesDir      string // default "src/pages"
	APIDir        string // default "src/api"
	PublicDir     string // default "src/public"
	CacheDir      string // default ".peaque/cache"
	Addr          string // default ":3000"
	TrustedOrigin map[string]bool
	PerfThreshold time.Duration // PEAQUE_PERF_LOG threshold, default 100ms
}

func (c Config) withDefaults() Config {
	if c.PagesDir == "" {
		c.PagesDir = "src/pages"
	}
	if c.APIDir == "" {
		c.APIDir = "src/api"
	}
	if c.PublicDir == "" {
		c.PublicDir = "src/public"
	}
	if c.CacheDir == "" {
		c.CacheDir = ".peaque/cache"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.PerfThreshold == 0 {
		c.PerfThreshold = 100 * time.Millisecond
	}
	return c
}

// Server is the dev server's request handler and lifecycle owner.
type Server struct {
	fsys    platform.FileSystem
	cfg     Config
	cache   *transform.Cache
	invoker Invoker

	pages    *router.Router
	api      *router.Router
	pageTree *routetree.Node

	dispatcher *rpc.Dispatcher
	guard      *csrf.Guard
	hub        *hub
	ignore     *platform.IgnoreFilter
	jobsSched  *jobs.Scheduler

	mu         sync.Mutex
	httpServer *http.Server
	watcher    platform.FileWatcher
	globalMW   string // path to src/middleware.ts joined onto cfg.Root (as ResolveSource returns it), if present
}

// New builds a Server over fsys, ready to have Start called on it.
func New(fsys platform.FileSystem, cfg Config, invoker Invoker) (*Server, error) {
	cfg = cfg.withDefaults()

	cache, err := transform.Open(fsys, cfg.CacheDir)
	if err != nil {
		return nil, err
	}

	guard := csrf.New(csrf.Config{TrustedOrigin: cfg.TrustedOrigin})

	s := &Server{
		fsys:    fsys,
		cfg:     cfg,
		cache:   cache,
		invoker: invoker,
		guard:   guard,
		hub:     newHub(),
		ignore:  platform.NewIgnoreFilter(),
		jobsSched: jobs.New(),
		dispatcher: &rpc.Dispatcher{
			FS:      fsys,
			Root:    cfg.Root,
			Guard:   guard,
			Invoker: invoker,
		},
	}

	if ref, ok := platform.ResolveSource(fsys, cfg.Root, "src/middleware"); ok {
		s.globalMW = ref
	}

	return s, nil
}

// Start runs the startup sequence of spec §4.E: run src/startup.ts,
// start the jobs runner, build both routers, subscribe the watcher,
// and bind the listener. It returns once the listener is bound;
// callers typically run it in a goroutine or call Close from a signal
// handler.
func (s *Server) Start(ctx context.Context) error {
	if ref, ok := platform.ResolveSource(s.fsys, s.cfg.Root, "src/startup"); ok {
		if err := s.invoker.Invoke(ctx, ref, "default", nil, nil); err != nil {
			logging.Warning("devserver: src/startup.ts failed: %v", err)
		}
	}

	if err := s.loadJobs(ctx); err != nil {
		logging.Warning("devserver: job discovery failed: %v", err)
	}
	s.jobsSched.Start()

	if err := s.rebuildPages(); err != nil {
		return err
	}
	if err := s.rebuildAPI(); err != nil {
		return err
	}

	watcher, err := platform.NewFSNotifyFileWatcher()
	if err != nil {
		logging.Warning("devserver: filesystem watcher unavailable, HMR disabled: %v", err)
	} else {
		s.mu.Lock()
		s.watcher = watcher
		s.mu.Unlock()
		s.watchDirs(watcher, s.cfg.Root)
		go s.watchLoop(watcher)
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.httpServer = &http.Server{Handler: s.Handler()}
	s.mu.Unlock()

	logging.Success("dev server listening on %s", ln.Addr())
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			logging.Error("devserver: serve: %v", err)
		}
	}()

	return nil
}

func (s *Server) loadJobs(ctx context.Context) error {
	descs, err := jobs.Discover(s.fsys, s.cfg.Root+"/src/jobs")
	if err != nil {
		return err
	}
	for _, d := range descs {
		var schedule []string
		if err := s.invoker.Invoke(ctx, d.ModulePath, "schedule", nil, &schedule); err != nil {
			logging.Warning("devserver: job %s: reading schedule: %v", d.Name, err)
			continue
		}
		mod, name := d.ModulePath, d.Name
		for _, expr := range schedule {
			if err := s.jobsSched.Register(name, expr, func(ctx context.Context) error {
				return s.invoker.Invoke(ctx, mod, "runJob", nil, nil)
			}); err != nil {
				logging.Warning("devserver: job %s: bad schedule %q: %v", name, expr, err)
			}
		}
	}
	return nil
}

// Close stops accepting new connections, closes the watcher, closes
// in-flight WebSocket peers, and stops scheduled jobs, in the order
// spec §5's shutdown sequence names.
func (s *Server) Close(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	w := s.watcher
	s.mu.Unlock()

	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}
	if w != nil {
		_ = w.Close()
	}
	s.hub.closeAll()
	s.jobsSched.Stop()
	return err
}

func (s *Server) rebuildPages() error {
	tree, err := routetree.Build(s.fsys, s.cfg.Root+"/"+s.cfg.PagesDir, routetree.PageConfig)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.pageTree = tree
	s.mu.Unlock()
	if s.pages == nil {
		s.pages = router.New(tree)
	} else {
		s.pages.Replace(tree)
	}
	return nil
}

func (s *Server) currentPageTree() *routetree.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pageTree
}

func (s *Server) rebuildAPI() error {
	tree, err := routetree.Build(s.fsys, s.cfg.Root+"/"+s.cfg.APIDir, routetree.APIConfig)
	if err != nil {
		return err
	}
	if s.api == nil {
		s.api = router.New(tree)
	} else {
		s.api.Replace(tree)
	}
	return nil
}

// Handler returns the server's full request handler, including the
// global middleware wrap if src/middleware.ts is present. Exposed
// separately from Start so tests can exercise routing without binding
// a listener.
func (s *Server) Handler() http.Handler {
	handler := s.routes()
	if s.globalMW != "" {
		handler = s.wrapGlobalMiddleware(handler)
	}
	return handler
}

// ServeHTTP lets a Server be driven directly by httptest, without a
// bound listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Handler().ServeHTTP(w, r)
}

// routes returns the outermost URL-family dispatcher: the first
// matching family of spec §4.E's table wins.
func (s *Server) routes() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		s.dispatch(w, r)
		if elapsed := time.Since(start); elapsed > s.cfg.PerfThreshold && os.Getenv("PEAQUE_PERF_LOG") != "" {
			logging.Warning("devserver: %s %s took %s (> %s)", r.Method, r.URL.Path, elapsed, s.cfg.PerfThreshold)
		}
	}
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Path

	switch {
	case strings.HasPrefix(p, "/@deps/"):
		s.serveDep(w, r, strings.TrimPrefix(p, "/@deps/"))
	case strings.HasPrefix(p, "/@src/"):
		s.serveSrc(w, r, strings.TrimPrefix(p, "/@src/"))
	case strings.HasPrefix(p, rpc.URLPrefix):
		s.dispatcher.ServeHTTP(w, r)
	case strings.HasPrefix(p, "/api/"):
		s.serveAPI(w, r)
	case p == "/peaque-dev.js", p == "/peaque-loader.js", p == "/peaque-wire.js":
		s.serveFrameworkAsset(w, r, p)
	case p == "/peaque.js":
		s.servePeaqueJS(w, r)
	case p == "/peaque.css":
		s.servePeaqueCSS(w, r)
	case p == "/hmr":
		s.hub.handle(w, r)
	default:
		s.serveFallback(w, r)
	}
}

func (s *Server) serveAPI(w http.ResponseWriter, r *http.Request) {
	routePath := strings.TrimPrefix(r.URL.Path, "/api")
	if routePath == "" {
		routePath = "/"
	}
	match, ok := s.api.Match(routePath)
	if !ok {
		http.NotFound(w, r)
		return
	}
	ref, ok := match.Names[routetree.RoleHandler]
	if !ok {
		http.NotFound(w, r)
		return
	}

	rc := reqcontext.New(r, match.Pattern, match.Params)
	r = r.WithContext(reqcontext.Attach(r.Context(), rc))

	handler := func(w http.ResponseWriter, r *http.Request) {
		var result apiResult
		args := map[string]any{"params": match.Params, "method": r.Method}
		if err := s.invoker.Invoke(r.Context(), ref.Path, r.Method, args, &result); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeAPIResult(w, result)
	}

	stack := match.Stacks[routetree.RoleMiddleware]
	middlewares := make([]router.Middleware, len(stack))
	for i, mref := range stack {
		middlewares[i] = s.apiRouteMiddleware(mref)
	}
	router.Compose(handler, middlewares)(w, r)
}

// apiRouteMiddleware invokes one API route's stacked middleware.ts
// default export, using the same handled/unhandled protocol as
// wrapGlobalMiddleware, and calls next to continue the chain
// (router.Compose's innermost link reaches the matched handler).
func (s *Server) apiRouteMiddleware(ref routetree.FileRef) router.Middleware {
	return func(w http.ResponseWriter, r *http.Request, next router.Next) {
		var result middlewareResult
		args := map[string]any{"method": r.Method, "path": r.URL.Path}
		if err := s.invoker.Invoke(r.Context(), ref.Path, "default", args, &result); err != nil {
			logging.Warning("devserver: %s: %v", ref.Path, err)
			next(w, r)
			return
		}
		if result.Handled {
			writeAPIResult(w, apiResult{Status: result.Status, Headers: result.Headers, Body: result.Body})
			return
		}
		next(w, r)
	}
}
