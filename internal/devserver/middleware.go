package devserver

import (
	"net/http"

	"peaque.dev/peaque/internal/logging"
	"peaque.dev/peaque/internal/reqcontext"
)

// middlewareResult is the worker's reply to a global-middleware
// invocation: handled=true means it has fully written the response
// and the router chain must stop; handled=false continues to the
// matched route.
type middlewareResult struct {
	Handled bool              `json:"handled"`
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body"`
}

// wrapGlobalMiddleware installs src/middleware.ts's default export as
// the outermost middleware, per spec §4.E startup step 3.
func (s *Server) wrapGlobalMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rc := reqcontext.New(r, r.URL.Path, nil)
		ctx := reqcontext.Attach(r.Context(), rc)

		var result middlewareResult
		args := map[string]any{"method": r.Method, "path": r.URL.Path}
		if err := s.invoker.Invoke(ctx, s.globalMW, "default", args, &result); err != nil {
			logging.Warning("devserver: src/middleware.ts: %v", err)
			next(w, r.WithContext(ctx))
			return
		}

		if result.Handled {
			writeAPIResult(w, apiResult{Status: result.Status, Headers: result.Headers, Body: result.Body})
			return
		}

		next(w, r.WithContext(ctx))
	}
}
