package devserver

import (
	"net/http"

	"peaque.dev/peaque/internal/logging"
	"peaque.dev/peaque/internal/routetree"
)

// pageGuardResult is the worker's reply to a page guard invocation.
// allow=false blocks the request: a non-empty redirect issues a 302,
// otherwise status/body are written directly (403 by default).
type pageGuardResult struct {
	Allow    bool              `json:"allow"`
	Redirect string            `json:"redirect"`
	Status   int               `json:"status"`
	Headers  map[string]string `json:"headers"`
	Body     string            `json:"body"`
}

// runPageGuards invokes match's inherited guard.ts stack in order,
// outermost (root) first. It returns true once a guard has denied the
// request and already written a response, at which point the caller
// must not serve the page shell. A guard invocation error is logged
// and treated as an allow, so a broken guard degrades to "no gate"
// rather than locking every page behind a 500.
func (s *Server) runPageGuards(w http.ResponseWriter, r *http.Request, match *routetree.Match) bool {
	for _, ref := range match.Stacks[routetree.RoleGuard] {
		var result pageGuardResult
		args := map[string]any{"params": match.Params, "path": r.URL.Path}
		if err := s.invoker.Invoke(r.Context(), ref.Path, "default", args, &result); err != nil {
			logging.Warning("devserver: %s: %v", ref.Path, err)
			continue
		}
		if result.Allow {
			continue
		}
		if result.Redirect != "" {
			http.Redirect(w, r, result.Redirect, http.StatusFound)
			return true
		}
		for k, v := range result.Headers {
			w.Header().Set(k, v)
		}
		status := result.Status
		if status == 0 {
			status = http.StatusForbidden
		}
		body := result.Body
		if body == "" {
			body = "Forbidden"
		}
		http.Error(w, body, status)
		return true
	}
	return false
}
