// Package rpc implements the server-action dispatcher of spec §4.F:
// it reverse-maps an RPC URL to a 'use server' module and exported
// function, decodes the typed wire payload, invokes the function
// through a collaborator runtime, and encodes the result back.
package rpc

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"peaque.dev/peaque/internal/csrf"
	"peaque.dev/peaque/internal/logging"
	"peaque.dev/peaque/internal/platform"
	"peaque.dev/peaque/internal/reqcontext"
	"peaque.dev/peaque/internal/transform"
	"peaque.dev/peaque/internal/wire"
)

// URLPrefix is the fixed path prefix every RPC call is dispatched
// under: "/api/__rpc/<module-path>/<function-name>".
const URLPrefix = "/api/__rpc/"

// Invoker runs one exported function of a loaded module to completion,
// decoding its result into out. Satisfied by *internal/jsruntime.Runtime
// in production; fakeable in tests.
type Invoker interface {
	Invoke(ctx context.Context, module, export string, args, out any) error
}

// Dispatcher wires together the pieces §4.F's algorithm names: the
// cross-origin guard, source resolution under a project root, the
// 'use server' export enumeration already implemented by
// internal/transform (reused here rather than duplicated), and an
// Invoker that actually runs the function.
type Dispatcher struct {
	FS      platform.FileSystem
	Root    string
	Guard   *csrf.Guard
	Invoker Invoker
}

// ParsePath splits an RPC URL path into its module path and function
// name: the function name is the final segment, the module path is
// everything between the fixed prefix and that segment.
func ParsePath(path string) (modulePath, function string, ok bool) {
	if !strings.HasPrefix(path, URLPrefix) {
		return "", "", false
	}
	rest := strings.TrimPrefix(path, URLPrefix)
	idx := strings.LastIndex(rest, "/")
	if idx < 0 || idx == len(rest)-1 {
		return "", "", false
	}
	return rest[:idx], rest[idx+1:], true
}

// ServeHTTP implements the seven-step dispatch algorithm of spec §4.F.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	if !d.Guard.Allow(r) {
		writeJSONError(w, http.StatusForbidden, csrf.DenyMessage)
		return
	}

	modulePath, function, ok := ParsePath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}

	fullPath, ok := platform.ResolveSource(d.FS, d.Root, modulePath)
	if !ok {
		http.NotFound(w, r)
		return
	}

	source, err := d.FS.ReadFile(fullPath)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	if !transform.HasUseServerDirective(string(source)) {
		http.NotFound(w, r)
		return
	}

	shim, err := transform.GenerateShim(source, modulePath)
	if err != nil {
		logging.Error("rpc: %s: %v", modulePath, err)
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if !hasExport(shim.Exports, function) {
		http.NotFound(w, r)
		return
	}

	body, err := readBody(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	args, err := wire.DecodeCall(body)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	rc := reqcontext.New(r, r.URL.Path, nil)
	ctx := reqcontext.Attach(r.Context(), rc)

	var result any
	if err := d.Invoker.Invoke(ctx, modulePath, function, args, &result); err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	encoded, err := wire.Encode(result)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(encoded)
}

func hasExport(exports []transform.ExportedFunction, name string) bool {
	for _, e := range exports {
		if e.Name == name {
			return true
		}
	}
	return false
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()
	return io.ReadAll(r.Body)
}
