// Package router implements the request router (spec §4.D): matching
// a request's method and path against a route tree, and composing a
// middleware chain outermost-to-innermost around the resolved handler.
package router

import (
	"net/http"
	"sync/atomic"

	"peaque.dev/peaque/internal/routetree"
)

// Router holds an atomically-swappable pointer to the current route
// tree, so a rebuild triggered by a watcher event never tears a
// request: a request either observes the tree it started with, start
// to end, or the new one, start to end (spec §5 ordering guarantees).
type Router struct {
	tree atomic.Pointer[routetree.Node]
}

// New creates a Router over an initial tree (possibly nil, meaning
// "no routes yet").
func New(tree *routetree.Node) *Router {
	r := &Router{}
	r.tree.Store(tree)
	return r
}

// Replace atomically swaps in a newly built tree.
func (r *Router) Replace(tree *routetree.Node) {
	r.tree.Store(tree)
}

// Match resolves a request path against the router's current tree
// snapshot.
func (r *Router) Match(path string) (*routetree.Match, bool) {
	tree := r.tree.Load()
	if tree == nil {
		return nil, false
	}
	return routetree.MatchPath(tree, path)
}

// Next is the continuation a Middleware calls to invoke the next link
// in the chain (or the terminal handler, for the innermost
// middleware).
type Next func(w http.ResponseWriter, r *http.Request)

// Middleware wraps a request, optionally calling next to continue the
// chain. A middleware that never calls next short-circuits: no
// downstream middleware or the handler itself ever runs.
type Middleware func(w http.ResponseWriter, r *http.Request, next Next)

// Compose builds a single http.HandlerFunc out of handler wrapped by
// middlewares from outermost to innermost: middlewares[0] is the
// outermost (runs first, can short-circuit everything after it) and
// the last entry runs immediately before handler.
//
// This reads as an explicit index-threaded loop rather than a closure
// tower, per spec §9's design-notes preference.
func Compose(handler http.HandlerFunc, middlewares []Middleware) http.HandlerFunc {
	if len(middlewares) == 0 {
		return handler
	}

	var chain func(i int) Next
	chain = func(i int) Next {
		if i >= len(middlewares) {
			return Next(handler)
		}
		return func(w http.ResponseWriter, r *http.Request) {
			middlewares[i](w, r, chain(i+1))
		}
	}
	return http.HandlerFunc(chain(0))
}
