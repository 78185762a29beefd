package router

import (
	"fmt"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/savsgio/gotils/bytes"
	"github.com/valyala/bytebufferpool"

	"github.com/pedia/segrouter/tree"
)

// NotFoundBody is written when no route matches and Router.NotFound is unset.
const NotFoundBody = "<h1>404 Not Found</h1>"

var (
	// MatchedRoutePathParam is the param name under which the pattern of the
	// matched route is stored, if Router.SaveMatchedRoutePath is set.
	MatchedRoutePathParam = fmt.Sprintf("__matchedRoutePath::%s__", bytes.Rand(make([]byte, 15)))
)

// Router dispatches requests to the handler registered for their method and
// path.
//
// Routes are registered during bootstrap. Freeze ends that phase; after it
// the router is read-only and may be shared by any number of goroutines.
type Router struct {
	tree   *tree.Tree[Handler]
	frozen atomic.Bool

	// If enabled, adds the matched route pattern onto the Params.
	SaveMatchedRoutePath bool

	// Handler producing the body of 404 responses.
	// If nil, NotFoundBody is used.
	NotFound Handler

	// Function to handle panics recovered from handlers.
	// It should produce the body of a 500 response.
	// The third argument is the value passed to panic.
	PanicHandler func(req *Request, rcv interface{}) string
}

// New returns a new router in its registration phase.
func New() *Router {
	return &Router{
		tree: tree.New[Handler](),
	}
}

// Freeze ends the registration phase. Any later call to Handle panics.
func (router *Router) Freeze() {
	router.frozen.Store(true)
}

// Frozen reports whether Freeze has been called.
func (router *Router) Frozen() bool {
	return router.frozen.Load()
}

func (router *Router) saveMatchedRoutePath(pattern string, handler Handler) Handler {
	return HandlerFunc(func(req *Request, ps Params) string {
		ps[MatchedRoutePathParam] = pattern
		return handler.Handle(req, ps)
	})
}

// List returns all registered route patterns grouped by method.
func (router *Router) List() map[string][]string {
	paths := make(map[string][]string)
	for _, r := range router.tree.Routes() {
		paths[r.Method] = append(paths[r.Method], r.Pattern)
	}
	return paths
}

// GET is a shortcut for router.Handle(http.MethodGet, pattern, handler)
func (router *Router) GET(pattern string, handler HandlerFunc) {
	router.Handle(http.MethodGet, pattern, handler)
}

// HEAD is a shortcut for router.Handle(http.MethodHead, pattern, handler)
func (router *Router) HEAD(pattern string, handler HandlerFunc) {
	router.Handle(http.MethodHead, pattern, handler)
}

// POST is a shortcut for router.Handle(http.MethodPost, pattern, handler)
func (router *Router) POST(pattern string, handler HandlerFunc) {
	router.Handle(http.MethodPost, pattern, handler)
}

// PUT is a shortcut for router.Handle(http.MethodPut, pattern, handler)
func (router *Router) PUT(pattern string, handler HandlerFunc) {
	router.Handle(http.MethodPut, pattern, handler)
}

// PATCH is a shortcut for router.Handle(http.MethodPatch, pattern, handler)
func (router *Router) PATCH(pattern string, handler HandlerFunc) {
	router.Handle(http.MethodPatch, pattern, handler)
}

// DELETE is a shortcut for router.Handle(http.MethodDelete, pattern, handler)
func (router *Router) DELETE(pattern string, handler HandlerFunc) {
	router.Handle(http.MethodDelete, pattern, handler)
}

// CONNECT is a shortcut for router.Handle(http.MethodConnect, pattern, handler)
func (router *Router) CONNECT(pattern string, handler HandlerFunc) {
	router.Handle(http.MethodConnect, pattern, handler)
}

// OPTIONS is a shortcut for router.Handle(http.MethodOptions, pattern, handler)
func (router *Router) OPTIONS(pattern string, handler HandlerFunc) {
	router.Handle(http.MethodOptions, pattern, handler)
}

// TRACE is a shortcut for router.Handle(http.MethodTrace, pattern, handler)
func (router *Router) TRACE(pattern string, handler HandlerFunc) {
	router.Handle(http.MethodTrace, pattern, handler)
}

// HandleFunc is a shortcut for router.Handle(method, pattern, handler)
func (router *Router) HandleFunc(method, pattern string, handler HandlerFunc) {
	router.Handle(method, pattern, handler)
}

// Handle registers a new request handler with the given pattern and method.
//
// Segments of the pattern are separated by '/'. A segment beginning with ':'
// binds a parameter named by the rest of the segment. Empty segments are
// ignored, so "/users/:id", "users/:id" and "/users//:id/" are the same
// pattern. Registering the same method and pattern again replaces the handler.
func (router *Router) Handle(method, pattern string, handler Handler) {
	switch {
	case router.Frozen():
		panic("router is frozen, cannot register '" + method + " " + pattern + "'")
	case len(method) == 0:
		panic("method must not be empty")
	case isNilHandler(handler):
		panic("handler must not be nil")
	}

	if router.SaveMatchedRoutePath {
		handler = router.saveMatchedRoutePath(cleanPattern(pattern), handler)
	}

	router.tree.Insert(method, pattern, handler)
}

// Lookup allows the manual lookup of a method + path combo.
// This is e.g. useful to build a framework around this router.
// The last return value is false if no route matches.
func (router *Router) Lookup(method, path string) (Handler, Params, bool) {
	return router.tree.Match(method, path)
}

// Dispatch looks up the handler for req and runs it.
// It returns 200 with the handler's body on a match and 404 otherwise. When
// PanicHandler is set, a panic in the matched handler or in NotFound yields
// 500 with the body produced by PanicHandler.
func (router *Router) Dispatch(req *Request) (status int, body string) {
	status, body, _ = router.DispatchMatch(req)
	return status, body
}

// DispatchMatch is like Dispatch and also reports whether a route matched
// req, independently of the resulting status.
func (router *Router) DispatchMatch(req *Request) (status int, body string, matched bool) {
	if router.PanicHandler != nil {
		defer func() {
			if rcv := recover(); rcv != nil {
				status = http.StatusInternalServerError
				body = router.PanicHandler(req, rcv)
			}
		}()
	}

	handler, ps, ok := router.Lookup(req.Method, req.Path)
	if !ok {
		if router.NotFound != nil {
			return http.StatusNotFound, router.NotFound.Handle(req, Params{}), false
		}
		return http.StatusNotFound, NotFoundBody, false
	}

	matched = true
	return http.StatusOK, handler.Handle(req, ps), true
}

// ServeHTTP makes the router implement the http.Handler interface.
func (router *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req := &Request{
		Method:     r.Method,
		Path:       r.URL.Path,
		Version:    r.Proto,
		Headers:    make(map[string]string, len(r.Header)),
		RemoteAddr: r.RemoteAddr,
	}
	for key, values := range r.Header {
		if len(values) > 0 {
			req.Headers[key] = values[0]
		}
	}

	if r.Body != nil {
		buf := bytebufferpool.Get()
		if _, err := buf.ReadFrom(r.Body); err != nil {
			bytebufferpool.Put(buf)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		req.Body = append([]byte(nil), buf.B...)
		bytebufferpool.Put(buf)
	}

	status, body := router.Dispatch(req)

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
