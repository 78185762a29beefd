package router

import (
	"net/http"

	"github.com/pedia/segrouter/tree"
)

// Group registers routes under a common pattern prefix.
type Group struct {
	router *Router
	prefix string
}

// Group returns a new group. The prefix is normalized like any pattern, so
// "/v1", "v1" and "/v1/" give the same group.
func (router *Router) Group(prefix string) *Group {
	return &Group{
		router: router,
		prefix: cleanPattern(prefix),
	}
}

// Group returns a new group nested in g.
func (g *Group) Group(prefix string) *Group {
	return g.router.Group(g.pattern(prefix))
}

func (g *Group) pattern(pattern string) string {
	return tree.Join(append(tree.Split(g.prefix), tree.Split(pattern)...))
}

// GET is a shortcut for group.Handle(http.MethodGet, pattern, handler)
func (g *Group) GET(pattern string, handler HandlerFunc) {
	g.Handle(http.MethodGet, pattern, handler)
}

// HEAD is a shortcut for group.Handle(http.MethodHead, pattern, handler)
func (g *Group) HEAD(pattern string, handler HandlerFunc) {
	g.Handle(http.MethodHead, pattern, handler)
}

// POST is a shortcut for group.Handle(http.MethodPost, pattern, handler)
func (g *Group) POST(pattern string, handler HandlerFunc) {
	g.Handle(http.MethodPost, pattern, handler)
}

// PUT is a shortcut for group.Handle(http.MethodPut, pattern, handler)
func (g *Group) PUT(pattern string, handler HandlerFunc) {
	g.Handle(http.MethodPut, pattern, handler)
}

// PATCH is a shortcut for group.Handle(http.MethodPatch, pattern, handler)
func (g *Group) PATCH(pattern string, handler HandlerFunc) {
	g.Handle(http.MethodPatch, pattern, handler)
}

// DELETE is a shortcut for group.Handle(http.MethodDelete, pattern, handler)
func (g *Group) DELETE(pattern string, handler HandlerFunc) {
	g.Handle(http.MethodDelete, pattern, handler)
}

// CONNECT is a shortcut for group.Handle(http.MethodConnect, pattern, handler)
func (g *Group) CONNECT(pattern string, handler HandlerFunc) {
	g.Handle(http.MethodConnect, pattern, handler)
}

// OPTIONS is a shortcut for group.Handle(http.MethodOptions, pattern, handler)
func (g *Group) OPTIONS(pattern string, handler HandlerFunc) {
	g.Handle(http.MethodOptions, pattern, handler)
}

// TRACE is a shortcut for group.Handle(http.MethodTrace, pattern, handler)
func (g *Group) TRACE(pattern string, handler HandlerFunc) {
	g.Handle(http.MethodTrace, pattern, handler)
}

// HandleFunc is a shortcut for group.Handle(method, pattern, handler)
func (g *Group) HandleFunc(method, pattern string, handler HandlerFunc) {
	g.Handle(method, pattern, handler)
}

// Handle registers handler for method on the group prefix joined with
// pattern. It panics under the same conditions as Router.Handle.
func (g *Group) Handle(method, pattern string, handler Handler) {
	g.router.Handle(method, g.pattern(pattern), handler)
}
