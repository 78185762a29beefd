package router

import (
	"strings"

	"github.com/pedia/segrouter/tree"
)

// Params is an alias of tree.Params so handlers need not import the tree
// package.
type Params = tree.Params

// Request is the parsed form of an incoming HTTP request as handed to a
// Handler.
type Request struct {
	Method  string
	Path    string
	Version string
	Headers map[string]string
	Body    []byte

	RemoteAddr string
	// ID correlates log lines of one request.
	ID string
}

// Header returns the value of the named header. An exact key match wins,
// otherwise the first case-insensitive match is returned.
func (req *Request) Header(name string) string {
	if v, ok := req.Headers[name]; ok {
		return v
	}
	for k, v := range req.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// Handler produces the response body for a matched request.
type Handler interface {
	Handle(req *Request, ps Params) string
}

// HandlerFunc adapts an ordinary function to the Handler interface.
type HandlerFunc func(req *Request, ps Params) string

// Handle calls f(req, ps).
func (f HandlerFunc) Handle(req *Request, ps Params) string {
	return f(req, ps)
}
