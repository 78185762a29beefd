/*
Package router is a segment trie based HTTP request dispatcher.

A trivial example is:

	package main

	import (
		"log"
		"net/http"

		"github.com/pedia/segrouter"
	)

	// Index is the index handler
	func Index(req *router.Request, ps router.Params) string {
		return "<h1>Welcome Home!</h1>"
	}

	// Hello is the Hello handler
	func Hello(req *router.Request, ps router.Params) string {
		return "<h1>hello, " + ps.ByName("name") + "!</h1>"
	}

	func main() {
		r := router.New()
		r.GET("/", Index)
		r.GET("/hello/:name", Hello)
		r.Freeze()

		log.Fatal(http.ListenAndServe(":8080", r))
	}

The router matches incoming requests by the request method and the path.
If a handler is registered for this path and method, the router delegates the
request to that function.
For the methods GET, HEAD, POST, PUT, PATCH, DELETE, CONNECT, OPTIONS and
TRACE shortcut functions exist to register handlers, for all other methods
router.Handle can be used.

Paths and patterns are split on '/' and empty segments are dropped, so
"/a//b/" and "/a/b" are the same path. A pattern segment starting with ':'
is a named parameter. It matches any single request segment:

	Pattern: /blog/:category/:post

	Requests:
	 /blog/go/request-routers            match: category="go", post="request-routers"
	 /blog/go/request-routers/           match: category="go", post="request-routers"
	 /blog/go/                           no match
	 /blog/go/request-routers/comments   no match

A literal segment always wins over a parameter at the same position, whatever
the registration order:

	r.GET("/:id", ById)
	r.GET("/hello", Hello) // "/hello" is served by Hello, "/world" by ById

Parameters registered under different names at the same position are kept
apart. They are tried in registration order and the first one leading to a
handler for the request method wins.

The parameter values are passed to the handler as Params:

	user := ps.ByName("user") // defined by :user
*/
package router
