// Package tree implements the route trie: one edge per distinct path segment,
// literal segments matched by equality and ":name" segments binding a parameter.
package tree

import "sort"

// Params holds the parameter values bound by a successful Match, keyed by
// parameter name.
type Params map[string]string

// ByName returns the value bound to name, or "" if there is none.
func (ps Params) ByName(name string) string {
	return ps[name]
}

// Get returns the value bound to name and whether it was bound at all.
func (ps Params) Get(name string) (string, bool) {
	v, ok := ps[name]
	return v, ok
}

// Route is a registered method and pattern pair.
type Route struct {
	Method  string
	Pattern string
}

type node[H any] struct {
	// label is the exact segment text of the edge leading here.
	label    string
	children map[string]*node[H]
	// params lists the parameter children in registration order.
	params   []*node[H]
	handlers map[string]H
}

func newNode[H any](label string) *node[H] {
	return &node[H]{label: label}
}

func (n *node[H]) child(segment string) *node[H] {
	if n.children == nil {
		return nil
	}
	return n.children[segment]
}

func (n *node[H]) addChild(segment string) *node[H] {
	if c := n.child(segment); c != nil {
		return c
	}

	c := newNode[H](segment)
	if n.children == nil {
		n.children = make(map[string]*node[H])
	}
	n.children[segment] = c

	if IsParam(segment) {
		n.params = append(n.params, c)
	}

	return c
}

func (n *node[H]) setHandler(method string, handler H) {
	if n.handlers == nil {
		n.handlers = make(map[string]H)
	}
	n.handlers[method] = handler
}

func (n *node[H]) handler(method string) (H, bool) {
	h, ok := n.handlers[method]
	return h, ok
}

// Tree is a route trie with one edge per distinct segment text.
//
// All Insert calls must happen before the first Match. Once built, the tree
// is never written again and Match is safe for concurrent use.
type Tree[H any] struct {
	root *node[H]
}

// New returns an empty tree.
func New[H any]() *Tree[H] {
	return &Tree[H]{root: newNode[H]("")}
}

// Insert registers handler for method on pattern. A segment starting with ':'
// binds a parameter. An existing handler for the same method and pattern is
// replaced.
func (t *Tree[H]) Insert(method, pattern string, handler H) {
	n := t.root
	for _, segment := range Split(pattern) {
		n = n.addChild(segment)
	}

	n.setHandler(method, handler)
}

type candidate[H any] struct {
	n           *node[H]
	consumed    int
	patternPath string
}

// Match resolves method and path to a handler and its bound parameters.
// The last return value is false when no registered route matches.
//
// Candidates are visited breadth first. At each node the child keyed by the
// literal request segment is queued ahead of the parameter children, which
// are queued in registration order.
func (t *Tree[H]) Match(method, path string) (H, Params, bool) {
	segments := Split(path)

	queue := []candidate[H]{{n: t.root, consumed: 0, patternPath: "/"}}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]

		if c.consumed == len(segments) {
			if h, ok := c.n.handler(method); ok {
				return h, bindParams(c.patternPath, segments), true
			}
			continue
		}

		segment := segments[c.consumed]
		literal := c.n.child(segment)
		if literal != nil {
			queue = append(queue, candidate[H]{
				n:           literal,
				consumed:    c.consumed + 1,
				patternPath: appendSegment(c.patternPath, literal.label),
			})
		}

		for _, child := range c.n.params {
			// A request segment such as ":a" names a parameter child directly.
			if child == literal {
				continue
			}
			queue = append(queue, candidate[H]{
				n:           child,
				consumed:    c.consumed + 1,
				patternPath: appendSegment(c.patternPath, child.label),
			})
		}
	}

	var zero H
	return zero, nil, false
}

// bindParams pairs every parameter segment of patternPath with the request
// segment at the same position.
func bindParams(patternPath string, segments []string) Params {
	ps := make(Params)
	for i, segment := range Split(patternPath) {
		if IsParam(segment) && i < len(segments) {
			ps[ParamName(segment)] = segments[i]
		}
	}
	return ps
}

// Routes returns every registered route, sorted by pattern then method.
func (t *Tree[H]) Routes() []Route {
	var routes []Route

	var walk func(n *node[H], prefix []string)
	walk = func(n *node[H], prefix []string) {
		pattern := Join(prefix)
		for method := range n.handlers {
			routes = append(routes, Route{Method: method, Pattern: pattern})
		}
		for segment, c := range n.children {
			walk(c, append(prefix[:len(prefix):len(prefix)], segment))
		}
	}
	walk(t.root, nil)

	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Pattern != routes[j].Pattern {
			return routes[i].Pattern < routes[j].Pattern
		}
		return routes[i].Method < routes[j].Method
	})

	return routes
}
