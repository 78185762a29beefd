package router

import (
	"github.com/pedia/segrouter/tree"
)

// cleanPattern returns the normalized form of a pattern, the same form the
// tree compares against.
func cleanPattern(pattern string) string {
	return tree.Join(tree.Split(pattern))
}

func isNilHandler(handler Handler) bool {
	if handler == nil {
		return true
	}
	f, ok := handler.(HandlerFunc)
	return ok && f == nil
}
