package main

import (
	"fmt"
	"html/template"

	"github.com/valyala/bytebufferpool"
	"go.uber.org/zap"

	router "github.com/pedia/segrouter"
	"github.com/pedia/segrouter/internal/config"
)

// templateHandler renders a route body template with the bound parameters.
type templateHandler struct {
	tpl    *template.Template
	logger *zap.Logger
}

func (h *templateHandler) Handle(req *router.Request, ps router.Params) string {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	if err := h.tpl.Execute(buf, ps); err != nil {
		h.logger.Error("failed to render body",
			zap.String("route", h.tpl.Name()),
			zap.String("request_id", req.ID),
			zap.Error(err),
		)
		panic(err)
	}
	return buf.String()
}

// registerRoutes adds every configured route to r.
func registerRoutes(r *router.Router, routes []config.Route, logger *zap.Logger) error {
	for _, route := range routes {
		tpl, err := route.ParseBody()
		if err != nil {
			return fmt.Errorf("route %s %s: %w", route.Method, route.Pattern, err)
		}

		r.Handle(route.Method, route.Pattern, &templateHandler{tpl: tpl, logger: logger})
		logger.Debug("route registered",
			zap.String("method", route.Method),
			zap.String("pattern", route.Pattern),
		)
	}
	return nil
}
