// Package server accepts HTTP/1.1 connections and dispatches every request
// through a router.Router on a bounded pool of workers.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	gstrconv "github.com/savsgio/gotils/strconv"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	router "github.com/pedia/segrouter"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

// InternalErrorBody is written when a handler panics.
const InternalErrorBody = "<h1>500 Internal Server Error</h1>"

// ErrServerClosed is returned by Shutdown when the server does not stop
// before the context is done.
var ErrServerClosed = errors.New("server: shutdown did not complete")

// Config configures a Server.
type Config struct {
	Name    string
	Address string
	// Workers is the maximum number of requests served at the same time.
	Workers            int
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	MaxRequestBodySize int
}

// Option configures optional Server collaborators.
type Option func(*Server)

// WithMetrics records request metrics on m.
func WithMetrics(m *Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// Server serves the routes of a router over HTTP/1.1.
type Server struct {
	cfg     Config
	router  *router.Router
	logger  *zap.Logger
	metrics *Metrics
	srv     *fasthttp.Server
}

// New creates a server for r. If r has no PanicHandler, one that logs the
// panic and answers 500 is installed, so New must be called while r is still
// in its registration phase.
func New(cfg Config, r *router.Router, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		cfg:    cfg,
		router: r,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	if r.PanicHandler == nil {
		r.PanicHandler = s.recoverPanic
	}

	s.srv = &fasthttp.Server{
		Handler:            s.handle,
		Name:               cfg.Name,
		Concurrency:        cfg.Workers,
		ReadTimeout:        cfg.ReadTimeout,
		WriteTimeout:       cfg.WriteTimeout,
		MaxRequestBodySize: cfg.MaxRequestBodySize,
		Logger:             fasthttpLogger{logger.Sugar()},
	}

	return s
}

// Handler returns the fasthttp request handler of the server.
func (s *Server) Handler() fasthttp.RequestHandler {
	return s.handle
}

// ListenAndServe listens on the configured address and serves until Shutdown.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Address, err)
	}
	return s.Serve(ln)
}

// Serve freezes the router and serves connections accepted on ln until
// Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.router.Freeze()

	s.logger.Info("server listening",
		zap.String("address", ln.Addr().String()),
		zap.Int("workers", s.cfg.Workers),
	)

	if err := s.srv.Serve(ln); err != nil {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and waits for open ones to finish or
// for ctx to be done.
func (s *Server) Shutdown(ctx context.Context) error {
	done := make(chan error, 1)
	go func() {
		done <- s.srv.Shutdown()
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to shutdown: %w", err)
		}
		s.logger.Info("server stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrServerClosed, ctx.Err())
	}
}

func (s *Server) handle(ctx *fasthttp.RequestCtx) {
	start := time.Now()
	if s.metrics != nil {
		s.metrics.begin()
	}

	req := newRequest(ctx)

	s.logger.Debug("request received",
		zap.String("request_id", req.ID),
		zap.String("method", req.Method),
		zap.String("path", req.Path),
		zap.Any("headers", req.Headers),
		zap.ByteString("body", req.Body),
	)

	status, body, matched := s.router.DispatchMatch(req)

	ctx.Response.Header.Set(RequestIDHeader, req.ID)
	ctx.SetStatusCode(status)
	ctx.SetContentType("text/html")
	ctx.SetConnectionClose()
	ctx.SetBodyString(body)

	latency := time.Since(start)
	if s.metrics != nil {
		s.metrics.observe(string(ctx.Method()), status, matched, latency)
	}

	s.logger.Info("request served",
		zap.String("request_id", req.ID),
		zap.String("method", req.Method),
		zap.String("path", req.Path),
		zap.Int("status", status),
		zap.Duration("latency", latency),
		zap.String("remote_addr", req.RemoteAddr),
	)
}

func (s *Server) recoverPanic(req *router.Request, rcv interface{}) string {
	s.logger.Error("handler panicked",
		zap.String("request_id", req.ID),
		zap.String("method", req.Method),
		zap.String("path", req.Path),
		zap.Any("panic", rcv),
	)
	return InternalErrorBody
}

// newRequest adapts ctx into a router.Request. The strings and the body alias
// fasthttp buffers and are only valid until the handler returns.
func newRequest(ctx *fasthttp.RequestCtx) *router.Request {
	req := &router.Request{
		Method:     gstrconv.B2S(ctx.Method()),
		Path:       gstrconv.B2S(ctx.Path()),
		Version:    "HTTP/1.0",
		Headers:    make(map[string]string, ctx.Request.Header.Len()),
		Body:       ctx.PostBody(),
		RemoteAddr: ctx.RemoteAddr().String(),
	}
	if ctx.Request.Header.IsHTTP11() {
		req.Version = "HTTP/1.1"
	}

	ctx.Request.Header.VisitAll(func(key, value []byte) {
		req.Headers[gstrconv.B2S(key)] = gstrconv.B2S(value)
	})

	req.ID = req.Header(RequestIDHeader)
	if req.ID == "" {
		req.ID = uuid.New().String()
	}

	return req
}

// fasthttpLogger routes fasthttp's internal messages to zap.
type fasthttpLogger struct {
	sugar *zap.SugaredLogger
}

func (l fasthttpLogger) Printf(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}
