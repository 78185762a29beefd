package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	router "github.com/pedia/segrouter"
)

func newTestRouter() *router.Router {
	r := router.New()
	r.GET("/", func(req *router.Request, ps router.Params) string {
		return "<h1>Welcome Home!</h1>"
	})
	r.GET("/hello", func(req *router.Request, ps router.Params) string {
		return "<h1>Hello World!</h1>"
	})
	r.GET("/:id", func(req *router.Request, ps router.Params) string {
		return "<h1>" + ps.ByName("id") + "</h1>"
	})
	r.POST("/echo", func(req *router.Request, ps router.Params) string {
		return req.Header("X-Echo") + ":" + string(req.Body)
	})
	r.GET("/panic", func(req *router.Request, ps router.Params) string {
		panic("boom")
	})
	return r
}

// startServer serves s on an in-memory listener and returns a client
// connected to it.
func startServer(t *testing.T, s *Server) *fasthttp.Client {
	t.Helper()

	ln := fasthttputil.NewInmemoryListener()
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Serve(ln)
	}()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, s.Shutdown(ctx))
		assert.NoError(t, <-errCh)
	})

	return &fasthttp.Client{
		Dial: func(addr string) (net.Conn, error) {
			return ln.Dial()
		},
	}
}

func doRequest(t *testing.T, c *fasthttp.Client, method, path, body string, headers map[string]string) *fasthttp.Response {
	t.Helper()

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)

	req.SetRequestURI("http://segrouter" + path)
	req.Header.SetMethod(method)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if body != "" {
		req.SetBodyString(body)
	}

	resp := &fasthttp.Response{}
	require.NoError(t, c.DoTimeout(req, resp, 5*time.Second))
	return resp
}

func TestServer_Dispatch(t *testing.T) {
	t.Parallel()

	s := New(Config{Name: "test", Workers: 4}, newTestRouter(), zap.NewNop())
	c := startServer(t, s)

	tests := []struct {
		name   string
		method string
		path   string
		status int
		body   string
	}{
		{name: "root", method: "GET", path: "/", status: 200, body: "<h1>Welcome Home!</h1>"},
		{name: "literal wins", method: "GET", path: "/hello", status: 200, body: "<h1>Hello World!</h1>"},
		{name: "param", method: "GET", path: "/42", status: 200, body: "<h1>42</h1>"},
		{name: "too deep", method: "GET", path: "/42/extra", status: 404, body: router.NotFoundBody},
		{name: "wrong method", method: "DELETE", path: "/hello", status: 404, body: router.NotFoundBody},
		{name: "panic", method: "GET", path: "/panic", status: 500, body: InternalErrorBody},
	}

	for _, tt := range tests {
		resp := doRequest(t, c, tt.method, tt.path, "", nil)
		assert.Equal(t, tt.status, resp.StatusCode(), tt.name)
		assert.Equal(t, tt.body, string(resp.Body()), tt.name)
		assert.Equal(t, "text/html", string(resp.Header.ContentType()), tt.name)
		assert.True(t, resp.ConnectionClose(), tt.name)
		assert.NotEmpty(t, string(resp.Header.Peek(RequestIDHeader)), tt.name)
	}
}

func TestServer_RequestAdaptation(t *testing.T) {
	t.Parallel()

	s := New(Config{Workers: 2}, newTestRouter(), nil)
	c := startServer(t, s)

	resp := doRequest(t, c, "POST", "/echo", "payload", map[string]string{
		"X-Echo":        "hi",
		RequestIDHeader: "req-1",
	})

	assert.Equal(t, 200, resp.StatusCode())
	assert.Equal(t, "hi:payload", string(resp.Body()))
	assert.Equal(t, "req-1", string(resp.Header.Peek(RequestIDHeader)))
}

func TestServer_FreezesRouter(t *testing.T) {
	t.Parallel()

	r := newTestRouter()
	s := New(Config{Workers: 1}, r, zap.NewNop())
	c := startServer(t, s)

	doRequest(t, c, "GET", "/", "", nil)
	assert.True(t, r.Frozen())
}

func TestServer_Metrics(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	metrics := NewMetrics("test", registry)

	s := New(Config{Workers: 4}, newTestRouter(), zap.NewNop(), WithMetrics(metrics))
	c := startServer(t, s)

	doRequest(t, c, "GET", "/hello", "", nil)
	doRequest(t, c, "GET", "/a/b", "", nil)
	doRequest(t, c, "BREW", "/hello", "", nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.requestsTotal.WithLabelValues("GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.requestsTotal.WithLabelValues("GET", "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.requestsTotal.WithLabelValues("OTHER", "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.routeMatches.WithLabelValues(resultMatched)))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.routeMatches.WithLabelValues(resultNotFound)))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.requestsInFlight))
}

func TestServer_NotFoundPanics(t *testing.T) {
	t.Parallel()

	r := newTestRouter()
	r.NotFound = router.HandlerFunc(func(req *router.Request, ps router.Params) string {
		panic("not found handler")
	})

	registry := prometheus.NewRegistry()
	metrics := NewMetrics("test", registry)
	core, logs := observer.New(zapcore.InfoLevel)

	s := New(Config{Workers: 2}, r, zap.New(core), WithMetrics(metrics))
	c := startServer(t, s)

	resp := doRequest(t, c, "GET", "/a/b", "", nil)
	assert.Equal(t, 500, resp.StatusCode())
	assert.Equal(t, InternalErrorBody, string(resp.Body()))

	resp = doRequest(t, c, "GET", "/panic", "", nil)
	assert.Equal(t, 500, resp.StatusCode())

	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.requestsInFlight))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.requestsTotal.WithLabelValues("GET", "500")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.routeMatches.WithLabelValues(resultMatched)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.routeMatches.WithLabelValues(resultNotFound)))
	assert.Equal(t, 2, logs.FilterMessage("handler panicked").Len())
}

func TestServer_Logging(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	s := New(Config{Workers: 1}, newTestRouter(), zap.New(core))
	c := startServer(t, s)

	doRequest(t, c, "GET", "/42", "", map[string]string{RequestIDHeader: "abc"})
	doRequest(t, c, "GET", "/panic", "", nil)

	served := logs.FilterMessage("request served").All()
	require.Len(t, served, 2)
	fields := served[0].ContextMap()
	assert.Equal(t, "abc", fields["request_id"])
	assert.Equal(t, "/42", fields["path"])
	assert.EqualValues(t, 200, fields["status"])

	assert.Equal(t, 2, logs.FilterMessage("request received").Len())
	assert.Equal(t, 1, logs.FilterMessage("handler panicked").Len())
	assert.Equal(t, 1, logs.FilterMessage("server listening").Len())
}

func TestServer_KeepsCustomPanicHandler(t *testing.T) {
	t.Parallel()

	r := newTestRouter()
	r.PanicHandler = func(req *router.Request, rcv interface{}) string {
		return "custom"
	}
	s := New(Config{}, r, zap.NewNop())

	var ctx fasthttp.RequestCtx
	ctx.Request.SetRequestURI("/panic")
	ctx.Request.Header.SetMethod("GET")
	s.Handler()(&ctx)

	assert.Equal(t, 500, ctx.Response.StatusCode())
	assert.Equal(t, "custom", string(ctx.Response.Body()))
}

func TestNewRequest(t *testing.T) {
	t.Parallel()

	var ctx fasthttp.RequestCtx
	ctx.Request.SetRequestURI("/a//b/?q=1")
	ctx.Request.Header.SetMethod("PUT")
	ctx.Request.Header.Set("X-Custom", "v")
	ctx.Request.SetBodyString("body")

	req := newRequest(&ctx)
	assert.Equal(t, "PUT", req.Method)
	assert.Equal(t, "/a/b/", req.Path)
	assert.Equal(t, "HTTP/1.1", req.Version)
	assert.Equal(t, "v", req.Header("X-Custom"))
	assert.Equal(t, "body", string(req.Body))
	assert.NotEmpty(t, req.ID)
}

func TestShutdown_ContextDone(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(Config{}, router.New(), zap.NewNop())
	err := s.Shutdown(ctx)
	if err != nil {
		assert.ErrorIs(t, err, ErrServerClosed)
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestMetricsHandler(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	metrics := NewMetrics("", registry)
	metrics.begin()
	metrics.observe("GET", 200, true, time.Millisecond)

	h := MetricsHandler("/metrics", registry)

	var ctx fasthttp.RequestCtx
	ctx.Request.SetRequestURI("/metrics")
	h(&ctx)
	assert.Equal(t, 200, ctx.Response.StatusCode())
	assert.Contains(t, string(ctx.Response.Body()), "segrouter_http_requests_total")

	var other fasthttp.RequestCtx
	other.Request.SetRequestURI("/other")
	h(&other)
	assert.Equal(t, 404, other.Response.StatusCode())
}
