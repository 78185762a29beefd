package main

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
	"go.uber.org/zap"

	router "github.com/pedia/segrouter"
	"github.com/pedia/segrouter/internal/config"
)

func TestRegisterRoutes_Defaults(t *testing.T) {
	t.Parallel()

	r := router.New()
	require.NoError(t, registerRoutes(r, config.DefaultRoutes(), zap.NewNop()))

	tests := []struct {
		path   string
		status int
		body   string
	}{
		{"/", 200, "<h1>Welcome Home!</h1>"},
		{"/hello", 200, "<h1>Hello World!</h1>"},
		{"/gopher", 200, "<h1>gopher</h1>"},
		{"/%3Cscript%3E", 200, "<h1>%3Cscript%3E</h1>"},
		{"/a/b", 404, router.NotFoundBody},
	}

	for _, tt := range tests {
		status, body := r.Dispatch(&router.Request{Method: "GET", Path: tt.path})
		assert.Equal(t, tt.status, status, tt.path)
		assert.Equal(t, tt.body, body, tt.path)
	}
}

func TestRegisterRoutes_EscapesParams(t *testing.T) {
	t.Parallel()

	r := router.New()
	require.NoError(t, registerRoutes(r, config.DefaultRoutes(), zap.NewNop()))

	_, body := r.Dispatch(&router.Request{Method: "GET", Path: "/<b>"})
	assert.Equal(t, "<h1>&lt;b&gt;</h1>", body)
}

func TestRegisterRoutes_InvalidTemplate(t *testing.T) {
	t.Parallel()

	r := router.New()
	err := registerRoutes(r, []config.Route{{Method: "GET", Pattern: "/", Body: "{{"}}, zap.NewNop())
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	cfg, err := loadConfig(cliFlags{logLevel: "debug", logFormat: "console"})
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, config.DefaultRoutes(), cfg.Routes)

	path := filepath.Join(t.TempDir(), "segrouter.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  workers: 0\n"), 0o600))
	_, err = loadConfig(cliFlags{configPath: path})
	assert.ErrorIs(t, err, config.ErrConfigInvalid)

	_, err = loadConfig(cliFlags{configPath: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
}

func TestApplication_Serve(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Routes = append(cfg.Routes, config.Route{Method: "POST", Pattern: "/users/:id", Body: "created {{.id}}"})

	app, err := newApplication(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, app.metricsServer)

	ln := fasthttputil.NewInmemoryListener()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- app.serve(ctx, ln, nil)
	}()

	c := &fasthttp.Client{
		Dial: func(addr string) (net.Conn, error) {
			return ln.Dial()
		},
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI("http://segrouter/users/7")
	req.Header.SetMethod("POST")
	require.NoError(t, c.DoTimeout(req, resp, 5*time.Second))
	assert.Equal(t, 200, resp.StatusCode())
	assert.Equal(t, "created 7", string(resp.Body()))

	req.SetRequestURI("http://segrouter/users/7/posts")
	require.NoError(t, c.DoTimeout(req, resp, 5*time.Second))
	assert.Equal(t, 404, resp.StatusCode())

	assert.True(t, app.router.Frozen())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}

func TestNewApplication_Metrics(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Metrics.Enabled = true

	app, err := newApplication(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, app.metricsServer)
	require.NotNil(t, app.registry)

	var ctx fasthttp.RequestCtx
	ctx.Request.SetRequestURI(cfg.Metrics.Path)
	app.metricsServer.Handler(&ctx)
	assert.Equal(t, 200, ctx.Response.StatusCode())
	assert.Contains(t, string(ctx.Response.Body()), "go_goroutines")
}

func TestApplication_ServeMetricsShutdownImmediately(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Metrics.Enabled = true

	app, err := newApplication(cfg, zap.NewNop())
	require.NoError(t, err)

	ln := fasthttputil.NewInmemoryListener()
	metricsLn := fasthttputil.NewInmemoryListener()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() {
		done <- app.serve(ctx, ln, metricsLn)
	}()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not return after cancel")
	}

	_, err = metricsLn.Dial()
	assert.Error(t, err, "metrics listener still accepting after shutdown")
}

func TestGetEnvOrDefault(t *testing.T) {
	t.Setenv("SEGROUTER_TEST_ENV", "set")

	assert.Equal(t, "set", getEnvOrDefault("SEGROUTER_TEST_ENV", "default"))
	assert.Equal(t, "default", getEnvOrDefault("SEGROUTER_TEST_ENV_UNSET", "default"))
}
