// Package config provides the server configuration: listener and worker
// settings, logging, metrics and the routes served with templated bodies.
package config

import (
	"html/template"
	"net/http"
	"time"

	"github.com/pedia/segrouter/internal/logging"
)

// Defaults.
const (
	DefaultAddress         = ":8080"
	DefaultWorkers         = 4
	DefaultName            = "segrouter"
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 10 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMetricsAddress  = ":9090"
	DefaultMetricsPath     = "/metrics"
)

// Config is the root configuration.
type Config struct {
	Server  ServerConfig   `yaml:"server"`
	Metrics MetricsConfig  `yaml:"metrics"`
	Logging logging.Config `yaml:"logging"`
	Routes  []Route        `yaml:"routes"`
}

// ServerConfig configures the listener and its worker pool.
type ServerConfig struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
	// Workers bounds the number of requests served concurrently.
	Workers            int      `yaml:"workers"`
	ReadTimeout        Duration `yaml:"readTimeout"`
	WriteTimeout       Duration `yaml:"writeTimeout"`
	ShutdownTimeout    Duration `yaml:"shutdownTimeout"`
	MaxRequestBodySize int      `yaml:"maxRequestBodySize"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Path    string `yaml:"path"`
}

// Route is a route served with a static body. Body is an html/template
// executed with the bound parameters, e.g. "<h1>{{.id}}</h1>".
type Route struct {
	Method  string `yaml:"method"`
	Pattern string `yaml:"pattern"`
	Body    string `yaml:"body"`
}

// ParseBody compiles the body template of the route.
func (r Route) ParseBody() (*template.Template, error) {
	return template.New(r.Method + " " + r.Pattern).Option("missingkey=zero").Parse(r.Body)
}

// DefaultRoutes returns the routes served when the configuration names none.
func DefaultRoutes() []Route {
	return []Route{
		{Method: http.MethodGet, Pattern: "/", Body: "<h1>Welcome Home!</h1>"},
		{Method: http.MethodGet, Pattern: "/hello", Body: "<h1>Hello World!</h1>"},
		{Method: http.MethodGet, Pattern: "/:id", Body: "<h1>{{.id}}</h1>"},
	}
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Name:            DefaultName,
			Address:         DefaultAddress,
			Workers:         DefaultWorkers,
			ReadTimeout:     Duration(DefaultReadTimeout),
			WriteTimeout:    Duration(DefaultWriteTimeout),
			ShutdownTimeout: Duration(DefaultShutdownTimeout),
		},
		Metrics: MetricsConfig{
			Address: DefaultMetricsAddress,
			Path:    DefaultMetricsPath,
		},
		Logging: logging.Default(),
		Routes:  DefaultRoutes(),
	}
}
