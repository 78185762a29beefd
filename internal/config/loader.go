package config

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// Load reads the configuration file at path. Values missing from the file
// keep their defaults. A routes list in the file replaces the default routes.
func Load(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", path, err)
	}

	data, err := os.ReadFile(absPath) //nolint:gosec // path comes from the operator
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return parse(data)
}

// LoadFromReader loads configuration from an io.Reader.
func LoadFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return parse(data)
}

func parse(data []byte) (*Config, error) {
	cfg := Default()

	content := substituteEnvVars(string(data))
	if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	for i := range cfg.Routes {
		cfg.Routes[i].Method = strings.ToUpper(strings.TrimSpace(cfg.Routes[i].Method))
		if cfg.Routes[i].Method == "" {
			cfg.Routes[i].Method = http.MethodGet
		}
	}

	return cfg, nil
}

// substituteEnvVars expands ${VAR} and ${VAR:-default}. "$$" is a literal "$".
func substituteEnvVars(content string) string {
	content = strings.ReplaceAll(content, "$$", "\x00ESCAPED_DOLLAR\x00")

	result := envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		defaultValue := ""
		if len(submatches) >= 3 {
			defaultValue = submatches[2]
		}

		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return defaultValue
	})

	return strings.ReplaceAll(result, "\x00ESCAPED_DOLLAR\x00", "$")
}

// Validate checks the configuration. Every returned error matches
// ErrConfigInvalid.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Address == "" {
		errs = append(errs, NewConfigError("server.address", "must not be empty"))
	}
	if c.Server.Workers <= 0 {
		errs = append(errs, NewConfigError("server.workers", "must be positive"))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, NewConfigError("server.readTimeout", "must not be negative"))
	}
	if c.Server.WriteTimeout < 0 {
		errs = append(errs, NewConfigError("server.writeTimeout", "must not be negative"))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, NewConfigError("server.shutdownTimeout", "must be positive"))
	}
	if c.Server.MaxRequestBodySize < 0 {
		errs = append(errs, NewConfigError("server.maxRequestBodySize", "must not be negative"))
	}

	if c.Metrics.Enabled {
		if c.Metrics.Address == "" {
			errs = append(errs, NewConfigError("metrics.address", "must not be empty when metrics are enabled"))
		}
		if !strings.HasPrefix(c.Metrics.Path, "/") {
			errs = append(errs, NewConfigError("metrics.path", "must begin with '/'"))
		}
	}

	for i, r := range c.Routes {
		field := fmt.Sprintf("routes[%d]", i)
		if r.Method == "" {
			errs = append(errs, NewConfigError(field+".method", "must not be empty"))
		}
		if _, err := r.ParseBody(); err != nil {
			errs = append(errs, NewConfigErrorWithCause(field+".body", "invalid template", err))
		}
	}

	return errors.Join(errs...)
}
