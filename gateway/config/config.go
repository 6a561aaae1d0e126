package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type UpstreamConfig struct {
	// Endpoints are candidate base URLs for the Secret Network AI hub.
	// The registry probes them in order and keeps the first that answers.
	Endpoints []string `yaml:"endpoints"`
	APIKey    string   `yaml:"apiKey"`
}

type Config struct {
	Listen      string `yaml:"listen"`
	Environment string `yaml:"environment"`
	LogLevel    string `yaml:"logLevel"`

	// APIKey is the gateway's own key, checked via X-API-Key only when
	// Environment is production.
	APIKey         string   `yaml:"apiKey"`
	AllowedOrigins []string `yaml:"allowedOrigins"`

	Upstream UpstreamConfig `yaml:"upstream"`

	// MaxSessionTurns bounds per-session history. <= 0 uses the default.
	MaxSessionTurns int `yaml:"maxSessionTurns"`
}

func Default() Config {
	return Config{
		Listen:         ":8000",
		Environment:    EnvDevelopment,
		LogLevel:       "info",
		AllowedOrigins: []string{"https://prompt-hub-silk.vercel.app", "*"},
		Upstream: UpstreamConfig{
			Endpoints: []string{"https://api.scrt.network"},
		},
	}
}

// LoadConfig reads a yaml config file and applies environment overrides.
// A missing file is not an error; overrides on top of defaults still apply.
func LoadConfig(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return Config{}, err
	}

	cfg.applyEnvOverrides()

	if strings.TrimSpace(cfg.Listen) == "" {
		cfg.Listen = ":8000"
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Environment)) {
	case EnvProduction:
		cfg.Environment = EnvProduction
	default:
		cfg.Environment = EnvDevelopment
	}

	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := strings.TrimSpace(os.Getenv("SECRET_AI_API_KEY")); v != "" {
		c.Upstream.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("API_KEY")); v != "" {
		c.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); v != "" {
		origins := make([]string, 0)
		for _, origin := range strings.Split(v, ",") {
			if origin := strings.TrimSpace(origin); origin != "" {
				origins = append(origins, origin)
			}
		}
		if len(origins) > 0 {
			c.AllowedOrigins = origins
		}
	}
	if v := strings.TrimSpace(os.Getenv("ENVIRONMENT")); v != "" {
		c.Environment = v
	}
	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		c.Listen = v
	}
}

// AllowsOrigin reports whether origin may receive CORS responses.
func (c Config) AllowsOrigin(origin string) bool {
	origin = strings.TrimSpace(origin)
	for _, allowed := range c.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}
