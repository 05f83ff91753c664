package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	AppName string
	Env     string

	APIBaseURL string
	SocketURL  string

	StateDir     string
	DeviceSecret string

	HTTPTimeout time.Duration

	ReconnectBase       time.Duration
	ReconnectCap        time.Duration
	ReconnectJitter     float64
	ReconnectResetAfter time.Duration

	Debug bool
}

func Load() (*Config, error) {
	cfg := &Config{
		AppName: getEnv("APP_NAME", "ArtShowcase Client"),
		Env:     getEnv("APP_ENV", "development"),

		APIBaseURL: getEnv("API_BASE_URL", "http://localhost:8000"),
		SocketURL:  getEnv("SOCKET_URL", "ws://localhost:8000/ws"),

		StateDir:     getEnv("STATE_DIR", defaultStateDir()),
		DeviceSecret: os.Getenv("DEVICE_SECRET"),

		HTTPTimeout: getEnvAsDuration("HTTP_TIMEOUT", 15*time.Second),

		ReconnectBase:       getEnvAsDuration("RECONNECT_BASE", time.Second),
		ReconnectCap:        getEnvAsDuration("RECONNECT_CAP", 30*time.Second),
		ReconnectJitter:     getEnvAsFloat("RECONNECT_JITTER", 0.2),
		ReconnectResetAfter: getEnvAsDuration("RECONNECT_RESET_AFTER", 60*time.Second),

		Debug: getEnvAsBool("DEBUG", true),
	}

	if cfg.DeviceSecret == "" {
		return nil, fmt.Errorf("DEVICE_SECRET is required")
	}
	if cfg.ReconnectBase <= 0 || cfg.ReconnectCap < cfg.ReconnectBase {
		return nil, fmt.Errorf("invalid reconnect window: base=%s cap=%s", cfg.ReconnectBase, cfg.ReconnectCap)
	}
	if cfg.ReconnectJitter < 0 || cfg.ReconnectJitter >= 1 {
		return nil, fmt.Errorf("RECONNECT_JITTER must be in [0, 1)")
	}

	if err := os.MkdirAll(cfg.StateDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating state dir: %w", err)
	}

	return cfg, nil
}

func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".artclient"
	}
	return home + "/.artclient"
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvAsBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvAsFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvAsDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
