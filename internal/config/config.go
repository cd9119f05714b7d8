package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/park285/Cheese-Xiangqi/internal/obslog"
	yaml "gopkg.in/yaml.v3"
)

type AppConfig struct {
	HTTPAddr  string `yaml:"http_addr"`
	RelayAddr string `yaml:"relay_addr"`
	// RelayURL is where peers dial the relay, e.g. ws://localhost:8081/ws.
	RelayURL   string `yaml:"relay_url"`
	APIBaseURL string `yaml:"api_base_url"`

	RedisURL    string `yaml:"redis_url"`
	DatabaseURL string `yaml:"database_url"`

	TrustRemotePeer bool `yaml:"trust_remote_peer"`
	GameTTLSec      int  `yaml:"game_ttl_sec"`
	MaxSessions     int  `yaml:"max_sessions"`

	MsgOverrideDir string `yaml:"msg_override_dir"`

	Log obslog.Options `yaml:"log"`
}

func defaults() *AppConfig {
	return &AppConfig{
		HTTPAddr:    ":8080",
		RelayAddr:   ":8081",
		RelayURL:    "ws://localhost:8081/ws",
		APIBaseURL:  "http://localhost:8080",
		GameTTLSec:  86400,
		MaxSessions: 1000,
		Log: obslog.Options{
			Level:   "info",
			Format:  "legacy",
			Console: true,
		},
	}
}

// Load applies defaults, then the YAML file named by XIANGQI_CONFIG (if any), then env.
func Load() (*AppConfig, error) {
	cfg := defaults()
	if path := strings.TrimSpace(os.Getenv("XIANGQI_CONFIG")); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *AppConfig) applyEnv() {
	setString(&c.HTTPAddr, "HTTP_ADDR")
	setString(&c.RelayAddr, "RELAY_ADDR")
	setString(&c.RelayURL, "RELAY_URL")
	setString(&c.APIBaseURL, "API_BASE_URL")
	setString(&c.RedisURL, "REDIS_URL")
	setString(&c.DatabaseURL, "DATABASE_URL")
	setString(&c.MsgOverrideDir, "MSG_OVERRIDE_DIR")

	if v := strings.TrimSpace(os.Getenv("TRUST_REMOTE_PEER")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.TrustRemotePeer = b
		}
	}
	if v := strings.TrimSpace(os.Getenv("GAME_TTL_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.GameTTLSec = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("MAX_SESSIONS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.MaxSessions = n
		}
	}

	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")
	if v := strings.TrimSpace(os.Getenv("LOG_TO_CONSOLE")); v != "" {
		c.Log.Console = strings.EqualFold(v, "true")
	}
	if v := strings.TrimSpace(os.Getenv("LOG_TO_FILE")); v != "" {
		if strings.EqualFold(v, "true") {
			if c.Log.File == "" {
				c.Log.File = "logs/xiangqi.log"
			}
		} else {
			c.Log.File = ""
		}
	}
	setString(&c.Log.File, "LOG_FILE")
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func (c *AppConfig) Validate() error {
	if strings.TrimSpace(c.HTTPAddr) == "" {
		return errors.New("HTTP_ADDR is required")
	}
	if strings.TrimSpace(c.RelayAddr) == "" {
		return errors.New("RELAY_ADDR is required")
	}
	if c.GameTTLSec <= 0 {
		return fmt.Errorf("GAME_TTL_SEC must be positive, got %d", c.GameTTLSec)
	}
	if c.MaxSessions <= 0 {
		return fmt.Errorf("MAX_SESSIONS must be positive, got %d", c.MaxSessions)
	}
	return nil
}

func (c *AppConfig) GameTTL() time.Duration {
	return time.Duration(c.GameTTLSec) * time.Second
}
