package config

import (
	"os"
	"time"

	"github.com/dmitrijs2005/sealpay/internal/flagx"
)

const EnvToken = "SEALPAY_TOKEN"

// Config holds runtime settings for the buyer CLI.
type Config struct {
	ServerURL   string
	KeyringPath string
	// Token is the upload bearer token; empty when the server accepts
	// anonymous uploads.
	Token string
	// Payer is the default payer identity for ownership backends.
	Payer   string
	Retries int
	Timeout time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.KeyringPath = "sealpay-keys.db"
	c.Retries = 3
	c.Timeout = 30 * time.Second
}

// LoadConfig applies defaults, the JSON file named in args and the
// environment. Flags are applied later by the command parser.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, flagx.JsonConfigPath(args)); err != nil {
		return nil, err
	}
	if v := os.Getenv(EnvToken); v != "" {
		cfg.Token = v
	}
	return cfg, nil
}
