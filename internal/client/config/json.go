package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/sealpay/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
type JsonConfig struct {
	ServerURL   string         `json:"server_url"`
	KeyringPath string         `json:"keyring_path"`
	Token       string         `json:"token"`
	Payer       string         `json:"payer"`
	Retries     *int           `json:"retries"`
	Timeout     timex.Duration `json:"timeout"`
}

// parseJson overlays cfg with the values present in the file at path.
// An empty path loads nothing.
func parseJson(cfg *Config, path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	if jc.ServerURL != "" {
		cfg.ServerURL = jc.ServerURL
	}
	if jc.KeyringPath != "" {
		cfg.KeyringPath = jc.KeyringPath
	}
	if jc.Token != "" {
		cfg.Token = jc.Token
	}
	if jc.Payer != "" {
		cfg.Payer = jc.Payer
	}
	if jc.Retries != nil {
		cfg.Retries = *jc.Retries
	}
	if jc.Timeout.Duration > 0 {
		cfg.Timeout = jc.Timeout.Duration
	}
	return nil
}
