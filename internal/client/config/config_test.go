package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	want := Config{
		ServerURL:   "http://127.0.0.1:8080",
		KeyringPath: "sealpay-keys.db",
		Retries:     3,
		Timeout:     30 * time.Second,
	}
	assert.Empty(t, cmp.Diff(want, c))
}

func TestLoadConfig_Precedence(t *testing.T) {
	path := writeTempJSON(t, "", "", map[string]any{
		"server_url": "http://json:1",
		"token":      "json-token",
		"payer":      "0xjson",
	})
	t.Setenv(EnvToken, "env-token")

	cfg, err := LoadConfig([]string{"key", "abc", "--config", path})
	require.NoError(t, err)

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg.BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"--payer", "0xflag", "--config", path}))

	want := &Config{
		ServerURL:   "http://json:1",
		KeyringPath: "sealpay-keys.db",
		Token:       "env-token",
		Payer:       "0xflag",
		Retries:     3,
		Timeout:     30 * time.Second,
	}
	assert.Empty(t, cmp.Diff(want, cfg))
}

func TestBindFlags(t *testing.T) {
	cfg := &Config{}
	cfg.LoadDefaults()

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg.BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"-a", "http://srv", "--keyring", "/tmp/k.db", "--retries", "0", "--timeout", "5s"}))

	want := &Config{
		ServerURL:   "http://srv",
		KeyringPath: "/tmp/k.db",
		Retries:     0,
		Timeout:     5 * time.Second,
	}
	assert.Empty(t, cmp.Diff(want, cfg))
}

func TestLoadConfig_BadFile(t *testing.T) {
	_, err := LoadConfig([]string{"-c", "/nonexistent/cfg.json"})
	assert.Error(t, err)
}
