package config

import "github.com/spf13/pflag"

// BindFlags registers the CLI's global flags on fs, using the current
// values of c as defaults so that flags override JSON and environment.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.ServerURL, "server", "a", c.ServerURL, "SealPay server base URL")
	fs.StringVar(&c.KeyringPath, "keyring", c.KeyringPath, "path to the local key database")
	fs.StringVar(&c.Token, "token", c.Token, "upload bearer token (or "+EnvToken+")")
	fs.StringVar(&c.Payer, "payer", c.Payer, "payer identity for ownership backends")
	fs.IntVar(&c.Retries, "retries", c.Retries, "retries for transient server failures")
	fs.DurationVar(&c.Timeout, "timeout", c.Timeout, "per-request timeout")
	// consumed by LoadConfig before flag parsing
	fs.StringP("config", "c", "", "path to JSON config file")
}
