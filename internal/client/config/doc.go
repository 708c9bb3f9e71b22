// Package config loads runtime configuration for the SealPay buyer CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c, -config or --config.
//  3. The SEALPAY_TOKEN environment variable for the upload token.
//  4. Command-line flags bound with BindFlags, which override earlier values.
//
// # JSON schema
//
// Durations accept strings like "30s" or integer nanoseconds:
//
//	{
//	  "server_url": "http://127.0.0.1:8080",
//	  "keyring_path": "sealpay-keys.db",
//	  "payer": "0x1234",
//	  "retries": 3,
//	  "timeout": "30s"
//	}
package config
