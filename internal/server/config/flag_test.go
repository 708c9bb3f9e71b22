package config

import (
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{
			name: "short flags",
			args: []string{"cmd", "-a", "127.0.0.1:9090", "-d", "db", "-s", "secret", "-t", "2h", "-l", "debug"},
			expected: &Config{
				HTTPAddr:            "127.0.0.1:9090",
				DatabaseDSN:         "db",
				SecretKey:           "secret",
				UploadTokenValidity: 2 * time.Hour,
				LogLevel:            "debug",
			},
		},
		{
			name: "long flags",
			args: []string{"cmd",
				"-blob-backend", "s3", "-s3-bucket", "bucket", "-s3-prefix", "sealed/",
				"-s3-region", "us-west-1", "-s3-endpoint", "http://endpoint",
				"-payment-backend=ownership", "-starknet-rpc", "http://node", "-nft-contract", "0xabc",
				"-reconcile-interval", "1m", "-backend-retries", "5", "-backend-timeout", "3s",
				"-max-upload", "4096", "-invoice-amount", "21",
			},
			expected: &Config{
				BlobBackend:       "s3",
				S3Bucket:          "bucket",
				S3Prefix:          "sealed/",
				S3Region:          "us-west-1",
				S3BaseEndpoint:    "http://endpoint",
				PaymentBackend:    "ownership",
				StarknetRPCURL:    "http://node",
				NFTContract:       "0xabc",
				ReconcileInterval: time.Minute,
				BackendRetries:    5,
				BackendTimeout:    3 * time.Second,
				MaxUploadSize:     4096,
				InvoiceAmountSat:  21,
			},
		},
		{
			name:     "unknown flags are ignored",
			args:     []string{"cmd", "-x", "1", "-test.v", "-a", ":1"},
			expected: &Config{HTTPAddr: ":1"},
		},
		{
			name:        "bad duration panics",
			args:        []string{"cmd", "-t", "soon"},
			expectPanic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args

			config := &Config{}

			if !tt.expectPanic {
				require.NotPanics(t, func() { parseFlags(config) })
				assert.Empty(t, cmp.Diff(tt.expected, config))
			} else {
				require.Panics(t, func() { parseFlags(config) })
			}
		})
	}
}
