package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/sealpay/internal/flagx"
)

var knownFlags = []string{
	"-a", "-d", "-s", "-t", "-l",
	"-max-upload",
	"-blob-backend", "-blob-dir", "-badger-dir",
	"-s3-bucket", "-s3-prefix", "-s3-region", "-s3-endpoint",
	"-payment-backend", "-lnd-url", "-invoice-amount",
	"-starknet-rpc", "-nft-contract", "-relay-url",
	"-reconcile-interval", "-backend-retries", "-backend-timeout",
}

// parseFlags overlays command-line flags onto config.
//
// Short flags:
//
//	-a string   HTTP bind address (e.g. ":8080")
//	-d string   PostgreSQL DSN
//	-s string   upload token secret
//	-t duration upload token validity
//	-l string   log level
//
// The remaining flags use long names matching their JSON keys. Only the
// flags listed in knownFlags are parsed; the rest of os.Args is ignored.
// Secrets such as the master key and S3 or relay credentials are only read
// from JSON or the environment.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], knownFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "upload token secret key")
	fs.DurationVar(&config.UploadTokenValidity, "t", config.UploadTokenValidity, "upload token validity")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level (debug, info, warn, error)")
	fs.Int64Var(&config.MaxUploadSize, "max-upload", config.MaxUploadSize, "max upload size in bytes")

	fs.StringVar(&config.BlobBackend, "blob-backend", config.BlobBackend, "blob backend (fs, s3, badger)")
	fs.StringVar(&config.BlobDir, "blob-dir", config.BlobDir, "fs blob directory")
	fs.StringVar(&config.BadgerDir, "badger-dir", config.BadgerDir, "badger data directory")
	fs.StringVar(&config.S3Bucket, "s3-bucket", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Prefix, "s3-prefix", config.S3Prefix, "S3 key prefix")
	fs.StringVar(&config.S3Region, "s3-region", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "s3-endpoint", config.S3BaseEndpoint, "S3 base endpoint")

	fs.StringVar(&config.PaymentBackend, "payment-backend", config.PaymentBackend, "payment backend (invoice, ownership, sponsored)")
	fs.StringVar(&config.LNDURL, "lnd-url", config.LNDURL, "LND REST URL")
	fs.Int64Var(&config.InvoiceAmountSat, "invoice-amount", config.InvoiceAmountSat, "invoice amount in satoshi")
	fs.StringVar(&config.StarknetRPCURL, "starknet-rpc", config.StarknetRPCURL, "Starknet JSON-RPC URL")
	fs.StringVar(&config.NFTContract, "nft-contract", config.NFTContract, "access NFT contract address")
	fs.StringVar(&config.RelayURL, "relay-url", config.RelayURL, "sponsored mint relay URL")
	fs.DurationVar(&config.ReconcileInterval, "reconcile-interval", config.ReconcileInterval, "pending intent reconcile interval, 0 disables")
	fs.IntVar(&config.BackendRetries, "backend-retries", config.BackendRetries, "settlement backend retries")
	fs.DurationVar(&config.BackendTimeout, "backend-timeout", config.BackendTimeout, "settlement backend request timeout")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
