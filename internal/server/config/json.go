package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/sealpay/internal/flagx"
	"github.com/dmitrijs2005/sealpay/internal/timex"
)

// JsonConfig is the on-disk shape of the server config. Duration fields
// accept "30s" style strings or integer nanoseconds.
type JsonConfig struct {
	HTTPAddr            string         `json:"http_addr"`
	DatabaseDSN         string         `json:"database_dsn"`
	SecretKey           string         `json:"secret_key"`
	UploadTokenValidity timex.Duration `json:"upload_token_validity"`
	MasterKeyBase64     string         `json:"master_key_base64"`
	MaxUploadSize       int64          `json:"max_upload_size"`
	LogLevel            string         `json:"log_level"`

	BlobBackend    string `json:"blob_backend"`
	BlobDir        string `json:"blob_dir"`
	BadgerDir      string `json:"badger_dir"`
	S3Bucket       string `json:"s3_bucket"`
	S3Prefix       string `json:"s3_prefix"`
	S3Region       string `json:"s3_region"`
	S3BaseEndpoint string `json:"s3_base_endpoint"`
	S3AccessKey    string `json:"s3_access_key"`
	S3SecretKey    string `json:"s3_secret_key"`

	PaymentBackend    string         `json:"payment_backend"`
	LNDURL            string         `json:"lnd_url"`
	LNDMacaroonHex    string         `json:"lnd_macaroon_hex"`
	LNDTLSCertBase64  string         `json:"lnd_tls_cert_base64"`
	InvoiceAmountSat  int64          `json:"invoice_amount_sat"`
	StarknetRPCURL    string         `json:"starknet_rpc_url"`
	NFTContract       string         `json:"nft_contract"`
	RelayURL          string         `json:"relay_url"`
	RelayAPIKey       string         `json:"relay_api_key"`
	ReconcileInterval timex.Duration `json:"reconcile_interval"`
	BackendRetries    int            `json:"backend_retries"`
	BackendTimeout    timex.Duration `json:"backend_timeout"`
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// parseJson loads the file named by -c or -config, if any, and overlays its
// non-zero values onto config. It panics on unreadable or invalid files.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.MasterKeyBase64, c.MasterKeyBase64)
	setString(&config.LogLevel, c.LogLevel)
	if c.UploadTokenValidity.Duration > 0 {
		config.UploadTokenValidity = c.UploadTokenValidity.Duration
	}
	if c.MaxUploadSize > 0 {
		config.MaxUploadSize = c.MaxUploadSize
	}

	setString(&config.BlobBackend, c.BlobBackend)
	setString(&config.BlobDir, c.BlobDir)
	setString(&config.BadgerDir, c.BadgerDir)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Prefix, c.S3Prefix)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.S3AccessKey, c.S3AccessKey)
	setString(&config.S3SecretKey, c.S3SecretKey)

	setString(&config.PaymentBackend, c.PaymentBackend)
	setString(&config.LNDURL, c.LNDURL)
	setString(&config.LNDMacaroonHex, c.LNDMacaroonHex)
	setString(&config.LNDTLSCertBase64, c.LNDTLSCertBase64)
	setString(&config.StarknetRPCURL, c.StarknetRPCURL)
	setString(&config.NFTContract, c.NFTContract)
	setString(&config.RelayURL, c.RelayURL)
	setString(&config.RelayAPIKey, c.RelayAPIKey)
	if c.InvoiceAmountSat > 0 {
		config.InvoiceAmountSat = c.InvoiceAmountSat
	}
	if c.ReconcileInterval.Duration != 0 {
		config.ReconcileInterval = c.ReconcileInterval.Duration
	}
	if c.BackendRetries > 0 {
		config.BackendRetries = c.BackendRetries
	}
	if c.BackendTimeout.Duration > 0 {
		config.BackendTimeout = c.BackendTimeout.Duration
	}
}
