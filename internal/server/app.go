// Package server wires the SealPay components together and runs the HTTP
// endpoint and the pending-intent reconciler until a shutdown signal.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/sealpay/internal/blobstore"
	"github.com/dmitrijs2005/sealpay/internal/keyvault"
	"github.com/dmitrijs2005/sealpay/internal/logging"
	"github.com/dmitrijs2005/sealpay/internal/metrics"
	"github.com/dmitrijs2005/sealpay/internal/payment"
	"github.com/dmitrijs2005/sealpay/internal/server/config"
	"github.com/dmitrijs2005/sealpay/internal/server/httpserver"
	"github.com/dmitrijs2005/sealpay/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/sealpay/internal/server/services"
)

type App struct {
	config     *config.Config
	logger     logging.Logger
	db         *sql.DB
	blobs      blobstore.Store
	http       *httpserver.HTTPServer
	reconciler *services.Reconciler
}

func blobConfig(c *config.Config) blobstore.Config {
	return blobstore.Config{
		Backend:        blobstore.Backend(c.BlobBackend),
		Dir:            c.BlobDir,
		BadgerDir:      c.BadgerDir,
		S3Bucket:       c.S3Bucket,
		S3Prefix:       c.S3Prefix,
		S3Region:       c.S3Region,
		S3BaseEndpoint: c.S3BaseEndpoint,
		S3AccessKey:    c.S3AccessKey,
		S3SecretKey:    c.S3SecretKey,
	}
}

func paymentConfig(c *config.Config) (payment.Config, error) {
	kind, err := payment.ParseKind(c.PaymentBackend)
	if err != nil {
		return payment.Config{}, err
	}
	return payment.Config{
		Backend:          kind,
		LNDURL:           c.LNDURL,
		LNDMacaroonHex:   c.LNDMacaroonHex,
		LNDTLSCertBase64: c.LNDTLSCertBase64,
		InvoiceAmountSat: c.InvoiceAmountSat,
		StarknetRPCURL:   c.StarknetRPCURL,
		NFTContract:      c.NFTContract,
		RelayURL:         c.RelayURL,
		RelayAPIKey:      c.RelayAPIKey,
		Retries:          c.BackendRetries,
		Timeout:          c.BackendTimeout,
	}, nil
}

// NewApp validates secrets, opens storage and builds every component.
// Resources opened before a failure are released.
func NewApp(ctx context.Context, c *config.Config) (_ *App, err error) {
	logger := logging.NewJSON(os.Stdout, c.LogLevel)

	master, err := keyvault.ParseMasterSecret(c.MasterKeyBase64)
	if err != nil {
		return nil, fmt.Errorf("master key (%s): %w", config.EnvMasterKey, err)
	}
	vault, err := keyvault.New(master)
	if err != nil {
		return nil, fmt.Errorf("key vault init error: %w", err)
	}

	pcfg, err := paymentConfig(c)
	if err != nil {
		return nil, err
	}
	oracle, err := payment.New(pcfg, logger)
	if err != nil {
		return nil, fmt.Errorf("payment backend init error: %w", err)
	}

	db, err := repomanager.OpenPostgres(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	defer func() {
		if err != nil {
			_ = db.Close()
		}
	}()

	rm := repomanager.NewPostgresRepositoryManager()
	if err = rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	blobs, err := blobstore.New(ctx, blobConfig(c), logger)
	if err != nil {
		return nil, fmt.Errorf("blob store init error: %w", err)
	}

	met := metrics.New()
	sealer := services.NewSealer(db, rm, blobs, vault, c.MaxUploadSize, met, logger)
	authorizer := services.NewReleaseAuthorizer(db, rm, oracle, vault, met, logger)

	return &App{
		config:     c,
		logger:     logger,
		db:         db,
		blobs:      blobs,
		http:       httpserver.NewHTTPServer(c.HTTPAddr, logger, sealer, authorizer, met, c.SecretKey, c.MaxUploadSize),
		reconciler: services.NewReconciler(db, rm, authorizer, c.ReconcileInterval, logger),
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.http.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run blocks until a signal arrives or the HTTP server fails, then closes
// the blob store and the database.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.reconciler.Run(ctx)
	}()

	wg.Wait()

	if err := app.blobs.Close(); err != nil {
		app.logger.Error(context.Background(), "blob store close failed", "error", err)
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error(context.Background(), "db close failed", "error", err)
	}
	app.logger.Info(context.Background(), "App stopped")
}
