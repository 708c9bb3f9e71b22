// Package httpserver exposes the sealing and payment services over HTTP.
package httpserver

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/sealpay/internal/logging"
	"github.com/dmitrijs2005/sealpay/internal/metrics"
	"github.com/dmitrijs2005/sealpay/internal/server/models"
	"github.com/dmitrijs2005/sealpay/internal/server/services"
)

const shutdownTimeout = 10 * time.Second

// ContentService seals uploads and serves sealed blobs.
type ContentService interface {
	Seal(ctx context.Context, r io.Reader) (*services.SealResult, error)
	Open(ctx context.Context, id string) (io.ReadCloser, error)
}

// PaymentService drives payment and key release for a content id.
type PaymentService interface {
	RequestPayment(ctx context.Context, id, payer string) (*models.PaymentIntent, error)
	Status(ctx context.Context, id string) (*services.PaymentStatus, error)
	ReleaseKey(ctx context.Context, id, payer string) (*services.ReleasedKey, error)
}

type HTTPServer struct {
	address   string
	contents  ContentService
	payments  PaymentService
	metrics   *metrics.Metrics
	logger    logging.Logger
	jwtSecret []byte
	maxUpload int64
}

func NewHTTPServer(address string, l logging.Logger, cs ContentService, ps PaymentService,
	m *metrics.Metrics, secretKey string, maxUpload int64) *HTTPServer {
	return &HTTPServer{
		address:   address,
		contents:  cs,
		payments:  ps,
		metrics:   m,
		logger:    l.With("module", "http_server"),
		jwtSecret: []byte(secretKey),
		maxUpload: maxUpload,
	}
}

// Handler returns the routed handler with middleware applied.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /contents", s.requireUploadToken(http.HandlerFunc(s.handleUpload)))
	mux.HandleFunc("GET /contents/{id}", s.handleDownload)
	mux.HandleFunc("POST /contents/{id}/payments", s.handleRequestPayment)
	mux.HandleFunc("GET /contents/{id}/payments/status", s.handleStatus)
	mux.HandleFunc("GET /contents/{id}/key", s.handleKey)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	return s.withRequestLog(mux)
}

// newServer builds the http.Server. Request contexts keep the values of ctx
// but not its cancellation, so Shutdown can drain in-flight requests.
func (s *HTTPServer) newServer(ctx context.Context) *http.Server {
	base := context.WithoutCancel(ctx)
	return &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return base },
	}
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := s.newServer(ctx)

	go func() {
		<-ctx.Done()
		s.logger.Info(context.Background(), "Stopping HTTP server...")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			s.logger.Error(sctx, "HTTP server shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
