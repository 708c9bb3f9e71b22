package client

import (
	"context"
	"io"

	"github.com/dmitrijs2005/sealpay/internal/wire"
)

type Client interface {
	// Upload seals body on the server. body is re-read from the start on
	// retries.
	Upload(ctx context.Context, body io.ReadSeeker) (*wire.UploadResponse, error)
	// Download streams the sealed blob for id into w and verifies that its
	// digest matches id.
	Download(ctx context.Context, id string, w io.Writer) error
	RequestPayment(ctx context.Context, id, payer string) (*wire.PaymentIntent, error)
	Status(ctx context.Context, id string) (*wire.PaymentStatus, error)
	Key(ctx context.Context, id, payer string) (*wire.ReleasedKey, error)
}
