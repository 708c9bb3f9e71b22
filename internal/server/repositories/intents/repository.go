package intents

import (
	"context"

	"github.com/dmitrijs2005/sealpay/internal/server/models"
)

// Repository persists the single live PaymentIntent of each content id.
type Repository interface {
	// Upsert replaces any previous intent for the content id.
	Upsert(ctx context.Context, in *models.PaymentIntent) error
	GetByContentID(ctx context.Context, contentID string) (*models.PaymentIntent, error)
	UpdateStatus(ctx context.Context, contentID string, status models.IntentStatus) error
	// ListPending returns up to limit pending intents, least recently
	// polled first. Never-polled intents come before all others.
	ListPending(ctx context.Context, limit int) ([]models.PaymentIntent, error)
	// Touch records that the intent was just polled, moving it to the back
	// of the ListPending order.
	Touch(ctx context.Context, contentID string) error
}
