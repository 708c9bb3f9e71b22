package contents

import (
	"context"

	"github.com/dmitrijs2005/sealpay/internal/server/models"
)

// Repository persists ContentRecords. Rows are created once and never deleted;
// only the payment state changes afterwards.
type Repository interface {
	// InsertIfAbsent creates the record, or returns common.ErrorAlreadyExists
	// when the id or fingerprint is already taken.
	InsertIfAbsent(ctx context.Context, c *models.ContentRecord) error
	Get(ctx context.Context, id string) (*models.ContentRecord, error)
	GetByFingerprint(ctx context.Context, fingerprint []byte) (*models.ContentRecord, error)
	// UpdateState moves the row from one state to another. It returns
	// common.ErrorStateConflict when the row is not currently in from.
	UpdateState(ctx context.Context, id string, from, to models.PaymentState) error
}
