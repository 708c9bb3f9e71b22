package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/dmitrijs2005/sealpay/internal/logging"
	"github.com/dmitrijs2005/sealpay/internal/server/repositories/repomanager"
)

const (
	defaultReconcileBatch   = 100
	defaultReconcileTimeout = 30 * time.Second
)

// Reconciler periodically polls pending intents so settlement is observed
// without a client asking for status.
type Reconciler struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	authorizer  *ReleaseAuthorizer
	interval    time.Duration
	batch       int
	timeout     time.Duration
	logger      logging.Logger
}

func NewReconciler(db *sql.DB, m repomanager.RepositoryManager, a *ReleaseAuthorizer,
	interval time.Duration, logger logging.Logger) *Reconciler {
	return &Reconciler{
		db:          db,
		repomanager: m,
		authorizer:  a,
		interval:    interval,
		batch:       defaultReconcileBatch,
		timeout:     defaultReconcileTimeout,
		logger:      logger.With("module", "reconciler"),
	}
}

// Run ticks until ctx is done. A non-positive interval disables the loop.
func (r *Reconciler) Run(ctx context.Context) {
	if r.interval <= 0 {
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.RunOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// RunOnce reconciles one batch of pending intents and returns how many
// were checked without error. Each id is handled independently and marked
// polled, so intents that stay pending rotate through the batch.
func (r *Reconciler) RunOnce(ctx context.Context) int {
	intents := r.repomanager.Intents(r.db)
	pending, err := intents.ListPending(ctx, r.batch)
	if err != nil {
		r.logger.Error(ctx, "failed to list pending intents", "error", err)
		return 0
	}

	ok := 0
	for _, in := range pending {
		if ctx.Err() != nil {
			break
		}
		cctx, cancel := context.WithTimeout(ctx, r.timeout)
		st, err := r.authorizer.Status(cctx, in.ContentID)
		cancel()

		if terr := intents.Touch(ctx, in.ContentID); terr != nil {
			r.logger.Warn(ctx, "failed to mark intent polled", "id", in.ContentID, "error", terr)
		}

		if err != nil {
			r.logger.Warn(ctx, "reconcile failed", "id", in.ContentID, "error", err)
			continue
		}
		ok++
		if st.IntentStatus != in.Status {
			r.logger.Info(ctx, "intent reconciled", "id", in.ContentID, "status", st.IntentStatus)
		}
	}
	return ok
}
