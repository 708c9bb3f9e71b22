package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/sealpay/internal/common"
	"github.com/dmitrijs2005/sealpay/internal/dbx"
	"github.com/dmitrijs2005/sealpay/internal/keyvault"
	"github.com/dmitrijs2005/sealpay/internal/logging"
	"github.com/dmitrijs2005/sealpay/internal/metrics"
	"github.com/dmitrijs2005/sealpay/internal/payment"
	"github.com/dmitrijs2005/sealpay/internal/server/models"
	"github.com/dmitrijs2005/sealpay/internal/server/repositories/repomanager"
)

// PaymentStatus is the reconciled view of one content id.
type PaymentStatus struct {
	ContentID    string
	IntentStatus models.IntentStatus
	PaymentState models.PaymentState
}

// ReleasedKey is the material a paying client needs to decrypt a blob.
type ReleasedKey struct {
	ID         string
	Algorithm  string
	ContentKey []byte
	Nonce      []byte
}

// ReleaseAuthorizer owns the payment state of content records. It is the
// only component that mutates payment_state, and it discloses a content key
// only while the settlement backend confirms payment.
type ReleaseAuthorizer struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	oracle      payment.Oracle
	vault       *keyvault.Vault
	metrics     *metrics.Metrics
	logger      logging.Logger
}

func NewReleaseAuthorizer(db *sql.DB, m repomanager.RepositoryManager, oracle payment.Oracle,
	vault *keyvault.Vault, met *metrics.Metrics, logger logging.Logger) *ReleaseAuthorizer {
	return &ReleaseAuthorizer{
		db:          db,
		repomanager: m,
		oracle:      oracle,
		vault:       vault,
		metrics:     met,
		logger:      logger.With("module", "release", "backend", oracle.Kind()),
	}
}

func (a *ReleaseAuthorizer) load(ctx context.Context, id string) (*models.ContentRecord, error) {
	if _, err := keyvault.DecodeContentID(id); err != nil {
		return nil, err
	}
	return a.repomanager.Contents(a.db).Get(ctx, id)
}

// loadIntent returns nil without error when no intent exists.
func (a *ReleaseAuthorizer) loadIntent(ctx context.Context, id string) (*models.PaymentIntent, error) {
	in, err := a.repomanager.Intents(a.db).GetByContentID(ctx, id)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, nil
	}
	return in, err
}

// RequestPayment returns the live payment intent for id, creating one when
// the content is unpaid or its previous attempt failed.
func (a *ReleaseAuthorizer) RequestPayment(ctx context.Context, id, payer string) (*models.PaymentIntent, error) {
	rec, err := a.load(ctx, id)
	if err != nil {
		return nil, err
	}

	switch rec.PaymentState {
	case models.StatePaid, models.StatePending:
		in, err := a.loadIntent(ctx, id)
		if err != nil {
			return nil, err
		}
		if in == nil {
			return nil, fmt.Errorf("%w: %s is %s without an intent", common.ErrorIntegrity, id, rec.PaymentState)
		}
		return in, nil
	}

	in, err := a.oracle.CreateIntent(ctx, id, payer)
	if err != nil {
		return nil, err
	}

	err = dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := a.repomanager.Contents(tx).UpdateState(ctx, id, rec.PaymentState, models.StatePending); err != nil {
			return err
		}
		return a.repomanager.Intents(tx).Upsert(ctx, in)
	})
	if err != nil {
		if errors.Is(err, common.ErrorStateConflict) {
			a.logger.Info(ctx, "concurrent payment request, returning existing intent", "id", id)
			winner, lerr := a.loadIntent(ctx, id)
			if lerr != nil {
				return nil, lerr
			}
			if winner != nil {
				return winner, nil
			}
		}
		return nil, err
	}

	a.metrics.StateTransition(string(rec.PaymentState), string(models.StatePending))
	a.logger.Info(ctx, "payment intent created", "id", id, "ref", in.ExternalRef)
	return in, nil
}

// Status reports the payment status of id, polling the backend while the
// intent is pending.
func (a *ReleaseAuthorizer) Status(ctx context.Context, id string) (*PaymentStatus, error) {
	rec, err := a.load(ctx, id)
	if err != nil {
		return nil, err
	}
	in, err := a.loadIntent(ctx, id)
	if err != nil {
		return nil, err
	}
	if in == nil {
		return nil, fmt.Errorf("%w: no payment intent for %s", common.ErrorNotFound, id)
	}

	if err := a.reconcile(ctx, rec, in); err != nil {
		return nil, err
	}

	return &PaymentStatus{ContentID: id, IntentStatus: in.Status, PaymentState: rec.PaymentState}, nil
}

// reconcile polls a pending intent and applies a settled or failed outcome.
// rec and in are updated in place.
func (a *ReleaseAuthorizer) reconcile(ctx context.Context, rec *models.ContentRecord, in *models.PaymentIntent) error {
	if rec.PaymentState != models.StatePending || in.Status != models.IntentPending {
		return nil
	}
	if in.Backend != string(a.oracle.Kind()) {
		return fmt.Errorf("%w: intent was created by backend %q", common.ErrorExternalBackend, in.Backend)
	}

	st, err := a.oracle.PollSettlement(ctx, in)
	if err != nil {
		a.metrics.SettlementPoll(in.Backend, metrics.ResultError)
		a.logger.Warn(ctx, "settlement poll failed", "id", rec.ID, "error", err)
		return err
	}

	switch {
	case st.Settled:
		a.metrics.SettlementPoll(in.Backend, metrics.ResultSettled)
		return a.transition(ctx, rec, in, models.StatePaid, models.IntentSettled)
	case st.Failed:
		a.metrics.SettlementPoll(in.Backend, metrics.ResultFailed)
		a.logger.Info(ctx, "payment failed", "id", rec.ID, "reason", st.Reason)
		return a.transition(ctx, rec, in, models.StateFailed, models.IntentFailed)
	default:
		a.metrics.SettlementPoll(in.Backend, metrics.ResultPending)
		return nil
	}
}

func (a *ReleaseAuthorizer) transition(ctx context.Context, rec *models.ContentRecord, in *models.PaymentIntent,
	to models.PaymentState, status models.IntentStatus) error {
	err := dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := a.repomanager.Contents(tx).UpdateState(ctx, rec.ID, rec.PaymentState, to); err != nil {
			return err
		}
		return a.repomanager.Intents(tx).UpdateStatus(ctx, rec.ID, status)
	})
	if errors.Is(err, common.ErrorStateConflict) {
		// another request applied the outcome first
		fresh, lerr := a.repomanager.Contents(a.db).Get(ctx, rec.ID)
		if lerr != nil {
			return lerr
		}
		freshIntent, lerr := a.repomanager.Intents(a.db).GetByContentID(ctx, rec.ID)
		if lerr != nil {
			return lerr
		}
		*rec, *in = *fresh, *freshIntent
		return nil
	}
	if err != nil {
		return err
	}

	a.metrics.StateTransition(string(rec.PaymentState), string(to))
	a.logger.Info(ctx, "payment state changed", "id", rec.ID, "from", rec.PaymentState, "to", to)
	rec.PaymentState = to
	in.Status = status
	return nil
}

// ReleaseKey unwraps and returns the content key of id once payment is
// confirmed. Payer-bound backends require the requester's payer and check
// the current settlement against it; a reversed settlement is refused
// without changing the stored state.
func (a *ReleaseAuthorizer) ReleaseKey(ctx context.Context, id, payer string) (*ReleasedKey, error) {
	key, err := a.releaseKey(ctx, id, payer)
	switch {
	case err == nil:
		a.metrics.KeyRelease(metrics.ResultOK)
	case errors.Is(err, common.ErrorPaymentRequired):
		a.metrics.KeyRelease(metrics.ResultPaymentRequired)
	default:
		a.metrics.KeyRelease(metrics.ResultError)
	}
	return key, err
}

func (a *ReleaseAuthorizer) releaseKey(ctx context.Context, id, payer string) (*ReleasedKey, error) {
	kind := a.oracle.Kind()
	if kind.UsesPayer() && payer == "" {
		return nil, fmt.Errorf("%w: payer is required", common.ErrorInput)
	}

	rec, err := a.load(ctx, id)
	if err != nil {
		return nil, err
	}
	in, err := a.loadIntent(ctx, id)
	if err != nil {
		return nil, err
	}

	// Ownership needs no prior payment step. The intent is opened on first
	// request so a current owner still reaches paid through guarded updates.
	if in == nil && kind == payment.KindOwnership {
		if in, err = a.RequestPayment(ctx, id, payer); err != nil {
			return nil, err
		}
		if rec, err = a.load(ctx, id); err != nil {
			return nil, err
		}
	}

	if in != nil {
		polled := *in
		if kind == payment.KindOwnership {
			// the owner is whoever holds the token now
			polled.Payer = payer
		}
		if err := a.reconcile(ctx, rec, &polled); err != nil {
			return nil, err
		}
		in.Status = polled.Status
	}

	if rec.PaymentState != models.StatePaid {
		pr := &common.PaymentRequiredError{ContentID: id}
		if in != nil {
			pr.IntentStatus = string(in.Status)
		}
		return nil, pr
	}
	if in == nil {
		return nil, fmt.Errorf("%w: %s is paid without an intent", common.ErrorIntegrity, id)
	}

	current := *in
	if kind.UsesPayer() {
		current.Payer = payer
	}
	st, err := a.oracle.PollSettlement(ctx, &current)
	if err != nil {
		a.metrics.SettlementPoll(in.Backend, metrics.ResultError)
		return nil, err
	}
	if !st.Settled {
		a.metrics.SettlementPoll(in.Backend, metrics.ResultPending)
		a.logger.Warn(ctx, "paid content not confirmed by backend", "id", id, "reason", st.Reason)
		status := models.IntentPending
		if st.Failed {
			status = models.IntentFailed
		}
		return nil, &common.PaymentRequiredError{ContentID: id, IntentStatus: string(status)}
	}
	a.metrics.SettlementPoll(in.Backend, metrics.ResultSettled)

	contentKey, err := a.vault.Unwrap(&keyvault.WrappedKey{
		Ciphertext: rec.WrappedKey,
		Nonce:      rec.WrapNonce,
		Tag:        rec.WrapTag,
	}, id)
	if err != nil {
		a.logger.Error(ctx, "content key failed authentication", "id", id)
		return nil, common.ErrorAuthentication
	}

	a.logger.Info(ctx, "content key released", "id", id)
	return &ReleasedKey{ID: id, Algorithm: rec.Algorithm, ContentKey: contentKey, Nonce: rec.ContentNonce}, nil
}
