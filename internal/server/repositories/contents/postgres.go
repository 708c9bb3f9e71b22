package contents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/sealpay/internal/common"
	"github.com/dmitrijs2005/sealpay/internal/dbx"
	"github.com/dmitrijs2005/sealpay/internal/server/models"
)

// PostgresRepository implements content storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectColumns = `id, wrapped_key, wrap_nonce, wrap_tag, content_nonce, algorithm, size, fingerprint, payment_state, created_at`

// InsertIfAbsent inserts a new record in state unpaid. A conflict on either
// unique column leaves the existing row untouched and yields ErrorAlreadyExists.
func (r *PostgresRepository) InsertIfAbsent(ctx context.Context, c *models.ContentRecord) error {
	query := `
		INSERT INTO contents (id, wrapped_key, wrap_nonce, wrap_tag, content_nonce, algorithm, size, fingerprint, payment_state)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT DO NOTHING
		RETURNING created_at
	`
	state := c.PaymentState
	if state == "" {
		state = models.StateUnpaid
	}

	err := r.db.QueryRowContext(ctx, query,
		c.ID, c.WrappedKey, c.WrapNonce, c.WrapTag, c.ContentNonce, c.Algorithm, c.Size, c.Fingerprint, string(state),
	).Scan(&c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}

	c.PaymentState = state
	return nil
}

// Get returns the record with the given id or ErrorNotFound.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.ContentRecord, error) {
	query := `SELECT ` + selectColumns + ` FROM contents WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetByFingerprint returns the record sealed from the same plaintext, if any.
func (r *PostgresRepository) GetByFingerprint(ctx context.Context, fingerprint []byte) (*models.ContentRecord, error) {
	query := `SELECT ` + selectColumns + ` FROM contents WHERE fingerprint = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, fingerprint))
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.ContentRecord, error) {
	c := &models.ContentRecord{}
	var state string

	err := row.Scan(&c.ID, &c.WrappedKey, &c.WrapNonce, &c.WrapTag, &c.ContentNonce,
		&c.Algorithm, &c.Size, &c.Fingerprint, &state, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to select content: %w", err)
	}

	c.PaymentState, err = models.ParsePaymentState(state)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// UpdateState performs a guarded transition. The from state is checked both
// against the transition table and in the WHERE clause, so a concurrent
// writer that already moved the row makes this call fail instead of
// overwriting its result.
func (r *PostgresRepository) UpdateState(ctx context.Context, id string, from, to models.PaymentState) error {
	if _, err := from.Transition(to); err != nil {
		return err
	}

	query := `UPDATE contents SET payment_state = $3 WHERE id = $1 AND payment_state = $2`
	res, err := r.db.ExecContext(ctx, query, id, string(from), string(to))
	if err != nil {
		return fmt.Errorf("failed to update state: %w", err)
	}

	return dbx.ExactlyOne(res, fmt.Errorf("%w: %s is not %s", common.ErrorStateConflict, id, from))
}
