package intents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/sealpay/internal/common"
	"github.com/dmitrijs2005/sealpay/internal/dbx"
	"github.com/dmitrijs2005/sealpay/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectColumns = `content_id, backend, external_ref, payment_request, payer, status, created_at, updated_at`

func (r *PostgresRepository) Upsert(ctx context.Context, in *models.PaymentIntent) error {
	if !in.Status.Valid() {
		return fmt.Errorf("%w: intent status %q", common.ErrorInput, in.Status)
	}

	query := `
		INSERT INTO payment_intents (content_id, backend, external_ref, payment_request, payer, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (content_id) DO UPDATE SET
			backend = EXCLUDED.backend,
			external_ref = EXCLUDED.external_ref,
			payment_request = EXCLUDED.payment_request,
			payer = EXCLUDED.payer,
			status = EXCLUDED.status,
			created_at = now(),
			updated_at = now(),
			polled_at = NULL
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		in.ContentID, in.Backend, in.ExternalRef, in.PaymentRequest, in.Payer, string(in.Status),
	).Scan(&in.CreatedAt, &in.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByContentID(ctx context.Context, contentID string) (*models.PaymentIntent, error) {
	query := `SELECT ` + selectColumns + ` FROM payment_intents WHERE content_id = $1`

	in, err := scanIntent(r.db.QueryRowContext(ctx, query, contentID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to select intent: %w", err)
	}
	return in, nil
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, contentID string, status models.IntentStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: intent status %q", common.ErrorInput, status)
	}

	query := `UPDATE payment_intents SET status = $2, updated_at = now() WHERE content_id = $1`
	res, err := r.db.ExecContext(ctx, query, contentID, string(status))
	if err != nil {
		return fmt.Errorf("failed to update intent: %w", err)
	}

	return dbx.ExactlyOne(res, common.ErrorNotFound)
}

func (r *PostgresRepository) ListPending(ctx context.Context, limit int) ([]models.PaymentIntent, error) {
	query := `SELECT ` + selectColumns + ` FROM payment_intents WHERE status = 'pending' ORDER BY polled_at NULLS FIRST, updated_at LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending intents: %w", err)
	}
	defer rows.Close()

	var out []models.PaymentIntent
	for rows.Next() {
		in, err := scanIntent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan intent: %w", err)
		}
		out = append(out, *in)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostgresRepository) Touch(ctx context.Context, contentID string) error {
	query := `UPDATE payment_intents SET polled_at = now() WHERE content_id = $1`
	res, err := r.db.ExecContext(ctx, query, contentID)
	if err != nil {
		return fmt.Errorf("failed to touch intent: %w", err)
	}

	return dbx.ExactlyOne(res, common.ErrorNotFound)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanIntent(s scanner) (*models.PaymentIntent, error) {
	in := &models.PaymentIntent{}
	var status string
	if err := s.Scan(&in.ContentID, &in.Backend, &in.ExternalRef, &in.PaymentRequest,
		&in.Payer, &status, &in.CreatedAt, &in.UpdatedAt); err != nil {
		return nil, err
	}
	in.Status = models.IntentStatus(status)
	if !in.Status.Valid() {
		return nil, fmt.Errorf("unknown intent status %q", status)
	}
	return in, nil
}
