package keys

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/sealpay/internal/common"
	"github.com/dmitrijs2005/sealpay/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Put(ctx context.Context, k *ReleasedKey) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO released_keys (content_id, algorithm, content_key, nonce)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(content_id) DO UPDATE SET
			algorithm = excluded.algorithm,
			content_key = excluded.content_key,
			nonce = excluded.nonce,
			saved_at = CURRENT_TIMESTAMP
	`, k.ContentID, k.Algorithm, k.ContentKey, k.Nonce)
	if err != nil {
		return fmt.Errorf("failed to save key[%s]: %w", k.ContentID, err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, contentID string) (*ReleasedKey, error) {
	k := &ReleasedKey{}
	err := r.db.QueryRowContext(ctx, `
		SELECT content_id, algorithm, content_key, nonce, saved_at
		FROM released_keys WHERE content_id = ?`, contentID).
		Scan(&k.ContentID, &k.Algorithm, &k.ContentKey, &k.Nonce, &k.SavedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("key[%s]: %w", contentID, common.ErrorNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key[%s]: %w", contentID, err)
	}
	return k, nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]*ReleasedKey, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT content_id, algorithm, content_key, nonce, saved_at
		FROM released_keys ORDER BY saved_at, content_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close()

	var result []*ReleasedKey
	for rows.Next() {
		k := &ReleasedKey{}
		if err := rows.Scan(&k.ContentID, &k.Algorithm, &k.ContentKey, &k.Nonce, &k.SavedAt); err != nil {
			return nil, fmt.Errorf("failed to scan key row: %w", err)
		}
		result = append(result, k)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate key rows: %w", err)
	}

	return result, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, contentID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM released_keys WHERE content_id = ?`, contentID)
	if err != nil {
		return fmt.Errorf("failed to delete key[%s]: %w", contentID, err)
	}
	return nil
}
