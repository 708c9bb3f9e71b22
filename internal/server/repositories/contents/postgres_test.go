package contents

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/sealpay/internal/common"
	"github.com/dmitrijs2005/sealpay/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func sampleRecord() *models.ContentRecord {
	return &models.ContentRecord{
		ID:           "ab",
		WrappedKey:   []byte("wk"),
		WrapNonce:    []byte("wn"),
		WrapTag:      []byte("wt"),
		ContentNonce: []byte("cn"),
		Algorithm:    "aes-256-gcm",
		Size:         1024,
		Fingerprint:  []byte("fp"),
	}
}

var insertQ = `(?s)^\s*INSERT\s+INTO\s+contents\b.*ON\s+CONFLICT\s+DO\s+NOTHING\s+RETURNING\s+created_at\s*$`

func TestInsertIfAbsent_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectQuery(insertQ).
		WithArgs("ab", []byte("wk"), []byte("wn"), []byte("wt"), []byte("cn"), "aes-256-gcm", int64(1024), []byte("fp"), "unpaid").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))

	c := sampleRecord()
	require.NoError(t, repo.InsertIfAbsent(context.Background(), c))
	assert.Equal(t, models.StateUnpaid, c.PaymentState)
	assert.Equal(t, now, c.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertIfAbsent_Conflict(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(insertQ).WillReturnRows(sqlmock.NewRows([]string{"created_at"}))

	err := repo.InsertIfAbsent(context.Background(), sampleRecord())
	require.ErrorIs(t, err, common.ErrorAlreadyExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertIfAbsent_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(insertQ).WillReturnError(errors.New("boom"))

	err := repo.InsertIfAbsent(context.Background(), sampleRecord())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db error")
	require.NoError(t, mock.ExpectationsWereMet())
}

var columns = []string{"id", "wrapped_key", "wrap_nonce", "wrap_tag", "content_nonce", "algorithm", "size", "fingerprint", "payment_state", "created_at"}

func TestGet_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(`(?s)^SELECT\s+id,.*FROM\s+contents\s+WHERE\s+id\s*=\s*\$1$`).
		WithArgs("ab").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("ab", []byte("wk"), []byte("wn"), []byte("wt"), []byte("cn"), "aes-256-gcm", int64(1024), []byte("fp"), "pending", now))

	c, err := repo.Get(context.Background(), "ab")
	require.NoError(t, err)
	assert.Equal(t, "ab", c.ID)
	assert.Equal(t, []byte("wk"), c.WrappedKey)
	assert.Equal(t, int64(1024), c.Size)
	assert.Equal(t, models.StatePending, c.PaymentState)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGet_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT\s+id,.*FROM\s+contents\s+WHERE\s+id`).
		WithArgs("zz").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "zz")
	require.ErrorIs(t, err, common.ErrorNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGet_UnknownState(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT\s+id,.*FROM\s+contents`).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("ab", []byte("wk"), []byte("wn"), []byte("wt"), []byte("cn"), "aes-256-gcm", int64(1), []byte("fp"), "refunded", time.Now()))

	_, err := repo.Get(context.Background(), "ab")
	require.Error(t, err)
}

func TestGetByFingerprint(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT\s+id,.*FROM\s+contents\s+WHERE\s+fingerprint\s*=\s*\$1$`).
		WithArgs([]byte("fp")).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("ab", []byte("wk"), []byte("wn"), []byte("wt"), []byte("cn"), "aes-256-gcm", int64(1), []byte("fp"), "paid", time.Now()))

	c, err := repo.GetByFingerprint(context.Background(), []byte("fp"))
	require.NoError(t, err)
	assert.Equal(t, models.StatePaid, c.PaymentState)
	require.NoError(t, mock.ExpectationsWereMet())
}

var updateQ = regexp.QuoteMeta(`UPDATE contents SET payment_state = $3 WHERE id = $1 AND payment_state = $2`)

func TestUpdateState_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(updateQ).
		WithArgs("ab", "unpaid", "pending").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateState(context.Background(), "ab", models.StateUnpaid, models.StatePending))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateState_Conflict(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(updateQ).
		WithArgs("ab", "pending", "paid").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateState(context.Background(), "ab", models.StatePending, models.StatePaid)
	require.ErrorIs(t, err, common.ErrorStateConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateState_IllegalTransitionSkipsDB(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	err := repo.UpdateState(context.Background(), "ab", models.StatePaid, models.StateUnpaid)
	require.ErrorIs(t, err, common.ErrorIllegalTransition)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateState_ExecError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(updateQ).WillReturnError(errors.New("boom"))

	err := repo.UpdateState(context.Background(), "ab", models.StateFailed, models.StatePending)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
