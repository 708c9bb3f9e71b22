package services

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/sealpay/internal/blobstore"
	"github.com/dmitrijs2005/sealpay/internal/common"
	"github.com/dmitrijs2005/sealpay/internal/dbx"
	"github.com/dmitrijs2005/sealpay/internal/keyvault"
	"github.com/dmitrijs2005/sealpay/internal/logging"
	"github.com/dmitrijs2005/sealpay/internal/metrics"
	"github.com/dmitrijs2005/sealpay/internal/payment"
	"github.com/dmitrijs2005/sealpay/internal/server/models"
	"github.com/dmitrijs2005/sealpay/internal/server/repositories/contents"
	"github.com/dmitrijs2005/sealpay/internal/server/repositories/intents"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// -------- in-memory repositories --------

type memStore struct {
	mu       sync.Mutex
	contents map[string]*models.ContentRecord
	intents  map[string]*models.PaymentIntent
	// polled holds a poll sequence per content id; absent means never polled.
	polled  map[string]int
	pollSeq int

	insertErr      error
	updateStateErr error
}

func newMemStore() *memStore {
	return &memStore{
		contents: map[string]*models.ContentRecord{},
		intents:  map[string]*models.PaymentIntent{},
		polled:   map[string]int{},
	}
}

type memRepoMgr struct{ s *memStore }

func (m *memRepoMgr) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *memRepoMgr) Contents(dbx.DBTX) contents.Repository        { return &memContents{m.s} }
func (m *memRepoMgr) Intents(dbx.DBTX) intents.Repository          { return &memIntents{m.s} }

type memContents struct{ s *memStore }

func (r *memContents) InsertIfAbsent(ctx context.Context, c *models.ContentRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.insertErr != nil {
		return r.s.insertErr
	}
	if _, ok := r.s.contents[c.ID]; ok {
		return common.ErrorAlreadyExists
	}
	for _, e := range r.s.contents {
		if bytes.Equal(e.Fingerprint, c.Fingerprint) {
			return common.ErrorAlreadyExists
		}
	}
	cp := *c
	cp.CreatedAt = time.Now()
	r.s.contents[c.ID] = &cp
	c.CreatedAt = cp.CreatedAt
	return nil
}

func (r *memContents) Get(ctx context.Context, id string) (*models.ContentRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.contents[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memContents) GetByFingerprint(ctx context.Context, fp []byte) (*models.ContentRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.contents {
		if bytes.Equal(c.Fingerprint, fp) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *memContents) UpdateState(ctx context.Context, id string, from, to models.PaymentState) error {
	if _, err := from.Transition(to); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.updateStateErr != nil {
		return r.s.updateStateErr
	}
	c, ok := r.s.contents[id]
	if !ok || c.PaymentState != from {
		return fmt.Errorf("%w: %s", common.ErrorStateConflict, id)
	}
	c.PaymentState = to
	return nil
}

type memIntents struct{ s *memStore }

func (r *memIntents) Upsert(ctx context.Context, in *models.PaymentIntent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *in
	r.s.intents[in.ContentID] = &cp
	delete(r.s.polled, in.ContentID)
	return nil
}

func (r *memIntents) GetByContentID(ctx context.Context, id string) (*models.PaymentIntent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	in, ok := r.s.intents[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *in
	return &cp, nil
}

func (r *memIntents) UpdateStatus(ctx context.Context, id string, status models.IntentStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	in, ok := r.s.intents[id]
	if !ok {
		return common.ErrorNotFound
	}
	in.Status = status
	return nil
}

func (r *memIntents) ListPending(ctx context.Context, limit int) ([]models.PaymentIntent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.PaymentIntent
	for _, in := range r.s.intents {
		if in.Status == models.IntentPending {
			out = append(out, *in)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		pi, pj := r.s.polled[out[i].ContentID], r.s.polled[out[j].ContentID]
		if pi != pj {
			return pi < pj
		}
		return out[i].ContentID < out[j].ContentID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memIntents) Touch(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.intents[id]; !ok {
		return common.ErrorNotFound
	}
	r.s.pollSeq++
	r.s.polled[id] = r.s.pollSeq
	return nil
}

func (s *memStore) state(t *testing.T, id string) models.PaymentState {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contents[id]
	require.True(t, ok, "no record %s", id)
	return c.PaymentState
}

func (s *memStore) setState(id string, st models.PaymentState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contents[id].PaymentState = st
}

// -------- scripted oracle --------

type fakeOracle struct {
	mu        sync.Mutex
	kind      payment.Kind
	created   int
	polls     int
	settle    payment.Settlement
	pollErr   error
	lastPoll  models.PaymentIntent
	polledIDs []string
	// settleFor, when set, decides settlement from the polled intent.
	settleFor func(in *models.PaymentIntent) payment.Settlement
}

func newFakeOracle() *fakeOracle { return &fakeOracle{kind: payment.KindInvoice} }

func (o *fakeOracle) Kind() payment.Kind { return o.kind }

func (o *fakeOracle) CreateIntent(ctx context.Context, contentID, payer string) (*models.PaymentIntent, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.created++
	now := time.Now()
	return &models.PaymentIntent{
		ContentID:      contentID,
		Backend:        string(o.kind),
		ExternalRef:    fmt.Sprintf("ref-%d", o.created),
		PaymentRequest: fmt.Sprintf("lnbc-%d", o.created),
		Payer:          payer,
		Status:         models.IntentPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func (o *fakeOracle) PollSettlement(ctx context.Context, in *models.PaymentIntent) (payment.Settlement, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.polls++
	o.lastPoll = *in
	o.polledIDs = append(o.polledIDs, in.ContentID)
	if o.pollErr != nil {
		return payment.Settlement{}, o.pollErr
	}
	if o.settleFor != nil {
		return o.settleFor(in), nil
	}
	return o.settle, nil
}

func (o *fakeOracle) set(st payment.Settlement, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.settle, o.pollErr = st, err
}

func (o *fakeOracle) polledContent() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.polledIDs...)
}

func (o *fakeOracle) counts() (created, polls int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.created, o.polls
}

// -------- fixture --------

type fixture struct {
	db     *sql.DB
	store  *memStore
	blobs  blobstore.Store
	vault  *keyvault.Vault
	oracle *fakeOracle
	sealer *Sealer
	auth   *ReleaseAuthorizer
}

func newVault(t *testing.T) *keyvault.Vault {
	t.Helper()
	master, err := keyvault.NewMasterSecret(bytes.Repeat([]byte{0x42}, 32))
	require.NoError(t, err)
	v, err := keyvault.New(master)
	require.NoError(t, err)
	return v
}

func newSQLiteDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithDB(t, newSQLiteDB(t))
}

func newFixtureWithDB(t *testing.T, db *sql.DB) *fixture {
	t.Helper()
	blobs, err := blobstore.NewFSStore(t.TempDir(), logging.Discard())
	require.NoError(t, err)

	f := &fixture{
		db:     db,
		store:  newMemStore(),
		blobs:  blobs,
		vault:  newVault(t),
		oracle: newFakeOracle(),
	}
	m := &memRepoMgr{f.store}
	met := metrics.New()
	f.sealer = NewSealer(db, m, f.blobs, f.vault, 2<<20, met, logging.Discard())
	f.auth = NewReleaseAuthorizer(db, m, f.oracle, f.vault, met, logging.Discard())
	return f
}
