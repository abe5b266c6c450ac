package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ordercore/fulfillment/internal/apperr"
	"github.com/ordercore/fulfillment/internal/money"
	"github.com/ordercore/fulfillment/internal/notify"
	"github.com/ordercore/fulfillment/internal/postgres"
	"github.com/ordercore/fulfillment/internal/tracking"
)

// fakeTx satisfies pgx.Tx by embedding the interface; only Commit and
// Rollback are exercised by the service.
type fakeTx struct {
	pgx.Tx
	state *txState
}

type txState struct {
	committed  bool
	rolledBack bool
}

func (t fakeTx) Commit(ctx context.Context) error { t.state.committed = true; return nil }
func (t fakeTx) Rollback(ctx context.Context) error {
	if !t.state.committed {
		t.state.rolledBack = true
	}
	return nil
}

type fakeDB struct {
	last *txState
}

func (db *fakeDB) Begin(ctx context.Context) (pgx.Tx, error) {
	db.last = &txState{}
	return fakeTx{state: db.last}, nil
}

func (db *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (db *fakeDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}
func (db *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }

var _ postgres.DB = (*fakeDB)(nil)

type fakeStore struct {
	orders map[uuid.UUID]*Order
}

func newFakeStore() *fakeStore { return &fakeStore{orders: map[uuid.UUID]*Order{}} }

func (s *fakeStore) Create(ctx context.Context, q postgres.Querier, o *Order) error {
	cp := *o
	s.orders[o.ID] = &cp
	return nil
}

func (s *fakeStore) Get(ctx context.Context, q postgres.Querier, id uuid.UUID) (*Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *fakeStore) GetForUpdate(ctx context.Context, q postgres.Querier, id uuid.UUID) (*Order, error) {
	return s.Get(ctx, q, id)
}

func (s *fakeStore) UpdateStatus(ctx context.Context, q postgres.Querier, id uuid.UUID, st Status, at time.Time) error {
	o, ok := s.orders[id]
	if !ok {
		return apperr.ErrNotFound
	}
	o.Status = st
	o.UpdatedAt = at
	return nil
}

func (s *fakeStore) SetCancelled(ctx context.Context, q postgres.Querier, id uuid.UUID, reason string, at time.Time) error {
	o, ok := s.orders[id]
	if !ok {
		return apperr.ErrNotFound
	}
	o.Status = StatusCancelled
	o.CancellationReason = reason
	o.CancelledAt = &at
	o.UpdatedAt = at
	return nil
}

type fakeTracks struct {
	entries []tracking.Entry
}

func (tks *fakeTracks) Append(ctx context.Context, q postgres.Querier, e *tracking.Entry) error {
	tks.entries = append(tks.entries, *e)
	return nil
}

func (tks *fakeTracks) ListByOrder(ctx context.Context, q postgres.Querier, orderID uuid.UUID) ([]tracking.Entry, error) {
	var out []tracking.Entry
	for _, e := range tks.entries {
		if e.OrderID == orderID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeNotifier struct {
	kinds []string
}

func (n *fakeNotifier) OrderEvent(ctx context.Context, kind string, p notify.OrderEventPayload) error {
	n.kinds = append(n.kinds, kind)
	return nil
}

type fakeReleaser struct {
	released []uuid.UUID
}

func (r *fakeReleaser) Release(ctx context.Context, orderID uuid.UUID, reason string) error {
	r.released = append(r.released, orderID)
	return nil
}

type fixture struct {
	svc      *Service
	db       *fakeDB
	store    *fakeStore
	tracks   *fakeTracks
	notifier *fakeNotifier
	releaser *fakeReleaser
}

func newFixture() *fixture {
	f := &fixture{
		db:       &fakeDB{},
		store:    newFakeStore(),
		tracks:   &fakeTracks{},
		notifier: &fakeNotifier{},
		releaser: &fakeReleaser{},
	}
	f.svc = NewService(f.db, f.store, f.tracks, nil, f.notifier, f.releaser)
	return f
}

func usd(t *testing.T, s string) money.Money {
	t.Helper()
	m, err := money.FromString(s, "USD")
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func (f *fixture) createOrder(t *testing.T) *Order {
	t.Helper()
	o, err := f.svc.Create(context.Background(), CreateRequest{
		UserID:   uuid.New(),
		Currency: "USD",
		Items: []Item{
			{ProductID: uuid.New(), Qty: 2, UnitPrice: usd(t, "19.99")},
			{ProductID: uuid.New(), Qty: 1, UnitPrice: usd(t, "50.00")},
		},
		Discount: usd(t, "5.00"),
		Tax:      usd(t, "7.20"),
		Shipping: usd(t, "4.99"),
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return o
}

func TestCreateComputesTotals(t *testing.T) {
	t.Parallel()
	f := newFixture()
	o := f.createOrder(t)

	if o.Status != StatusPending {
		t.Fatalf("status: got %s", o.Status)
	}
	// 2*19.99 + 50.00 = 89.98; + 7.20 + 4.99 - 5.00 = 97.17
	if !o.Subtotal.Equal(usd(t, "89.98")) {
		t.Fatalf("subtotal: got %s", o.Subtotal)
	}
	if !o.Total.Equal(usd(t, "97.17")) {
		t.Fatalf("total: got %s", o.Total)
	}
	if len(f.tracks.entries) != 1 || f.tracks.entries[0].Status != tracking.OrderPlaced {
		t.Fatalf("expected one ORDER_PLACED entry, got %v", f.tracks.entries)
	}
	if !f.db.last.committed {
		t.Fatal("create must commit")
	}
}

func TestCreateValidation(t *testing.T) {
	t.Parallel()
	f := newFixture()

	var ve *apperr.ValidationError
	_, err := f.svc.Create(context.Background(), CreateRequest{UserID: uuid.New(), Currency: "USD"})
	if !errors.As(err, &ve) {
		t.Fatalf("empty items: expected ValidationError, got %v", err)
	}

	_, err = f.svc.Create(context.Background(), CreateRequest{
		UserID:   uuid.New(),
		Currency: "USD",
		Items:    []Item{{ProductID: uuid.New(), Qty: 0, UnitPrice: usd(t, "1.00")}},
		Discount: money.Zero("USD"), Tax: money.Zero("USD"), Shipping: money.Zero("USD"),
	})
	if !errors.As(err, &ve) {
		t.Fatalf("zero qty: expected ValidationError, got %v", err)
	}
}

func TestAdvanceAppliesAndTracks(t *testing.T) {
	t.Parallel()
	f := newFixture()
	o := f.createOrder(t)

	got, err := f.svc.Advance(context.Background(), o.ID, StatusConfirmed, "ops@example.com", "confirmed by ops")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusConfirmed {
		t.Fatalf("status: got %s", got.Status)
	}

	// read back: status stuck and exactly one new entry with the mapped
	// tracking status
	fresh, err := f.svc.Get(context.Background(), o.ID)
	if err != nil {
		t.Fatal(err)
	}
	if fresh.Status != StatusConfirmed {
		t.Fatalf("read back status: got %s", fresh.Status)
	}
	hist, _ := f.svc.History(context.Background(), o.ID)
	if len(hist) != 2 {
		t.Fatalf("expected 2 tracking entries, got %d", len(hist))
	}
	if hist[1].Status != tracking.Confirmed {
		t.Fatalf("tracking status: got %s", hist[1].Status)
	}
	if hist[1].Automated {
		t.Fatal("user-facing advance must not be flagged automated")
	}
}

func TestAdvanceIllegalTransitionRollsBack(t *testing.T) {
	t.Parallel()
	f := newFixture()
	o := f.createOrder(t)

	_, err := f.svc.Advance(context.Background(), o.ID, StatusDelivered, "ops", "")
	var it *apperr.IllegalTransition
	if !errors.As(err, &it) {
		t.Fatalf("expected IllegalTransition, got %v", err)
	}
	if f.db.last.committed {
		t.Fatal("illegal transition must not commit")
	}
	fresh, _ := f.svc.Get(context.Background(), o.ID)
	if fresh.Status != StatusPending {
		t.Fatalf("status must be unchanged, got %s", fresh.Status)
	}
}

func TestAdvanceSameStateRejected(t *testing.T) {
	t.Parallel()
	f := newFixture()
	o := f.createOrder(t)

	_, err := f.svc.Advance(context.Background(), o.ID, StatusPending, "ops", "")
	var it *apperr.IllegalTransition
	if !errors.As(err, &it) {
		t.Fatalf("expected IllegalTransition, got %v", err)
	}
}

func TestApplyExternalSameStateIsNoop(t *testing.T) {
	t.Parallel()
	f := newFixture()
	o := f.createOrder(t)

	before := len(f.tracks.entries)
	got, err := f.svc.ApplyExternal(context.Background(), o.ID, StatusPending)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusPending {
		t.Fatalf("status: got %s", got.Status)
	}
	if len(f.tracks.entries) != before {
		t.Fatal("same-state apply must not append a tracking entry")
	}
}

func TestCancelFromShippedRejected(t *testing.T) {
	t.Parallel()
	f := newFixture()
	o := f.createOrder(t)
	f.store.orders[o.ID].Status = StatusShipped

	_, err := f.svc.Cancel(context.Background(), o.ID, "changed my mind", "user")
	var it *apperr.IllegalTransition
	if !errors.As(err, &it) {
		t.Fatalf("expected IllegalTransition, got %v", err)
	}
	if len(f.releaser.released) != 0 {
		t.Fatal("rejected cancel must not release inventory")
	}
}

func TestCancelReleasesInventoryAndNotifiesPostCommit(t *testing.T) {
	t.Parallel()
	f := newFixture()
	o := f.createOrder(t)

	got, err := f.svc.Cancel(context.Background(), o.ID, "out of stock", "ops")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusCancelled || got.CancelledAt == nil || got.CancellationReason != "out of stock" {
		t.Fatalf("cancel fields: %+v", got)
	}
	if len(f.releaser.released) != 1 || f.releaser.released[0] != o.ID {
		t.Fatalf("inventory release: %v", f.releaser.released)
	}
	if len(f.notifier.kinds) != 1 || f.notifier.kinds[0] != notify.KindOrderCancelled {
		t.Fatalf("notify kinds: %v", f.notifier.kinds)
	}
}

func TestUnknownOrder(t *testing.T) {
	t.Parallel()
	f := newFixture()

	_, err := f.svc.Advance(context.Background(), uuid.New(), StatusConfirmed, "ops", "")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
