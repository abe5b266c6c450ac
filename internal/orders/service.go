package orders

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/ordercore/fulfillment/internal/apperr"
	"github.com/ordercore/fulfillment/internal/money"
	"github.com/ordercore/fulfillment/internal/notify"
	"github.com/ordercore/fulfillment/internal/postgres"
	"github.com/ordercore/fulfillment/internal/tracking"
)

// Store is the persistence surface the service needs. Repo implements it
// over pgx; tests swap in an in-memory fake.
type Store interface {
	Create(ctx context.Context, q postgres.Querier, o *Order) error
	Get(ctx context.Context, q postgres.Querier, id uuid.UUID) (*Order, error)
	GetForUpdate(ctx context.Context, q postgres.Querier, id uuid.UUID) (*Order, error)
	UpdateStatus(ctx context.Context, q postgres.Querier, id uuid.UUID, status Status, updatedAt time.Time) error
	SetCancelled(ctx context.Context, q postgres.Querier, id uuid.UUID, reason string, at time.Time) error
}

type TrackingStore interface {
	Append(ctx context.Context, q postgres.Querier, e *tracking.Entry) error
	ListByOrder(ctx context.Context, q postgres.Querier, orderID uuid.UUID) ([]tracking.Entry, error)
}

type StatusCache interface {
	SetStatus(ctx context.Context, orderID uuid.UUID, s Status)
	GetStatus(ctx context.Context, orderID uuid.UUID) (Status, bool)
}

type Service struct {
	db        postgres.DB
	store     Store
	tracks    TrackingStore
	cache     StatusCache // optional
	notifier  notify.Notifier
	inventory notify.InventoryReleaser
	now       func() time.Time
}

func NewService(db postgres.DB, store Store, tracks TrackingStore, cache StatusCache,
	notifier notify.Notifier, inventory notify.InventoryReleaser) *Service {
	return &Service{
		db:        db,
		store:     store,
		tracks:    tracks,
		cache:     cache,
		notifier:  notifier,
		inventory: inventory,
		now:       time.Now,
	}
}

type CreateRequest struct {
	UserID   uuid.UUID
	Currency string
	Items    []Item
	Discount money.Money
	Tax      money.Money
	Shipping money.Money
}

// Create persists a new order in PENDING together with its line items
// and the first tracking entry, all in one transaction.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Order, error) {
	if req.UserID == uuid.Nil {
		return nil, apperr.Validationf("user_id", "required")
	}
	if len(req.Items) == 0 {
		return nil, apperr.Validationf("items", "at least one line item required")
	}

	now := s.now().UTC()
	o := &Order{
		ID:       uuid.New(),
		UserID:   req.UserID,
		Items:    req.Items,
		Status:   StatusPending,
		Currency: req.Currency,
		Discount: req.Discount,
		Tax:      req.Tax,
		Shipping: req.Shipping,
		CreatedAt: now,
		UpdatedAt: now,
	}

	subtotal, err := o.itemSubtotal()
	if err != nil {
		return nil, err
	}
	o.Subtotal = subtotal
	total, err := subtotal.Add(req.Tax)
	if err != nil {
		return nil, err
	}
	if total, err = total.Add(req.Shipping); err != nil {
		return nil, err
	}
	if total, err = total.Sub(req.Discount); err != nil {
		return nil, err
	}
	o.Total = total
	if err := o.validateTotals(); err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := s.store.Create(ctx, tx, o); err != nil {
		return nil, err
	}
	if err := s.tracks.Append(ctx, tx, s.entry(o.ID, StatusPending, "", "order placed", true, "system")); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.cacheStatus(ctx, o.ID, o.Status)
	return o, nil
}

// Advance applies a user-facing transition. Same-state requests are
// rejected; retried external applies go through ApplyExternal.
func (s *Service) Advance(ctx context.Context, orderID uuid.UUID, target Status, actor, note string) (*Order, error) {
	return s.transition(ctx, orderID, target, actor, note, false)
}

// ApplyExternal applies a transition driven by the payment machinery or
// a webhook retry. Same-state is a silent no-op here: at-least-once
// delivery means the same transition may be applied twice.
func (s *Service) ApplyExternal(ctx context.Context, orderID uuid.UUID, target Status) (*Order, error) {
	return s.transition(ctx, orderID, target, "gateway", "", true)
}

func (s *Service) transition(ctx context.Context, orderID uuid.UUID, target Status, actor, note string, external bool) (*Order, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o, err := s.store.GetForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if external && o.Status == target {
		return o, nil // retried apply, already done
	}
	if err := AssertTransition(o.Status, target); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if err := s.store.UpdateStatus(ctx, tx, orderID, target, now); err != nil {
		return nil, err
	}
	if err := s.tracks.Append(ctx, tx, s.entry(orderID, target, "", note, external, actor)); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	o.Status = target
	o.UpdatedAt = now
	s.cacheStatus(ctx, orderID, target)
	s.notifyTransition(ctx, o, "")
	return o, nil
}

// Cancel is only legal while nothing has shipped. Inventory release and
// customer notification run after the transition commits, so a failed
// external call can never leave the order half-cancelled.
func (s *Service) Cancel(ctx context.Context, orderID uuid.UUID, reason, actor string) (*Order, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o, err := s.store.GetForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if !o.Status.CanBeCancelled() {
		return nil, &apperr.IllegalTransition{Entity: "order", From: string(o.Status), To: string(StatusCancelled)}
	}

	now := s.now().UTC()
	if err := s.store.SetCancelled(ctx, tx, orderID, reason, now); err != nil {
		return nil, err
	}
	if err := s.tracks.Append(ctx, tx, s.entry(orderID, StatusCancelled, "", reason, false, actor)); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	o.Status = StatusCancelled
	o.CancellationReason = reason
	o.CancelledAt = &now
	o.UpdatedAt = now
	s.cacheStatus(ctx, orderID, StatusCancelled)

	if s.inventory != nil {
		if err := s.inventory.Release(ctx, orderID, reason); err != nil {
			log.Printf("inventory release order=%s: %v", orderID, err)
		}
	}
	s.notifyTransition(ctx, o, reason)
	return o, nil
}

func (s *Service) Get(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	return s.store.Get(ctx, s.db, orderID)
}

func (s *Service) History(ctx context.Context, orderID uuid.UUID) ([]tracking.Entry, error) {
	return s.tracks.ListByOrder(ctx, s.db, orderID)
}

// CachedStatus serves reads from redis when possible, falling back to
// the store. The database remains the source of truth.
func (s *Service) CachedStatus(ctx context.Context, orderID uuid.UUID) (Status, error) {
	if s.cache != nil {
		if st, ok := s.cache.GetStatus(ctx, orderID); ok {
			return st, nil
		}
	}
	o, err := s.store.Get(ctx, s.db, orderID)
	if err != nil {
		return "", err
	}
	s.cacheStatus(ctx, orderID, o.Status)
	return o.Status, nil
}

func (s *Service) entry(orderID uuid.UUID, target Status, carrier, note string, automated bool, actor string) *tracking.Entry {
	return &tracking.Entry{
		ID:        uuid.New(),
		OrderID:   orderID,
		Status:    TrackingStatusFor(target),
		Carrier:   carrier,
		Note:      note,
		Automated: automated,
		Actor:     actor,
		CreatedAt: s.now().UTC(),
	}
}

func (s *Service) cacheStatus(ctx context.Context, orderID uuid.UUID, st Status) {
	if s.cache != nil {
		s.cache.SetStatus(ctx, orderID, st)
	}
}

// notifyKinds maps terminal-ish statuses to downstream event kinds.
var notifyKinds = map[Status]string{
	StatusShipped:   notify.KindOrderShipped,
	StatusDelivered: notify.KindOrderDelivered,
	StatusCompleted: notify.KindOrderCompleted,
	StatusCancelled: notify.KindOrderCancelled,
	StatusRefunded:  notify.KindOrderRefunded,
	StatusReturned:  notify.KindOrderReturned,
}

func (s *Service) notifyTransition(ctx context.Context, o *Order, reason string) {
	kind, ok := notifyKinds[o.Status]
	if !ok || s.notifier == nil {
		return
	}
	p := notify.OrderEventPayload{
		OrderID: o.ID.String(),
		UserID:  o.UserID.String(),
		Status:  string(o.Status),
		Reason:  reason,
	}
	if err := s.notifier.OrderEvent(ctx, kind, p); err != nil {
		log.Printf("notify %s order=%s: %v", kind, o.ID, err)
	}
}
