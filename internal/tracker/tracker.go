package tracker

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"

	"pricepulse/internal/alert"
	"pricepulse/internal/ledger"
	"pricepulse/internal/listing"
	"pricepulse/internal/models"
	"pricepulse/internal/refresh"
	"pricepulse/logger"
	"pricepulse/pkg/errors"
	"pricepulse/services/store"
)

// Tracker is the surface the surrounding application talks to: track a
// listing, refresh it, read its history, manage its alerts.
type Tracker struct {
	products    store.ProductStore
	alertStore  store.AlertStore
	coordinator *refresh.Coordinator
	ledger      *ledger.Ledger
	evaluator   *alert.Evaluator
	log         *logger.Logger
}

// New creates a tracker facade.
func New(products store.ProductStore, alerts store.AlertStore, coordinator *refresh.Coordinator, lg *ledger.Ledger, evaluator *alert.Evaluator) *Tracker {
	return &Tracker{
		products:    products,
		alertStore:  alerts,
		coordinator: coordinator,
		ledger:      lg,
		evaluator:   evaluator,
		log:         logger.ForComponent("tracker"),
	}
}

// AddOrGetTracked validates and canonicalizes a listing URL, returning the
// owner's existing product for that listing or creating a new one. A new
// product gets an immediate first refresh; if that fails, the product is
// still tracked with the error recorded, and the batch job picks it up later.
func (t *Tracker) AddOrGetTracked(ctx context.Context, ownerID, rawURL string) (*models.Product, error) {
	canonical, err := listing.Normalize(rawURL)
	if err != nil {
		return nil, err
	}

	existing, err := t.products.GetByURL(ctx, ownerID, canonical)
	if err == nil {
		return existing, nil
	}
	if !stderrors.Is(err, store.ErrNotFound) {
		return nil, errors.NewPersistence("failed to look up tracked product", err)
	}

	now := time.Now()
	p := &models.Product{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		URL:       canonical,
		Currency:  "₹",
		CreatedAt: now,
	}
	if err := t.products.Save(ctx, p); err != nil {
		return nil, errors.NewPersistence("failed to save tracked product", err)
	}

	t.log.Info().Str("product_id", p.ID).Str("url", canonical).Msg("Tracking new listing")

	if _, err := t.coordinator.ManualRefresh(ctx, p, now); err != nil {
		logger.LogError("tracker", err, "initial refresh failed for %s", canonical)
	}
	return p, nil
}

// Refresh performs a user-initiated refresh of one product. Typed errors
// (too soon, blocked, exhausted, parse) propagate to the caller.
func (t *Tracker) Refresh(ctx context.Context, productID string, now time.Time) (*models.Product, error) {
	p, err := t.products.Get(ctx, productID)
	if err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return nil, errors.NewPersistence("failed to load product", err)
	}
	return t.coordinator.ManualRefresh(ctx, p, now)
}

// History returns the product's price entries over the trailing number of
// days, oldest first.
func (t *Tracker) History(ctx context.Context, productID string, days int) ([]models.PriceEntry, error) {
	window := time.Duration(days) * 24 * time.Hour
	return t.ledger.QueryWindow(ctx, productID, window, time.Now())
}

// CreateAlert registers a one-shot price alert and evaluates it immediately,
// so a target that is already met fires right away.
func (t *Tracker) CreateAlert(ctx context.Context, productID, ownerID, recipient string, targetPrice float64) (*models.Alert, error) {
	p, err := t.products.Get(ctx, productID)
	if err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return nil, errors.NewPersistence("failed to load product", err)
	}

	a := &models.Alert{
		ID:          uuid.NewString(),
		ProductID:   productID,
		OwnerID:     ownerID,
		Recipient:   recipient,
		TargetPrice: targetPrice,
		Status:      models.AlertPending,
		CreatedAt:   time.Now(),
	}
	if err := t.alertStore.Save(ctx, a); err != nil {
		return nil, errors.NewPersistence("failed to save alert", err)
	}

	if err := t.evaluator.Evaluate(ctx, a, p); err != nil {
		logger.LogError("tracker", err, "evaluation after alert creation failed for %s", a.ID)
	}
	return a, nil
}

// DeleteAlert removes an alert.
func (t *Tracker) DeleteAlert(ctx context.Context, alertID string) error {
	if err := t.alertStore.Delete(ctx, alertID); err != nil {
		return errors.NewPersistence("failed to delete alert", err)
	}
	return nil
}
