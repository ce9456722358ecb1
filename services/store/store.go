package store

import (
	"context"
	"errors"
	"time"

	"pricepulse/internal/models"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// ProductStore persists tracked products. Save is an upsert keyed by product id.
type ProductStore interface {
	Get(ctx context.Context, id string) (*models.Product, error)
	GetByURL(ctx context.Context, ownerID, url string) (*models.Product, error)
	List(ctx context.Context) ([]models.Product, error)
	Save(ctx context.Context, p *models.Product) error
}

// PriceHistoryStore persists the append-only price ledger.
type PriceHistoryStore interface {
	Append(ctx context.Context, entry models.PriceEntry) error
	// QueryWindow returns entries at or after since, ordered by timestamp ascending.
	QueryWindow(ctx context.Context, productID string, since time.Time) ([]models.PriceEntry, error)
	// ExistsForDay reports whether any entry exists within [dayStart, dayStart+24h).
	ExistsForDay(ctx context.Context, productID string, dayStart time.Time) (bool, error)
}

// AlertStore persists price alerts.
type AlertStore interface {
	Get(ctx context.Context, id string) (*models.Alert, error)
	Save(ctx context.Context, a *models.Alert) error
	ListPending(ctx context.Context) ([]models.Alert, error)
	ListPendingForProduct(ctx context.Context, productID string) ([]models.Alert, error)
	// MarkTriggered atomically transitions pending->triggered and reports
	// whether this call performed the transition. A second caller observes
	// false and must not notify.
	MarkTriggered(ctx context.Context, id string, at time.Time) (bool, error)
	Delete(ctx context.Context, id string) error
}
