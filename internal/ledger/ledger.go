package ledger

import (
	"context"
	"fmt"
	"math"
	"time"

	"pricepulse/internal/models"
	"pricepulse/logger"
	"pricepulse/pkg/errors"
	"pricepulse/services/store"
)

// Ledger is the append-only price history for tracked products. Refresh logic
// never mutates or removes existing entries; the only writes are appends.
type Ledger struct {
	history store.PriceHistoryStore
	log     *logger.Logger
}

// New creates a ledger over a history store.
func New(history store.PriceHistoryStore) *Ledger {
	return &Ledger{
		history: history,
		log:     logger.ForComponent("ledger"),
	}
}

// Append records a price observation.
func (l *Ledger) Append(ctx context.Context, productID string, price float64, ts time.Time) error {
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return fmt.Errorf("refusing to record non-positive price %v for %s", price, productID)
	}
	entry := models.PriceEntry{ProductID: productID, Price: price, Timestamp: ts}
	if err := l.history.Append(ctx, entry); err != nil {
		return errors.NewPersistence("failed to append price entry", err)
	}
	return nil
}

// QueryWindow returns the entries within the trailing window, oldest first.
func (l *Ledger) QueryWindow(ctx context.Context, productID string, window time.Duration, now time.Time) ([]models.PriceEntry, error) {
	entries, err := l.history.QueryWindow(ctx, productID, now.Add(-window))
	if err != nil {
		return nil, errors.NewPersistence("failed to query price history", err)
	}
	return entries, nil
}

// EnsureDailySample guarantees at most one synthetic entry per calendar day:
// when the product has a known positive price and no entry exists for the
// day, it records one; running it again the same day is a no-op.
func (l *Ledger) EnsureDailySample(ctx context.Context, p *models.Product, today time.Time) error {
	if p.CurrentPrice <= 0 {
		return nil
	}

	dayStart := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())
	exists, err := l.history.ExistsForDay(ctx, p.ID, dayStart)
	if err != nil {
		return errors.NewPersistence("failed to check daily sample", err)
	}
	if exists {
		return nil
	}

	l.log.Debug().Str("product_id", p.ID).Float64("price", p.CurrentPrice).Msg("Recording daily sample")
	return l.Append(ctx, p.ID, p.CurrentPrice, today)
}
