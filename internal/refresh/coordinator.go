package refresh

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"pricepulse/internal/alert"
	"pricepulse/internal/fetch"
	"pricepulse/internal/ledger"
	"pricepulse/internal/models"
	"pricepulse/internal/parse"
	"pricepulse/logger"
	"pricepulse/pkg/errors"
	"pricepulse/services/publisher"
	"pricepulse/services/store"
)

// Options tune refresh pacing.
type Options struct {
	// BulkCooldown is the minimum age before a product is due for a batch
	// refresh; it guards against self-inflicted strategy rate-limiting.
	BulkCooldown time.Duration
	// ManualMinInterval is the shorter minimum between user-initiated
	// refreshes of the same product.
	ManualMinInterval time.Duration
	// BatchBaseDelay and BatchDelayStep shape the inter-request delay inside
	// a batch: base + position*step, jittered.
	BatchBaseDelay time.Duration
	BatchDelayStep time.Duration
}

// Coordinator decides which products are due, paces batch requests, applies
// snapshots to product state, and drives ledger/alert side effects. It is the
// only writer of product attributes.
type Coordinator struct {
	orch     *fetch.Orchestrator
	products store.ProductStore
	ledger   *ledger.Ledger
	alerts   *alert.Evaluator
	events   publisher.Publisher
	opts     Options
	log      *logger.Logger

	// overridable in tests
	sleep   func(ctx context.Context, d time.Duration)
	parseFn func(raw []byte) (*models.Snapshot, error)
}

// NewCoordinator creates a refresh coordinator.
func NewCoordinator(orch *fetch.Orchestrator, products store.ProductStore, lg *ledger.Ledger, alerts *alert.Evaluator, events publisher.Publisher, opts Options) *Coordinator {
	return &Coordinator{
		orch:     orch,
		products: products,
		ledger:   lg,
		alerts:   alerts,
		events:   events,
		opts:     opts,
		log:      logger.ForComponent("refresh"),
		sleep:    sleepCtx,
		parseFn:  parse.Parse,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// IsDue reports whether a product should be refreshed by the batch job: never
// refreshed, or older than the bulk cooldown.
func (c *Coordinator) IsDue(p *models.Product, now time.Time) bool {
	if p.LastUpdated.IsZero() {
		return true
	}
	return now.Sub(p.LastUpdated) > c.opts.BulkCooldown
}

// ManualRefresh serves a user-initiated refresh. Inside the minimum interval
// it rejects immediately with the remaining wait time; no strategy is invoked.
func (c *Coordinator) ManualRefresh(ctx context.Context, p *models.Product, now time.Time) (*models.Product, error) {
	if !p.LastUpdated.IsZero() {
		if elapsed := now.Sub(p.LastUpdated); elapsed < c.opts.ManualMinInterval {
			return nil, errors.NewTooSoon(c.opts.ManualMinInterval - elapsed)
		}
	}
	return c.refreshOne(ctx, p, now)
}

// BatchRefresh refreshes products in randomized order with growing
// inter-request delays. Each product commits independently; a failure on one
// is logged and the batch advances.
func (c *Coordinator) BatchRefresh(ctx context.Context, products []models.Product, now time.Time) {
	order := rand.Perm(len(products))
	for i, j := range order {
		if ctx.Err() != nil {
			return
		}
		if i > 0 {
			delay := c.opts.BatchBaseDelay + time.Duration(i)*c.opts.BatchDelayStep
			if delay > 0 {
				jitter := time.Duration(rand.Int63n(int64(delay)/2 + 1))
				c.sleep(ctx, delay+jitter)
			}
		}

		p := products[j]
		if _, err := c.refreshOne(ctx, &p, now); err != nil {
			logger.LogError("refresh", err, "batch refresh failed for product %s", p.ID)
		}
	}
}

// RunBatch lists all tracked products and refreshes the due ones; this is the
// periodic batch job handler.
func (c *Coordinator) RunBatch(ctx context.Context) error {
	now := time.Now()
	all, err := c.products.List(ctx)
	if err != nil {
		return errors.NewPersistence("failed to list products", err)
	}

	due := all[:0]
	for _, p := range all {
		if c.IsDue(&p, now) {
			due = append(due, p)
		}
	}
	if len(due) == 0 {
		return nil
	}

	c.log.Info().Int("due", len(due)).Int("tracked", len(all)).Msg("Starting batch refresh")
	c.BatchRefresh(ctx, due, now)
	return nil
}

// refreshOne fetches, parses, and commits a single product. LastUpdated
// advances on every attempt, success or failure, so a failing product cannot
// cause an immediate retry storm.
func (c *Coordinator) refreshOne(ctx context.Context, p *models.Product, now time.Time) (*models.Product, error) {
	raw, err := c.orch.Fetch(ctx, p.URL)
	if err != nil {
		return nil, c.recordFailure(ctx, p, now, err)
	}

	snap, err := c.parseFn(raw)
	if err != nil {
		return nil, c.recordFailure(ctx, p, now, err)
	}

	oldPrice := p.CurrentPrice
	snap.Apply(p)
	p.LastUpdated = now
	p.LastRefreshError = ""

	if err := c.products.Save(ctx, p); err != nil {
		return nil, errors.NewPersistence("failed to save product", err)
	}

	if snap.CurrentPrice != nil {
		newPrice := *snap.CurrentPrice
		// Always record valid prices, changed or not; durable periodic
		// sampling beats a sparse changes-only history.
		if err := c.ledger.Append(ctx, p.ID, newPrice, now); err != nil {
			logger.LogError("refresh", err, "ledger append failed for product %s", p.ID)
		}

		if oldPrice > 0 && newPrice < oldPrice {
			c.publishPriceDrop(p, oldPrice, newPrice)
			c.alerts.EvaluateProduct(ctx, p)
		}
	}

	return p, nil
}

func (c *Coordinator) recordFailure(ctx context.Context, p *models.Product, now time.Time, cause error) error {
	p.LastUpdated = now
	p.LastRefreshError = cause.Error()
	if err := c.products.Save(ctx, p); err != nil {
		logger.LogError("refresh", err, "failed to record refresh error for product %s", p.ID)
	}
	return cause
}

func (c *Coordinator) publishPriceDrop(p *models.Product, oldPrice, newPrice float64) {
	payload, err := json.Marshal(map[string]interface{}{
		"product_id": p.ID,
		"name":       p.Name,
		"old_price":  oldPrice,
		"new_price":  newPrice,
		"currency":   p.Currency,
		"url":        p.URL,
	})
	if err != nil {
		return
	}
	if err := c.events.Publish("price_drop", payload); err != nil {
		logger.LogError("refresh", err, "failed to publish price drop event")
	}
}
