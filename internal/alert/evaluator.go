package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pricepulse/internal/models"
	"pricepulse/logger"
	"pricepulse/pkg/errors"
	"pricepulse/services/notifier"
	"pricepulse/services/publisher"
	"pricepulse/services/store"
)

// Evaluator drives the one-shot alert state machine:
// pending -> triggered (terminal). A triggered alert never re-arms and the
// notifier fires at most once per alert.
type Evaluator struct {
	alerts   store.AlertStore
	products store.ProductStore
	notify   notifier.Notifier
	events   publisher.Publisher
	log      *logger.Logger
}

// NewEvaluator creates an alert evaluator.
func NewEvaluator(alerts store.AlertStore, products store.ProductStore, notify notifier.Notifier, events publisher.Publisher) *Evaluator {
	return &Evaluator{
		alerts:   alerts,
		products: products,
		notify:   notify,
		events:   events,
		log:      logger.ForComponent("alerts"),
	}
}

// Evaluate checks one alert against the product's current price. The
// pending->triggered transition goes through the store's conditional update,
// so of two concurrent evaluations only one notifies; the other observes
// "already triggered" and skips.
func (e *Evaluator) Evaluate(ctx context.Context, a *models.Alert, p *models.Product) error {
	if a.Status == models.AlertTriggered {
		return nil
	}
	if p.CurrentPrice <= 0 || p.CurrentPrice > a.TargetPrice {
		return nil
	}

	now := time.Now()
	won, err := e.alerts.MarkTriggered(ctx, a.ID, now)
	if err != nil {
		return errors.NewPersistence("failed to mark alert triggered", err)
	}
	if !won {
		return nil
	}

	a.Status = models.AlertTriggered
	a.TriggeredAt = now

	e.log.Info().
		Str("alert_id", a.ID).
		Str("product_id", p.ID).
		Float64("price", p.CurrentPrice).
		Float64("target", a.TargetPrice).
		Msg("Alert triggered")

	subject := fmt.Sprintf("Price alert: %s dropped to %s%.2f", p.Name, p.Currency, p.CurrentPrice)
	body := fmt.Sprintf(
		"%s is now %s%.2f (your target: %s%.2f).\n\n%s\n",
		p.Name, p.Currency, p.CurrentPrice, p.Currency, a.TargetPrice, p.URL,
	)

	// A failed delivery never reverts the alert; re-triggering would risk a
	// duplicate-notification storm. The published event remains available to
	// downstream consumers.
	if err := e.notify.Notify(ctx, a.Recipient, subject, body); err != nil {
		logger.LogError("alerts", err, "notification delivery failed for alert %s", a.ID)
	}

	e.publishTriggered(a, p)
	return nil
}

// EvaluateProduct runs every pending alert for a product; called after a
// refresh observed a price decrease.
func (e *Evaluator) EvaluateProduct(ctx context.Context, p *models.Product) {
	pending, err := e.alerts.ListPendingForProduct(ctx, p.ID)
	if err != nil {
		logger.LogError("alerts", err, "failed to list pending alerts for product %s", p.ID)
		return
	}
	for i := range pending {
		if err := e.Evaluate(ctx, &pending[i], p); err != nil {
			logger.LogError("alerts", err, "failed to evaluate alert %s", pending[i].ID)
		}
	}
}

// Sweep evaluates every pending alert. It catches targets met through means
// other than this engine's own refresh cycle.
func (e *Evaluator) Sweep(ctx context.Context) error {
	pending, err := e.alerts.ListPending(ctx)
	if err != nil {
		return errors.NewPersistence("failed to list pending alerts", err)
	}

	productByID := make(map[string]*models.Product)
	for i := range pending {
		a := &pending[i]
		p, ok := productByID[a.ProductID]
		if !ok {
			p, err = e.products.Get(ctx, a.ProductID)
			if err != nil {
				logger.LogError("alerts", err, "sweep could not load product %s", a.ProductID)
				continue
			}
			productByID[a.ProductID] = p
		}
		if err := e.Evaluate(ctx, a, p); err != nil {
			logger.LogError("alerts", err, "sweep failed to evaluate alert %s", a.ID)
		}
	}
	return nil
}

func (e *Evaluator) publishTriggered(a *models.Alert, p *models.Product) {
	payload, err := json.Marshal(map[string]interface{}{
		"alert_id":     a.ID,
		"product_id":   p.ID,
		"product_name": p.Name,
		"price":        p.CurrentPrice,
		"target_price": a.TargetPrice,
		"triggered_at": a.TriggeredAt,
	})
	if err != nil {
		return
	}
	if err := e.events.Publish("alert_triggered", payload); err != nil {
		logger.LogError("alerts", err, "failed to publish alert event")
	}
}
