package alert

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"pricepulse/internal/models"
	"pricepulse/services/publisher"
	"pricepulse/services/store"
)

// countingNotifier records deliveries.
type countingNotifier struct {
	mu    sync.Mutex
	count int32
	last  string
}

func (n *countingNotifier) Notify(ctx context.Context, recipient, subject, body string) error {
	atomic.AddInt32(&n.count, 1)
	n.mu.Lock()
	n.last = recipient
	n.mu.Unlock()
	return nil
}

func (n *countingNotifier) calls() int32 { return atomic.LoadInt32(&n.count) }

func setup(t *testing.T) (*store.MemoryStore, *countingNotifier, *Evaluator) {
	t.Helper()
	mem := store.NewMemoryStore()
	notify := &countingNotifier{}
	return mem, notify, NewEvaluator(mem.Alerts(), mem, notify, publisher.Nop{})
}

func pendingAlert(target float64) *models.Alert {
	return &models.Alert{
		ID:          "a1",
		ProductID:   "p1",
		OwnerID:     "u1",
		Recipient:   "user@example.com",
		TargetPrice: target,
		Status:      models.AlertPending,
		CreatedAt:   time.Now(),
	}
}

func TestEvaluateTriggersAtTarget(t *testing.T) {
	mem, notify, eval := setup(t)
	ctx := context.Background()

	p := &models.Product{ID: "p1", Name: "Widget", CurrentPrice: 1500, Currency: "₹"}
	assert.NoError(t, mem.Save(ctx, p))

	a := pendingAlert(1500)
	assert.NoError(t, mem.SaveAlert(ctx, a))

	assert.NoError(t, eval.Evaluate(ctx, a, p))
	assert.Equal(t, models.AlertTriggered, a.Status)
	assert.Equal(t, int32(1), notify.calls())

	stored, err := mem.GetAlert(ctx, "a1")
	assert.NoError(t, err)
	assert.Equal(t, models.AlertTriggered, stored.Status)
	assert.False(t, stored.TriggeredAt.IsZero())
}

func TestEvaluateSkipsAboveTarget(t *testing.T) {
	mem, notify, eval := setup(t)
	ctx := context.Background()

	p := &models.Product{ID: "p1", CurrentPrice: 2000}
	a := pendingAlert(1500)
	assert.NoError(t, mem.SaveAlert(ctx, a))

	assert.NoError(t, eval.Evaluate(ctx, a, p))
	assert.Equal(t, models.AlertPending, a.Status)
	assert.Equal(t, int32(0), notify.calls())
}

func TestEvaluateSkipsUnknownPrice(t *testing.T) {
	mem, notify, eval := setup(t)
	ctx := context.Background()

	// Price zero means never successfully parsed; must not trigger.
	p := &models.Product{ID: "p1", CurrentPrice: 0}
	a := pendingAlert(1500)
	assert.NoError(t, mem.SaveAlert(ctx, a))

	assert.NoError(t, eval.Evaluate(ctx, a, p))
	assert.Equal(t, int32(0), notify.calls())
}

func TestEvaluateNeverNotifiesTwice(t *testing.T) {
	mem, notify, eval := setup(t)
	ctx := context.Background()

	p := &models.Product{ID: "p1", CurrentPrice: 1000}
	a := pendingAlert(1500)
	assert.NoError(t, mem.SaveAlert(ctx, a))

	assert.NoError(t, eval.Evaluate(ctx, a, p))
	assert.NoError(t, eval.Evaluate(ctx, a, p))

	// A second evaluation on a stale pending copy still loses the
	// conditional update.
	stale := pendingAlert(1500)
	assert.NoError(t, eval.Evaluate(ctx, stale, p))

	assert.Equal(t, int32(1), notify.calls())
}

func TestEvaluateConcurrentSingleWinner(t *testing.T) {
	mem, notify, eval := setup(t)
	ctx := context.Background()

	p := &models.Product{ID: "p1", CurrentPrice: 1000}
	assert.NoError(t, mem.SaveAlert(ctx, pendingAlert(1500)))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a := pendingAlert(1500)
			_ = eval.Evaluate(ctx, a, p)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), notify.calls())
}

func TestSweepEvaluatesAllPending(t *testing.T) {
	mem, notify, eval := setup(t)
	ctx := context.Background()

	assert.NoError(t, mem.Save(ctx, &models.Product{ID: "p1", CurrentPrice: 100}))
	assert.NoError(t, mem.Save(ctx, &models.Product{ID: "p2", CurrentPrice: 900}))

	assert.NoError(t, mem.SaveAlert(ctx, &models.Alert{
		ID: "a1", ProductID: "p1", Recipient: "u@example.com",
		TargetPrice: 150, Status: models.AlertPending, CreatedAt: time.Now(),
	}))
	assert.NoError(t, mem.SaveAlert(ctx, &models.Alert{
		ID: "a2", ProductID: "p2", Recipient: "u@example.com",
		TargetPrice: 500, Status: models.AlertPending, CreatedAt: time.Now(),
	}))

	assert.NoError(t, eval.Sweep(ctx))

	// Only the met target fires.
	assert.Equal(t, int32(1), notify.calls())

	a1, _ := mem.GetAlert(ctx, "a1")
	a2, _ := mem.GetAlert(ctx, "a2")
	assert.Equal(t, models.AlertTriggered, a1.Status)
	assert.Equal(t, models.AlertPending, a2.Status)
}

func TestEvaluateProductChecksEveryPendingAlert(t *testing.T) {
	mem, notify, eval := setup(t)
	ctx := context.Background()

	p := &models.Product{ID: "p1", CurrentPrice: 800}
	assert.NoError(t, mem.Save(ctx, p))
	assert.NoError(t, mem.SaveAlert(ctx, &models.Alert{
		ID: "a1", ProductID: "p1", Recipient: "u@example.com",
		TargetPrice: 1000, Status: models.AlertPending, CreatedAt: time.Now(),
	}))
	assert.NoError(t, mem.SaveAlert(ctx, &models.Alert{
		ID: "a2", ProductID: "p1", Recipient: "u@example.com",
		TargetPrice: 700, Status: models.AlertPending, CreatedAt: time.Now(),
	}))

	eval.EvaluateProduct(ctx, p)

	assert.Equal(t, int32(1), notify.calls())
	a1, _ := mem.GetAlert(ctx, "a1")
	a2, _ := mem.GetAlert(ctx, "a2")
	assert.Equal(t, models.AlertTriggered, a1.Status)
	assert.Equal(t, models.AlertPending, a2.Status)
}
