package refresh

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"pricepulse/internal/alert"
	"pricepulse/internal/fetch"
	"pricepulse/internal/ledger"
	"pricepulse/internal/models"
	"pricepulse/pkg/errors"
	"pricepulse/services/notifier"
	"pricepulse/services/publisher"
	"pricepulse/services/store"
)

// fetchStub always returns the same attempt and counts calls.
type fetchStub struct {
	attempt fetch.Attempt
	calls   int
}

func (s *fetchStub) Name() string            { return "stub" }
func (s *fetchStub) Cooldown() time.Duration { return time.Minute }

func (s *fetchStub) Attempt(ctx context.Context, url string) fetch.Attempt {
	s.calls++
	return s.attempt
}

func snapshotWithPrice(price float64) *models.Snapshot {
	return &models.Snapshot{Name: "Widget", CurrentPrice: &price}
}

type env struct {
	mem     *store.MemoryStore
	stub    *fetchStub
	coord   *Coordinator
	parsed  []*models.Snapshot
	parseAt int
}

func newEnv(t *testing.T, opts Options) *env {
	t.Helper()
	e := &env{
		mem:  store.NewMemoryStore(),
		stub: &fetchStub{attempt: fetch.Attempt{Outcome: fetch.OutcomeSuccess, Body: []byte("<html/>")}},
	}

	orch := fetch.NewOrchestrator([]fetch.Strategy{e.stub}, fetch.NewProviderState(nil), time.Second, 0)
	lg := ledger.New(e.mem)
	eval := alert.NewEvaluator(e.mem.Alerts(), e.mem, notifier.NewLogNotifier(), publisher.Nop{})

	e.coord = NewCoordinator(orch, e.mem, lg, eval, publisher.Nop{}, opts)
	e.coord.sleep = func(ctx context.Context, d time.Duration) {}
	e.coord.parseFn = func(raw []byte) (*models.Snapshot, error) {
		if len(e.parsed) == 0 {
			return snapshotWithPrice(100), nil
		}
		idx := e.parseAt
		if idx >= len(e.parsed) {
			idx = len(e.parsed) - 1
		}
		e.parseAt++
		return e.parsed[idx], nil
	}
	return e
}

func defaultOpts() Options {
	return Options{
		BulkCooldown:      time.Hour,
		ManualMinInterval: 2 * time.Minute,
	}
}

func TestManualRefreshTooSoonSkipsFetch(t *testing.T) {
	e := newEnv(t, defaultOpts())
	now := time.Now()

	p := &models.Product{ID: "p1", URL: "https://www.amazon.com/dp/B08N5WRWNW", LastUpdated: now.Add(-30 * time.Second)}
	assert.NoError(t, e.mem.Save(context.Background(), p))

	_, err := e.coord.ManualRefresh(context.Background(), p, now)
	assert.Error(t, err)
	assert.Equal(t, errors.KindTooSoon, errors.KindOf(err))
	assert.Equal(t, 0, e.stub.calls, "a rejected refresh must not touch the network")

	remaining := errors.RetryAfterOf(err)
	assert.Greater(t, remaining, time.Duration(0))
	assert.LessOrEqual(t, remaining, 2*time.Minute)
}

func TestManualRefreshNeverRefreshedProceeds(t *testing.T) {
	e := newEnv(t, defaultOpts())
	now := time.Now()

	p := &models.Product{ID: "p1", URL: "https://www.amazon.com/dp/B08N5WRWNW"}
	assert.NoError(t, e.mem.Save(context.Background(), p))

	got, err := e.coord.ManualRefresh(context.Background(), p, now)
	assert.NoError(t, err)
	assert.Equal(t, 1, e.stub.calls)
	assert.Equal(t, "Widget", got.Name)
	assert.Equal(t, 100.0, got.CurrentPrice)
	assert.Equal(t, now, got.LastUpdated)
}

func TestRefreshAppendsLedgerEntry(t *testing.T) {
	e := newEnv(t, defaultOpts())
	ctx := context.Background()

	p := &models.Product{ID: "p1", URL: "https://www.amazon.com/dp/B08N5WRWNW"}
	assert.NoError(t, e.mem.Save(ctx, p))

	_, err := e.coord.ManualRefresh(ctx, p, time.Now())
	assert.NoError(t, err)
	assert.Equal(t, 1, e.mem.HistoryLen("p1"))

	// Unchanged price on the next refresh still appends.
	_, err = e.coord.ManualRefresh(ctx, p, time.Now().Add(time.Hour))
	assert.NoError(t, err)
	assert.Equal(t, 2, e.mem.HistoryLen("p1"))
}

func TestRefreshKeepsAbsentFields(t *testing.T) {
	e := newEnv(t, defaultOpts())
	ctx := context.Background()

	p := &models.Product{
		ID:           "p1",
		URL:          "https://www.amazon.com/dp/B08N5WRWNW",
		Image:        "https://img.example.com/old.jpg",
		Description:  "known description",
		CurrentPrice: 150,
	}
	assert.NoError(t, e.mem.Save(ctx, p))

	// Snapshot carries only name and price; image and description are absent.
	e.parsed = []*models.Snapshot{snapshotWithPrice(120)}

	got, err := e.coord.ManualRefresh(ctx, p, time.Now())
	assert.NoError(t, err)
	assert.Equal(t, 120.0, got.CurrentPrice)
	assert.Equal(t, "https://img.example.com/old.jpg", got.Image)
	assert.Equal(t, "known description", got.Description)
}

func TestRefreshFailureAdvancesLastUpdated(t *testing.T) {
	e := newEnv(t, defaultOpts())
	e.stub.attempt = fetch.Attempt{Outcome: fetch.OutcomeBlocked}
	ctx := context.Background()
	now := time.Now()

	p := &models.Product{ID: "p1", URL: "https://www.amazon.com/dp/B08N5WRWNW"}
	assert.NoError(t, e.mem.Save(ctx, p))

	_, err := e.coord.ManualRefresh(ctx, p, now)
	assert.Error(t, err)

	stored, getErr := e.mem.Get(ctx, "p1")
	assert.NoError(t, getErr)
	assert.Equal(t, now, stored.LastUpdated, "failure must still advance LastUpdated")
	assert.NotEmpty(t, stored.LastRefreshError)
	assert.Equal(t, 0, e.mem.HistoryLen("p1"), "no ledger entry on failure")
}

func TestRefreshSuccessClearsLastError(t *testing.T) {
	e := newEnv(t, defaultOpts())
	ctx := context.Background()

	p := &models.Product{
		ID:               "p1",
		URL:              "https://www.amazon.com/dp/B08N5WRWNW",
		LastRefreshError: "[blocked] block marker found: captcha",
	}
	assert.NoError(t, e.mem.Save(ctx, p))

	got, err := e.coord.ManualRefresh(ctx, p, time.Now())
	assert.NoError(t, err)
	assert.Empty(t, got.LastRefreshError)
}

func TestPriceDropEvaluatesAlerts(t *testing.T) {
	e := newEnv(t, defaultOpts())
	ctx := context.Background()

	p := &models.Product{ID: "p1", URL: "https://www.amazon.com/dp/B08N5WRWNW", CurrentPrice: 200}
	assert.NoError(t, e.mem.Save(ctx, p))
	assert.NoError(t, e.mem.SaveAlert(ctx, &models.Alert{
		ID: "a1", ProductID: "p1", Recipient: "u@example.com",
		TargetPrice: 150, Status: models.AlertPending, CreatedAt: time.Now(),
	}))

	e.parsed = []*models.Snapshot{snapshotWithPrice(120)}

	_, err := e.coord.ManualRefresh(ctx, p, time.Now())
	assert.NoError(t, err)

	a, getErr := e.mem.GetAlert(ctx, "a1")
	assert.NoError(t, getErr)
	assert.Equal(t, models.AlertTriggered, a.Status)
}

func TestIsDue(t *testing.T) {
	e := newEnv(t, defaultOpts())
	now := time.Now()

	assert.True(t, e.coord.IsDue(&models.Product{}, now), "never refreshed is always due")
	assert.False(t, e.coord.IsDue(&models.Product{LastUpdated: now.Add(-30 * time.Minute)}, now))
	assert.True(t, e.coord.IsDue(&models.Product{LastUpdated: now.Add(-2 * time.Hour)}, now))
}

func TestRunBatchRefreshesOnlyDue(t *testing.T) {
	e := newEnv(t, defaultOpts())
	ctx := context.Background()
	now := time.Now()

	fresh := &models.Product{ID: "fresh", URL: "https://www.amazon.com/dp/B000000001", LastUpdated: now.Add(-10 * time.Minute), CreatedAt: now.Add(-time.Hour)}
	stale := &models.Product{ID: "stale", URL: "https://www.amazon.com/dp/B000000002", LastUpdated: now.Add(-3 * time.Hour), CreatedAt: now}
	assert.NoError(t, e.mem.Save(ctx, fresh))
	assert.NoError(t, e.mem.Save(ctx, stale))

	assert.NoError(t, e.coord.RunBatch(ctx))
	assert.Equal(t, 1, e.stub.calls)

	refreshed, _ := e.mem.Get(ctx, "stale")
	assert.Equal(t, "Widget", refreshed.Name)

	untouched, _ := e.mem.Get(ctx, "fresh")
	assert.Empty(t, untouched.Name)
}

func TestBatchContinuesPastFailures(t *testing.T) {
	e := newEnv(t, defaultOpts())
	ctx := context.Background()
	now := time.Now()

	e.coord.parseFn = func(raw []byte) (*models.Snapshot, error) {
		e.parseAt++
		if e.parseAt == 1 {
			return nil, errors.NewParse("name")
		}
		return snapshotWithPrice(100), nil
	}

	products := []models.Product{
		{ID: "p1", URL: "https://www.amazon.com/dp/B000000001"},
		{ID: "p2", URL: "https://www.amazon.com/dp/B000000002"},
	}
	for i := range products {
		assert.NoError(t, e.mem.Save(ctx, &products[i]))
	}

	e.coord.BatchRefresh(ctx, products, now)

	// Both were attempted despite the first parse failure.
	assert.Equal(t, 2, e.stub.calls)
	assert.Equal(t, 2, e.parseAt)
}
