package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"pricepulse/internal/models"
)

// MemoryStore is an in-process implementation of all three store interfaces,
// used in tests and single-shot runs without a database file.
type MemoryStore struct {
	mu       sync.Mutex
	products map[string]models.Product
	history  map[string][]models.PriceEntry
	alerts   map[string]models.Alert
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: make(map[string]models.Product),
		history:  make(map[string][]models.PriceEntry),
		alerts:   make(map[string]models.Alert),
	}
}

// Get returns a product by id.
func (m *MemoryStore) Get(ctx context.Context, id string) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

// GetByURL returns the product an owner tracks under a canonical URL.
func (m *MemoryStore) GetByURL(ctx context.Context, ownerID, url string) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.products {
		if p.OwnerID == ownerID && p.URL == url {
			p := p
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

// List returns all tracked products.
func (m *MemoryStore) List(ctx context.Context) ([]models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Save upserts a product.
func (m *MemoryStore) Save(ctx context.Context, p *models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = *p
	return nil
}

// Append inserts a price history entry.
func (m *MemoryStore) Append(ctx context.Context, entry models.PriceEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history[entry.ProductID] = append(m.history[entry.ProductID], entry)
	return nil
}

// QueryWindow returns entries at or after since, oldest first.
func (m *MemoryStore) QueryWindow(ctx context.Context, productID string, since time.Time) ([]models.PriceEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.PriceEntry
	for _, e := range m.history[productID] {
		if !e.Timestamp.Before(since) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// ExistsForDay reports whether the product has any entry on the given day.
func (m *MemoryStore) ExistsForDay(ctx context.Context, productID string, dayStart time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dayEnd := dayStart.Add(24 * time.Hour)
	for _, e := range m.history[productID] {
		if !e.Timestamp.Before(dayStart) && e.Timestamp.Before(dayEnd) {
			return true, nil
		}
	}
	return false, nil
}

// HistoryLen reports the number of ledger entries for a product.
func (m *MemoryStore) HistoryLen(productID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.history[productID])
}

// GetAlert returns an alert by id.
func (m *MemoryStore) GetAlert(ctx context.Context, id string) (*models.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

// SaveAlert upserts an alert.
func (m *MemoryStore) SaveAlert(ctx context.Context, a *models.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts[a.ID] = *a
	return nil
}

func (m *MemoryStore) listPending(productID string) []models.Alert {
	var out []models.Alert
	for _, a := range m.alerts {
		if a.Status != models.AlertPending {
			continue
		}
		if productID != "" && a.ProductID != productID {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// ListPending returns every pending alert.
func (m *MemoryStore) ListPending(ctx context.Context) ([]models.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listPending(""), nil
}

// ListPendingForProduct returns pending alerts for one product.
func (m *MemoryStore) ListPendingForProduct(ctx context.Context, productID string) ([]models.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listPending(productID), nil
}

// MarkTriggered flips pending->triggered under the store lock; only the first
// caller observes the transition.
func (m *MemoryStore) MarkTriggered(ctx context.Context, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[id]
	if !ok {
		return false, ErrNotFound
	}
	if a.Status != models.AlertPending {
		return false, nil
	}
	a.Status = models.AlertTriggered
	a.TriggeredAt = at
	m.alerts[id] = a
	return true, nil
}

// DeleteAlert removes an alert.
func (m *MemoryStore) DeleteAlert(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.alerts, id)
	return nil
}

// Alerts returns the store as an AlertStore.
func (m *MemoryStore) Alerts() AlertStore {
	return memoryAlertView{m}
}

type memoryAlertView struct {
	m *MemoryStore
}

func (v memoryAlertView) Get(ctx context.Context, id string) (*models.Alert, error) {
	return v.m.GetAlert(ctx, id)
}

func (v memoryAlertView) Save(ctx context.Context, a *models.Alert) error {
	return v.m.SaveAlert(ctx, a)
}

func (v memoryAlertView) ListPending(ctx context.Context) ([]models.Alert, error) {
	return v.m.ListPending(ctx)
}

func (v memoryAlertView) ListPendingForProduct(ctx context.Context, productID string) ([]models.Alert, error) {
	return v.m.ListPendingForProduct(ctx, productID)
}

func (v memoryAlertView) MarkTriggered(ctx context.Context, id string, at time.Time) (bool, error) {
	return v.m.MarkTriggered(ctx, id, at)
}

func (v memoryAlertView) Delete(ctx context.Context, id string) error {
	return v.m.DeleteAlert(ctx, id)
}

var (
	_ ProductStore      = (*MemoryStore)(nil)
	_ PriceHistoryStore = (*MemoryStore)(nil)
	_ AlertStore        = memoryAlertView{}
)
