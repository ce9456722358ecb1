package store

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"pricepulse/internal/models"
)

// SQLiteStore implements ProductStore, PriceHistoryStore, and AlertStore on a
// single sqlite database.
type SQLiteStore struct {
	conn *sql.DB
}

// NewSQLiteStore opens the database at dbPath and creates the schema if needed.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	s := &SQLiteStore{conn: conn}
	if err := s.init(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying connection.
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

func (s *SQLiteStore) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		url TEXT NOT NULL,
		name TEXT,
		image TEXT,
		current_price REAL,
		original_price REAL,
		currency TEXT,
		description TEXT,
		rating REAL,
		in_stock BOOLEAN DEFAULT 1,
		created_at DATETIME,
		last_updated DATETIME,
		last_refresh_error TEXT,
		UNIQUE(owner_id, url)
	);
	CREATE TABLE IF NOT EXISTS price_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		product_id TEXT NOT NULL,
		price REAL NOT NULL,
		timestamp DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_price_history_product_ts
		ON price_history(product_id, timestamp);
	CREATE TABLE IF NOT EXISTS alerts (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL,
		owner_id TEXT NOT NULL,
		recipient TEXT,
		target_price REAL NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at DATETIME,
		triggered_at DATETIME
	);
	`
	_, err := s.conn.Exec(schema)
	return err
}

const productColumns = `id, owner_id, url, name, image, current_price, original_price,
	currency, description, rating, in_stock, created_at, last_updated, last_refresh_error`

func (s *SQLiteStore) scanProduct(row *sql.Row) (*models.Product, error) {
	var p models.Product
	var lastUpdated sql.NullTime
	err := row.Scan(&p.ID, &p.OwnerID, &p.URL, &p.Name, &p.Image, &p.CurrentPrice,
		&p.OriginalPrice, &p.Currency, &p.Description, &p.Rating, &p.InStock,
		&p.CreatedAt, &lastUpdated, &p.LastRefreshError)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if lastUpdated.Valid {
		p.LastUpdated = lastUpdated.Time
	}
	return &p, nil
}

// Get returns a product by id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*models.Product, error) {
	row := s.conn.QueryRowContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE id = ?", id)
	return s.scanProduct(row)
}

// GetByURL returns the product an owner tracks under a canonical URL.
func (s *SQLiteStore) GetByURL(ctx context.Context, ownerID, url string) (*models.Product, error) {
	row := s.conn.QueryRowContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE owner_id = ? AND url = ?", ownerID, url)
	return s.scanProduct(row)
}

// List returns all tracked products.
func (s *SQLiteStore) List(ctx context.Context) ([]models.Product, error) {
	rows, err := s.conn.QueryContext(ctx,
		"SELECT "+productColumns+" FROM products ORDER BY created_at")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var p models.Product
		var lastUpdated sql.NullTime
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.URL, &p.Name, &p.Image, &p.CurrentPrice,
			&p.OriginalPrice, &p.Currency, &p.Description, &p.Rating, &p.InStock,
			&p.CreatedAt, &lastUpdated, &p.LastRefreshError); err != nil {
			return nil, err
		}
		if lastUpdated.Valid {
			p.LastUpdated = lastUpdated.Time
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// Save upserts a product.
func (s *SQLiteStore) Save(ctx context.Context, p *models.Product) error {
	var lastUpdated interface{}
	if !p.LastUpdated.IsZero() {
		lastUpdated = p.LastUpdated
	}
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			image = excluded.image,
			current_price = excluded.current_price,
			original_price = excluded.original_price,
			currency = excluded.currency,
			description = excluded.description,
			rating = excluded.rating,
			in_stock = excluded.in_stock,
			last_updated = excluded.last_updated,
			last_refresh_error = excluded.last_refresh_error`,
		p.ID, p.OwnerID, p.URL, p.Name, p.Image, p.CurrentPrice, p.OriginalPrice,
		p.Currency, p.Description, p.Rating, p.InStock, p.CreatedAt, lastUpdated,
		p.LastRefreshError)
	return err
}

// Append inserts a price history entry. Entries are never updated or deleted.
func (s *SQLiteStore) Append(ctx context.Context, entry models.PriceEntry) error {
	_, err := s.conn.ExecContext(ctx,
		"INSERT INTO price_history (product_id, price, timestamp) VALUES (?, ?, ?)",
		entry.ProductID, entry.Price, entry.Timestamp)
	return err
}

// QueryWindow returns entries at or after since, oldest first.
func (s *SQLiteStore) QueryWindow(ctx context.Context, productID string, since time.Time) ([]models.PriceEntry, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT product_id, price, timestamp FROM price_history
		WHERE product_id = ? AND timestamp >= ?
		ORDER BY timestamp ASC`, productID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.PriceEntry
	for rows.Next() {
		var e models.PriceEntry
		if err := rows.Scan(&e.ProductID, &e.Price, &e.Timestamp); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ExistsForDay reports whether the product has any entry on the given day.
func (s *SQLiteStore) ExistsForDay(ctx context.Context, productID string, dayStart time.Time) (bool, error) {
	var count int
	err := s.conn.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM price_history
		WHERE product_id = ? AND timestamp >= ? AND timestamp < ?`,
		productID, dayStart, dayStart.Add(24*time.Hour)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

const alertColumns = `id, product_id, owner_id, recipient, target_price, status, created_at, triggered_at`

// GetAlert returns an alert by id.
func (s *SQLiteStore) GetAlert(ctx context.Context, id string) (*models.Alert, error) {
	row := s.conn.QueryRowContext(ctx,
		"SELECT "+alertColumns+" FROM alerts WHERE id = ?", id)

	var a models.Alert
	var triggeredAt sql.NullTime
	err := row.Scan(&a.ID, &a.ProductID, &a.OwnerID, &a.Recipient, &a.TargetPrice,
		&a.Status, &a.CreatedAt, &triggeredAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if triggeredAt.Valid {
		a.TriggeredAt = triggeredAt.Time
	}
	return &a, nil
}

// SaveAlert upserts an alert.
func (s *SQLiteStore) SaveAlert(ctx context.Context, a *models.Alert) error {
	var triggeredAt interface{}
	if !a.TriggeredAt.IsZero() {
		triggeredAt = a.TriggeredAt
	}
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO alerts (`+alertColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			triggered_at = excluded.triggered_at`,
		a.ID, a.ProductID, a.OwnerID, a.Recipient, a.TargetPrice, a.Status,
		a.CreatedAt, triggeredAt)
	return err
}

func (s *SQLiteStore) listAlerts(ctx context.Context, query string, args ...interface{}) ([]models.Alert, error) {
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		var a models.Alert
		var triggeredAt sql.NullTime
		if err := rows.Scan(&a.ID, &a.ProductID, &a.OwnerID, &a.Recipient,
			&a.TargetPrice, &a.Status, &a.CreatedAt, &triggeredAt); err != nil {
			return nil, err
		}
		if triggeredAt.Valid {
			a.TriggeredAt = triggeredAt.Time
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// ListPending returns every pending alert.
func (s *SQLiteStore) ListPending(ctx context.Context) ([]models.Alert, error) {
	return s.listAlerts(ctx,
		"SELECT "+alertColumns+" FROM alerts WHERE status = ? ORDER BY created_at",
		models.AlertPending)
}

// ListPendingForProduct returns pending alerts for one product.
func (s *SQLiteStore) ListPendingForProduct(ctx context.Context, productID string) ([]models.Alert, error) {
	return s.listAlerts(ctx,
		"SELECT "+alertColumns+" FROM alerts WHERE status = ? AND product_id = ? ORDER BY created_at",
		models.AlertPending, productID)
}

// MarkTriggered flips pending->triggered; the conditional UPDATE makes the
// transition atomic across concurrent evaluators.
func (s *SQLiteStore) MarkTriggered(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := s.conn.ExecContext(ctx,
		"UPDATE alerts SET status = ?, triggered_at = ? WHERE id = ? AND status = ?",
		models.AlertTriggered, at, id, models.AlertPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteAlert removes an alert.
func (s *SQLiteStore) DeleteAlert(ctx context.Context, id string) error {
	_, err := s.conn.ExecContext(ctx, "DELETE FROM alerts WHERE id = ?", id)
	return err
}

// Alerts returns the store as an AlertStore. Product methods occupy the
// short names on SQLiteStore, so the alert view maps them back.
func (s *SQLiteStore) Alerts() AlertStore {
	return alertView{s}
}

type alertView struct {
	s *SQLiteStore
}

func (v alertView) Get(ctx context.Context, id string) (*models.Alert, error) {
	return v.s.GetAlert(ctx, id)
}

func (v alertView) Save(ctx context.Context, a *models.Alert) error {
	return v.s.SaveAlert(ctx, a)
}

func (v alertView) ListPending(ctx context.Context) ([]models.Alert, error) {
	return v.s.ListPending(ctx)
}

func (v alertView) ListPendingForProduct(ctx context.Context, productID string) ([]models.Alert, error) {
	return v.s.ListPendingForProduct(ctx, productID)
}

func (v alertView) MarkTriggered(ctx context.Context, id string, at time.Time) (bool, error) {
	return v.s.MarkTriggered(ctx, id, at)
}

func (v alertView) Delete(ctx context.Context, id string) error {
	return v.s.DeleteAlert(ctx, id)
}

var (
	_ ProductStore      = (*SQLiteStore)(nil)
	_ PriceHistoryStore = (*SQLiteStore)(nil)
	_ AlertStore        = alertView{}
)
