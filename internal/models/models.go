package models

import "time"

// Product is a tracked marketplace listing. Mutable attributes are owned by
// the refresh coordinator; LastUpdated never moves backwards and advances on
// every refresh attempt, success or failure.
type Product struct {
	ID               string    `json:"id"`
	OwnerID          string    `json:"owner_id"`
	URL              string    `json:"url"`
	Name             string    `json:"name"`
	Image            string    `json:"image,omitempty"`
	CurrentPrice     float64   `json:"current_price"`
	OriginalPrice    float64   `json:"original_price,omitempty"`
	Currency         string    `json:"currency"`
	Description      string    `json:"description,omitempty"`
	Rating           float64   `json:"rating,omitempty"`
	InStock          bool      `json:"in_stock"`
	CreatedAt        time.Time `json:"created_at"`
	LastUpdated      time.Time `json:"last_updated"`
	LastRefreshError string    `json:"last_refresh_error,omitempty"`
}

// Snapshot holds the attributes extracted from one fetch+parse cycle. Name is
// the only mandatory field; nil pointers mean the field was absent from the
// page and must not overwrite a previously known value.
type Snapshot struct {
	Name          string
	Image         *string
	CurrentPrice  *float64
	OriginalPrice *float64
	Description   *string
	Rating        *float64
	InStock       *bool
	Currency      *string
}

// Apply merges the snapshot into a product. Present fields overwrite, absent
// fields leave the prior value untouched.
func (s *Snapshot) Apply(p *Product) {
	p.Name = s.Name
	if s.Image != nil {
		p.Image = *s.Image
	}
	if s.CurrentPrice != nil {
		p.CurrentPrice = *s.CurrentPrice
	}
	if s.OriginalPrice != nil {
		p.OriginalPrice = *s.OriginalPrice
	}
	if s.Description != nil {
		p.Description = *s.Description
	}
	if s.Rating != nil {
		p.Rating = *s.Rating
	}
	if s.InStock != nil {
		p.InStock = *s.InStock
	}
	if s.Currency != nil {
		p.Currency = *s.Currency
	}
}

// PriceEntry is one append-only price history record.
type PriceEntry struct {
	ProductID string    `json:"product_id"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// AlertStatus is the state of a price alert.
type AlertStatus string

const (
	// AlertPending means the alert has not fired yet
	AlertPending AlertStatus = "pending"
	// AlertTriggered is terminal; a triggered alert never re-arms
	AlertTriggered AlertStatus = "triggered"
)

// Alert fires at most once when the tracked product's current price drops to
// or below the target price.
type Alert struct {
	ID          string      `json:"id"`
	ProductID   string      `json:"product_id"`
	OwnerID     string      `json:"owner_id"`
	Recipient   string      `json:"recipient"`
	TargetPrice float64     `json:"target_price"`
	Status      AlertStatus `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	TriggeredAt time.Time   `json:"triggered_at,omitempty"`
}
