package parse

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"pricepulse/internal/models"
	"pricepulse/pkg/errors"
)

// Textual markers that identify a bot-block interstitial. Checked before any
// structural extraction so callers can tell "retry later" apart from "page
// layout changed".
var blockMarkers = []string{
	"captcha",
	"robot check",
	"enter the characters",
	"automated access",
}

const (
	maxNameLen        = 500
	maxDescriptionLen = 1000
)

// Parse turns raw page content into a product snapshot. Name is the only
// mandatory field; its absence is a fatal parse failure even when every other
// field extracted cleanly.
func Parse(raw []byte) (*models.Snapshot, error) {
	lower := strings.ToLower(string(raw))
	for _, marker := range blockMarkers {
		if strings.Contains(lower, marker) {
			return nil, errors.NewBlocked("", "block marker found: "+marker)
		}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.NewParse("document")
	}

	name, ok := firstText(doc, nameRules)
	if !ok {
		return nil, errors.NewParse("name")
	}

	snap := &models.Snapshot{Name: truncate(name, maxNameLen)}

	if image, ok := extractImage(doc); ok {
		snap.Image = &image
	}
	if price, ok := firstNumber(doc, currentPriceRules); ok {
		snap.CurrentPrice = &price
	}
	if price, ok := firstNumber(doc, originalPriceRules); ok {
		snap.OriginalPrice = &price
	}
	if desc, ok := extractDescription(doc); ok {
		desc = truncate(desc, maxDescriptionLen)
		snap.Description = &desc
	}
	if rating, ok := extractRating(doc); ok {
		snap.Rating = &rating
	}
	inStock := extractInStock(doc)
	snap.InStock = &inStock
	if currency, ok := firstText(doc, currencyRules); ok {
		snap.Currency = &currency
	}

	return snap, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
