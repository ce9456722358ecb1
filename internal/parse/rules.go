package parse

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Extraction rules are pure functions applied in order; the first
// structurally valid result wins. Marketplace page layouts drift, so every
// field carries the selector variants seen in the wild.

// textRule extracts a candidate string from the document.
type textRule func(doc *goquery.Document) (string, bool)

// numberRule extracts a candidate numeric value from the document.
type numberRule func(doc *goquery.Document) (float64, bool)

var priceDigits = regexp.MustCompile(`[\d]+\.?\d{0,2}`)
var ratingDigits = regexp.MustCompile(`(\d\.?\d?) out`)

func selectorText(selector string) textRule {
	return func(doc *goquery.Document) (string, bool) {
		text := strings.TrimSpace(doc.Find(selector).First().Text())
		return text, text != ""
	}
}

func firstText(doc *goquery.Document, rules []textRule) (string, bool) {
	for _, rule := range rules {
		if value, ok := rule(doc); ok {
			return value, true
		}
	}
	return "", false
}

func firstNumber(doc *goquery.Document, rules []numberRule) (float64, bool) {
	for _, rule := range rules {
		if value, ok := rule(doc); ok {
			return value, true
		}
	}
	return 0, false
}

// validPrice accepts only finite, positive values; anything else falls
// through to the next rule.
func validPrice(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}

// parsePriceText normalizes thousands separators, then converts the first
// numeric run to a float.
func parsePriceText(text string) (float64, bool) {
	cleaned := strings.ReplaceAll(text, ",", "")
	match := priceDigits.FindString(cleaned)
	if match == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil || !validPrice(v) {
		return 0, false
	}
	return v, true
}

// wholeFractionRule handles the split "whole + fractional part"
// representation some layouts use for the buy-box price.
func wholeFractionRule(wholeSel, fractionSel string) numberRule {
	return func(doc *goquery.Document) (float64, bool) {
		whole := strings.TrimSpace(doc.Find(wholeSel).First().Text())
		fraction := strings.TrimSpace(doc.Find(fractionSel).First().Text())
		if whole == "" || fraction == "" {
			return 0, false
		}
		whole = strings.ReplaceAll(whole, ",", "")
		whole = strings.TrimSuffix(whole, ".")
		v, err := strconv.ParseFloat(whole+"."+fraction, 64)
		if err != nil || !validPrice(v) {
			return 0, false
		}
		return v, true
	}
}

// priceSelectorRule extracts a formatted price string from one selector.
func priceSelectorRule(selector string) numberRule {
	return func(doc *goquery.Document) (float64, bool) {
		text := doc.Find(selector).First().Text()
		if text == "" {
			return 0, false
		}
		return parsePriceText(text)
	}
}

var nameRules = []textRule{
	selectorText("#productTitle"),
	selectorText("h1.a-size-large"),
	selectorText(`h1[data-automation-id="product-title"]`),
	selectorText(".product-title-word-break"),
}

var currentPriceRules = []numberRule{
	wholeFractionRule(".a-price-whole", ".a-price-fraction"),
	priceSelectorRule(".a-price .a-offscreen"),
	priceSelectorRule("#priceblock_ourprice"),
	priceSelectorRule("#priceblock_dealprice"),
	priceSelectorRule(".apexPriceToPay .a-offscreen"),
}

var originalPriceRules = []numberRule{
	priceSelectorRule(".a-text-price .a-offscreen"),
	priceSelectorRule(".priceBlockStrikePriceString"),
	priceSelectorRule(".a-price.a-text-price .a-offscreen"),
}

var currencyRules = []textRule{
	selectorText(".a-price-symbol"),
}

var imageSelectors = []string{
	"#landingImage",
	"#imgBlkFront",
	".a-dynamic-image",
	"img[data-old-hires]",
}

var imageAttrs = []string{"src", "data-src", "data-old-hires"}

// extractImage walks the image selector cascade and upgrades thumbnail URLs
// to the high-resolution variant when the URL carries a size suffix.
func extractImage(doc *goquery.Document) (string, bool) {
	for _, selector := range imageSelectors {
		img := doc.Find(selector).First()
		if img.Length() == 0 {
			continue
		}
		for _, attr := range imageAttrs {
			url, exists := img.Attr(attr)
			if !exists || !strings.HasPrefix(url, "http") {
				continue
			}
			if idx := strings.Index(url, "._"); idx >= 0 {
				url = url[:idx] + "._SL1500_"
			}
			return url, true
		}
	}
	return "", false
}

// extractDescription prefers the feature bullet list (first five bullets),
// falling back to the long-form description block.
func extractDescription(doc *goquery.Document) (string, bool) {
	var bullets []string
	doc.Find("#feature-bullets li").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if text := strings.TrimSpace(s.Text()); text != "" {
			bullets = append(bullets, text)
		}
		return len(bullets) < 5
	})
	if len(bullets) > 0 {
		return strings.Join(bullets, " "), true
	}

	if text := strings.TrimSpace(doc.Find("#productDescription").First().Text()); text != "" {
		return text, true
	}
	return "", false
}

func extractRating(doc *goquery.Document) (float64, bool) {
	sel := doc.Find(`i[data-hook="average-star-rating"]`).First()
	if sel.Length() == 0 {
		sel = doc.Find(".a-icon-star .a-icon-alt").First()
	}
	if sel.Length() == 0 {
		return 0, false
	}

	match := ratingDigits.FindStringSubmatch(sel.Text())
	if match == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(match[1], 64)
	if err != nil || math.IsNaN(v) || v <= 0 {
		return 0, false
	}
	return v, true
}

// extractInStock reads the availability block, falling back to the presence
// of an add-to-cart button when the block says nothing definitive.
func extractInStock(doc *goquery.Document) bool {
	text := strings.ToLower(strings.TrimSpace(doc.Find("#availability").First().Text()))
	if strings.Contains(text, "in stock") || strings.Contains(text, "available") {
		// "unavailable" also contains "available"
		if !strings.Contains(text, "unavailable") {
			return true
		}
	}
	if strings.Contains(text, "out of stock") || strings.Contains(text, "unavailable") {
		return false
	}
	return doc.Find("#add-to-cart-button").Length() > 0
}
