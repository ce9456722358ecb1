package listing

import (
	"net/url"
	"regexp"
	"strings"

	"pricepulse/pkg/errors"
)

// Accepted marketplace domains. The canonical form always carries the www
// prefix, matching what the marketplace itself redirects to.
var domainPattern = regexp.MustCompile(`^(www\.)?amazon\.(com|in|co\.uk|ca|de|fr|es|it|co\.jp)$`)

// Listing pages come in two path shapes: /dp/<id> anywhere in the path, and
// the older /gp/product/<id> form.
var (
	dpPattern = regexp.MustCompile(`/dp/([A-Z0-9]{10})(?:[/?]|$)`)
	gpPattern = regexp.MustCompile(`/gp/product/([A-Z0-9]{10})(?:[/?]|$)`)
)

// Validate reports whether raw is a recognized listing URL.
func Validate(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if !domainPattern.MatchString(strings.ToLower(u.Hostname())) {
		return false
	}
	_, ok := extractFromPath(u.Path)
	return ok
}

// ExtractProductID pulls the product id out of a listing URL.
func ExtractProductID(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	return extractFromPath(u.Path)
}

func extractFromPath(path string) (string, bool) {
	if m := dpPattern.FindStringSubmatch(path); m != nil {
		return m[1], true
	}
	if m := gpPattern.FindStringSubmatch(path); m != nil {
		return m[1], true
	}
	return "", false
}

// Normalize rebuilds a listing URL from its product id and domain, dropping
// every query parameter and path decoration. Two URLs referencing the same
// product id on the same domain normalize to an identical string, which the
// tracker relies on for de-duplication.
func Normalize(raw string) (string, error) {
	if !Validate(raw) {
		return "", errors.NewInvalidURL(raw)
	}

	u, _ := url.Parse(raw)
	id, _ := extractFromPath(u.Path)

	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")

	return "https://www." + host + "/dp/" + id, nil
}
