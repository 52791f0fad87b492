package nav

import (
	"net/url"
	"strings"
)

// DefaultProvince is the map context when no province is selected.
const DefaultProvince = "Thailand"

// PlaceQuery builds the free-text map query for a place.
func PlaceQuery(name, province string) string {
	if province == "" {
		province = DefaultProvince
	}
	return name + " " + province
}

// EmbedMapURL returns the embeddable map view for query.
func EmbedMapURL(query string) string {
	return "https://maps.google.com/maps?q=" + escapeQuery(query) + "&t=&z=13&ie=UTF8&iwloc=&output=embed"
}

// ExternalMapURL returns the full-navigation map link for query.
func ExternalMapURL(query string) string {
	return "https://www.google.com/maps/search/?api=1&query=" + escapeQuery(query)
}

// escapeQuery percent-encodes spaces as %20 rather than '+', which the embed
// endpoint renders literally.
func escapeQuery(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
