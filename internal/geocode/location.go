package geocode

import (
	"regexp"
	"strconv"
	"strings"
)

// Location is a resolved address.
type Location struct {
	Zip   string  `json:"zip"`
	City  string  `json:"city"`
	State string  `json:"state"`
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
}

var zipPattern = regexp.MustCompile(`^\d{5}(-\d{4})?$`)

// HasZip reports whether Zip is a US postal code rather than a coordinate fallback.
func (l Location) HasZip() bool {
	return zipPattern.MatchString(l.Zip)
}

// CoordinateKey renders the location as "<lat>,<lng>".
func (l Location) CoordinateKey() string {
	return formatCoord(l.Lat) + "," + formatCoord(l.Lng)
}

// Key identifies the location for weather lookups: the postal code when
// present, otherwise the coordinate pair.
func (l Location) Key() string {
	if l.HasZip() {
		return l.Zip
	}
	return l.CoordinateKey()
}

// formatCoord writes the shortest decimal form, keeping at least one
// fractional digit so 40 renders as "40.0".
func formatCoord(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
