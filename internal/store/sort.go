package store

import (
	"math"
	"time"

	"rhystmorgan/mira/internal/models"
)

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01",
	"2006",
}

// ParseDate reads a "last contact" value. Values without a zone are UTC.
func ParseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// SortKey orders contacts for display, smallest first. The "?" sentinel goes
// to the very top, undated contacts get 0, and dated contacts get their
// negated epoch milliseconds. Dates before 1970 therefore land below the
// undated ones.
func SortKey(c *models.Contact) float64 {
	if c.Name() == models.SentinelName {
		return math.Inf(-1)
	}

	last := c.String("last")
	if last == "" {
		return 0
	}

	t, ok := ParseDate(last)
	if !ok {
		return 0
	}
	return -float64(t.UnixMilli())
}
