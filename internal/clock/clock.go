package clock

import (
	"fmt"
	"strings"
	"time"

	"terminly/internal/constants"
)

// StoredLayout is the naive local timestamp format used in the database.
// Stored values carry no zone information; they are interpreted in the
// application zone.
const StoredLayout = "2006-01-02 15:04:05"

// Clock supplies the current instant in the configured application zone and
// normalizes stored naive timestamps into that zone for comparison.
type Clock struct {
	loc   *time.Location
	nowFn func() time.Time
}

// New creates a Clock for the given IANA zone identifier. An empty identifier
// falls back to the default application zone.
func New(timezone string) (*Clock, error) {
	if timezone == "" {
		timezone = constants.DefaultTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", timezone, err)
	}
	return &Clock{loc: loc, nowFn: time.Now}, nil
}

// NewFixed creates a Clock frozen at the given instant, for tests.
func NewFixed(now time.Time, timezone string) (*Clock, error) {
	c, err := New(timezone)
	if err != nil {
		return nil, err
	}
	c.nowFn = func() time.Time { return now }
	return c, nil
}

// Now returns the current instant in the application zone.
func (c *Clock) Now() time.Time {
	return c.nowFn().In(c.loc)
}

// Location returns the application zone.
func (c *Clock) Location() *time.Location {
	return c.loc
}

// ParseStored interprets a naive database timestamp as local to the
// application zone. ISO-style separators are tolerated.
func (c *Clock) ParseStored(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.Replace(raw, "T", " ", 1)
	if len(raw) > len(StoredLayout) {
		raw = raw[:len(StoredLayout)]
	}
	t, err := time.ParseInLocation(StoredLayout, raw, c.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse stored timestamp %q: %w", raw, err)
	}
	return t, nil
}

// FormatStored renders an instant in the naive stored layout, local to the
// application zone.
func (c *Clock) FormatStored(t time.Time) string {
	return t.In(c.loc).Format(StoredLayout)
}
