package report

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"blaulicht/internal/services"
)

// DateLayout is the archive's timestamp layout after the " Uhr" suffix is removed.
const DateLayout = "02.01.2006 15:04"

const dateSuffix = " Uhr"

var (
	berlinOnce sync.Once
	berlin     *time.Location
)

// Location returns Europe/Berlin, falling back to a fixed CET offset when the
// zone database is unavailable.
func Location() *time.Location {
	berlinOnce.Do(func() {
		loc, err := time.LoadLocation("Europe/Berlin")
		if err != nil {
			loc = time.FixedZone("CET", 60*60)
		}
		berlin = loc
	})
	return berlin
}

// ParseDate parses an archive timestamp such as "13.07.2025 13:31 Uhr".
// Failures carry services.ErrMalformedTimestamp.
func ParseDate(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, dateSuffix))
	ts, err := time.ParseInLocation(DateLayout, trimmed, Location())
	if err != nil {
		return time.Time{}, services.Wrap(services.ErrMalformedTimestamp, "report", "parse date", fmt.Sprintf("%q", value), err)
	}
	return ts, nil
}

// Time parses the report's date.
func (r Report) Time() (time.Time, error) {
	return ParseDate(r.Date)
}
