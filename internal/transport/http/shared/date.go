package shared

import (
	"errors"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

var errEmptyDate = errors.New("date is required")

// ParseLeaveDate reads a calendar day. Full timestamps are accepted and
// reduced to the day they name in their own offset, so "2024-06-10T23:30:00-05:00"
// is June 10th rather than the UTC instant's June 11th. The result is
// midnight UTC.
func ParseLeaveDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errEmptyDate
	}
	if day, err := time.Parse(dateLayout, raw); err == nil {
		return day, nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := ts.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}
