package requests

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"hrleave/internal/domain/apperror"
	"hrleave/internal/domain/balance"
)

// TimeOfDay is a wall-clock time without a date, serialised as "HH:MM".
type TimeOfDay struct {
	Hour   int
	Minute int
}

func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	value := strings.TrimSpace(raw)
	for _, layout := range []string{"15:04", "15:04:05"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return TimeOfDay{Hour: parsed.Hour(), Minute: parsed.Minute()}, nil
		}
	}
	return TimeOfDay{}, fmt.Errorf("invalid time of day %q", raw)
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func (t TimeOfDay) minutes() int {
	return t.Hour*60 + t.Minute
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Duration is the frozen cost of a request. Hour categories are counted in
// whole minutes.
type Duration struct {
	Days    int
	Minutes int
}

func (d Duration) Hours() float64 {
	return balance.MinutesToHours(d.Minutes)
}

// WorkingDays counts Monday to Friday dates in [start, end], both inclusive.
// Only the calendar date of each bound is considered.
func WorkingDays(start, end time.Time) int {
	s := dateOnly(start)
	e := dateOnly(end)
	if e.Before(s) {
		return 0
	}
	span := int(e.Sub(s).Hours()/24) + 1
	days := (span / 7) * 5
	cursor := s.AddDate(0, 0, (span/7)*7)
	for i := 0; i < span%7; i++ {
		if wd := cursor.Weekday(); wd != time.Saturday && wd != time.Sunday {
			days++
		}
		cursor = cursor.AddDate(0, 0, 1)
	}
	return days
}

// MinutesBetween returns end-start in minutes. Both times are required and
// end must be after start.
func MinutesBetween(start, end *TimeOfDay) (int, error) {
	if start == nil || end == nil {
		return 0, apperror.Validation("start and end time are required for this request type")
	}
	if end.minutes() <= start.minutes() {
		return 0, apperror.Validation("end time must be after start time")
	}
	return end.minutes() - start.minutes(), nil
}

// ComputeDuration turns a request range into its cost for the category.
// Categories without a pool cost nothing.
func ComputeDuration(category balance.Category, startDate, endDate time.Time, startTime, endTime *TimeOfDay) (Duration, error) {
	switch {
	case category.IsDayBased():
		return Duration{Days: WorkingDays(startDate, endDate)}, nil
	case category.IsHourBased():
		minutes, err := MinutesBetween(startTime, endTime)
		if err != nil {
			return Duration{}, err
		}
		return Duration{Minutes: minutes}, nil
	default:
		return Duration{}, nil
	}
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
