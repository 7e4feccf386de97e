package domain

import (
	"errors"
	"fmt"
	"time"
)

// Resolution is the temporal granularity of a Hydromet series.
type Resolution int

const (
	Daily Resolution = iota
	Instant
	Monthly
)

// String returns the control-file token for the resolution.
func (r Resolution) String() string {
	switch r {
	case Instant:
		return "instant"
	case Monthly:
		return "monthly"
	default:
		return "daily"
	}
}

// TimeWindow is an inclusive query range. Start <= End is not enforced.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// DefaultWindow returns the query window used for r when no override is given.
// Starts are whole calendar days before today, so they stay at midnight across
// DST changes.
func (r Resolution) DefaultWindow(now time.Time) TimeWindow {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch r {
	case Instant:
		return TimeWindow{Start: today.AddDate(0, 0, -3), End: now.Add(-time.Hour)}
	case Monthly:
		return TimeWindow{Start: today.AddDate(0, -12, 0), End: today.AddDate(0, -1, 0)}
	default:
		return TimeWindow{Start: today.AddDate(0, 0, -7), End: today.AddDate(0, 0, -1)}
	}
}

// ResolveWindow returns the override when set, otherwise the default window for res.
func ResolveWindow(res Resolution, now time.Time, override *TimeWindow) TimeWindow {
	if override != nil {
		return *override
	}
	return res.DefaultWindow(now)
}

// ErrOverrideParse is returned when command-line window timestamps cannot be parsed.
var ErrOverrideParse = errors.New("invalid override window")

// overrideLayouts are tried in order when parsing override timestamps.
var overrideLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"01/02/2006",
}

// ParseOverride builds the run-wide override window from command-line
// arguments. Any argument count other than two yields no override.
func ParseOverride(args []string, loc *time.Location) (*TimeWindow, error) {
	if len(args) != 2 {
		return nil, nil
	}

	start, err := parseTimestamp(args[0], loc)
	if err != nil {
		return nil, fmt.Errorf("%w: start %q", ErrOverrideParse, args[0])
	}
	end, err := parseTimestamp(args[1], loc)
	if err != nil {
		return nil, fmt.Errorf("%w: end %q", ErrOverrideParse, args[1])
	}

	return &TimeWindow{Start: start, End: end}, nil
}

func parseTimestamp(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	var lastErr error
	for _, layout := range overrideLayouts {
		t, err := time.ParseInLocation(layout, s, loc)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
