package hydromet

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/rise-hydromet-export/internal/domain"
)

// missingSentinel is the Hydromet marker for an absent observation.
const missingSentinel = 998877.0

var timestampLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006 15:04",
	"01/02/2006",
	"2006-01",
}

// parseCSV reads a pn-bin CSV body. Rows before the DateTime header are
// ignored, and points outside w are dropped. The start of w is compared at the
// resolution's granularity, since pn-bin stamps daily rows at midnight and
// monthly rows on the 1st.
func parseCSV(r io.Reader, res domain.Resolution, station, parameter string, w domain.TimeWindow) (domain.Series, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	loc := w.Start.Location()
	from := periodStart(res, w.Start)
	column := -1
	var series domain.Series

	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if isBlank(rec) {
			continue
		}
		line, _ := reader.FieldPos(0)

		if column < 0 {
			if strings.EqualFold(strings.TrimSpace(rec[0]), "DateTime") {
				column = valueColumn(rec, station, parameter)
			}
			continue
		}

		if column >= len(rec) {
			return nil, fmt.Errorf("line %d: missing value column", line)
		}
		at, err := parseTimestamp(strings.TrimSpace(rec[0]), loc)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		value, missing, err := parseValue(rec[column])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		if at.Before(from) || at.After(w.End) {
			continue
		}
		series = append(series, domain.SeriesPoint{At: at, Value: value, IsMissing: missing})
	}

	if column < 0 {
		return nil, errors.New("no DateTime header in response")
	}
	return series, nil
}

// periodStart truncates t to the start of the row period for res.
func periodStart(res domain.Resolution, t time.Time) time.Time {
	switch res {
	case domain.Monthly:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	case domain.Daily:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	default:
		return t
	}
}

// valueColumn finds the STATION_PCODE column, falling back to the first value column.
func valueColumn(header []string, station, parameter string) int {
	want := station + "_" + parameter
	for i, name := range header[1:] {
		if strings.EqualFold(strings.TrimSpace(name), want) {
			return i + 1
		}
	}
	return 1
}

func parseTimestamp(s string, loc *time.Location) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func parseValue(s string) (float64, bool, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "", strings.EqualFold(s, "NaN"), strings.EqualFold(s, "MISSING"):
		return 0, true, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, fmt.Errorf("invalid value %q", s)
	}
	if v == missingSentinel {
		return 0, true, nil
	}
	return v, false, nil
}

func isBlank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
