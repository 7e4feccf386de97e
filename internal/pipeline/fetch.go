package pipeline

import (
	"context"
	"time"

	"github.com/couchcryptid/rise-hydromet-export/internal/domain"
)

// SeriesReader populates a series for one station/parameter over a window.
type SeriesReader interface {
	ReadSeries(ctx context.Context, station, parameter string, w domain.TimeWindow) (domain.Series, error)
}

// Accessors holds one SeriesReader per resolution class.
type Accessors struct {
	Instant SeriesReader
	Daily   SeriesReader
	Monthly SeriesReader
}

// For returns the reader for res. Daily is the fallback.
func (a Accessors) For(res domain.Resolution) SeriesReader {
	switch res {
	case domain.Instant:
		return a.Instant
	case domain.Monthly:
		return a.Monthly
	default:
		return a.Daily
	}
}

// SeriesFetcher fetches the series described by a control entry.
type SeriesFetcher interface {
	Fetch(ctx context.Context, entry domain.ControlEntry, w domain.TimeWindow) (domain.Series, error)
}

// Fetcher dispatches control entries to the matching resolution accessor.
type Fetcher struct {
	accessors Accessors
	timeout   time.Duration
}

// NewFetcher creates a Fetcher. A positive timeout bounds each fetch.
func NewFetcher(accessors Accessors, timeout time.Duration) *Fetcher {
	return &Fetcher{accessors: accessors, timeout: timeout}
}

// Fetch reads the entry's series over w. Failures are returned as *domain.FetchError.
func (f *Fetcher) Fetch(ctx context.Context, entry domain.ControlEntry, w domain.TimeWindow) (domain.Series, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	series, err := f.accessors.For(entry.Resolution).ReadSeries(ctx, entry.StationCode, entry.ParameterCode, w)
	if err != nil {
		return nil, &domain.FetchError{Entry: entry, Err: err}
	}
	return series, nil
}
