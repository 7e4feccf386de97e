package domain

import "time"

// SeriesPoint is one timestamped Hydromet value.
type SeriesPoint struct {
	At        time.Time
	Value     float64
	IsMissing bool
}

// Series is a sequence of points in ascending time order, as returned by the
// source. It is not re-sorted.
type Series []SeriesPoint
