package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrDestination marks failures writing the output document. They are fatal.
var ErrDestination = errors.New("output destination error")

// FetchError wraps a source failure for a single control entry.
type FetchError struct {
	Entry ControlEntry
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s %s %s: %v", e.Entry.Resolution, e.Entry.StationCode, e.Entry.ParameterCode, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Outcome classifies how a control entry finished.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeEmpty   Outcome = "empty"
	OutcomeFailed  Outcome = "failed"
)

// EntryResult is the per-entry result handed back to the orchestrator.
type EntryResult struct {
	Seq      int // 1-based position among parsed entries
	Entry    ControlEntry
	Window   TimeWindow
	Outcome  Outcome
	Records  []OutputRecord
	Fragment []byte
	Err      error
	Duration time.Duration
}

// RunSummary counts entry outcomes for a whole run.
type RunSummary struct {
	Entries   int `json:"entries"`
	Succeeded int `json:"succeeded"`
	Empty     int `json:"empty"`
	Failed    int `json:"failed"`
	Records   int `json:"records"`
}

// Add folds one entry result into the summary.
func (s *RunSummary) Add(r EntryResult) {
	s.Entries++
	switch r.Outcome {
	case OutcomeSuccess:
		s.Succeeded++
		s.Records += len(r.Records)
	case OutcomeEmpty:
		s.Empty++
	case OutcomeFailed:
		s.Failed++
	}
}
