package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/rise-hydromet-export/internal/domain"
)

var testNow = time.Date(2021, time.March, 15, 14, 30, 0, 0, time.UTC)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	domain.SetClock(clockwork.NewFakeClockAt(testNow))
	t.Cleanup(func() { domain.SetClock(nil) })

	l, err := Open(context.Background(), filepath.Join(t.TempDir(), "state", "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func entryResult(t *testing.T, seq int, line string, outcome domain.Outcome, records int, err error) domain.EntryResult {
	t.Helper()
	entry, ok := domain.ParseControlLine(line)
	require.True(t, ok)
	return domain.EntryResult{
		Seq:     seq,
		Entry:   entry,
		Window:  entry.Resolution.DefaultWindow(testNow),
		Outcome: outcome,
		Records: make([]domain.OutputRecord, records),
		Err:     err,
	}
}

func TestLedger_RunLifecycle(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	run, err := l.StartRun(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, run.ID(), 36)

	require.NoError(t, run.RecordEntry(ctx, entryResult(t, 1, "GCL,AF,observed,acre-feet,monthly", domain.OutcomeSuccess, 2, nil)))
	require.NoError(t, run.RecordEntry(ctx, entryResult(t, 2, "BAD,AF,observed,acre-feet,daily", domain.OutcomeFailed, 0, errors.New("status 404"))))

	stored, err := l.GetRun(ctx, run.ID())
	require.NoError(t, err)
	assert.Equal(t, testNow, stored.StartedAt)
	assert.Nil(t, stored.FinishedAt)

	summary := domain.RunSummary{Entries: 2, Succeeded: 1, Failed: 1, Records: 2}
	require.NoError(t, run.Finish(ctx, summary))

	stored, err = l.GetRun(ctx, run.ID())
	require.NoError(t, err)
	require.NotNil(t, stored.FinishedAt)
	assert.Equal(t, testNow, *stored.FinishedAt)
	assert.Equal(t, summary, stored.Summary)

	var outcome, errText string
	var records int
	require.NoError(t, l.db.QueryRowContext(ctx,
		"SELECT outcome, records, error FROM entries WHERE run_id = ? AND seq = 2", run.ID(),
	).Scan(&outcome, &records, &errText))
	assert.Equal(t, "failed", outcome)
	assert.Equal(t, 0, records)
	assert.Equal(t, "status 404", errText)

	var window string
	require.NoError(t, l.db.QueryRowContext(ctx,
		"SELECT window_start FROM entries WHERE run_id = ? AND seq = 1", run.ID(),
	).Scan(&window))
	assert.Equal(t, "2020-03-15T00:00:00Z", window)
}

func TestLedger_OverrideStored(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()
	override := &domain.TimeWindow{
		Start: time.Date(2019, time.June, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2019, time.June, 30, 0, 0, 0, 0, time.UTC),
	}

	run, err := l.StartRun(ctx, override)
	require.NoError(t, err)

	var start, end string
	require.NoError(t, l.db.QueryRowContext(ctx,
		"SELECT override_start, override_end FROM runs WHERE id = ?", run.ID(),
	).Scan(&start, &end))
	assert.Equal(t, "2019-06-01T00:00:00Z", start)
	assert.Equal(t, "2019-06-30T00:00:00Z", end)
}

func TestLedger_DuplicateEntryRejected(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	run, err := l.StartRun(ctx, nil)
	require.NoError(t, err)

	res := entryResult(t, 1, "GCL,AF,observed,acre-feet,monthly", domain.OutcomeEmpty, 0, nil)
	require.NoError(t, run.RecordEntry(ctx, res))
	assert.Error(t, run.RecordEntry(ctx, res))
}

func TestLedger_GetRunUnknown(t *testing.T) {
	l := openTestLedger(t)

	_, err := l.GetRun(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get run missing")
}

func TestLedger_ReopenKeepsHistory(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(testNow))
	t.Cleanup(func() { domain.SetClock(nil) })
	path := filepath.Join(t.TempDir(), "ledger.db")
	ctx := context.Background()

	l, err := Open(ctx, path)
	require.NoError(t, err)
	run, err := l.StartRun(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, l.Close())

	l, err = Open(ctx, path)
	require.NoError(t, err)
	defer l.Close()

	_, err = l.GetRun(ctx, run.ID())
	require.NoError(t, err)
}

func TestBuildDSN(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		path string
		want string
	}{
		{name: "plain path", path: filepath.Join(dir, "a.db"), want: "file:" + filepath.Join(dir, "a.db") + "?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL"},
		{name: "file prefix", path: "file:" + filepath.Join(dir, "b.db"), want: "file:" + filepath.Join(dir, "b.db") + "?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL"},
		{name: "memory", path: ":memory:", want: "file::memory:?_foreign_keys=on"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildDSN(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
