// Package ledger keeps a SQLite history of export runs and their entries.
package ledger

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/couchcryptid/rise-hydromet-export/internal/domain"
)

//go:embed sql/schema.sql
var schemaSQL string

//go:embed sql/insert-run.sql
var insertRunSQL string

//go:embed sql/finish-run.sql
var finishRunSQL string

//go:embed sql/insert-entry.sql
var insertEntrySQL string

//go:embed sql/get-run.sql
var getRunSQL string

const timeLayout = time.RFC3339Nano

// Ledger is a SQLite-backed run history.
type Ledger struct {
	db *sql.DB
}

// Open opens (creating if needed) the ledger database at path and applies the schema.
func Open(ctx context.Context, path string) (*Ledger, error) {
	dsn, err := buildDSN(path)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("ledger open: %w", err)
	}
	// One writer; the export is sequential.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

// StartRun inserts a new run row and returns a handle for recording its entries.
func (l *Ledger) StartRun(ctx context.Context, override *domain.TimeWindow) (*Run, error) {
	id := uuid.NewString()
	var start, end sql.NullString
	if override != nil {
		start = sql.NullString{String: formatTime(override.Start), Valid: true}
		end = sql.NullString{String: formatTime(override.End), Valid: true}
	}
	if _, err := l.db.ExecContext(ctx, insertRunSQL, id, formatTime(domain.Now()), start, end); err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return &Run{id: id, db: l.db}, nil
}

// RunRecord is a stored run.
type RunRecord struct {
	ID         string
	StartedAt  time.Time
	FinishedAt *time.Time
	Summary    domain.RunSummary
}

// GetRun loads a run by ID.
func (l *Ledger) GetRun(ctx context.Context, id string) (RunRecord, error) {
	var (
		rec      RunRecord
		started  string
		finished sql.NullString
	)
	err := l.db.QueryRowContext(ctx, getRunSQL, id).Scan(
		&rec.ID, &started, &finished,
		&rec.Summary.Entries, &rec.Summary.Succeeded, &rec.Summary.Empty,
		&rec.Summary.Failed, &rec.Summary.Records,
	)
	if err != nil {
		return RunRecord{}, fmt.Errorf("get run %s: %w", id, err)
	}

	if rec.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return RunRecord{}, fmt.Errorf("parse started_at: %w", err)
	}
	if finished.Valid {
		t, err := time.Parse(timeLayout, finished.String)
		if err != nil {
			return RunRecord{}, fmt.Errorf("parse finished_at: %w", err)
		}
		rec.FinishedAt = &t
	}
	return rec, nil
}

// Run records the entries of one export run.
// It implements pipeline.EntryRecorder.
type Run struct {
	id string
	db *sql.DB
}

func (r *Run) ID() string { return r.id }

// RecordEntry stores one entry outcome.
func (r *Run) RecordEntry(ctx context.Context, res domain.EntryResult) error {
	var errText sql.NullString
	if res.Err != nil {
		errText = sql.NullString{String: res.Err.Error(), Valid: true}
	}
	_, err := r.db.ExecContext(ctx, insertEntrySQL,
		r.id,
		res.Seq,
		res.Entry.StationCode,
		res.Entry.ParameterCode,
		res.Entry.Resolution.String(),
		formatTime(res.Window.Start),
		formatTime(res.Window.End),
		string(res.Outcome),
		len(res.Records),
		errText,
	)
	if err != nil {
		return fmt.Errorf("insert entry %d: %w", res.Seq, err)
	}
	return nil
}

// Finish stamps the run with its completion time and totals.
func (r *Run) Finish(ctx context.Context, summary domain.RunSummary) error {
	_, err := r.db.ExecContext(ctx, finishRunSQL,
		formatTime(domain.Now()),
		summary.Entries,
		summary.Succeeded,
		summary.Empty,
		summary.Failed,
		summary.Records,
		r.id,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func buildDSN(path string) (string, error) {
	if path == ":memory:" {
		return "file::memory:?_foreign_keys=on", nil
	}

	dir := filepath.Dir(strings.TrimPrefix(path, "file:"))
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	params := []string{
		"_foreign_keys=on",
		"_busy_timeout=5000",
		"_journal_mode=WAL",
	}
	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + strings.Join(params, "&"), nil
	}
	return fmt.Sprintf("file:%s?%s", path, strings.Join(params, "&")), nil
}
