// Package domain models the Hydromet-to-RISE export: control-file entries,
// query windows, fetched series, and the RISE JSON records built from them.
//
// # Control File
//
// The control file (riseHydrometItems.csv) lists one series per line with no
// header row:
//
//	<station>,<parameter>,<result type>,<units>,<resolution>
//	GCL,AF,observed,acre-feet,monthly
//
// Lines starting with "#" are comments. Lines with fewer than five fields are
// skipped without error. Fields are used verbatim (no trimming), so " instant"
// is not the instant token.
//
// # Resolution
//
// The resolution token selects both the default query window and the Hydromet
// endpoint. Matching is case-sensitive: "instant" and "monthly" are recognized,
// and every other token, including "daily", "Daily" and typos, resolves to
// Daily. See [ParseResolution].
//
// Default windows are anchored at midnight of the current day (today) in the
// clock's location:
//
//	Instant: today-3 days     .. now-1h
//	Daily:   today-7 days     .. today-1 day
//	Monthly: today-12 months  .. today-1 month
//
// Two command-line timestamps replace these windows for every entry in the run.
//
// # RISE Records
//
// Each point becomes one RISE record. Missing values (Hydromet reports NaN or
// the 998877 sentinel) are encoded as "result": null. Timestamps use the
// sortable layout "2006-01-02 15:04:05Z" applied to the wall clock time, the
// same text the legacy exporter produced.
package domain
