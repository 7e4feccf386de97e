// Command validate checks an exported RISE JSON document: array structure,
// the record schema, and field values. Given the control file it also checks
// that each entry's records form one ascending run and that every record
// belongs to a listed entry.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -file jsonOutputs/cpnRiseDataTransfer.json \
//	  -control riseHydrometItems.csv
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/couchcryptid/rise-hydromet-export/internal/adapter/files"
	"github.com/couchcryptid/rise-hydromet-export/internal/domain"
)

// schemaKeys are the top-level keys every RISE record carries.
var schemaKeys = []string{
	"sourceCode",
	"locationSourceCode",
	"parameterSourceCode",
	"dateTime",
	"result",
	"status",
	"lastUpdate",
	"resultAttributes",
	"modelRunName",
	"modelRunDateTime",
	"modelRunDescription",
	"modelRunAttributes",
	"modelRunMemberDesc",
	"modelNameSourceCode",
	"modelRunSourceCode",
	"modelRunMemberSourceCode",
}

// alwaysNull are the keys the exporter never populates.
var alwaysNull = []string{
	"status",
	"modelRunName",
	"modelRunDateTime",
	"modelRunDescription",
	"modelRunAttributes",
	"modelRunMemberDesc",
	"modelNameSourceCode",
	"modelRunSourceCode",
	"modelRunMemberSourceCode",
}

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	file := flag.String("file", "", "path to the exported RISE JSON document")
	control := flag.String("control", "", "optional control file the document was exported from")
	flag.Parse()

	if *file == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*file, *control); code != 0 {
		os.Exit(code)
	}
}

func run(path, controlPath string) int {
	fmt.Println("=== RISE Document Validation ===")
	fmt.Println()

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: read document: %v\n", err)
		return 1
	}

	var entries []domain.ControlEntry
	if controlPath != "" {
		lines, err := files.ReadControlLines(controlPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
			return 1
		}
		for _, line := range lines {
			if e, ok := domain.ParseControlLine(line); ok {
				entries = append(entries, e)
			}
		}
	}

	phases, records := validate(data, entries, controlPath != "")

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d\n", len(records))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// validate runs every phase over the document. Later phases are skipped when
// the document is not a JSON array; the control-file phases run only when
// checkControl is set.
func validate(data []byte, entries []domain.ControlEntry, checkControl bool) ([]*phase, []map[string]json.RawMessage) {
	structure, records := validateStructure(data)
	phases := []*phase{structure}
	if !structure.passed() {
		return phases, nil
	}

	phases = append(phases,
		validateSchema(records),
		validateValues(records),
	)
	if checkControl {
		phases = append(phases,
			validateSeriesRuns(records, entries),
			validateControlCoverage(records, entries),
		)
	}
	return phases, records
}

// ── Phase 1: Structure ──

func validateStructure(data []byte) (*phase, []map[string]json.RawMessage) {
	p := &phase{name: "Phase 1: Document Structure"}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		p.errorf("document is not a JSON array: %v", err)
		return p, nil
	}

	records := make([]map[string]json.RawMessage, 0, len(raw))
	for i, r := range raw {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(r, &obj); err != nil {
			p.errorf("element %d: not a JSON object", i)
			continue
		}
		records = append(records, obj)
	}
	return p, records
}

// ── Phase 2: Schema ──

func validateSchema(records []map[string]json.RawMessage) *phase {
	p := &phase{name: "Phase 2: Record Schema"}

	want := make(map[string]bool, len(schemaKeys))
	for _, k := range schemaKeys {
		want[k] = true
	}

	for i, rec := range records {
		for _, k := range schemaKeys {
			if _, ok := rec[k]; !ok {
				p.errorf("record %d: missing key %q", i, k)
			}
		}
		var extra []string
		for k := range rec {
			if !want[k] {
				extra = append(extra, k)
			}
		}
		sort.Strings(extra)
		for _, k := range extra {
			p.errorf("record %d: unexpected key %q", i, k)
		}
	}
	return p
}

// ── Phase 3: Values ──

func validateValues(records []map[string]json.RawMessage) *phase {
	p := &phase{name: "Phase 3: Field Values"}

	for i, rec := range records {
		for _, k := range []string{"sourceCode", "locationSourceCode", "parameterSourceCode"} {
			if s, ok := stringField(rec, k); !ok || s == "" {
				p.errorf("record %d: %s must be a non-empty string", i, k)
			}
		}
		for _, k := range []string{"dateTime", "lastUpdate"} {
			s, ok := stringField(rec, k)
			if !ok {
				p.errorf("record %d: %s must be a string", i, k)
				continue
			}
			if _, err := time.Parse(domain.TimestampLayout, s); err != nil {
				p.errorf("record %d: %s %q not in %q layout", i, k, s, domain.TimestampLayout)
			}
		}

		if raw, ok := rec["result"]; ok {
			var r domain.Result
			if err := json.Unmarshal(raw, &r); err != nil {
				p.errorf("record %d: result %s is neither null nor a number", i, raw)
			}
		}

		checkAttributes(p, i, rec["resultAttributes"])

		for _, k := range alwaysNull {
			if raw, ok := rec[k]; ok && string(raw) != "null" {
				p.errorf("record %d: %s must be null, got %s", i, k, raw)
			}
		}
	}
	return p
}

func checkAttributes(p *phase, i int, raw json.RawMessage) {
	var attrs map[string]json.RawMessage
	if err := json.Unmarshal(raw, &attrs); err != nil || attrs == nil {
		p.errorf("record %d: resultAttributes must be an object", i)
		return
	}
	for _, k := range []string{"resultType", "Units"} {
		if _, ok := stringField(attrs, k); !ok {
			p.errorf("record %d: resultAttributes.%s must be a string", i, k)
		}
	}
}

// ── Phase 4: Series Runs ──
// A run is a stretch of records for one station/parameter with strictly
// increasing dateTime; each control entry yields at most one run. The same
// station/parameter may be listed at several resolutions, so runs are only
// counted against the control file.

func validateSeriesRuns(records []map[string]json.RawMessage, entries []domain.ControlEntry) *phase {
	p := &phase{name: "Phase 4: Series Runs"}

	listed := make(map[string]int)
	for _, e := range entries {
		listed[e.StationCode+"/"+e.ParameterCode]++
	}

	runs := make(map[string]int)
	var order []string
	var prevKey string
	var prevAt time.Time

	for _, rec := range records {
		key := seriesKey(rec)
		at, err := recordTime(rec)
		if err != nil {
			continue
		}
		if key != prevKey || !at.After(prevAt) {
			if runs[key] == 0 {
				order = append(order, key)
			}
			runs[key]++
		}
		prevKey, prevAt = key, at
	}

	for _, key := range order {
		if n, ok := listed[key]; ok && runs[key] > n {
			p.errorf("series %s: %d runs but %d control entries", key, runs[key], n)
		}
	}
	return p
}

// ── Phase 5: Control Coverage ──

func validateControlCoverage(records []map[string]json.RawMessage, entries []domain.ControlEntry) *phase {
	p := &phase{name: "Phase 5: Control File Coverage"}

	type attrs struct {
		resultType string
		units      string
	}
	known := make(map[string][]attrs)
	for _, e := range entries {
		k := e.StationCode + "/" + e.ParameterCode
		known[k] = append(known[k], attrs{resultType: e.ResultType, units: e.Units})
	}

	for i, rec := range records {
		key := seriesKey(rec)
		candidates, ok := known[key]
		if !ok {
			p.errorf("record %d: series %s not in control file", i, key)
			continue
		}

		var got struct {
			ResultType string `json:"resultType"`
			Units      string `json:"Units"`
		}
		_ = json.Unmarshal(rec["resultAttributes"], &got)

		match := false
		for _, c := range candidates {
			if c.resultType == got.ResultType && c.units == got.Units {
				match = true
				break
			}
		}
		if !match {
			p.errorf("record %d: series %s attributes %q/%q do not match control file", i, key, got.ResultType, got.Units)
		}
	}
	return p
}

// ── Helpers ──

func stringField(rec map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := rec[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func seriesKey(rec map[string]json.RawMessage) string {
	station, _ := stringField(rec, "locationSourceCode")
	parameter, _ := stringField(rec, "parameterSourceCode")
	return station + "/" + parameter
}

func recordTime(rec map[string]json.RawMessage) (time.Time, error) {
	s, _ := stringField(rec, "dateTime")
	return time.Parse(domain.TimestampLayout, s)
}
