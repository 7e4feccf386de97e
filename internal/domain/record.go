package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// TimestampLayout is the sortable layout used for dateTime and lastUpdate.
const TimestampLayout = "2006-01-02 15:04:05Z"

// FormatTimestamp renders t's wall clock time in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// Result is a RISE result value. Missing values encode as JSON null.
type Result struct {
	Value   float64
	Missing bool
}

// MarshalJSON renders the value as a plain decimal (never in exponent form),
// or null when the value is missing or not finite.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.Missing || math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
		return []byte("null"), nil
	}
	return []byte(decimal.NewFromFloat(r.Value).String()), nil
}

// UnmarshalJSON accepts null or a JSON number.
func (r *Result) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*r = Result{Missing: true}
		return nil
	}
	d, err := decimal.NewFromString(string(bytes.TrimSpace(data)))
	if err != nil {
		return fmt.Errorf("parse result %s: %w", data, err)
	}
	*r = Result{Value: d.InexactFloat64()}
	return nil
}

// ResultAttributes carries the per-entry metadata copied from the control file.
type ResultAttributes struct {
	ResultType string `json:"resultType"`
	Units      string `json:"Units"`
}

// OutputRecord is one element of the RISE ingestion array. Field order and
// nulls follow the RISE schema.
type OutputRecord struct {
	SourceCode               string            `json:"sourceCode"`
	LocationSourceCode       string            `json:"locationSourceCode"`
	ParameterSourceCode      string            `json:"parameterSourceCode"`
	DateTime                 string            `json:"dateTime"`
	Result                   Result            `json:"result"`
	Status                   *string           `json:"status"`
	LastUpdate               string            `json:"lastUpdate"`
	ResultAttributes         ResultAttributes  `json:"resultAttributes"`
	ModelRunName             *string           `json:"modelRunName"`
	ModelRunDateTime         *string           `json:"modelRunDateTime"`
	ModelRunDescription      *string           `json:"modelRunDescription"`
	ModelRunAttributes       map[string]string `json:"modelRunAttributes"`
	ModelRunMemberDesc       *string           `json:"modelRunMemberDesc"`
	ModelNameSourceCode      *string           `json:"modelNameSourceCode"`
	ModelRunSourceCode       *string           `json:"modelRunSourceCode"`
	ModelRunMemberSourceCode *string           `json:"modelRunMemberSourceCode"`
}

// BuildRecords maps every point of series to a RISE record stamped with now.
func BuildRecords(sourceCode string, entry ControlEntry, series Series, now time.Time) []OutputRecord {
	lastUpdate := FormatTimestamp(now)
	records := make([]OutputRecord, 0, len(series))
	for _, p := range series {
		records = append(records, OutputRecord{
			SourceCode:          sourceCode,
			LocationSourceCode:  entry.StationCode,
			ParameterSourceCode: entry.ParameterCode,
			DateTime:            FormatTimestamp(p.At),
			Result:              Result{Value: p.Value, Missing: p.IsMissing},
			LastUpdate:          lastUpdate,
			ResultAttributes: ResultAttributes{
				ResultType: entry.ResultType,
				Units:      entry.Units,
			},
		})
	}
	return records
}

// EncodeFragment renders records as comma-separated JSON objects without the
// enclosing brackets. ok is false when there are no records.
func EncodeFragment(records []OutputRecord) (fragment []byte, ok bool, err error) {
	if len(records) == 0 {
		return nil, false, nil
	}

	var buf bytes.Buffer
	for i := range records {
		if i > 0 {
			buf.WriteByte(',')
		}
		data, err := json.Marshal(records[i])
		if err != nil {
			return nil, false, fmt.Errorf("encode record %d: %w", i, err)
		}
		buf.Write(data)
	}
	return buf.Bytes(), true, nil
}
