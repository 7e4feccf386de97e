package domain

import "strings"

// controlFields is the minimum number of comma-separated fields in a usable line.
const controlFields = 5

// ControlEntry is one series request parsed from the control file.
type ControlEntry struct {
	StationCode     string
	ParameterCode   string
	ResultType      string
	Units           string
	Resolution      Resolution
	ResolutionToken string // raw token as written in the control file
}

// ParseControlLine parses one control-file line. The second return value is
// false for empty lines, comments, and lines with fewer than five fields.
func ParseControlLine(line string) (ControlEntry, bool) {
	if line == "" || line[0] == '#' {
		return ControlEntry{}, false
	}

	fields := strings.Split(line, ",")
	if len(fields) < controlFields {
		return ControlEntry{}, false
	}

	return ControlEntry{
		StationCode:     fields[0],
		ParameterCode:   fields[1],
		ResultType:      fields[2],
		Units:           fields[3],
		Resolution:      ParseResolution(fields[4]),
		ResolutionToken: fields[4],
	}, true
}

// ParseResolution maps a control-file token to a Resolution. Only "instant"
// and "monthly" are recognized; anything else is Daily.
func ParseResolution(token string) Resolution {
	switch token {
	case "instant":
		return Instant
	case "monthly":
		return Monthly
	default:
		return Daily
	}
}
