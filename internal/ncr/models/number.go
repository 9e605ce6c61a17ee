package models

import (
	"strings"
	"time"
)

// areaCodes maps plant areas to the department code prefixed on report
// numbers. The lookup is fixed; renaming an area on the floor plan must not
// renumber historical records.
var areaCodes = map[string]string{
	"receiving":  "RCV",
	"production": "PRD",
	"assembly":   "ASM",
	"machining":  "MCH",
	"warehouse":  "WHS",
	"shipping":   "SHP",
}

// defaultAreaCode is used when the reported area is unrecognized or blank.
const defaultAreaCode = "GEN"

// AreaCode resolves a plant area to its department code, case-insensitively.
func AreaCode(area string) string {
	if code, ok := areaCodes[strings.ToLower(strings.TrimSpace(area))]; ok {
		return code
	}
	return defaultAreaCode
}

// NumberFor builds a report number: <DeptCode>-<YYYYMMDD>-<HHMM>.
// Numbers are derived from the request-scoped time, so one request stamps
// one consistent number.
func NumberFor(area string, t time.Time) string {
	return AreaCode(area) + "-" + t.Format("20060102") + "-" + t.Format("1504")
}

// MRBNumberFor builds a review board number: MRB-<YYYYMMDD>-<HHMM>.
func MRBNumberFor(t time.Time) string {
	return "MRB-" + t.Format("20060102") + "-" + t.Format("1504")
}
