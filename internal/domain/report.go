package domain

import (
	"fmt"
	"time"
)

// Check names the validation pass that produced a report.
type Check string

const (
	CheckFile    Check = "file"
	CheckUnified Check = "unified"
	CheckLoad    Check = "load"
	CheckStore   Check = "store"
	CheckQuality Check = "quality"
	CheckSource  Check = "source"
)

// Kind classifies a finding.
type Kind string

const (
	KindDuplicate      Kind = "duplicate"
	KindMissingValue   Kind = "missing_value"
	KindNullValue      Kind = "null_value"
	KindTextValue      Kind = "text_value"
	KindNonNumeric     Kind = "non_numeric_value"
	KindUnparsableTime Kind = "unparsable_timestamp"
	KindOutOfRange     Kind = "out_of_range"
	KindRowRejected    Kind = "row_rejected"
	KindSourceMissing  Kind = "source_missing"
	KindFileFailed     Kind = "file_failed"
	KindShapeMismatch  Kind = "shape_mismatch"
	KindStoreError     Kind = "store_unavailable"
	KindCountMismatch  Kind = "count_mismatch"
	KindEmptyBatch     Kind = "empty_batch"
)

// Severity ranks a finding. Info findings never fail a report.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Finding is one counted observation made by a validation pass.
type Finding struct {
	Kind     Kind     `json:"kind"`
	Field    string   `json:"field,omitempty"`
	Count    int64    `json:"count"`
	Severity Severity `json:"severity"`
	Detail   string   `json:"detail,omitempty"`
}

// CountFinding records n occurrences of kind for field. A zero count is kept
// as an info finding so reports show every inspected field; a positive count
// takes the given severity.
func CountFinding(kind Kind, field string, n int64, severity Severity) Finding {
	if n == 0 {
		severity = SeverityInfo
	}
	return Finding{Kind: kind, Field: field, Count: n, Severity: severity}
}

// Period is the inclusive timestamp range covered by a set of records.
type Period struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Report is the structured result of a validation pass.
type Report struct {
	Check       Check              `json:"check"`
	Scope       string             `json:"scope,omitempty"`
	Records     int64              `json:"records"`
	Findings    []Finding          `json:"findings"`
	Period      *Period            `json:"period,omitempty"`
	Measures    map[string]float64 `json:"measures,omitempty"`
	GeneratedAt time.Time          `json:"generated_at"`
}

// NewReport starts an empty report stamped with the package clock.
func NewReport(check Check, scope string) Report {
	return Report{Check: check, Scope: scope, Findings: []Finding{}, GeneratedAt: Now()}
}

// Add appends findings.
func (r *Report) Add(f ...Finding) {
	r.Findings = append(r.Findings, f...)
}

// Passed reports whether no finding reached warning severity.
func (r Report) Passed() bool {
	for _, f := range r.Findings {
		if f.Severity != SeverityInfo {
			return false
		}
	}
	return true
}

// Count returns the summed count of findings of the given kind, optionally
// restricted to one field (empty field matches all).
func (r Report) Count(kind Kind, field string) int64 {
	var n int64
	for _, f := range r.Findings {
		if f.Kind == kind && (field == "" || f.Field == field) {
			n += f.Count
		}
	}
	return n
}

// Verdict is "pass" or "fail".
func (r Report) Verdict() string {
	if r.Passed() {
		return "pass"
	}
	return "fail"
}

func (r Report) String() string {
	if r.Scope == "" {
		return fmt.Sprintf("%s check: %s (%d records, %d findings)", r.Check, r.Verdict(), r.Records, len(r.Findings))
	}
	return fmt.Sprintf("%s check %s: %s (%d records, %d findings)", r.Check, r.Scope, r.Verdict(), r.Records, len(r.Findings))
}
