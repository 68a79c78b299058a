// Package quality computes the store-side quality error rate: the share of
// stored observations holding a value outside its physically plausible range.
package quality

import (
	"context"
	"errors"
	"fmt"

	"github.com/couchcryptid/weather-station-etl/internal/domain"
	"github.com/couchcryptid/weather-station-etl/internal/store"
)

// Measure names written to the quality report.
const (
	MeasureErrorRate    = "error_rate_pct"
	MeasureAffectedRate = "affected_rate_pct"
	MeasureAnomalies    = "anomalies"
	MeasureAffected     = "affected_documents"
	MeasureRangeFields  = "range_checked_fields"
)

// Range is the plausible closed interval for one numeric field.
type Range struct {
	Field string  `yaml:"field" json:"field"`
	Min   float64 `yaml:"min" json:"min"`
	Max   float64 `yaml:"max" json:"max"`
}

// DefaultRanges is the physical plausibility table used when none is configured.
func DefaultRanges() []Range {
	return []Range{
		{Field: domain.FieldTemperatureC, Min: -50, Max: 50},
		{Field: domain.FieldHumidityPct, Min: 0, Max: 100},
		{Field: domain.FieldPressureHPa, Min: 800, Max: 1100},
		{Field: domain.FieldWindSpeedMS, Min: 0, Max: 50},
	}
}

// Validate rejects empty field names and inverted bounds.
func (r Range) Validate() error {
	if r.Field == "" {
		return errors.New("range: field is required")
	}
	if r.Min > r.Max {
		return fmt.Errorf("range %s: min %g above max %g", r.Field, r.Min, r.Max)
	}
	return nil
}

// Auditor runs the range audit against any populated collection. It only
// reads from the store and can run independently of a load.
type Auditor struct {
	ranges []Range
}

// New creates an auditor over the given range table. An empty table falls
// back to DefaultRanges.
func New(ranges []Range) *Auditor {
	if len(ranges) == 0 {
		ranges = DefaultRanges()
	}
	return &Auditor{ranges: ranges}
}

// Ranges returns the audited range table.
func (a *Auditor) Ranges() []Range {
	return a.ranges
}

// Audit counts out-of-range values per field and documents with at least one
// such value. The report's error rate is out-of-range values summed across
// fields over total documents, as a percentage, so a document with two bad
// fields counts twice; the share of affected documents is reported next to
// it. Null and text values are never out of range. An empty collection
// yields ErrEmptyCollection.
func (a *Auditor) Audit(ctx context.Context, s store.Store) (domain.Report, error) {
	r := domain.NewReport(domain.CheckQuality, "")

	total, err := s.Count(ctx, store.Filter{})
	if err != nil {
		return r, fmt.Errorf("count documents: %w", err)
	}
	r.Records = total
	if total == 0 {
		r.Add(domain.Finding{Kind: domain.KindEmptyBatch, Count: 1, Severity: domain.SeverityWarning, Detail: "collection is empty"})
		return r, domain.ErrEmptyCollection
	}

	filters := make([]store.Filter, 0, len(a.ranges))
	var anomalies int64
	for _, rg := range a.ranges {
		f := store.OutsideRange(rg.Field, rg.Min, rg.Max)
		filters = append(filters, f)

		n, err := s.Count(ctx, f)
		if err != nil {
			return r, fmt.Errorf("count %s out of range: %w", rg.Field, err)
		}
		anomalies += n
		finding := domain.CountFinding(domain.KindOutOfRange, rg.Field, n, domain.SeverityWarning)
		if n > 0 {
			finding.Detail = fmt.Sprintf("outside [%g, %g]", rg.Min, rg.Max)
		}
		r.Add(finding)
	}

	var affected int64
	if anomalies > 0 {
		affected, err = s.Count(ctx, store.AnyOf(filters...))
		if err != nil {
			return r, fmt.Errorf("count affected documents: %w", err)
		}
	}

	r.Measures = map[string]float64{
		MeasureErrorRate:    Rate(anomalies, total),
		MeasureAffectedRate: Rate(affected, total),
		MeasureAnomalies:    float64(anomalies),
		MeasureAffected:     float64(affected),
		MeasureRangeFields:  float64(len(a.ranges)),
	}
	return r, nil
}

// Rate returns n over total as a percentage. A zero total yields zero.
func Rate(n, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}
