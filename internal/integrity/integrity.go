// Package integrity implements the three data integrity passes: per source
// file after normalization, over the unified batch before load, and over the
// persisted collection after load. Passes count anomalies and never stop the
// pipeline; the caller decides what to do with the report.
package integrity

import (
	"context"
	"fmt"
	"time"

	"github.com/couchcryptid/weather-station-etl/internal/domain"
	"github.com/couchcryptid/weather-station-etl/internal/store"
)

const periodLayout = "2006-01-02 15:04:05"

// CheckFile inspects the observations normalized from one tabular file. It
// fails when any timestamp repeats within the file or any record lacks a
// temperature.
func CheckFile(obs []domain.Observation, stationID, date string) domain.Report {
	r := domain.NewReport(domain.CheckFile, stationID+"/"+date)
	r.Records = int64(len(obs))

	seen := make(map[string]struct{}, len(obs))
	var dups, missingTemp int64
	for _, o := range obs {
		if _, ok := seen[o.Timestamp]; ok {
			dups++
		} else {
			seen[o.Timestamp] = struct{}{}
		}
		if !o.TemperatureC.Valid {
			missingTemp++
		}
	}

	r.Add(
		domain.CountFinding(domain.KindDuplicate, domain.FieldTimestamp, dups, domain.SeverityWarning),
		domain.CountFinding(domain.KindMissingValue, domain.FieldTemperatureC, missingTemp, domain.SeverityWarning),
	)
	return r
}

// CheckUnified inspects the full batch before load: duplicate
// (timestamp, station) pairs, null counts per field, and the covered period.
// The boolean is false only for an empty batch, which is not inspected.
func CheckUnified(batch []domain.Observation, fields []string) (domain.Report, bool) {
	r := domain.NewReport(domain.CheckUnified, "")
	r.Records = int64(len(batch))
	if len(batch) == 0 {
		r.Add(domain.Finding{Kind: domain.KindEmptyBatch, Count: 1, Severity: domain.SeverityWarning})
		return r, false
	}

	seen := make(map[string]struct{}, len(batch))
	var dups int64
	for _, o := range batch {
		k := o.Key()
		if _, ok := seen[k]; ok {
			dups++
			continue
		}
		seen[k] = struct{}{}
	}
	dup := domain.CountFinding(domain.KindDuplicate, domain.FieldTimestamp+","+domain.FieldStationID, dups, domain.SeverityWarning)
	if dups > 0 {
		dup.Detail = "duplicates are loaded as separate documents"
	}
	r.Add(dup)

	r.Add(nullCounts(batch, fields)...)

	period, unparsable := batchPeriod(batch)
	r.Period = period
	r.Add(domain.CountFinding(domain.KindUnparsableTime, domain.FieldTimestamp, unparsable, domain.SeverityWarning))

	return r, true
}

// nullCounts counts empty identity columns and absent readings.
func nullCounts(batch []domain.Observation, fields []string) []domain.Finding {
	var ts, station, source int64
	absent := make([]int64, len(fields))
	for _, o := range batch {
		if o.Timestamp == "" {
			ts++
		}
		if o.StationID == "" {
			station++
		}
		if o.DataSource == "" {
			source++
		}
		for i, f := range fields {
			if rd, ok := o.Reading(f); !ok || !rd.Valid {
				absent[i]++
			}
		}
	}

	findings := []domain.Finding{
		domain.CountFinding(domain.KindNullValue, domain.FieldTimestamp, ts, domain.SeverityError),
		domain.CountFinding(domain.KindNullValue, domain.FieldStationID, station, domain.SeverityError),
		domain.CountFinding(domain.KindNullValue, domain.FieldDataSource, source, domain.SeverityError),
	}
	for i, f := range fields {
		findings = append(findings, domain.CountFinding(domain.KindNullValue, f, absent[i], domain.SeverityInfo))
	}
	return findings
}

func batchPeriod(batch []domain.Observation) (*domain.Period, int64) {
	stamps := make([]string, len(batch))
	for i, o := range batch {
		stamps[i] = o.Timestamp
	}
	return spanOf(stamps)
}

// spanOf returns the min and max timestamp by parsed time, not by string
// order, and how many timestamps could not be parsed.
func spanOf(stamps []string) (*domain.Period, int64) {
	var (
		unparsable int64
		found      bool
		lo, hi     time.Time
	)
	for _, s := range stamps {
		t, ok := domain.ParseTimestamp(s)
		if !ok {
			unparsable++
			continue
		}
		if !found || t.Before(lo) {
			lo = t
		}
		if !found || t.After(hi) {
			hi = t
		}
		found = true
	}
	if !found {
		return nil, unparsable
	}
	return &domain.Period{Start: lo.Format(periodLayout), End: hi.Format(periodLayout)}, unparsable
}

// CheckStore re-derives quality from the persisted documents: null counts and
// non-numeric (including text) values per field in a single aggregation, plus
// the stored timestamp range. It reads only from the store.
func CheckStore(ctx context.Context, s store.Store, fields []string) (domain.Report, error) {
	r := domain.NewReport(domain.CheckStore, "")

	total, err := s.Count(ctx, store.Filter{})
	if err != nil {
		return r, fmt.Errorf("count documents: %w", err)
	}
	r.Records = total

	sums := make([]store.Sum, 0, 3*len(fields))
	for _, f := range fields {
		sums = append(sums,
			store.Sum{Name: "nulls_" + f, Field: f, Condition: store.IsNull},
			store.Sum{Name: "text_" + f, Field: f, Condition: store.IsText},
			store.Sum{Name: "nonnumeric_" + f, Field: f, Condition: store.IsNonNumeric},
		)
	}
	counts, err := s.SumConditions(ctx, sums)
	if err != nil {
		return r, fmt.Errorf("aggregate field checks: %w", err)
	}

	for _, f := range fields {
		r.Add(
			domain.CountFinding(domain.KindNullValue, f, counts["nulls_"+f], domain.SeverityWarning),
			domain.CountFinding(domain.KindTextValue, f, counts["text_"+f], domain.SeverityError),
			domain.CountFinding(domain.KindNonNumeric, f, counts["nonnumeric_"+f], domain.SeverityError),
		)
	}

	stamps, err := s.Distinct(ctx, domain.FieldTimestamp)
	if err != nil {
		return r, fmt.Errorf("timestamp range: %w", err)
	}
	p, unparsable := spanOf(stamps)
	r.Period = p
	unparsed := domain.CountFinding(domain.KindUnparsableTime, domain.FieldTimestamp, unparsable, domain.SeverityWarning)
	if unparsable > 0 {
		unparsed.Detail = "counted over distinct stored values"
	}
	r.Add(unparsed)
	return r, nil
}
