package domain

import (
	"fmt"
	"math"
	"sort"
)

// Infoclimat entry field names.
const (
	KeyStationID   = "id_station"
	KeyTimestamp   = "dh_utc"
	KeyTemperature = "temperature"
	KeyPressure    = "pression"
	KeyHumidity    = "humidite"
	KeyWindAvg     = "vent_moyen"
	KeyRain1h      = "pluie_1h"
	KeyRain3h      = "pluie_3h"
)

// SourceInfoclimat is the provenance label for structured exports.
const SourceInfoclimat = "Infoclimat"

// MapStructuredEntry converts one Infoclimat hourly entry. stationKey is the
// key the entry was listed under; it is only used when the entry carries no
// station identifier of its own. The second return is false when the entry
// has no timestamp.
func MapStructuredEntry(entry map[string]any, stationKey string) (Observation, bool) {
	ts, ok := entry[KeyTimestamp].(string)
	if !ok || ts == "" {
		return Observation{}, false
	}

	stationID := stationKey
	if v, ok := entry[KeyStationID]; ok && v != nil {
		stationID = fmt.Sprint(v)
	}

	return Observation{
		Timestamp:    ts,
		TemperatureC: optionalReading(entry[KeyTemperature]),
		HumidityPct:  optionalReading(entry[KeyHumidity]).Map(math.Trunc),
		PressureHPa:  optionalReading(entry[KeyPressure]),
		WindSpeedMS:  zeroDefaultReading(entry[KeyWindAvg]).Map(KmhToMS),
		RainAccumMM:  rainReading(entry),
		StationID:    stationID,
		DataSource:   SourceInfoclimat,
	}, true
}

// MapStructured converts the station-keyed "hourly" mapping into observations.
// A station whose value is not a list is reported and skipped; entries that
// are not objects or lack a timestamp are counted and skipped. Stations are
// visited in key order so output is deterministic.
func MapStructured(hourly map[string]any) ([]Observation, []Finding) {
	stations := make([]string, 0, len(hourly))
	for k := range hourly {
		stations = append(stations, k)
	}
	sort.Strings(stations)

	var (
		out       []Observation
		findings  []Finding
		malformed int64
		untimed   int64
	)
	for _, station := range stations {
		entries, ok := hourly[station].([]any)
		if !ok {
			findings = append(findings, Finding{
				Kind:     KindShapeMismatch,
				Field:    station,
				Count:    1,
				Severity: SeverityWarning,
				Detail:   fmt.Sprintf("station %q: expected a list of entries, got %T", station, hourly[station]),
			})
			continue
		}
		for _, e := range entries {
			entry, ok := e.(map[string]any)
			if !ok {
				malformed++
				continue
			}
			obs, ok := MapStructuredEntry(entry, station)
			if !ok {
				untimed++
				continue
			}
			out = append(out, obs)
		}
	}

	if malformed > 0 {
		findings = append(findings, CountFinding(KindShapeMismatch, "entry", malformed, SeverityInfo))
	}
	if untimed > 0 {
		findings = append(findings, CountFinding(KindRowRejected, FieldTimestamp, untimed, SeverityInfo))
	}
	return out, findings
}

// optionalReading treats a falsy value (null, "", 0) as not provided.
func optionalReading(v any) Reading {
	if !truthy(v) {
		return Absent()
	}
	return ParseReading(v)
}

// zeroDefaultReading treats a falsy value as a measured zero.
func zeroDefaultReading(v any) Reading {
	if !truthy(v) {
		return Present(0)
	}
	return ParseReading(v)
}

// rainReading prefers the 1h accumulation, then the 3h one, else zero. A
// measured 1h zero is kept; only a missing, null or empty 1h value falls back.
func rainReading(entry map[string]any) Reading {
	for _, key := range []string{KeyRain1h, KeyRain3h} {
		if v, ok := entry[key]; ok && v != nil && v != "" {
			return zeroDefaultReading(v)
		}
	}
	return Present(0)
}
