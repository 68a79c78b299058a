package domain

import "math"

// Canonical document field names.
const (
	FieldTimestamp    = "timestamp"
	FieldTemperatureC = "temperature_c"
	FieldHumidityPct  = "humidity_pct"
	FieldPressureHPa  = "pressure_hpa"
	FieldWindSpeedMS  = "wind_speed_ms"
	FieldRainAccumMM  = "rain_accum_mm"
	FieldStationID    = "station_id"
	FieldDataSource   = "data_source"
)

// NumericFields lists the measurement fields subject to null and type audits.
var NumericFields = []string{
	FieldTemperatureC,
	FieldHumidityPct,
	FieldPressureHPa,
	FieldWindSpeedMS,
	FieldRainAccumMM,
}

// Reading is an optional measurement. The zero value is absent.
//
// Absent covers both "the source did not provide a value" and "the value
// could not be parsed"; the two are deliberately not distinguished
// downstream, where both are persisted as null.
type Reading struct {
	Value float64
	Valid bool
}

// Present returns a valid Reading, or an absent one if v is not finite.
func Present(v float64) Reading {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Reading{}
	}
	return Reading{Value: v, Valid: true}
}

// Absent returns the absent Reading.
func Absent() Reading { return Reading{} }

// Map applies fn to a present value and leaves an absent one untouched.
func (r Reading) Map(fn func(float64) float64) Reading {
	if !r.Valid {
		return r
	}
	return Present(fn(r.Value))
}

// OrZero returns the value, or 0 when absent.
func (r Reading) OrZero() float64 {
	if !r.Valid {
		return 0
	}
	return r.Value
}

// Ptr returns a pointer to the value, or nil when absent. Stores use it to
// persist absence as null.
func (r Reading) Ptr() *float64 {
	if !r.Valid {
		return nil
	}
	v := r.Value
	return &v
}

// Observation is the canonical, unit-normalized hourly reading shared by
// every pipeline stage. It is built once by a source mapping and not
// modified afterwards.
type Observation struct {
	Timestamp    string
	TemperatureC Reading
	HumidityPct  Reading
	PressureHPa  Reading
	WindSpeedMS  Reading
	RainAccumMM  Reading
	StationID    string
	DataSource   string
}

// Reading returns the measurement stored under a canonical field name.
func (o Observation) Reading(field string) (Reading, bool) {
	switch field {
	case FieldTemperatureC:
		return o.TemperatureC, true
	case FieldHumidityPct:
		return o.HumidityPct, true
	case FieldPressureHPa:
		return o.PressureHPa, true
	case FieldWindSpeedMS:
		return o.WindSpeedMS, true
	case FieldRainAccumMM:
		return o.RainAccumMM, true
	default:
		return Reading{}, false
	}
}

// Key returns the (timestamp, station) pair used for duplicate detection.
func (o Observation) Key() string {
	return o.Timestamp + "|" + o.StationID
}
