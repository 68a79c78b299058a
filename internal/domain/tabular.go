package domain

import "strings"

// Weather Underground column names, after header whitespace is trimmed.
const (
	ColTime        = "Time"
	ColTemperature = "Temperature"
	ColHumidity    = "Humidity"
	ColPressure    = "Pressure"
	ColSpeed       = "Speed"
	ColPrecipAccum = "Precip. Accum."
)

// SourceWeatherUnderground is the provenance label for tabular exports.
const SourceWeatherUnderground = "Weather Underground"

// MapTabularRow converts one Weather Underground row to an Observation.
// date is the calendar day the file covers ("2024-10-07"). The second return
// is false when the row has no usable time-of-day and must be dropped.
func MapTabularRow(row map[string]string, date, stationID, source string) (Observation, bool) {
	ts, ok := tabularTimestamp(date, row[ColTime])
	if !ok {
		return Observation{}, false
	}

	return Observation{
		Timestamp:    ts,
		TemperatureC: ParseReading(row[ColTemperature]).Map(FahrenheitToCelsius),
		HumidityPct:  ParseReading(row[ColHumidity]),
		PressureHPa:  ParseReading(row[ColPressure]).Map(InHgToHPa),
		WindSpeedMS:  ParseReading(row[ColSpeed]).Map(MphToMS),
		RainAccumMM:  ParseReading(row[ColPrecipAccum]).Map(InchesToMM),
		StationID:    stationID,
		DataSource:   source,
	}, true
}

// MapTabularRows maps every row of one daily file and returns the kept
// observations along with the number of rows dropped for lacking a time.
func MapTabularRows(rows []map[string]string, date, stationID, source string) ([]Observation, int) {
	out := make([]Observation, 0, len(rows))
	rejected := 0
	for _, row := range rows {
		obs, ok := MapTabularRow(row, date, stationID, source)
		if !ok {
			rejected++
			continue
		}
		out = append(out, obs)
	}
	return out, rejected
}

// tabularTimestamp joins the file date and the row's local time, e.g.
// "2024-10-07" + "12:04 AM" -> "2024-10-07 12:04 AM".
func tabularTimestamp(date, timeOfDay string) (string, bool) {
	timeOfDay = strings.TrimSpace(timeOfDay)
	if timeOfDay == "" {
		return "", false
	}
	return date + " " + timeOfDay, true
}
