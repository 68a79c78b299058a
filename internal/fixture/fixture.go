// Package fixture writes a deterministic set of provider exports and the
// matching sources manifest: Weather Underground style tabular files for two
// stations over seven days, and one Infoclimat style structured file.
package fixture

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/charmap"
	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/weather-station-etl/internal/config"
	"github.com/couchcryptid/weather-station-etl/internal/domain"
)

// ManifestName is the manifest file written into the output directory.
const ManifestName = "sources.yaml"

// StructuredName is the structured export written into the output directory.
const StructuredName = "infoclimat.json"

var firstDay = time.Date(2024, time.October, 1, 0, 0, 0, 0, time.UTC)

// TabularStations are the fixture's tabular stations, by id.
var TabularStations = []config.Station{
	{ID: "1001", Name: "La Madeleine"},
	{ID: "1002", Name: "Ichtegem"},
}

// StructuredStations are the station keys of the structured export.
var StructuredStations = []string{"07015", "000R5"}

// Options sizes the generated data set.
type Options struct {
	Days int
	// RowsPerFile is the number of timed rows in each tabular file.
	RowsPerFile int
	// UntimedPerFile rows per tabular file have an empty time and are rejected.
	UntimedPerFile int
	// EntriesPerStation is the number of timed entries per structured station.
	EntriesPerStation int
	// OutOfRangePerFile timed rows per tabular file carry an implausible wind speed.
	OutOfRangePerFile int
	// OmitStructured declares the structured file in the manifest without writing it.
	OmitStructured bool
}

// DefaultOptions is a week of five-minute tabular readings and hourly
// structured readings.
func DefaultOptions() Options {
	return Options{Days: 7, RowsPerFile: 288, UntimedPerFile: 2, EntriesPerStation: 168, OutOfRangePerFile: 0}
}

// Summary counts what a pipeline run over the fixture should extract.
type Summary struct {
	ManifestPath      string
	TabularFiles      int
	TabularRecords    int
	TabularRejected   int
	StructuredRecords int
	OutOfRange        int
}

// Total is the expected unified batch size.
func (s Summary) Total() int {
	return s.TabularRecords + s.StructuredRecords
}

// Write generates the data set under dir.
func Write(dir string, opts Options) (Summary, error) {
	if opts.Days < 1 || opts.Days > 28 {
		return Summary{}, fmt.Errorf("days must be within 1..28, got %d", opts.Days)
	}
	if opts.OutOfRangePerFile > opts.RowsPerFile {
		return Summary{}, fmt.Errorf("out-of-range rows %d exceed rows per file %d", opts.OutOfRangePerFile, opts.RowsPerFile)
	}

	sum := Summary{ManifestPath: filepath.Join(dir, ManifestName)}
	m := config.Manifest{
		Tabular: config.TabularSource{
			Delimiter: ";",
			Encoding:  "latin-1",
			SkipLines: &[]int{2},
			Source:    domain.SourceWeatherUnderground,
		},
		Structured: config.StructuredSource{Path: StructuredName},
	}

	for si, st := range TabularStations {
		station := config.Station{ID: st.ID, Name: st.Name, Files: map[string]string{}}
		for d := range opts.Days {
			day := firstDay.AddDate(0, 0, d)
			rel := filepath.Join(st.ID, day.Format("020106")+".csv")
			if err := writeTabular(filepath.Join(dir, rel), si, day, opts); err != nil {
				return Summary{}, err
			}
			station.Files[day.Format("2006-01-02")] = rel
			sum.TabularFiles++
			sum.TabularRecords += opts.RowsPerFile
			sum.TabularRejected += opts.UntimedPerFile
			sum.OutOfRange += opts.OutOfRangePerFile
		}
		m.Tabular.Stations = append(m.Tabular.Stations, station)
	}

	if !opts.OmitStructured {
		if err := writeStructured(filepath.Join(dir, StructuredName), opts); err != nil {
			return Summary{}, err
		}
		sum.StructuredRecords = len(StructuredStations) * opts.EntriesPerStation
	}

	data, err := yaml.Marshal(&m)
	if err != nil {
		return Summary{}, fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(sum.ManifestPath, data, 0o644); err != nil { //nolint:gosec // fixture data
		return Summary{}, fmt.Errorf("write manifest: %w", err)
	}
	return sum, nil
}

var tabularHeader = []string{" Time", "Temperature ", "Dew Point", " Humidity", "Wind", "Speed", "Gust", "Pressure ", "Precip. Rate.", "Precip. Accum.", "UV", "Solar"}

func writeTabular(path string, station int, day time.Time, opts Options) error {
	var b strings.Builder
	b.WriteString(strings.Join(tabularHeader, ";") + "\n")

	rain := 0.0
	for i := range opts.RowsPerFile {
		at := day.Add(4*time.Minute + time.Duration(i)*5*time.Minute)
		phase := 2 * math.Pi * float64(at.Hour()*60+at.Minute()) / 1440
		tempF := 52 + 8*math.Sin(phase-math.Pi/2) + float64(station)
		wind := 3 + 2*math.Cos(phase)
		if i < opts.OutOfRangePerFile {
			wind = 150
		}
		if i%48 == 47 {
			rain += 0.01
		}
		writeRow(&b, at.Format("3:04 PM"), tempF, 82-10*math.Sin(phase), wind, 29.9+0.05*math.Cos(phase), rain)
		if i == 0 {
			// Physical line 2 holds export metadata, discarded by the reader.
			b.WriteString("°F;°F;°F;%;;mph;mph;in;in;in;;w/m²\n")
		}
	}
	for range opts.UntimedPerFile {
		writeRow(&b, "", 50, 80, 2, 29.9, rain)
	}

	encoded, err := charmap.ISO8859_1.NewEncoder().String(b.String())
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:gosec // fixture data
		return fmt.Errorf("create fixture dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(encoded), 0o644); err != nil { //nolint:gosec // fixture data
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func writeRow(b *strings.Builder, timeOfDay string, tempF, humidity, windMph, pressureInHg, rainIn float64) {
	fields := []string{
		timeOfDay,
		comma(tempF, 1) + " °F",
		comma(tempF-5, 1) + " °F",
		comma(humidity, 0) + " %",
		"WSW",
		comma(windMph, 1) + " mph",
		comma(windMph*1.5, 1) + " mph",
		comma(pressureInHg, 2) + " in",
		"0,00 in",
		comma(rainIn, 2) + " in",
		"0",
		"0 w/m²",
	}
	b.WriteString(strings.Join(fields, ";") + "\n")
}

// comma formats v with a comma decimal separator.
func comma(v float64, prec int) string {
	return strings.Replace(strconv.FormatFloat(v, 'f', prec, 64), ".", ",", 1)
}

func writeStructured(path string, opts Options) error {
	hourly := make(map[string][]map[string]any, len(StructuredStations))
	for si, station := range StructuredStations {
		entries := make([]map[string]any, 0, opts.EntriesPerStation)
		for i := range opts.EntriesPerStation {
			at := firstDay.Add(time.Duration(i) * time.Hour)
			phase := 2 * math.Pi * float64(at.Hour()) / 24
			entry := map[string]any{
				domain.KeyStationID:   station,
				domain.KeyTimestamp:   at.Format("2006-01-02 15:04:05"),
				domain.KeyTemperature: strconv.FormatFloat(12+5*math.Sin(phase-math.Pi/2)+float64(si), 'f', 1, 64),
				domain.KeyPressure:    strconv.FormatFloat(1015+3*math.Cos(phase), 'f', 1, 64),
				domain.KeyHumidity:    strconv.Itoa(80 + i%15),
				domain.KeyWindAvg:     strconv.FormatFloat(10+4*math.Cos(phase), 'f', 1, 64),
				domain.KeyRain1h:      "0",
				domain.KeyRain3h:      nil,
			}
			if i%24 == 6 {
				entry[domain.KeyRain1h] = nil
				entry[domain.KeyRain3h] = "0.4"
			}
			entries = append(entries, entry)
		}
		// One untimed entry per station is dropped by the adapter.
		entries = append(entries, map[string]any{domain.KeyStationID: station, domain.KeyTemperature: "11.0"})
		hourly[station] = entries
	}

	data, err := json.MarshalIndent(map[string]any{
		"source":  map[string]any{"license": "fixture", "url": "https://www.infoclimat.fr"},
		"hourly":  hourly,
		"_params": []string{"temperature", "pression", "humidite", "vent_moyen", "pluie_1h", "pluie_3h"},
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode structured fixture: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:gosec // fixture data
		return fmt.Errorf("create fixture dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // fixture data
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
