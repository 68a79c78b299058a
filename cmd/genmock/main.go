// Command genmock writes a deterministic fixture set for local runs and
// tests: Weather Underground style exports for two stations over a week,
// an Infoclimat style structured export, and the sources manifest that
// enumerates them.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock
//	SOURCES_MANIFEST=data/mock/sources.yaml go run ./cmd/etl -dry-run
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/couchcryptid/weather-station-etl/internal/fixture"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	defaults := fixture.DefaultOptions()
	out := flag.String("out", "", "output directory")
	days := flag.Int("days", defaults.Days, "days per tabular station, starting 2024-10-01")
	rows := flag.Int("rows", defaults.RowsPerFile, "timed rows per tabular file")
	untimed := flag.Int("untimed", defaults.UntimedPerFile, "rows per tabular file with an empty time")
	entries := flag.Int("entries", defaults.EntriesPerStation, "hourly entries per structured station")
	outOfRange := flag.Int("out-of-range", defaults.OutOfRangePerFile, "rows per tabular file with an implausible wind speed")
	omitStructured := flag.Bool("omit-structured", false, "declare the structured file without writing it")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}

	sum, err := fixture.Write(*out, fixture.Options{
		Days:              *days,
		RowsPerFile:       *rows,
		UntimedPerFile:    *untimed,
		EntriesPerStation: *entries,
		OutOfRangePerFile: *outOfRange,
		OmitStructured:    *omitStructured,
	})
	if err != nil {
		return err
	}

	log.Printf("tabular: %d files, %d records, %d untimed rows", sum.TabularFiles, sum.TabularRecords, sum.TabularRejected)
	log.Printf("structured: %d records", sum.StructuredRecords)
	log.Printf("expected unified batch: %d records (%d out of range)", sum.Total(), sum.OutOfRange)
	log.Printf("wrote manifest: %s", sum.ManifestPath)
	return nil
}
