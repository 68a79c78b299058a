// Package jsonfile reads the structured provider export.
package jsonfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/couchcryptid/weather-station-etl/internal/domain"
)

// HourlyKey is the top-level key holding station-keyed hourly entries.
const HourlyKey = "hourly"

// ReadHourly decodes the file and returns the mapping under HourlyKey. A
// document without the key yields an empty mapping. Numbers are kept as
// json.Number so no precision is lost before normalization.
func ReadHourly(path string) (map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrSourceMissing, path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return decodeHourly(f)
}

func decodeHourly(r io.Reader) (map[string]any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}

	raw, ok := doc[HourlyKey]
	if !ok || raw == nil {
		return map[string]any{}, nil
	}
	hourly, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %q is %T, want object", domain.ErrShapeMismatch, HourlyKey, raw)
	}
	return hourly, nil
}
