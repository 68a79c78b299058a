package jsonfile

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weather-station-etl/internal/domain"
)

const infoclimatExport = `{
	"status": "OK",
	"stations": [{"id": "07015", "name": "Lille-Lesquin"}],
	"hourly": {
		"07015": [
			{"id_station": "07015", "dh_utc": "2024-10-01 00:00:00", "temperature": "13.1", "pression": "1014.2", "humidite": "89", "vent_moyen": "14.4", "pluie_1h": "0.2"},
			{"id_station": "07015", "dh_utc": "2024-10-01 01:00:00", "temperature": 12.9, "humidite": 90, "vent_moyen": 10.8}
		],
		"_params": ["temperature", "pression"]
	}
}`

func TestReadHourly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "infoclimat.json")
	require.NoError(t, os.WriteFile(path, []byte(infoclimatExport), 0o600))

	hourly, err := ReadHourly(path)
	require.NoError(t, err)
	require.Contains(t, hourly, "07015")

	entries, ok := hourly["07015"].([]any)
	require.True(t, ok)
	require.Len(t, entries, 2)
	second := entries[1].(map[string]any)
	assert.Equal(t, json.Number("12.9"), second["temperature"])

	out, findings := domain.MapStructured(hourly)
	require.Len(t, out, 2)
	assert.Equal(t, domain.Reading{Value: 12.9, Valid: true}, out[1].TemperatureC)
	assert.Equal(t, domain.Reading{Value: 90, Valid: true}, out[1].HumidityPct)
	assert.InDelta(t, 3.0, out[1].WindSpeedMS.Value, 1e-12)
	require.Len(t, findings, 1, "_params is not a list of entries")
	assert.Equal(t, domain.KindShapeMismatch, findings[0].Kind)
}

func TestReadHourly_MissingFile(t *testing.T) {
	_, err := ReadHourly(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSourceMissing)
}

func TestDecodeHourly(t *testing.T) {
	t.Run("no hourly key", func(t *testing.T) {
		hourly, err := decodeHourly(strings.NewReader(`{"status":"OK"}`))
		require.NoError(t, err)
		assert.Empty(t, hourly)
	})

	t.Run("hourly not an object", func(t *testing.T) {
		_, err := decodeHourly(strings.NewReader(`{"hourly":[1,2]}`))
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrShapeMismatch)
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := decodeHourly(strings.NewReader(`{"hourly":`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "decode json")
	})
}
