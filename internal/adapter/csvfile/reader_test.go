package csvfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/couchcryptid/weather-station-etl/internal/domain"
)

const wuExport = "Time ; Temperature ;Humidity;Speed;Pressure;Precip. Accum.\n" +
	"12:04 AM;56,8 °F;84 %;2,2 mph;29,94 in;0,00 in\n" +
	"metadata;;;;;\n" +
	"12:09 AM;56,5 °F;85 %;1,9 mph;29,94 in;0,01 in\n" +
	";;;;;\n" +
	";55,0 °F;86 %;0,0 mph;29,93 in;0,01 in\n"

func writeLatin1(t *testing.T, content string) string {
	t.Helper()
	encoded, err := charmap.ISO8859_1.NewEncoder().String(content)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "export.csv")
	require.NoError(t, os.WriteFile(path, []byte(encoded), 0o600))
	return path
}

func TestReadRows_WeatherUndergroundExport(t *testing.T) {
	path := writeLatin1(t, wuExport)
	r := NewReader(';', charmap.ISO8859_1, 2)

	rows, err := r.ReadRows(path)
	require.NoError(t, err)

	// Header, metadata line and blank record are dropped; the untimed row is kept.
	require.Len(t, rows, 3)
	assert.Equal(t, "12:04 AM", rows[0]["Time"])
	assert.Equal(t, "56,8 °F", rows[0]["Temperature"], "latin-1 degree sign decoded")
	assert.Equal(t, "12:09 AM", rows[1]["Time"])
	assert.Equal(t, "", rows[2]["Time"])
	assert.Equal(t, "0,01 in", rows[1]["Precip. Accum."])
}

func TestReadRows_FeedsTabularMapping(t *testing.T) {
	path := writeLatin1(t, wuExport)
	rows, err := NewReader(';', charmap.ISO8859_1, 2).ReadRows(path)
	require.NoError(t, err)

	out, rejected := domain.MapTabularRows(rows, "2024-10-07", "1001", domain.SourceWeatherUnderground)
	assert.Equal(t, 1, rejected)
	require.Len(t, out, 2)
	assert.InDelta(t, 13.78, out[0].TemperatureC.Value, 0.01)
}

func TestReadRows_MissingFile(t *testing.T) {
	_, err := NewReader(';', nil).ReadRows(filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSourceMissing)
}

func TestReadRows_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	_, err := NewReader(';', nil).ReadRows(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing header")
}

func TestReadRows_RequiredColumns(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{"present after trim", wuExport, false},
		{"wrong delimiter", strings.ReplaceAll(wuExport, ";", ","), true},
		{"column absent", "Temperature;Humidity\n56,8 °F;84 %\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeLatin1(t, tt.content)
			rows, err := NewReader(';', charmap.ISO8859_1, 2).Require(domain.ColTime).ReadRows(path)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), `lacks column "Time"`)
				assert.Nil(t, rows)
				return
			}
			require.NoError(t, err)
			assert.Len(t, rows, 3)
		})
	}
}

func TestReadRows_ShortRecords(t *testing.T) {
	rows, err := NewReader(',', nil).parse(strings.NewReader("a,b,c\n1,2\n"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "2", rows[0]["b"])
	assert.NotContains(t, rows[0], "c")
}

func TestEncodingByName(t *testing.T) {
	for _, name := range []string{"latin-1", "ISO-8859-1", "utf-8", "", "cp1252", "latin-9"} {
		enc, err := EncodingByName(name)
		require.NoError(t, err, name)
		assert.NotNil(t, enc, name)
	}
	latin1, _ := EncodingByName("latin1")
	assert.Equal(t, charmap.ISO8859_1, latin1)

	_, err := EncodingByName("ebcdic")
	assert.Error(t, err)
}
