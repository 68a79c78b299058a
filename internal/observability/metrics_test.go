package observability

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weather-station-etl/internal/domain"
	"github.com/couchcryptid/weather-station-etl/internal/quality"
)

func TestObserveReport_CountsNonZeroFindings(t *testing.T) {
	m := NewMetricsForTesting()
	r := domain.NewReport(domain.CheckUnified, "")
	r.Add(
		domain.CountFinding(domain.KindDuplicate, "timestamp,station_id", 3, domain.SeverityWarning),
		domain.CountFinding(domain.KindNullValue, domain.FieldTemperatureC, 0, domain.SeverityInfo),
	)

	m.ObserveReport(r)
	m.ObserveReport(r)

	assert.Equal(t, 6.0, testutil.ToFloat64(m.Findings.WithLabelValues("unified", "duplicate", "warning")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.Findings))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.QualityErrorRate), "non-quality reports leave gauges alone")
}

func TestObserveReport_QualityGauges(t *testing.T) {
	m := NewMetricsForTesting()
	r := domain.NewReport(domain.CheckQuality, "")
	r.Records = 8
	r.Add(domain.CountFinding(domain.KindOutOfRange, domain.FieldWindSpeedMS, 2, domain.SeverityWarning))
	r.Measures = map[string]float64{
		quality.MeasureErrorRate:    25,
		quality.MeasureAffectedRate: 25,
	}

	m.ObserveReport(r)

	assert.Equal(t, 25.0, testutil.ToFloat64(m.QualityErrorRate))
	assert.Equal(t, 25.0, testutil.ToFloat64(m.QualityAffectedRate))
	assert.Equal(t, 8.0, testutil.ToFloat64(m.QualityDocuments))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.QualityOutOfRange.WithLabelValues(domain.FieldWindSpeedMS)))
}

func TestPush(t *testing.T) {
	var gotMethod, gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := NewMetricsForTesting()
	m.DocumentsLoaded.Add(42)

	require.NoError(t, Push(context.Background(), srv.URL, "test-host", m))
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/metrics/job/"+PushJob+"/instance/test-host", gotPath)
	assert.NotEmpty(t, gotBody)
}

func TestPush_GatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := Push(context.Background(), srv.URL, "test-host", NewMetricsForTesting())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "push metrics"))
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, ParseLevel(in))
		})
	}
}
