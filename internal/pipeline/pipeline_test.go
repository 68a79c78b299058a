package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weather-station-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/weather-station-etl/internal/adapter/jsonfile"
	"github.com/couchcryptid/weather-station-etl/internal/adapter/memstore"
	"github.com/couchcryptid/weather-station-etl/internal/config"
	"github.com/couchcryptid/weather-station-etl/internal/domain"
	"github.com/couchcryptid/weather-station-etl/internal/fixture"
	"github.com/couchcryptid/weather-station-etl/internal/observability"
	"github.com/couchcryptid/weather-station-etl/internal/pipeline"
	"github.com/couchcryptid/weather-station-etl/internal/quality"
	"github.com/couchcryptid/weather-station-etl/internal/store"
)

// --- helpers ---

type harness struct {
	manifest *config.Manifest
	summary  fixture.Summary
	dir      string
}

func smallOptions() fixture.Options {
	return fixture.Options{Days: 7, RowsPerFile: 12, UntimedPerFile: 1, EntriesPerStation: 24}
}

func newHarness(t *testing.T, opts fixture.Options) harness {
	t.Helper()
	dir := t.TempDir()
	sum, err := fixture.Write(dir, opts)
	require.NoError(t, err)
	m, err := config.LoadManifest(sum.ManifestPath)
	require.NoError(t, err)
	return harness{manifest: m, summary: sum, dir: dir}
}

func tabularReader(t *testing.T, m *config.Manifest) *csvfile.Reader {
	t.Helper()
	enc, err := csvfile.EncodingByName(m.Tabular.Encoding)
	require.NoError(t, err)
	return csvfile.NewReader(m.Tabular.DelimiterRune(), enc, m.Tabular.Skip()...).Require(domain.ColTime)
}

// countingOpener records how many handles each run opens.
type countingOpener struct {
	inner store.Opener
	opens int
}

func (c *countingOpener) Open(ctx context.Context) (store.Store, error) {
	c.opens++
	return c.inner.Open(ctx)
}

type captureSink struct {
	runID   string
	reports []domain.Report
	err     error
}

func (c *captureSink) Publish(_ context.Context, runID string, reports []domain.Report) error {
	c.runID = runID
	c.reports = reports
	return c.err
}

func newPipeline(t *testing.T, m *config.Manifest, opener store.Opener, sink pipeline.ReportSink, metrics *observability.Metrics) *pipeline.Pipeline {
	t.Helper()
	if metrics == nil {
		metrics = observability.NewMetricsForTesting()
	}
	return pipeline.New(m, tabularReader(t, m), pipeline.StructuredReaderFunc(jsonfile.ReadHourly), opener, sink, slog.Default(), metrics)
}

// --- end-to-end scenarios ---

func TestRun_TwoStationsSevenDaysPlusStructured(t *testing.T) {
	h := newHarness(t, smallOptions())
	coll := memstore.New()
	opener := &countingOpener{inner: coll}

	res := newPipeline(t, h.manifest, opener, nil, nil).Run(context.Background())

	assert.Equal(t, pipeline.StateCompletedWithData, res.State)
	assert.Equal(t, h.summary.Total(), res.Records)
	assert.Equal(t, 14*12+2*24, res.Records)
	assert.Equal(t, int64(res.Records), res.Stored)
	assert.Equal(t, res.Records, coll.Len())
	assert.Equal(t, 2, opener.opens, "load and audit each use their own handle")

	files := res.ReportsFor(domain.CheckFile)
	require.Len(t, files, 14)
	for _, r := range files {
		assert.True(t, r.Passed(), r.String())
		assert.Equal(t, int64(12), r.Records)
		assert.Equal(t, int64(1), r.Count(domain.KindRowRejected, domain.FieldTimestamp))
	}

	src, ok := res.Report(domain.CheckSource)
	require.True(t, ok)
	assert.Equal(t, int64(48), src.Records)
	assert.Equal(t, int64(2), src.Count(domain.KindRowRejected, ""))

	unified, ok := res.Report(domain.CheckUnified)
	require.True(t, ok)
	assert.Zero(t, unified.Count(domain.KindDuplicate, ""))
	assert.Zero(t, unified.Count(domain.KindUnparsableTime, ""))
	want := &domain.Period{Start: "2024-10-01 00:00:00", End: "2024-10-07 00:59:00"}
	if diff := cmp.Diff(want, unified.Period); diff != "" {
		t.Errorf("unified period mismatch (-want +got):\n%s", diff)
	}

	post, ok := res.Report(domain.CheckStore)
	require.True(t, ok)
	assert.Equal(t, int64(res.Records), post.Records)
	assert.Zero(t, post.Count(domain.KindTextValue, ""), "numeric fields are never stored as text")
	assert.Zero(t, post.Count(domain.KindNonNumeric, ""))
	if diff := cmp.Diff(want, post.Period); diff != "" {
		t.Errorf("stored period mismatch (-want +got):\n%s", diff)
	}

	qual, ok := res.Report(domain.CheckQuality)
	require.True(t, ok)
	assert.Equal(t, 0.0, qual.Measures[quality.MeasureErrorRate])
	assert.True(t, qual.Passed())
}

func TestRun_StructuredSourceAbsent(t *testing.T) {
	opts := smallOptions()
	opts.OmitStructured = true
	h := newHarness(t, opts)
	coll := memstore.New()

	res := newPipeline(t, h.manifest, coll, nil, nil).Run(context.Background())

	assert.Equal(t, pipeline.StateCompletedWithData, res.State)
	assert.Equal(t, h.summary.TabularRecords, res.Records)
	assert.Equal(t, h.summary.TabularRecords, coll.Len())

	src, ok := res.Report(domain.CheckSource)
	require.True(t, ok)
	assert.Zero(t, src.Records)
	assert.Equal(t, int64(1), src.Count(domain.KindSourceMissing, ""))
	_, ok = res.Report(domain.CheckQuality)
	assert.True(t, ok, "audit still runs on tabular-only data")
}

func TestRun_LoadIsIdempotent(t *testing.T) {
	h := newHarness(t, smallOptions())
	coll := memstore.New()
	p := newPipeline(t, h.manifest, coll, nil, nil)

	first := p.Run(context.Background())
	second := p.Run(context.Background())

	assert.Equal(t, first.Stored, second.Stored)
	assert.Equal(t, int(first.Stored), coll.Len())

	load, ok := second.Report(domain.CheckLoad)
	require.True(t, ok)
	assert.Equal(t, float64(first.Stored), load.Measures["deleted"], "second run purges the first run's documents")
}

func TestRun_MissingTabularFileIsSkipped(t *testing.T) {
	h := newHarness(t, smallOptions())
	st := h.manifest.Tabular.Stations[1]
	require.NoError(t, os.Remove(st.Files["2024-10-03"]))

	res := newPipeline(t, h.manifest, memstore.New(), nil, nil).Run(context.Background())

	assert.Equal(t, pipeline.StateCompletedWithData, res.State)
	assert.Equal(t, h.summary.Total()-12, res.Records)

	var missing []domain.Report
	for _, r := range res.ReportsFor(domain.CheckFile) {
		if r.Count(domain.KindSourceMissing, "") > 0 {
			missing = append(missing, r)
		}
	}
	require.Len(t, missing, 1)
	assert.Equal(t, st.ID+"/2024-10-03", missing[0].Scope)
	assert.False(t, missing[0].Passed())
}

func TestRun_WrongDelimiterFileFails(t *testing.T) {
	h := newHarness(t, smallOptions())
	st := h.manifest.Tabular.Stations[0]
	path := st.Files["2024-10-02"]
	content := "Time,Temperature,Humidity,Speed,Pressure,Precip. Accum.\n" +
		"12:04 AM,56.8 F,84 %,2.2 mph,29.94 in,0.00 in\n" +
		"12:09 AM,56.5 F,85 %,1.9 mph,29.94 in,0.01 in\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	res := newPipeline(t, h.manifest, memstore.New(), nil, nil).Run(context.Background())

	assert.Equal(t, pipeline.StateCompletedWithData, res.State)
	assert.Equal(t, h.summary.Total()-12, res.Records)

	var failed []domain.Report
	for _, r := range res.ReportsFor(domain.CheckFile) {
		if r.Count(domain.KindFileFailed, "") > 0 {
			failed = append(failed, r)
		}
	}
	require.Len(t, failed, 1)
	assert.Equal(t, st.ID+"/2024-10-02", failed[0].Scope)
	assert.False(t, failed[0].Passed())
	assert.Zero(t, failed[0].Records)
}

func TestRun_CorruptStructuredFile(t *testing.T) {
	h := newHarness(t, smallOptions())
	require.NoError(t, os.WriteFile(h.manifest.Structured.Path, []byte(`{"hourly": [1, 2]}`), 0o600))

	res := newPipeline(t, h.manifest, memstore.New(), nil, nil).Run(context.Background())

	assert.Equal(t, pipeline.StateCompletedWithData, res.State)
	assert.Equal(t, h.summary.TabularRecords, res.Records)
	src, ok := res.Report(domain.CheckSource)
	require.True(t, ok)
	assert.Equal(t, int64(1), src.Count(domain.KindShapeMismatch, ""))
}

func TestRun_NoDataSkipsLoadAndAudit(t *testing.T) {
	m := &config.Manifest{
		Tabular: config.TabularSource{
			Delimiter: ";",
			Source:    domain.SourceWeatherUnderground,
			Stations: []config.Station{
				{ID: "1001", Files: map[string]string{"2024-10-01": filepath.Join(t.TempDir(), "missing.csv")}},
			},
		},
		Structured: config.StructuredSource{Path: filepath.Join(t.TempDir(), "missing.json")},
		Fields:     domain.NumericFields,
	}
	opener := &countingOpener{inner: memstore.New()}

	res := newPipeline(t, m, opener, nil, nil).Run(context.Background())

	assert.Equal(t, pipeline.StateCompletedEmpty, res.State)
	assert.Zero(t, res.Records)
	assert.Zero(t, opener.opens, "store is never contacted")
	_, ok := res.Report(domain.CheckLoad)
	assert.False(t, ok)
	unified, ok := res.Report(domain.CheckUnified)
	require.True(t, ok)
	assert.Equal(t, int64(1), unified.Count(domain.KindEmptyBatch, ""))
}

func TestRun_StoreUnavailable(t *testing.T) {
	h := newHarness(t, smallOptions())
	opener := store.OpenerFunc(func(context.Context) (store.Store, error) {
		return nil, fmt.Errorf("%w: ping: server selection timeout", domain.ErrStoreUnavailable)
	})

	res := newPipeline(t, h.manifest, opener, nil, nil).Run(context.Background())

	assert.Equal(t, pipeline.StateLoadFailed, res.State)
	assert.Equal(t, h.summary.Total(), res.Records, "extraction is unaffected")
	load, ok := res.Report(domain.CheckLoad)
	require.True(t, ok)
	assert.Equal(t, int64(1), load.Count(domain.KindStoreError, ""))
	_, ok = res.Report(domain.CheckStore)
	assert.False(t, ok, "audit is skipped")
	_, ok = res.Report(domain.CheckQuality)
	assert.False(t, ok)
}

// shortStore drops the last document of every insert.
type shortStore struct{ store.Store }

func (s shortStore) InsertMany(ctx context.Context, obs []domain.Observation) (int, error) {
	return s.Store.InsertMany(ctx, obs[:len(obs)-1])
}

func TestRun_CountMismatchFailsLoad(t *testing.T) {
	h := newHarness(t, smallOptions())
	coll := memstore.New()
	opener := store.OpenerFunc(func(ctx context.Context) (store.Store, error) {
		s, err := coll.Open(ctx)
		return shortStore{s}, err
	})

	res := newPipeline(t, h.manifest, opener, nil, nil).Run(context.Background())

	assert.Equal(t, pipeline.StateLoadFailed, res.State)
	assert.Equal(t, int64(res.Records-1), res.Stored)
	assert.Equal(t, res.Records-1, coll.Len(), "partial insert is not rolled back")
	load, ok := res.Report(domain.CheckLoad)
	require.True(t, ok)
	assert.Equal(t, int64(1), load.Count(domain.KindCountMismatch, ""))
	_, ok = res.Report(domain.CheckQuality)
	assert.False(t, ok)
}

func TestRun_QualityAuditCountsOutOfRange(t *testing.T) {
	opts := smallOptions()
	opts.OutOfRangePerFile = 2
	h := newHarness(t, opts)

	res := newPipeline(t, h.manifest, memstore.New(), nil, nil).Run(context.Background())

	qual, ok := res.Report(domain.CheckQuality)
	require.True(t, ok)
	assert.Equal(t, int64(28), qual.Count(domain.KindOutOfRange, domain.FieldWindSpeedMS))
	assert.InDelta(t, 28.0/float64(res.Records)*100, qual.Measures[quality.MeasureErrorRate], 1e-9)
	assert.False(t, qual.Passed())
}

func TestRun_PublishesReportsAndMetrics(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2024, 10, 8, 6, 0, 0, 0, time.UTC)))
	defer domain.SetClock(nil)

	h := newHarness(t, smallOptions())
	sink := &captureSink{err: errors.New("broker down")}
	metrics := observability.NewMetricsForTesting()

	res := newPipeline(t, h.manifest, memstore.New(), sink, metrics).Run(context.Background())

	assert.Equal(t, pipeline.StateCompletedWithData, res.State, "publish failures do not change the outcome")
	assert.Equal(t, "run-20241008T060000.000Z", res.RunID)
	assert.Equal(t, res.RunID, sink.runID)
	assert.Len(t, sink.reports, len(res.Reports))
	assert.Len(t, res.Reports, 14+1+1+1+2)

	assert.Equal(t, float64(h.summary.TabularRecords), testutil.ToFloat64(metrics.RecordsExtracted.WithLabelValues(domain.SourceWeatherUnderground)))
	assert.Equal(t, 48.0, testutil.ToFloat64(metrics.RecordsExtracted.WithLabelValues(domain.SourceInfoclimat)))
	assert.Equal(t, 14.0, testutil.ToFloat64(metrics.RowsRejected.WithLabelValues(domain.SourceWeatherUnderground)))
	assert.Equal(t, float64(res.Records), testutil.ToFloat64(metrics.DocumentsLoaded))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Runs.WithLabelValues(string(pipeline.StateCompletedWithData))))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.PipelineRunning))
}
