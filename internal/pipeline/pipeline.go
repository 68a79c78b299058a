package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/weather-station-etl/internal/config"
	"github.com/couchcryptid/weather-station-etl/internal/domain"
	"github.com/couchcryptid/weather-station-etl/internal/integrity"
	"github.com/couchcryptid/weather-station-etl/internal/observability"
	"github.com/couchcryptid/weather-station-etl/internal/quality"
	"github.com/couchcryptid/weather-station-etl/internal/store"
)

// TabularReader reads one delimited file into header-keyed rows.
type TabularReader interface {
	ReadRows(path string) ([]map[string]string, error)
}

// StructuredReader reads the station-keyed "hourly" mapping of a structured export.
type StructuredReader interface {
	ReadHourly(path string) (map[string]any, error)
}

// StructuredReaderFunc adapts a function to StructuredReader.
type StructuredReaderFunc func(path string) (map[string]any, error)

// ReadHourly calls f.
func (f StructuredReaderFunc) ReadHourly(path string) (map[string]any, error) { return f(path) }

// ReportSink receives every report of a run once the run has finished.
type ReportSink interface {
	Publish(ctx context.Context, runID string, reports []domain.Report) error
}

// Phase names a step of the run, in execution order.
type Phase string

const (
	PhaseExtractTabular    Phase = "extract_tabular"
	PhaseExtractStructured Phase = "extract_structured"
	PhaseValidateUnified   Phase = "validate_unified"
	PhaseLoad              Phase = "load"
	PhaseAudit             Phase = "audit"
)

// State is the terminal state of a run. None of them is a process failure.
type State string

const (
	StateCompletedWithData State = "completed_with_data"
	StateCompletedEmpty    State = "completed_empty"
	StateLoadFailed        State = "load_failed"
)

// Result summarizes a run: its terminal state, the unified batch size, the
// number of stored documents after load, and every report in the order the
// passes produced them.
type Result struct {
	RunID    string
	State    State
	Records  int
	Stored   int64
	Reports  []domain.Report
	Duration time.Duration
}

// ReportsFor returns the reports produced by the given check.
func (r Result) ReportsFor(check domain.Check) []domain.Report {
	var out []domain.Report
	for _, rep := range r.Reports {
		if rep.Check == check {
			out = append(out, rep)
		}
	}
	return out
}

// Report returns the last report produced by the given check.
func (r Result) Report(check domain.Check) (domain.Report, bool) {
	for i := len(r.Reports) - 1; i >= 0; i-- {
		if r.Reports[i].Check == check {
			return r.Reports[i], true
		}
	}
	return domain.Report{}, false
}

// Pipeline runs one batch: extract both sources, validate the unified batch,
// replace the collection contents, then audit what was stored.
type Pipeline struct {
	manifest   *config.Manifest
	tabular    TabularReader
	structured StructuredReader
	opener     store.Opener
	auditor    *quality.Auditor
	sink       ReportSink
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// New creates a Pipeline. sink may be nil to disable report publishing.
func New(m *config.Manifest, tabular TabularReader, structured StructuredReader, opener store.Opener, sink ReportSink, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		manifest:   m,
		tabular:    tabular,
		structured: structured,
		opener:     opener,
		auditor:    quality.New(m.Ranges),
		sink:       sink,
		logger:     logger,
		metrics:    metrics,
	}
}

// Run executes the phases in order. Source and store failures end up as
// findings and a terminal state; Run itself never fails.
func (p *Pipeline) Run(ctx context.Context) Result {
	start := domain.Now()
	res := Result{RunID: "run-" + start.Format("20060102T150405.000Z")}
	p.logger.Info("pipeline started", "run_id", res.RunID, "tabular_files", p.manifest.TabularFiles(), "structured_file", p.manifest.Structured.Path)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	batch := p.extractTabular(&res)
	batch = append(batch, p.extractStructured(&res)...)
	res.Records = len(batch)
	p.logger.Info("sources unified", "records", len(batch))

	res.State = p.validateLoadAudit(ctx, batch, &res)
	res.Duration = domain.Now().Sub(start)

	p.metrics.Runs.WithLabelValues(string(res.State)).Inc()
	p.metrics.RunDuration.Observe(res.Duration.Seconds())
	for _, r := range res.Reports {
		p.metrics.ObserveReport(r)
	}
	p.publish(ctx, res)

	p.logger.Info("pipeline finished", "run_id", res.RunID, "state", res.State, "records", res.Records, "stored", res.Stored, "duration", res.Duration)
	return res
}

func (p *Pipeline) validateLoadAudit(ctx context.Context, batch []domain.Observation, res *Result) State {
	unified, inspected := integrity.CheckUnified(batch, p.manifest.Fields)
	p.record(res, PhaseValidateUnified, unified)
	if !inspected {
		p.logger.Warn("no data extracted, skipping load and audit")
		return StateCompletedEmpty
	}

	loadReport, stored, ok := p.load(ctx, batch)
	res.Stored = stored
	p.record(res, PhaseLoad, loadReport)
	if !ok {
		return StateLoadFailed
	}

	for _, r := range p.audit(ctx) {
		p.record(res, PhaseAudit, r)
	}
	return StateCompletedWithData
}

// extractTabular reads every declared (station, day) file. A missing or
// unreadable file is reported and contributes nothing.
func (p *Pipeline) extractTabular(res *Result) []domain.Observation {
	src := p.manifest.Tabular
	var out []domain.Observation
	for _, st := range src.Stations {
		for _, date := range st.Dates() {
			path := st.Files[date]
			scope := st.ID + "/" + date

			rows, err := p.tabular.ReadRows(path)
			if err != nil {
				p.record(res, PhaseExtractTabular, p.sourceFailure(domain.CheckFile, scope, src.Source, path, err))
				continue
			}

			obs, rejected := domain.MapTabularRows(rows, date, st.ID, src.Source)
			report := integrity.CheckFile(obs, st.ID, date)
			report.Add(domain.CountFinding(domain.KindRowRejected, domain.FieldTimestamp, int64(rejected), domain.SeverityInfo))
			p.record(res, PhaseExtractTabular, report)

			p.metrics.RecordsExtracted.WithLabelValues(src.Source).Add(float64(len(obs)))
			p.metrics.RowsRejected.WithLabelValues(src.Source).Add(float64(rejected))
			p.logger.Info("tabular file processed", "station", st.ID, "date", date, "records", len(obs), "rejected", rejected)
			out = append(out, obs...)
		}
	}
	return out
}

// extractStructured reads the structured export. Any failure, including an
// absent file, is reported and the phase contributes nothing.
func (p *Pipeline) extractStructured(res *Result) []domain.Observation {
	path := p.manifest.Structured.Path
	if path == "" {
		p.logger.Info("no structured source declared")
		return nil
	}

	hourly, err := p.structured.ReadHourly(path)
	if err != nil {
		p.record(res, PhaseExtractStructured, p.sourceFailure(domain.CheckSource, domain.SourceInfoclimat, domain.SourceInfoclimat, path, err))
		return nil
	}

	obs, findings := domain.MapStructured(hourly)
	report := domain.NewReport(domain.CheckSource, domain.SourceInfoclimat)
	report.Records = int64(len(obs))
	report.Add(findings...)
	p.record(res, PhaseExtractStructured, report)

	p.metrics.RecordsExtracted.WithLabelValues(domain.SourceInfoclimat).Add(float64(len(obs)))
	p.metrics.RowsRejected.WithLabelValues(domain.SourceInfoclimat).Add(float64(report.Count(domain.KindRowRejected, "")))
	p.logger.Info("structured file processed", "stations", len(hourly), "records", len(obs))
	return obs
}

// sourceFailure builds the zero-record report for a file that could not be used.
func (p *Pipeline) sourceFailure(check domain.Check, scope, source, path string, err error) domain.Report {
	kind := domain.KindFileFailed
	switch {
	case errors.Is(err, domain.ErrSourceMissing):
		kind = domain.KindSourceMissing
	case errors.Is(err, domain.ErrShapeMismatch):
		kind = domain.KindShapeMismatch
	}
	r := domain.NewReport(check, scope)
	r.Add(domain.Finding{Kind: kind, Count: 1, Severity: domain.SeverityError, Detail: err.Error()})
	p.metrics.SourceFailures.WithLabelValues(source, string(kind)).Inc()
	p.logger.Warn("source skipped", "scope", scope, "path", path, "kind", kind, "error", err)
	return r
}

// load replaces the collection contents with batch and verifies the stored
// count. The handle is opened and closed within the phase.
func (p *Pipeline) load(ctx context.Context, batch []domain.Observation) (domain.Report, int64, bool) {
	r := domain.NewReport(domain.CheckLoad, "")
	r.Records = int64(len(batch))

	s, err := p.opener.Open(ctx)
	if err != nil {
		r.Add(storeFinding(err))
		p.logger.Error("load skipped: store unavailable", "error", err)
		return r, 0, false
	}
	defer p.closeStore(ctx, s)

	deleted, err := s.DeleteAll(ctx)
	if err != nil {
		r.Add(storeFinding(fmt.Errorf("purge collection: %w", err)))
		p.logger.Error("purge failed", "error", err)
		return r, 0, false
	}

	inserted, err := s.InsertMany(ctx, batch)
	p.metrics.DocumentsLoaded.Add(float64(inserted))
	if err != nil {
		r.Add(storeFinding(fmt.Errorf("insert documents: %w", err)))
		p.logger.Error("insert failed", "inserted", inserted, "error", err)
		return r, int64(inserted), false
	}

	stored, err := s.Count(ctx, store.Filter{})
	if err != nil {
		r.Add(storeFinding(fmt.Errorf("count documents: %w", err)))
		p.logger.Error("post-insert count failed", "error", err)
		return r, int64(inserted), false
	}

	r.Measures = map[string]float64{
		"deleted":  float64(deleted),
		"inserted": float64(inserted),
		"stored":   float64(stored),
	}
	if stored != int64(len(batch)) {
		r.Add(domain.Finding{
			Kind:     domain.KindCountMismatch,
			Count:    1,
			Severity: domain.SeverityError,
			Detail:   fmt.Sprintf("%v: submitted %d, inserted %d, stored %d", domain.ErrCountMismatch, len(batch), inserted, stored),
		})
		p.logger.Error("load count mismatch", "submitted", len(batch), "inserted", inserted, "stored", stored)
		return r, stored, false
	}

	p.logger.Info("load complete", "deleted", deleted, "inserted", inserted)
	return r, stored, true
}

// audit re-reads the stored collection on its own handle: the post-load
// integrity pass, then the quality range audit.
func (p *Pipeline) audit(ctx context.Context) []domain.Report {
	s, err := p.opener.Open(ctx)
	if err != nil {
		r := domain.NewReport(domain.CheckStore, "")
		r.Add(storeFinding(err))
		p.logger.Error("audit skipped: store unavailable", "error", err)
		return []domain.Report{r}
	}
	defer p.closeStore(ctx, s)

	post, err := integrity.CheckStore(ctx, s, p.manifest.Fields)
	if err != nil {
		post.Add(storeFinding(err))
		p.logger.Error("post-load check failed", "error", err)
	}

	qual, err := p.auditor.Audit(ctx, s)
	if err != nil && !errors.Is(err, domain.ErrEmptyCollection) {
		qual.Add(storeFinding(err))
		p.logger.Error("quality audit failed", "error", err)
	}
	return []domain.Report{post, qual}
}

func (p *Pipeline) closeStore(ctx context.Context, s store.Store) {
	if err := s.Close(ctx); err != nil {
		p.logger.Warn("store close failed", "error", err)
	}
}

func (p *Pipeline) record(res *Result, phase Phase, r domain.Report) {
	res.Reports = append(res.Reports, r)
	observability.LogReport(p.logger, r, "phase", phase)
}

func (p *Pipeline) publish(ctx context.Context, res Result) {
	if p.sink == nil {
		return
	}
	if err := p.sink.Publish(ctx, res.RunID, res.Reports); err != nil {
		p.logger.Error("publish reports failed", "run_id", res.RunID, "error", err)
	}
}

func storeFinding(err error) domain.Finding {
	return domain.Finding{Kind: domain.KindStoreError, Count: 1, Severity: domain.SeverityError, Detail: err.Error()}
}
