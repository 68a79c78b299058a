// Package audit runs the store-side passes (post-load integrity and quality
// range audit) outside of a pipeline run, once or on an interval.
package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/weather-station-etl/internal/domain"
	"github.com/couchcryptid/weather-station-etl/internal/integrity"
	"github.com/couchcryptid/weather-station-etl/internal/observability"
	"github.com/couchcryptid/weather-station-etl/internal/quality"
	"github.com/couchcryptid/weather-station-etl/internal/store"
)

// ReportSink receives the reports of each audit.
type ReportSink interface {
	Publish(ctx context.Context, runID string, reports []domain.Report) error
}

// Monitor audits a populated collection. It keeps the latest quality report
// for the HTTP server and reports ready once an audit has succeeded.
type Monitor struct {
	opener  store.Opener
	auditor *quality.Auditor
	fields  []string
	sink    ReportSink
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics

	mu      sync.RWMutex
	latest  *domain.Report
	lastErr error
}

// NewMonitor creates a Monitor. sink may be nil.
func NewMonitor(opener store.Opener, auditor *quality.Auditor, fields []string, sink ReportSink, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Monitor {
	return &Monitor{
		opener:  opener,
		auditor: auditor,
		fields:  fields,
		sink:    sink,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
		lastErr: errors.New("no audit has completed yet"),
	}
}

// AuditOnce opens a handle, runs the post-load integrity pass and the quality
// audit, and closes the handle. An empty collection is reported, not failed.
func (m *Monitor) AuditOnce(ctx context.Context) ([]domain.Report, error) {
	reports, err := m.auditOnce(ctx)

	m.mu.Lock()
	m.lastErr = err
	for i := range reports {
		if reports[i].Check == domain.CheckQuality {
			r := reports[i]
			m.latest = &r
		}
	}
	m.mu.Unlock()

	for _, r := range reports {
		observability.LogReport(m.logger, r)
		m.metrics.ObserveReport(r)
	}
	if m.sink != nil && len(reports) > 0 {
		runID := "audit-" + m.clock.Now().UTC().Format("20060102T150405.000Z")
		if perr := m.sink.Publish(ctx, runID, reports); perr != nil {
			m.logger.Error("publish audit reports failed", "run_id", runID, "error", perr)
		}
	}
	return reports, err
}

func (m *Monitor) auditOnce(ctx context.Context) ([]domain.Report, error) {
	s, err := m.opener.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := s.Close(ctx); cerr != nil {
			m.logger.Warn("store close failed", "error", cerr)
		}
	}()

	post, err := integrity.CheckStore(ctx, s, m.fields)
	if err != nil {
		return nil, fmt.Errorf("post-load check: %w", err)
	}

	qual, err := m.auditor.Audit(ctx, s)
	if err != nil && !errors.Is(err, domain.ErrEmptyCollection) {
		return []domain.Report{post}, fmt.Errorf("quality audit: %w", err)
	}
	if errors.Is(err, domain.ErrEmptyCollection) {
		m.logger.Warn("audited collection is empty")
	}
	return []domain.Report{post, qual}, nil
}

// Run audits immediately, then on every interval tick until ctx is cancelled.
// Failed audits are logged and retried on the next tick.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) error {
	m.logger.Info("audit monitor started", "interval", interval)
	ticker := m.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := m.AuditOnce(ctx); err != nil {
			m.logger.Error("audit failed", "error", err)
		}
		select {
		case <-ctx.Done():
			m.logger.Info("audit monitor stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
		}
	}
}

// LatestReport returns the most recent quality report.
func (m *Monitor) LatestReport() (domain.Report, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.latest == nil {
		return domain.Report{}, false
	}
	return *m.latest, true
}

// CheckReadiness returns nil when the last audit succeeded.
func (m *Monitor) CheckReadiness(_ context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}
