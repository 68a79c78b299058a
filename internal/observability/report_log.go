package observability

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/weather-station-etl/internal/domain"
)

// LogReport writes a report summary line, then one line per non-zero
// finding at a level matching its severity.
func LogReport(logger *slog.Logger, r domain.Report, attrs ...any) {
	level := slog.LevelInfo
	if !r.Passed() {
		level = slog.LevelWarn
	}
	args := append([]any{"check", r.Check, "scope", r.Scope, "verdict", r.Verdict(), "records", r.Records}, attrs...)
	if r.Period != nil {
		args = append(args, "period_start", r.Period.Start, "period_end", r.Period.End)
	}
	for k, v := range r.Measures {
		args = append(args, k, v)
	}
	logger.Log(context.Background(), level, "report", args...)

	for _, f := range r.Findings {
		if f.Count == 0 {
			continue
		}
		logger.Log(context.Background(), severityLevel(f.Severity), "finding",
			"check", r.Check,
			"scope", r.Scope,
			"kind", f.Kind,
			"field", f.Field,
			"count", f.Count,
			"severity", f.Severity,
			"detail", f.Detail,
		)
	}
}

func severityLevel(s domain.Severity) slog.Level {
	switch s {
	case domain.SeverityError:
		return slog.LevelError
	case domain.SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelDebug
	}
}
