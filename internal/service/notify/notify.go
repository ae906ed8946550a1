// Package notify delivers finalized test reports to the recipients a
// scheduled task names. The webhook notifier is the production
// implementation; the log notifier stands in when no webhook is
// configured.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/probeworks/apiprobe/internal/domain/model"
)

// ReportNotifier delivers one finalized report.
type ReportNotifier interface {
	NotifyReport(ctx context.Context, report *model.TestReport, recipients []string) error
}

// reportPayload is the summary shape posted to webhooks.
type reportPayload struct {
	ReportID        int64              `json:"report_id"`
	Name            string             `json:"name"`
	Status          model.ReportStatus `json:"status"`
	Total           int                `json:"total"`
	Passed          int                `json:"passed"`
	Failed          int                `json:"failed"`
	Errored         int                `json:"errored"`
	PassRate        float64            `json:"pass_rate"`
	DurationSeconds float64            `json:"duration_seconds"`
	Recipients      []string           `json:"recipients"`
}

func payloadFor(report *model.TestReport, recipients []string) reportPayload {
	return reportPayload{
		ReportID:        report.ID,
		Name:            report.Name,
		Status:          report.Status,
		Total:           report.Total,
		Passed:          report.Passed,
		Failed:          report.Failed,
		Errored:         report.Errored,
		PassRate:        report.PassRate(),
		DurationSeconds: report.DurationSeconds,
		Recipients:      recipients,
	}
}

// LogNotifier writes the report summary to the log instead of delivering
// it anywhere.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier builds a LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// NotifyReport logs the summary. It never fails.
func (n *LogNotifier) NotifyReport(ctx context.Context, report *model.TestReport, recipients []string) error {
	n.logger.InfoContext(ctx, "report ready for delivery",
		slog.Int64("report_id", report.ID),
		slog.String("name", report.Name),
		slog.String("result", fmt.Sprintf("通過率 %.1f%% (%d/%d)", report.PassRate(), report.Passed, report.Total)),
		slog.Any("recipients", recipients))
	return nil
}

var _ ReportNotifier = (*LogNotifier)(nil)
