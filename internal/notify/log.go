package notify

import (
	"context"

	"github.com/stackpilot/stackpilot/internal/pipeline"
	"github.com/stackpilot/stackpilot/pkg/logging"
)

// LogNotifier writes the report summary to the structured log. It is the
// default when email delivery is not configured.
type LogNotifier struct {
	logger *logging.Logger
}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{logger: logging.New("notify")}
}

func (n *LogNotifier) Send(_ context.Context, report *pipeline.Report) error {
	succeeded, failed, skipped := report.Counts()
	n.logger.Info("pipeline report",
		"run_id", report.Run.RunID,
		"workflow", report.Run.Workflow,
		"overall", string(report.Overall),
		"succeeded", succeeded,
		"failed", failed,
		"skipped", skipped)

	for _, result := range report.Failed() {
		n.logger.Error("stage failed",
			"stage", result.Name,
			"error", result.Error)
	}
	return nil
}
