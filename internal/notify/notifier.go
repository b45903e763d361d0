// Package notify delivers the end-of-run pipeline report. Delivery is
// best-effort: a notifier failure is logged and never folded back into the
// pipeline's recorded status.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"

	"github.com/stackpilot/stackpilot/internal/pipeline"
)

// Notifier delivers a pipeline report.
type Notifier interface {
	Send(ctx context.Context, report *pipeline.Report) error
}

// reportBody renders the report as a compact HTML table: run metadata up top,
// one row per stage with its outcome.
const reportBody = `<html>
<body>
<h2>{{.Run.Workflow}}: {{upper .Overall}}</h2>
<p>
Actor: {{.Run.Actor}}<br>
Repository: {{.Run.Repository}}<br>
Reference: {{.Run.Reference}}<br>
Run: {{.Run.RunID}}
</p>
<table border="1" cellpadding="4" cellspacing="0">
<tr><th>Stage</th><th>Outcome</th><th>Duration</th><th>Detail</th></tr>
{{range .Results}}<tr>
<td>{{.Name}}</td>
<td style="color:{{outcomeColor .Outcome}}">{{.Outcome}}</td>
<td>{{.Duration}}</td>
<td>{{if .Error}}{{.Error}}{{else}}{{.SkipReason}}{{end}}</td>
</tr>
{{end}}</table>
</body>
</html>`

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"upper": func(o pipeline.Outcome) string { return strings.ToUpper(string(o)) },
	"outcomeColor": func(o pipeline.Outcome) string {
		switch o {
		case pipeline.Success:
			return "green"
		case pipeline.Failure:
			return "red"
		default:
			return "gray"
		}
	},
}).Parse(reportBody))

// Subject builds the notification subject line.
func Subject(report *pipeline.Report) string {
	return fmt.Sprintf("[%s] %s (%s)",
		strings.ToUpper(string(report.Overall)),
		report.Run.Workflow,
		report.Run.Reference)
}

// RenderHTML renders the report body.
func RenderHTML(report *pipeline.Report) (string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, report); err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}
	return buf.String(), nil
}
