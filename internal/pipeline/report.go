package pipeline

import (
	"time"
)

// RunInfo is the metadata attached to a report for the notifier payload.
type RunInfo struct {
	RunID      string `json:"run_id"`
	Workflow   string `json:"workflow"`
	Actor      string `json:"actor,omitempty"`
	Repository string `json:"repository,omitempty"`
	Reference  string `json:"reference,omitempty"`
}

// Report aggregates the ordered stage results of one run. It is constructed
// once after the last stage completes and handed to the notifier; the
// notifier cannot modify it.
type Report struct {
	Run        RunInfo       `json:"run"`
	Results    []StageResult `json:"results"`
	Overall    Outcome       `json:"overall"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}

// buildReport computes the overall verdict. Overall is Success iff every
// required stage succeeded or was deliberately gated off; a required stage
// that failed, or was skipped because an upstream required stage failed,
// fails the run.
func buildReport(run RunInfo, results []StageResult, startedAt time.Time) *Report {
	overall := Success
	for _, r := range results {
		if !r.Required {
			continue
		}
		if r.Outcome == Failure {
			overall = Failure
		}
		if r.Outcome == Skipped && r.SkipReason == SkipReasonUpstream {
			overall = Failure
		}
	}

	return &Report{
		Run:        run,
		Results:    results,
		Overall:    overall,
		StartedAt:  startedAt,
		FinishedAt: time.Now(),
	}
}

// Counts returns the number of succeeded, failed and skipped stages.
func (r *Report) Counts() (succeeded, failed, skipped int) {
	for _, result := range r.Results {
		switch result.Outcome {
		case Success:
			succeeded++
		case Failure:
			failed++
		case Skipped:
			skipped++
		}
	}
	return succeeded, failed, skipped
}

// Failed returns the results of failed stages.
func (r *Report) Failed() []StageResult {
	var failed []StageResult
	for _, result := range r.Results {
		if result.Outcome == Failure {
			failed = append(failed, result)
		}
	}
	return failed
}
