package pipeline

import (
	"context"
	"time"

	"github.com/stackpilot/stackpilot/pkg/logging"
)

// Runner executes stages strictly in order, one run at a time. Each stage
// blocks until its predecessor completes; there is no parallelism and stages
// are not reentrant.
type Runner struct {
	run    RunInfo
	stages []Stage
	bus    *Bus
	logger *logging.Logger
}

// NewRunner creates a runner for the given stages. The bus may be nil.
func NewRunner(run RunInfo, stages []Stage, bus *Bus) *Runner {
	return &Runner{
		run:    run,
		stages: stages,
		bus:    bus,
		logger: logging.New("pipeline").WithRun(run.RunID),
	}
}

// Run executes the stages and returns the aggregated report. A failed
// required stage halts the remaining regular stages; stages marked Always
// still run so they can observe the failure. The report is always built,
// whatever the stage outcomes.
func (r *Runner) Run(ctx context.Context) *Report {
	startedAt := time.Now()
	results := make([]StageResult, 0, len(r.stages))
	halted := false

	for i, stage := range r.stages {
		result := r.runStage(ctx, stage, i, halted)
		results = append(results, result)

		if result.Outcome == Failure && stage.Required {
			halted = true
		}
	}

	report := buildReport(r.run, results, startedAt)

	succeeded, failed, skipped := report.Counts()
	r.logger.PipelineSummary(succeeded, failed, skipped, string(report.Overall))
	r.publish(Event{
		Type:      EventPipelineFinished,
		RunID:     r.run.RunID,
		Timestamp: time.Now(),
		Report:    report,
	})

	return report
}

func (r *Runner) runStage(ctx context.Context, stage Stage, position int, halted bool) StageResult {
	result := StageResult{
		Name:      stage.Name,
		Required:  stage.Required,
		StartedAt: time.Now(),
	}

	if halted && !stage.Always {
		result.Outcome = Skipped
		result.SkipReason = SkipReasonUpstream
		r.logger.StageSkipped(stage.Name, SkipReasonUpstream)
		r.publishResult(stage.Name, &result)
		return result
	}

	if stage.Gate != nil {
		if run, reason := stage.Gate(); !run {
			if reason == "" {
				reason = SkipReasonGate
			}
			result.Outcome = Skipped
			result.SkipReason = reason
			r.logger.StageSkipped(stage.Name, reason)
			r.publishResult(stage.Name, &result)
			return result
		}
	}

	r.logger.StageStart(stage.Name, position+1, len(r.stages))
	r.publish(Event{
		Type:      EventStageStarted,
		RunID:     r.run.RunID,
		Stage:     stage.Name,
		Timestamp: time.Now(),
	})

	err := stage.Run(ctx)
	result.Duration = time.Since(result.StartedAt)

	if err != nil {
		result.Outcome = Failure
		result.Err = err
		result.Error = err.Error()
		r.logger.StageFailed(stage.Name, err)
	} else {
		result.Outcome = Success
		r.logger.StageSuccess(stage.Name)
	}

	r.publishResult(stage.Name, &result)
	return result
}

func (r *Runner) publishResult(stage string, result *StageResult) {
	r.publish(Event{
		Type:      EventStageFinished,
		RunID:     r.run.RunID,
		Stage:     stage,
		Timestamp: time.Now(),
		Result:    result,
	})
}

func (r *Runner) publish(event Event) {
	if r.bus != nil {
		r.bus.Publish(event)
	}
}
