package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCollector_TracksOutcomes(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	collector := NewCollector()
	collector.Attach(bus)

	runner := NewRunner(testRun(), []Stage{
		okStage("provision", true),
		failStage("deploy", true),
		okStage("notify", false),
	}, bus)
	runner.Run(context.Background())

	snap := collector.Snapshot()
	assert.Equal(t, 2, snap.StagesStarted) // notify skipped after halt
	assert.Equal(t, 1, snap.Succeeded)
	assert.Equal(t, 1, snap.Failed)
	assert.Equal(t, 1, snap.Skipped)
	assert.Contains(t, snap.StageDurations, "provision")
}

func TestSnapshot_LogFields(t *testing.T) {
	t.Parallel()

	snap := Snapshot{
		StagesStarted: 3,
		Succeeded:     2,
		Failed:        1,
		StageDurations: map[string]time.Duration{
			"provision": 2 * time.Second,
			"deploy":    time.Second,
		},
	}

	fields := snap.LogFields()
	assert.Equal(t, []interface{}{
		"stages_started", 3,
		"succeeded", 2,
		"failed", 1,
		"skipped", 0,
		"duration_deploy", "1s",
		"duration_provision", "2s",
	}, fields)
}

func TestCollector_SnapshotIsCopy(t *testing.T) {
	t.Parallel()

	collector := NewCollector()
	collector.handleFinished(Event{Result: &StageResult{
		Name:     "provision",
		Outcome:  Success,
		Duration: time.Second,
	}})

	snap := collector.Snapshot()
	snap.StageDurations["provision"] = 0

	assert.Equal(t, time.Second, collector.Snapshot().StageDurations["provision"])
}
