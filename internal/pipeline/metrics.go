package pipeline

import (
	"sort"
	"sync"
	"time"
)

// Collector tracks per-run stage metrics. It subscribes to the event bus and
// accumulates counters and durations as stages finish.
type Collector struct {
	mu sync.Mutex

	stagesStarted int
	succeeded     int
	failed        int
	skipped       int

	durations map[string]time.Duration
	startTime time.Time
}

// Snapshot is a point-in-time view of the collected metrics.
type Snapshot struct {
	StagesStarted  int                      `json:"stages_started"`
	Succeeded      int                      `json:"succeeded"`
	Failed         int                      `json:"failed"`
	Skipped        int                      `json:"skipped"`
	StageDurations map[string]time.Duration `json:"stage_durations"`
	Uptime         time.Duration            `json:"uptime"`
}

// NewCollector creates a metrics collector.
func NewCollector() *Collector {
	return &Collector{
		durations: make(map[string]time.Duration),
		startTime: time.Now(),
	}
}

// Attach subscribes the collector to a bus.
func (c *Collector) Attach(bus *Bus) {
	bus.Subscribe(EventStageStarted, c.handleStarted)
	bus.Subscribe(EventStageFinished, c.handleFinished)
}

func (c *Collector) handleStarted(_ Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stagesStarted++
}

func (c *Collector) handleFinished(event Event) {
	if event.Result == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch event.Result.Outcome {
	case Success:
		c.succeeded++
	case Failure:
		c.failed++
	case Skipped:
		c.skipped++
	}
	c.durations[event.Result.Name] = event.Result.Duration
}

// LogFields flattens the snapshot into key/value pairs for the structured
// logger, with one duration attribute per finished stage.
func (s Snapshot) LogFields() []interface{} {
	fields := []interface{}{
		"stages_started", s.StagesStarted,
		"succeeded", s.Succeeded,
		"failed", s.Failed,
		"skipped", s.Skipped,
	}

	stages := make([]string, 0, len(s.StageDurations))
	for name := range s.StageDurations {
		stages = append(stages, name)
	}
	sort.Strings(stages)
	for _, name := range stages {
		fields = append(fields, "duration_"+name, s.StageDurations[name].String())
	}
	return fields
}

// Snapshot returns the current metrics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	durations := make(map[string]time.Duration, len(c.durations))
	for k, v := range c.durations {
		durations[k] = v
	}

	return Snapshot{
		StagesStarted:  c.stagesStarted,
		Succeeded:      c.succeeded,
		Failed:         c.failed,
		Skipped:        c.skipped,
		StageDurations: durations,
		Uptime:         time.Since(c.startTime),
	}
}
