package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_ComponentAttribute(t *testing.T) {
	t.Setenv("STACKPILOT_LOG_FORMAT", "JSON")

	var buf bytes.Buffer
	logger := NewWithWriter("prober", &buf)
	logger.Info("probe complete", "bucket", "tf-state")

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "prober", record["component"])
	assert.Equal(t, "tf-state", record["bucket"])
	assert.Equal(t, "INFO", record["level"])
}

func TestLogger_LevelFiltering(t *testing.T) {
	t.Setenv("STACKPILOT_LOG_LEVEL", "WARN")
	t.Setenv("STACKPILOT_LOG_FORMAT", "JSON")

	var buf bytes.Buffer
	logger := NewWithWriter("driver", &buf)

	logger.Debug("should be filtered")
	logger.Info("should be filtered")
	logger.Warn("should appear")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "should appear")
}

func TestLogger_WithRun(t *testing.T) {
	t.Setenv("STACKPILOT_LOG_FORMAT", "JSON")

	var buf bytes.Buffer
	logger := NewWithWriter("pipeline", &buf).WithRun("run-abc123")
	logger.Info("stage recorded")

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "run-abc123", record["run_id"])
}

func TestLogger_StageHelpers(t *testing.T) {
	t.Setenv("STACKPILOT_LOG_FORMAT", "JSON")

	var buf bytes.Buffer
	logger := NewWithWriter("pipeline", &buf)

	logger.StageStart("provision", 1, 4)
	logger.StageSuccess("provision")
	logger.StageSkipped("destroy-backend", "confirmation mismatch")
	logger.StageFailed("deploy", errors.New("ssh unreachable"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], `"stage":"provision"`)
	assert.Contains(t, lines[2], `"status":"skipped"`)
	assert.Contains(t, lines[3], `"status":"failed"`)
	assert.Contains(t, lines[3], "ssh unreachable")
}

func TestLogger_TextFormatDefault(t *testing.T) {
	t.Setenv("STACKPILOT_LOG_FORMAT", "")

	var buf bytes.Buffer
	logger := NewWithWriter("config", &buf)
	logger.Info("loaded")

	assert.Contains(t, buf.String(), "component=config")
}
