package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitJSONFormat(t *testing.T) {
	Reset()
	defer Reset()

	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})

	Info("pipeline status", "phase", "checking_gpu", "progress", 60)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "pipeline status", entry["msg"])
	assert.Equal(t, "checking_gpu", entry["phase"])
	assert.Equal(t, float64(60), entry["progress"])
}

func TestLevelFiltering(t *testing.T) {
	Reset()
	defer Reset()

	var buf bytes.Buffer
	Init(Config{Level: "warn", Format: "text", Output: &buf})

	Debug("hidden")
	Info("also hidden")
	Warn("visible")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible")
}

func TestInitOnlyFirstCallTakesEffect(t *testing.T) {
	Reset()
	defer Reset()

	var first, second bytes.Buffer
	Init(Config{Format: "text", Output: &first})
	Init(Config{Format: "text", Output: &second})

	Info("where am I")

	assert.Contains(t, first.String(), "where am I")
	assert.Empty(t, second.String())
}

func TestContextEnrichment(t *testing.T) {
	Reset()
	defer Reset()

	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})

	ctx := SetRunID(context.Background(), "run-1")
	ctx = SetStoryID(ctx, "story-42")
	ctx = SetPhase(ctx, "starting_backend")

	WithContext(ctx).Info("enriched")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "run-1", entry["run_id"])
	assert.Equal(t, "story-42", entry["story_id"])
	assert.Equal(t, "starting_backend", entry["phase"])
}

func TestGetRunID(t *testing.T) {
	assert.Empty(t, GetRunID(context.Background()))

	ctx := SetRunID(context.Background(), "run-9")
	assert.Equal(t, "run-9", GetRunID(ctx))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"debug", "DEBUG"},
		{"warn", "WARN"},
		{"warning", "WARN"},
		{"error", "ERROR"},
		{"info", "INFO"},
		{"", "INFO"},
		{"bogus", "INFO"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLevel(tt.in).String(), "level %q", tt.in)
	}
}
