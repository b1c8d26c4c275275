package nvidia

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRow(t *testing.T) {
	status, err := parseRow("NVIDIA GeForce RTX 4090, 12, 18432, 24564, 48")

	require.NoError(t, err)
	assert.True(t, status.Available)
	assert.Equal(t, "NVIDIA GeForce RTX 4090", status.Name)
	assert.Equal(t, 12.0, status.UtilizationPct)
	assert.Equal(t, uint64(18432), status.MemoryFreeMB)
	assert.Equal(t, uint64(24564), status.MemoryTotalMB)
	assert.Equal(t, 48.0, status.TemperatureC)
	assert.True(t, status.ReadyForGeneration())
}

func TestParseRowBusyGPU(t *testing.T) {
	status, err := parseRow("Tesla T4, 98, 512, 15360, 79")

	require.NoError(t, err)
	assert.True(t, status.Available)
	assert.False(t, status.ReadyForGeneration())
}

func TestParseRowErrors(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"too few fields", "RTX 4090, 12, 18432, 24564"},
		{"too many fields", "RTX, 4090, 12, 18432, 24564, 48"},
		{"bad utilization", "RTX 4090, N/A, 18432, 24564, 48"},
		{"bad memory free", "RTX 4090, 12, lots, 24564, 48"},
		{"bad memory total", "RTX 4090, 12, 18432, all, 48"},
		{"bad temperature", "RTX 4090, 12, 18432, 24564, warm"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseRow(tt.line)
			assert.Error(t, err)
		})
	}
}

func TestNewSMIDefaultPath(t *testing.T) {
	s := NewSMI("")
	assert.Equal(t, "nvidia-smi", s.path)

	s = NewSMI("/opt/nvidia/bin/nvidia-smi")
	assert.Equal(t, "/opt/nvidia/bin/nvidia-smi", s.path)
}
