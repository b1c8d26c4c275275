package hoststats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollect(t *testing.T) {
	snap, err := Collect()
	require.NoError(t, err)

	assert.Positive(t, snap.MemoryTotalMB)
	assert.LessOrEqual(t, snap.MemoryFreeMB, snap.MemoryTotalMB)
	assert.GreaterOrEqual(t, snap.Load1, 0.0)
	assert.Positive(t, snap.UptimeSec)
}
