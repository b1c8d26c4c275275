// Package hoststats reads a small host resource snapshot shown by the
// status command alongside GPU and backend state. It is informational
// only; the pipeline never gates on host metrics.
package hoststats

// Snapshot is a point-in-time host resource view.
type Snapshot struct {
	MemoryTotalMB uint64  `json:"memory_total_mb"`
	MemoryFreeMB  uint64  `json:"memory_free_mb"`
	Load1         float64 `json:"load_1m"`
	UptimeSec     int64   `json:"uptime_sec"`
}
