package hoststats

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Collect reads the snapshot via sysinfo(2).
func Collect() (Snapshot, error) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return Snapshot{}, fmt.Errorf("sysinfo: %w", err)
	}

	unit := uint64(info.Unit)
	if unit == 0 {
		unit = 1
	}

	return Snapshot{
		MemoryTotalMB: uint64(info.Totalram) * unit / (1024 * 1024),
		MemoryFreeMB:  uint64(info.Freeram) * unit / (1024 * 1024),
		// Loads are fixed-point with scale 1<<16.
		Load1:     float64(info.Loads[0]) / 65536.0,
		UptimeSec: int64(info.Uptime),
	}, nil
}
