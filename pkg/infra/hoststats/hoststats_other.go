//go:build !linux

package hoststats

import "errors"

// ErrNotSupported is returned on platforms without a collector.
var ErrNotSupported = errors.New("host stats not supported on this platform")

func Collect() (Snapshot, error) {
	return Snapshot{}, ErrNotSupported
}
