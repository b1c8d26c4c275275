// Package nvidia implements the gpu.Oracle interface by shelling out
// to nvidia-smi.
package nvidia

import (
	"context"
	"errors"

	"github.com/renderpilot/renderpilot/pkg/infra/gpu"
	"github.com/renderpilot/renderpilot/pkg/infra/logger"
)

// Oracle answers GPU status queries for a single device.
type Oracle struct {
	smi   *SMI
	index int
}

func NewOracle(smiPath string, deviceIndex int) *Oracle {
	return &Oracle{
		smi:   NewSMI(smiPath),
		index: deviceIndex,
	}
}

// Status queries the configured device. A machine without nvidia-smi
// or without the device reports Available=false rather than an error;
// command failures beyond that are returned as errors.
func (o *Oracle) Status(ctx context.Context) (gpu.Status, error) {
	if !o.smi.Available(ctx) {
		return gpu.Status{Available: false}, nil
	}

	status, err := o.smi.QueryDevice(ctx, o.index)
	if err != nil {
		if errors.Is(err, gpu.ErrNotAvailable) {
			return gpu.Status{Available: false}, nil
		}
		logger.Warn("gpu status query failed", "device", o.index, "error", err)
		return gpu.Status{}, err
	}

	return status, nil
}

var _ gpu.Oracle = (*Oracle)(nil)
