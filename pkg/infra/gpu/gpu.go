// Package gpu defines the GPU readiness oracle consumed by the
// automation pipeline. Implementations live in subpackages; the
// pipeline only depends on the Oracle interface and the fixed
// generation-readiness thresholds defined here.
package gpu

import "context"

// Readiness thresholds for image generation. A GPU over any of these
// is treated as busy, not broken: the pipeline waits for it to settle.
const (
	MaxUtilizationPct = 80.0
	MinFreeMemoryMB   = 4096
	MaxTemperatureC   = 85.0
)

// Status is a point-in-time snapshot of the rendering GPU.
type Status struct {
	Available      bool    `json:"available"`
	Name           string  `json:"name,omitempty"`
	UtilizationPct float64 `json:"utilization_pct"`
	MemoryFreeMB   uint64  `json:"memory_free_mb"`
	MemoryTotalMB  uint64  `json:"memory_total_mb"`
	TemperatureC   float64 `json:"temperature_c"`
}

// ReadyForGeneration reports whether the snapshot is under all
// generation thresholds. An unavailable GPU is never ready.
func (s Status) ReadyForGeneration() bool {
	if !s.Available {
		return false
	}
	return s.UtilizationPct < MaxUtilizationPct &&
		s.MemoryFreeMB > MinFreeMemoryMB &&
		s.TemperatureC < MaxTemperatureC
}

// Oracle answers point-in-time GPU status queries.
//
// Status returns Available=false (with a nil error) when no usable GPU
// is present; errors are reserved for queries that could not be made
// at all.
type Oracle interface {
	Status(ctx context.Context) (Status, error)
}

var (
	ErrNotAvailable  = NewOracleError("gpu not available")
	ErrCommandFailed = NewOracleError("command failed")
)

type OracleError struct {
	Message string
	Cause   error
}

func NewOracleError(message string) *OracleError {
	return &OracleError{Message: message}
}

func (e *OracleError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *OracleError) Unwrap() error {
	return e.Cause
}

// Is matches any OracleError carrying the same message, so WithCause
// copies still satisfy errors.Is against the sentinels.
func (e *OracleError) Is(target error) bool {
	t, ok := target.(*OracleError)
	return ok && t.Message == e.Message
}

func (e *OracleError) WithCause(cause error) *OracleError {
	return &OracleError{Message: e.Message, Cause: cause}
}
