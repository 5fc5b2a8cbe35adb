package observability

import (
	"errors"
	"fmt"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Trace sampler names accepted in [Config.Sampler].
const (
	// SamplerParentBased follows the parent span; root spans are sampled at
	// SampleRatio, or always when the ratio is zero.
	SamplerParentBased = ""
	SamplerAlwaysOn    = "always_on"
	SamplerAlwaysOff   = "always_off"
	// SamplerRatio samples every span at SampleRatio, ignoring the parent.
	SamplerRatio = "ratio"
)

// ErrUnknownSampler is returned by NewSampler for a name it does not know.
var ErrUnknownSampler = errors.New("unknown trace sampler")

// ErrSampleRatio is returned when SampleRatio lies outside [0, 1].
var ErrSampleRatio = errors.New("sample ratio must be within [0, 1]")

// NewSampler builds the trace sampler selected by cfg.Sampler and cfg.SampleRatio.
func NewSampler(cfg Config) (sdktrace.Sampler, error) {
	if cfg.SampleRatio < 0 || cfg.SampleRatio > 1 {
		return nil, fmt.Errorf("%w: %g", ErrSampleRatio, cfg.SampleRatio)
	}

	switch cfg.Sampler {
	case SamplerParentBased:
		if cfg.SampleRatio > 0 {
			return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio)), nil
		}

		return sdktrace.ParentBased(sdktrace.AlwaysSample()), nil
	case SamplerAlwaysOn:
		return sdktrace.AlwaysSample(), nil
	case SamplerAlwaysOff:
		return sdktrace.NeverSample(), nil
	case SamplerRatio:
		return sdktrace.TraceIDRatioBased(cfg.SampleRatio), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSampler, cfg.Sampler)
	}
}
