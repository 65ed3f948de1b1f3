package telemetry

import (
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/sdk/trace"
)

// createSampler maps OTEL_TRACES_SAMPLER names to samplers. A
// "parentbased_" prefix wraps the named root sampler; unknown names sample
// everything.
func createSampler(cfg *Config) trace.Sampler {
	name, parentBased := strings.CutPrefix(cfg.Sampler, "parentbased_")

	var root trace.Sampler
	switch name {
	case "always_off":
		root = trace.NeverSample()
	case "traceidratio":
		root = trace.TraceIDRatioBased(parseRatio(cfg.SamplerArg))
	default:
		root = trace.AlwaysSample()
	}

	if parentBased {
		return trace.ParentBased(root)
	}
	return root
}

// parseRatio parses a ratio clamped to [0, 1]; empty or invalid means 1.
func parseRatio(s string) float64 {
	ratio, err := strconv.ParseFloat(s, 64)
	switch {
	case err != nil:
		return 1.0
	case ratio < 0:
		return 0
	case ratio > 1:
		return 1.0
	}
	return ratio
}
