package telemetry

import (
	"os"
	"strings"
)

// DefaultServiceName is the service name when OTEL_SERVICE_NAME is unset.
const DefaultServiceName = "class-shrinker"

// Config holds the OpenTelemetry settings. LoadFromEnv fills it from the
// standard OTEL_* variables:
//
//	OTEL_ENABLED                 enable tracing (default false)
//	OTEL_SERVICE_NAME            service name (default class-shrinker)
//	OTEL_SERVICE_VERSION         service version (default unknown)
//	OTEL_EXPORTER_OTLP_ENDPOINT  collector endpoint
//	OTEL_EXPORTER_OTLP_PROTOCOL  grpc or http/protobuf (default grpc)
//	OTEL_EXPORTER_OTLP_HEADERS   key=value pairs sent with every export
//	OTEL_EXPORTER_OTLP_INSECURE  disable TLS
//	OTEL_TRACES_SAMPLER          sampler name (default always_on)
//	OTEL_TRACES_SAMPLER_ARG      sampler ratio
//	OTEL_RESOURCE_ATTRIBUTES     extra key=value resource attributes
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string

	Endpoint string
	Protocol string
	Headers  map[string]string
	Insecure bool

	Sampler    string
	SamplerArg string

	ResourceAttrs map[string]string
}

// LoadFromEnv loads the configuration from the process environment.
func LoadFromEnv() *Config {
	return loadFrom(os.Getenv)
}

func loadFrom(getenv func(string) string) *Config {
	or := func(key, fallback string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return fallback
	}
	isTrue := func(key string) bool {
		return strings.EqualFold(getenv(key), "true")
	}

	return &Config{
		Enabled:        isTrue("OTEL_ENABLED"),
		ServiceName:    or("OTEL_SERVICE_NAME", DefaultServiceName),
		ServiceVersion: or("OTEL_SERVICE_VERSION", "unknown"),
		Endpoint:       getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Protocol:       or("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"),
		Headers:        parseKeyValuePairs(getenv("OTEL_EXPORTER_OTLP_HEADERS")),
		Insecure:       isTrue("OTEL_EXPORTER_OTLP_INSECURE"),
		Sampler:        getenv("OTEL_TRACES_SAMPLER"),
		SamplerArg:     getenv("OTEL_TRACES_SAMPLER_ARG"),
		ResourceAttrs:  parseKeyValuePairs(getenv("OTEL_RESOURCE_ATTRIBUTES")),
	}
}

// parseKeyValuePairs parses "k1=v1,k2=v2". Values may contain '='; pairs
// without a key are skipped.
func parseKeyValuePairs(s string) map[string]string {
	result := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		result[key] = strings.TrimSpace(value)
	}
	return result
}
