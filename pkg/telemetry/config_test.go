package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var otelEnv = []string{
	"OTEL_ENABLED",
	"OTEL_SERVICE_NAME",
	"OTEL_SERVICE_VERSION",
	"OTEL_EXPORTER_OTLP_ENDPOINT",
	"OTEL_EXPORTER_OTLP_PROTOCOL",
	"OTEL_EXPORTER_OTLP_HEADERS",
	"OTEL_EXPORTER_OTLP_INSECURE",
	"OTEL_TRACES_SAMPLER",
	"OTEL_TRACES_SAMPLER_ARG",
	"OTEL_RESOURCE_ATTRIBUTES",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range otelEnv {
		t.Setenv(k, "")
	}
}

func TestLoadFromEnv(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		check func(t *testing.T, cfg *Config)
	}{
		{
			name: "defaults",
			check: func(t *testing.T, cfg *Config) {
				assert.False(t, cfg.Enabled)
				assert.Equal(t, DefaultServiceName, cfg.ServiceName)
				assert.Equal(t, "unknown", cfg.ServiceVersion)
				assert.Equal(t, "grpc", cfg.Protocol)
				assert.Empty(t, cfg.Headers)
			},
		},
		{
			name: "enabled case insensitive",
			env:  map[string]string{"OTEL_ENABLED": "TRUE"},
			check: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.Enabled)
			},
		},
		{
			name: "exporter settings",
			env: map[string]string{
				"OTEL_SERVICE_NAME":           "shrink-ci",
				"OTEL_SERVICE_VERSION":        "1.2.0",
				"OTEL_EXPORTER_OTLP_ENDPOINT": "https://collector.example.com:4318",
				"OTEL_EXPORTER_OTLP_PROTOCOL": "http/protobuf",
				"OTEL_EXPORTER_OTLP_INSECURE": "true",
				"OTEL_EXPORTER_OTLP_HEADERS":  "Authorization=Bearer token123,X-Tenant=build",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "shrink-ci", cfg.ServiceName)
				assert.Equal(t, "1.2.0", cfg.ServiceVersion)
				assert.Equal(t, "https://collector.example.com:4318", cfg.Endpoint)
				assert.Equal(t, "http/protobuf", cfg.Protocol)
				assert.True(t, cfg.Insecure)
				assert.Equal(t, map[string]string{"Authorization": "Bearer token123", "X-Tenant": "build"}, cfg.Headers)
			},
		},
		{
			name: "resource attributes",
			env:  map[string]string{"OTEL_RESOURCE_ATTRIBUTES": "deployment.environment=ci,service.namespace=build"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "ci", cfg.ResourceAttrs["deployment.environment"])
				assert.Len(t, cfg.ResourceAttrs, 2)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			tt.check(t, LoadFromEnv())
		})
	}
}

func TestParseKeyValuePairs(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected map[string]string
	}{
		{"empty", "", map[string]string{}},
		{"single pair", "key=value", map[string]string{"key": "value"}},
		{"multiple pairs", "key1=value1,key2=value2", map[string]string{"key1": "value1", "key2": "value2"}},
		{"spaces", " key1 = value1 , key2 = value2 ", map[string]string{"key1": "value1", "key2": "value2"}},
		{"value with equals", "Authorization=Bearer token=abc", map[string]string{"Authorization": "Bearer token=abc"}},
		{"empty value", "key=", map[string]string{"key": ""}},
		{"no equals", "invalid", map[string]string{}},
		{"mixed", "valid=value,invalid,another=test", map[string]string{"valid": "value", "another": "test"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseKeyValuePairs(tt.input))
		})
	}
}

func TestLoadFrom(t *testing.T) {
	env := map[string]string{
		"OTEL_ENABLED":        "true",
		"OTEL_TRACES_SAMPLER": "traceidratio",
	}
	cfg := loadFrom(func(k string) string { return env[k] })

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "traceidratio", cfg.Sampler)
	assert.Equal(t, DefaultServiceName, cfg.ServiceName)
}

func TestEndpoint(t *testing.T) {
	tests := []struct {
		cfg       Config
		host      string
		plaintext bool
	}{
		{Config{Endpoint: "collector:4317"}, "collector:4317", false},
		{Config{Endpoint: "https://collector:4317"}, "collector:4317", false},
		{Config{Endpoint: "http://collector:4318"}, "collector:4318", true},
		{Config{Endpoint: "collector:4317", Insecure: true}, "collector:4317", true},
		{Config{}, "", false},
	}

	for _, tt := range tests {
		host, plaintext := endpoint(&tt.cfg)
		assert.Equal(t, tt.host, host, tt.cfg.Endpoint)
		assert.Equal(t, tt.plaintext, plaintext, tt.cfg.Endpoint)
	}
}
