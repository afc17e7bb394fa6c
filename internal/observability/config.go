package observability

import (
	"strings"

	"github.com/smallbiznis/authr/internal/config"
	"github.com/spf13/viper"
)

// Config holds observability configuration derived from environment variables.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

func LoadConfig(cfg config.Config) Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("DEPLOYMENT_ENV", cfg.Environment)
	v.SetDefault("SERVICE_VERSION", cfg.AppVersion)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTLPEndpoint)
	v.SetDefault("OTEL_EXPORTER_OTLP_PROTOCOL", "http")
	v.SetDefault("OTEL_SAMPLING_RATIO", 0.1)
	v.SetDefault("OTEL_ENABLED", false)

	protocol := v.GetString("OTEL_EXPORTER_OTLP_PROTOCOL")
	if traces := strings.TrimSpace(v.GetString("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL")); traces != "" {
		protocol = traces
	}

	serviceName := strings.TrimSpace(cfg.AppName)
	if serviceName == "" {
		serviceName = "authr"
	}

	return Config{
		ServiceName:          serviceName,
		Environment:          strings.TrimSpace(v.GetString("DEPLOYMENT_ENV")),
		Version:              strings.TrimSpace(v.GetString("SERVICE_VERSION")),
		LogLevel:             strings.ToLower(strings.TrimSpace(v.GetString("LOG_LEVEL"))),
		LogFormat:            strings.ToLower(strings.TrimSpace(v.GetString("LOG_FORMAT"))),
		OtelEnabled:          v.GetBool("OTEL_ENABLED"),
		OtelExporterEndpoint: strings.TrimSpace(v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT")),
		OtelExporterProtocol: strings.ToLower(strings.TrimSpace(protocol)),
		OtelSamplingRatio:    v.GetFloat64("OTEL_SAMPLING_RATIO"),
	}
}

func (c Config) Debug() bool {
	if strings.EqualFold(strings.TrimSpace(c.LogLevel), "debug") {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}
