package config

import (
	"strings"
	"time"

	"healthmon-agent/internal/model"
)

type Environment string

const (
	EnvProduction   Environment = "production"
	EnvDevelopment  Environment = "development"
	EnvExperimental Environment = "experimental"
)

func ParseEnvironment(raw string) (Environment, error) {
	switch env := Environment(strings.ToLower(strings.TrimSpace(raw))); env {
	case "":
		return EnvProduction, nil
	case EnvProduction, EnvDevelopment, EnvExperimental:
		return env, nil
	default:
		return "", invalid("environment", "unknown environment %q (want production, development or experimental)", raw)
	}
}

// Defaults returns the baseline configuration for an environment profile.
// File and environment overrides are applied on top of it.
func Defaults(env Environment) Config {
	cfg := Config{
		Environment:           env,
		InstanceName:          string(env),
		Interval:              60 * time.Second,
		PredictiveWindow:      300 * time.Second,
		PredictorMode:         PredictorLinear,
		PredictorGRPCMethod:   "/healthmon.forecast.v1.ForecastService/Forecast",
		HistorySize:           120,
		SinkTimeout:           5 * time.Second,
		ShutdownTimeout:       20 * time.Second,
		Source:                SourceHost,
		DiskPath:              "/",
		ProcRoot:              "/proc",
		LibvirtURI:            "qemu+unix:///system",
		ReconnectInterval:     4 * time.Second,
		MaxReconnectJitter:    900 * time.Millisecond,
		Sinks:                 []SinkKind{SinkLog},
		AlertGRPCMethod:       "/healthmon.alerts.v1.AlertService/StreamAlerts",
		SinkBurst:             10,
		WebSocketWriteTimeout: 5 * time.Second,
		WebSocketPingInterval: 10 * time.Second,
		ProbeListenAddr:       "0.0.0.0:7443",
		MetricsAddr:           ":9100",
		LogLevel:              "info",
	}

	threshold := 80.0
	switch env {
	case EnvDevelopment:
		cfg.Interval = 5 * time.Second
		threshold = 90
		cfg.LogLevel = "debug"
		cfg.Sinks = []SinkKind{SinkConsole}
	case EnvExperimental:
		cfg.Interval = 30 * time.Second
		threshold = 75
		cfg.EnablePredictive = true
	}
	cfg.Thresholds = model.Thresholds{
		model.MetricCPU:    threshold,
		model.MetricMemory: threshold,
		model.MetricDisk:   threshold,
	}
	return cfg
}
