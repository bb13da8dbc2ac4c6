package config

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"healthmon-agent/internal/model"
)

const envPrefix = "HEALTHMON_"

type SourceKind string

const (
	SourceHost    SourceKind = "host"
	SourceLibvirt SourceKind = "libvirt"
	SourceStatic  SourceKind = "static"
)

type SinkKind string

const (
	SinkLog       SinkKind = "log"
	SinkConsole   SinkKind = "console"
	SinkGRPC      SinkKind = "grpc"
	SinkWebSocket SinkKind = "websocket"
)

type PredictorMode string

const (
	PredictorLinear PredictorMode = "linear"
	PredictorGRPC   PredictorMode = "grpc"
)

type Config struct {
	Environment  Environment `yaml:"environment"`
	InstanceName string      `yaml:"instance_name"`

	Interval   time.Duration    `yaml:"interval"`
	Thresholds model.Thresholds `yaml:"-"`

	EnablePredictive        bool          `yaml:"enable_predictive"`
	PredictiveWindow        time.Duration `yaml:"predictive_window"`
	PredictiveMinConfidence float64       `yaml:"predictive_min_confidence"`
	PredictorMode           PredictorMode `yaml:"predictor_mode"`
	PredictorGRPCAddr       string        `yaml:"predictor_grpc_addr"`
	PredictorGRPCMethod     string        `yaml:"predictor_grpc_method"`
	HistorySize             int           `yaml:"history_size"`

	CollectTimeout  time.Duration `yaml:"collect_timeout"`
	SinkTimeout     time.Duration `yaml:"sink_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	Source             SourceKind         `yaml:"source"`
	DiskPath           string             `yaml:"disk_path"`
	ProcRoot           string             `yaml:"proc_root"`
	StaticValues       map[string]float64 `yaml:"static_values"`
	LibvirtURI         string             `yaml:"libvirt_uri"`
	ReconnectInterval  time.Duration      `yaml:"reconnect_interval"`
	MaxReconnectJitter time.Duration      `yaml:"max_reconnect_jitter"`

	Sinks                 []SinkKind    `yaml:"sinks"`
	AlertGRPCAddr         string        `yaml:"alert_grpc_addr"`
	AlertGRPCMethod       string        `yaml:"alert_grpc_method"`
	AlertWSURL            string        `yaml:"alert_ws_url"`
	BackendToken          string        `yaml:"backend_token"`
	SinkRateLimit         float64       `yaml:"sink_rate_limit"`
	SinkBurst             int           `yaml:"sink_burst"`
	WebSocketWriteTimeout time.Duration `yaml:"websocket_write_timeout"`
	WebSocketPingInterval time.Duration `yaml:"websocket_ping_interval"`

	TLSEnabled    bool   `yaml:"tls_enabled"`
	TLSSkipVerify bool   `yaml:"tls_skip_verify"`
	TLSCAPath     string `yaml:"tls_ca_path"`
	TLSCertPath   string `yaml:"tls_cert_path"`
	TLSKeyPath    string `yaml:"tls_key_path"`

	ProbeListenAddr string `yaml:"probe_listen_addr"`
	MetricsAddr     string `yaml:"metrics_addr"`

	LogJSON  bool   `yaml:"log_json"`
	LogLevel string `yaml:"log_level"`
}

// Options selects where Load reads from. Empty fields fall back to
// HEALTHMON_CONFIG and HEALTHMON_ENV.
type Options struct {
	Path        string
	Environment string
}

// Load resolves the configuration: profile defaults, then the YAML file,
// then HEALTHMON_* environment variables. The result is validated.
func Load(opts Options) (Config, error) {
	rawEnv := opts.Environment
	if rawEnv == "" {
		rawEnv = os.Getenv(envPrefix + "ENV")
	}
	env, err := ParseEnvironment(rawEnv)
	if err != nil {
		return Config{}, err
	}
	cfg := Defaults(env)

	path := opts.Path
	if path == "" {
		path = envString("CONFIG", "")
	}
	if path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(c *Config) error {
	c.InstanceName = envString("INSTANCE", c.InstanceName)
	c.Interval = envDuration("INTERVAL", c.Interval)
	c.EnablePredictive = envBool("ENABLE_PREDICTIVE", c.EnablePredictive)
	c.PredictiveWindow = envDuration("PREDICTIVE_WINDOW", c.PredictiveWindow)
	c.PredictiveMinConfidence = envFloat("PREDICTIVE_MIN_CONFIDENCE", c.PredictiveMinConfidence)
	c.PredictorMode = PredictorMode(strings.ToLower(envString("PREDICTOR_MODE", string(c.PredictorMode))))
	c.PredictorGRPCAddr = envString("PREDICTOR_GRPC_ADDR", c.PredictorGRPCAddr)
	c.PredictorGRPCMethod = envString("PREDICTOR_GRPC_METHOD", c.PredictorGRPCMethod)
	c.HistorySize = envInt("HISTORY_SIZE", c.HistorySize)
	c.CollectTimeout = envDuration("COLLECT_TIMEOUT", c.CollectTimeout)
	c.SinkTimeout = envDuration("SINK_TIMEOUT", c.SinkTimeout)
	c.ShutdownTimeout = envDuration("SHUTDOWN_TIMEOUT", c.ShutdownTimeout)
	c.Source = SourceKind(strings.ToLower(envString("SOURCE", string(c.Source))))
	c.DiskPath = envString("DISK_PATH", c.DiskPath)
	c.ProcRoot = envString("PROC_ROOT", c.ProcRoot)
	c.LibvirtURI = envString("LIBVIRT_URI", c.LibvirtURI)
	c.ReconnectInterval = envDuration("RECONNECT_INTERVAL", c.ReconnectInterval)
	c.MaxReconnectJitter = envDuration("RECONNECT_MAX_JITTER", c.MaxReconnectJitter)
	c.AlertGRPCAddr = envString("ALERT_GRPC_ADDR", c.AlertGRPCAddr)
	c.AlertGRPCMethod = envString("ALERT_GRPC_METHOD", c.AlertGRPCMethod)
	c.AlertWSURL = envString("ALERT_WS_URL", c.AlertWSURL)
	c.BackendToken = envString("BACKEND_TOKEN", c.BackendToken)
	c.SinkRateLimit = envFloat("SINK_RATE_LIMIT", c.SinkRateLimit)
	c.SinkBurst = envInt("SINK_BURST", c.SinkBurst)
	c.WebSocketWriteTimeout = envDuration("WS_WRITE_TIMEOUT", c.WebSocketWriteTimeout)
	c.WebSocketPingInterval = envDuration("WS_PING_INTERVAL", c.WebSocketPingInterval)
	c.TLSEnabled = envBool("TLS_ENABLED", c.TLSEnabled)
	c.TLSSkipVerify = envBool("TLS_SKIP_VERIFY", c.TLSSkipVerify)
	c.TLSCAPath = envString("TLS_CA_PATH", c.TLSCAPath)
	c.TLSCertPath = envString("TLS_CERT_PATH", c.TLSCertPath)
	c.TLSKeyPath = envString("TLS_KEY_PATH", c.TLSKeyPath)
	c.ProbeListenAddr = envRaw("PROBE_ADDR", c.ProbeListenAddr)
	c.MetricsAddr = envRaw("METRICS_ADDR", c.MetricsAddr)
	c.LogJSON = envBool("LOG_JSON", c.LogJSON)
	c.LogLevel = strings.ToLower(envString("LOG_LEVEL", c.LogLevel))

	if v := envString("SINKS", ""); v != "" {
		c.Sinks = parseSinks(v)
	}
	if v := envString("THRESHOLDS", ""); v != "" {
		t, err := ParseThresholds(v)
		if err != nil {
			return err
		}
		c.Thresholds = t
	}
	if v := envString("STATIC_VALUES", ""); v != "" {
		vals, err := ParseThresholds(v)
		if err != nil {
			return &ConfigurationError{Field: "static_values", Reason: "parse " + envPrefix + "STATIC_VALUES", Err: err}
		}
		c.StaticValues = vals
	}
	return nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.InstanceName) == "" {
		return invalid("instance_name", "must not be empty")
	}
	if c.Interval <= 0 {
		return invalid("interval", "must be > 0, got %v", c.Interval)
	}
	if len(c.Thresholds) == 0 {
		return invalid("thresholds", "at least one threshold is required")
	}
	for _, name := range c.Thresholds.Metrics() {
		if strings.TrimSpace(name) == "" {
			return invalid("thresholds", "metric name must not be empty")
		}
		v := c.Thresholds[name]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return invalid("thresholds", "threshold for %q must be a finite number, got %v", name, v)
		}
		if v < 0 {
			return invalid("thresholds", "threshold for %q must be >= 0, got %v", name, v)
		}
	}
	if c.EnablePredictive {
		if c.PredictiveWindow <= 0 {
			return invalid("predictive_window", "must be > 0 when predictive evaluation is enabled, got %v", c.PredictiveWindow)
		}
		switch c.PredictorMode {
		case PredictorLinear:
		case PredictorGRPC:
			if strings.TrimSpace(c.PredictorGRPCAddr) == "" {
				return invalid("predictor_grpc_addr", "required for grpc predictor")
			}
			if strings.TrimSpace(c.PredictorGRPCMethod) == "" {
				return invalid("predictor_grpc_method", "required for grpc predictor")
			}
		default:
			return invalid("predictor_mode", "unsupported predictor mode %q", c.PredictorMode)
		}
		if c.PredictiveMinConfidence < 0 || c.PredictiveMinConfidence > 100 {
			return invalid("predictive_min_confidence", "must be within [0,100], got %v", c.PredictiveMinConfidence)
		}
	}
	if c.HistorySize <= 0 {
		return invalid("history_size", "must be > 0, got %d", c.HistorySize)
	}
	if c.CollectTimeout < 0 || c.SinkTimeout < 0 {
		return invalid("timeouts", "collect and sink timeouts must not be negative")
	}
	if c.ShutdownTimeout <= 0 {
		return invalid("shutdown_timeout", "must be > 0, got %v", c.ShutdownTimeout)
	}
	switch c.Source {
	case SourceHost:
	case SourceLibvirt:
		if strings.TrimSpace(c.LibvirtURI) == "" {
			return invalid("libvirt_uri", "required for libvirt source")
		}
	case SourceStatic:
		if len(c.StaticValues) == 0 {
			return invalid("static_values", "required for static source")
		}
	default:
		return invalid("source", "unsupported source %q", c.Source)
	}
	if len(c.Sinks) == 0 {
		return invalid("sinks", "at least one alert sink is required")
	}
	for _, s := range c.Sinks {
		switch s {
		case SinkLog, SinkConsole:
		case SinkGRPC:
			if strings.TrimSpace(c.AlertGRPCAddr) == "" {
				return invalid("alert_grpc_addr", "required for grpc sink")
			}
			if strings.TrimSpace(c.AlertGRPCMethod) == "" {
				return invalid("alert_grpc_method", "required for grpc sink")
			}
		case SinkWebSocket:
			if strings.TrimSpace(c.AlertWSURL) == "" {
				return invalid("alert_ws_url", "required for websocket sink")
			}
		default:
			return invalid("sinks", "unsupported sink %q", s)
		}
	}
	if c.SinkRateLimit < 0 {
		return invalid("sink_rate_limit", "must not be negative, got %v", c.SinkRateLimit)
	}
	if c.SinkRateLimit > 0 && c.SinkBurst <= 0 {
		return invalid("sink_burst", "must be > 0 when a rate limit is set, got %d", c.SinkBurst)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return invalid("log_level", "unsupported log level %q", c.LogLevel)
	}
	return nil
}

// EffectiveCollectTimeout bounds a single collection; it defaults to the
// sampling interval.
func (c Config) EffectiveCollectTimeout() time.Duration {
	if c.CollectTimeout > 0 {
		return c.CollectTimeout
	}
	return c.Interval
}

func (c Config) HasSink(kind SinkKind) bool {
	for _, s := range c.Sinks {
		if s == kind {
			return true
		}
	}
	return false
}

func (c Config) TLSConfig() (*tls.Config, error) {
	if !c.TLSEnabled {
		return nil, nil
	}
	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: c.TLSSkipVerify}
	if c.TLSCAPath != "" {
		caBytes, err := os.ReadFile(c.TLSCAPath)
		if err != nil {
			return nil, fmt.Errorf("read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caBytes) {
			return nil, errors.New("append CA cert failed")
		}
		tlsCfg.RootCAs = pool
	}
	if c.TLSCertPath != "" || c.TLSKeyPath != "" {
		if c.TLSCertPath == "" || c.TLSKeyPath == "" {
			return nil, errors.New("both TLS cert and key are required")
		}
		crt, err := tls.LoadX509KeyPair(c.TLSCertPath, c.TLSKeyPath)
		if err != nil {
			return nil, fmt.Errorf("load mTLS cert/key: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{crt}
	}
	return tlsCfg, nil
}

// ParseThresholds parses "cpu=80,memory=85.5".
func ParseThresholds(raw string) (model.Thresholds, error) {
	out := model.Thresholds{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			return nil, invalid("thresholds", "expected metric=value, got %q", part)
		}
		name = strings.TrimSpace(name)
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, &ConfigurationError{Field: "thresholds", Reason: fmt.Sprintf("parse value for %q", name), Err: err}
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, invalid("thresholds", "value for %q must be a finite number, got %q", name, value)
		}
		out[name] = f
	}
	if len(out) == 0 {
		return nil, invalid("thresholds", "no entries in %q", raw)
	}
	return out, nil
}

func FormatThresholds(t model.Thresholds) string {
	names := t.Metrics()
	parts := make([]string, 0, len(names))
	for _, n := range names {
		parts = append(parts, n+"="+strconv.FormatFloat(t[n], 'f', -1, 64))
	}
	return strings.Join(parts, ",")
}

func parseSinks(raw string) []SinkKind {
	var out []SinkKind
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, SinkKind(part))
		}
	}
	return out
}

func envString(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(envPrefix + key))
	if v == "" {
		return fallback
	}
	return v
}

// envRaw lets an explicitly empty value disable a listener.
func envRaw(key, fallback string) string {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok {
		return fallback
	}
	return strings.TrimSpace(v)
}

func envInt(key string, fallback int) int {
	v := envString(key, "")
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envFloat(key string, fallback float64) float64 {
	v := envString(key, "")
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envBool(key string, fallback bool) bool {
	v := strings.ToLower(envString(key, ""))
	if v == "" {
		return fallback
	}
	switch v {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := envString(key, "")
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
