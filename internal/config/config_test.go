package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"healthmon-agent/internal/model"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "healthmon.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaults_Profiles(t *testing.T) {
	tests := []struct {
		env        Environment
		interval   time.Duration
		threshold  float64
		predictive bool
		logLevel   string
		sink       SinkKind
	}{
		{EnvProduction, 60 * time.Second, 80, false, "info", SinkLog},
		{EnvDevelopment, 5 * time.Second, 90, false, "debug", SinkConsole},
		{EnvExperimental, 30 * time.Second, 75, true, "info", SinkLog},
	}
	for _, tt := range tests {
		t.Run(string(tt.env), func(t *testing.T) {
			cfg := Defaults(tt.env)
			assert.Equal(t, tt.interval, cfg.Interval)
			assert.Equal(t, tt.predictive, cfg.EnablePredictive)
			assert.Equal(t, tt.logLevel, cfg.LogLevel)
			assert.Equal(t, []SinkKind{tt.sink}, cfg.Sinks)
			assert.Equal(t, 300*time.Second, cfg.PredictiveWindow)
			for _, m := range []string{model.MetricCPU, model.MetricMemory, model.MetricDisk} {
				assert.Equal(t, tt.threshold, cfg.Thresholds[m])
			}
			assert.NoError(t, cfg.Validate())
		})
	}
}

func TestParseEnvironment(t *testing.T) {
	env, err := ParseEnvironment("")
	require.NoError(t, err)
	assert.Equal(t, EnvProduction, env)

	env, err = ParseEnvironment(" Development ")
	require.NoError(t, err)
	assert.Equal(t, EnvDevelopment, env)

	_, err = ParseEnvironment("staging")
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "environment", cfgErr.Field)
}

func TestLoad_FileReplacesThresholds(t *testing.T) {
	path := writeConfig(t, `
instance_name: web-1
interval: 15s
thresholds:
  cpu: 70
  traffic: 1000000
sinks: [log, console]
`)
	cfg, err := Load(Options{Path: path, Environment: "production"})
	require.NoError(t, err)

	assert.Equal(t, "web-1", cfg.InstanceName)
	assert.Equal(t, 15*time.Second, cfg.Interval)
	assert.Equal(t, model.Thresholds{"cpu": 70, "traffic": 1000000}, cfg.Thresholds)
	assert.Equal(t, []SinkKind{SinkLog, SinkConsole}, cfg.Sinks)
	assert.Equal(t, EnvProduction, cfg.Environment)
	// untouched fields keep the profile value
	assert.Equal(t, 120, cfg.HistorySize)
}

func TestLoad_FileCannotChangeEnvironment(t *testing.T) {
	path := writeConfig(t, "environment: development\n")
	_, err := Load(Options{Path: path, Environment: "experimental"})
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "environment", cfgErr.Field)
}

func TestLoad_FileMayRestateEnvironment(t *testing.T) {
	path := writeConfig(t, "environment: Experimental\n")
	cfg, err := Load(Options{Path: path, Environment: "experimental"})
	require.NoError(t, err)
	assert.Equal(t, EnvExperimental, cfg.Environment)
	assert.Equal(t, 30*time.Second, cfg.Interval)
}

func TestLoad_UnknownFieldRejected(t *testing.T) {
	path := writeConfig(t, "intervall: 5s\n")
	_, err := Load(Options{Path: path})
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "config_file", cfgErr.Field)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(Options{Path: filepath.Join(t.TempDir(), "nope.yaml")})
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "interval: 15s\ninstance_name: from-file\n")
	t.Setenv("HEALTHMON_INTERVAL", "2s")
	t.Setenv("HEALTHMON_THRESHOLDS", "cpu=50, memory=60.5")
	t.Setenv("HEALTHMON_ENABLE_PREDICTIVE", "true")
	t.Setenv("HEALTHMON_SINKS", "log,GRPC")
	t.Setenv("HEALTHMON_ALERT_GRPC_ADDR", "collector:9443")
	t.Setenv("HEALTHMON_PROBE_ADDR", "")

	cfg, err := Load(Options{Path: path})
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.Interval)
	assert.Equal(t, "from-file", cfg.InstanceName)
	assert.Equal(t, model.Thresholds{"cpu": 50, "memory": 60.5}, cfg.Thresholds)
	assert.True(t, cfg.EnablePredictive)
	assert.Equal(t, []SinkKind{SinkLog, SinkGRPC}, cfg.Sinks)
	assert.True(t, cfg.HasSink(SinkGRPC))
	assert.Empty(t, cfg.ProbeListenAddr)
}

func TestLoad_EnvSelectsProfileAndFile(t *testing.T) {
	path := writeConfig(t, "instance_name: env-file\n")
	t.Setenv("HEALTHMON_ENV", "development")
	t.Setenv("HEALTHMON_CONFIG", path)

	cfg, err := Load(Options{})
	require.NoError(t, err)
	assert.Equal(t, EnvDevelopment, cfg.Environment)
	assert.Equal(t, "env-file", cfg.InstanceName)
	assert.Equal(t, 5*time.Second, cfg.Interval)
}

func TestLoad_InvalidThresholdEnv(t *testing.T) {
	t.Setenv("HEALTHMON_THRESHOLDS", "cpu")
	_, err := Load(Options{})
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "thresholds", cfgErr.Field)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		mut   func(c *Config)
		field string
	}{
		{"empty instance", func(c *Config) { c.InstanceName = " " }, "instance_name"},
		{"zero interval", func(c *Config) { c.Interval = 0 }, "interval"},
		{"negative interval", func(c *Config) { c.Interval = -time.Second }, "interval"},
		{"no thresholds", func(c *Config) { c.Thresholds = nil }, "thresholds"},
		{"negative threshold", func(c *Config) { c.Thresholds = model.Thresholds{"cpu": -1} }, "thresholds"},
		{"NaN threshold", func(c *Config) { c.Thresholds = model.Thresholds{"cpu": math.NaN()} }, "thresholds"},
		{"infinite threshold", func(c *Config) { c.Thresholds = model.Thresholds{"cpu": math.Inf(1)} }, "thresholds"},
		{"predictive window", func(c *Config) { c.EnablePredictive = true; c.PredictiveWindow = 0 }, "predictive_window"},
		{"unknown predictor", func(c *Config) { c.EnablePredictive = true; c.PredictorMode = "magic" }, "predictor_mode"},
		{"grpc predictor without addr", func(c *Config) { c.EnablePredictive = true; c.PredictorMode = PredictorGRPC }, "predictor_grpc_addr"},
		{"confidence range", func(c *Config) { c.EnablePredictive = true; c.PredictiveMinConfidence = 101 }, "predictive_min_confidence"},
		{"history size", func(c *Config) { c.HistorySize = 0 }, "history_size"},
		{"unknown source", func(c *Config) { c.Source = "snmp" }, "source"},
		{"static without values", func(c *Config) { c.Source = SourceStatic }, "static_values"},
		{"no sinks", func(c *Config) { c.Sinks = nil }, "sinks"},
		{"unknown sink", func(c *Config) { c.Sinks = []SinkKind{"pager"} }, "sinks"},
		{"grpc sink without addr", func(c *Config) { c.Sinks = []SinkKind{SinkGRPC} }, "alert_grpc_addr"},
		{"websocket sink without url", func(c *Config) { c.Sinks = []SinkKind{SinkWebSocket} }, "alert_ws_url"},
		{"rate limit without burst", func(c *Config) { c.SinkRateLimit = 1; c.SinkBurst = 0 }, "sink_burst"},
		{"log level", func(c *Config) { c.LogLevel = "trace" }, "log_level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults(EnvProduction)
			tt.mut(&cfg)
			err := cfg.Validate()
			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestValidate_DisabledPredictiveSkipsWindow(t *testing.T) {
	cfg := Defaults(EnvProduction)
	cfg.PredictiveWindow = 0
	assert.NoError(t, cfg.Validate())
}

func TestEffectiveCollectTimeout(t *testing.T) {
	cfg := Defaults(EnvProduction)
	assert.Equal(t, cfg.Interval, cfg.EffectiveCollectTimeout())
	cfg.CollectTimeout = 3 * time.Second
	assert.Equal(t, 3*time.Second, cfg.EffectiveCollectTimeout())
}

func TestParseAndFormatThresholds(t *testing.T) {
	th, err := ParseThresholds("memory=85.5, cpu=80,,")
	require.NoError(t, err)
	assert.Equal(t, model.Thresholds{"cpu": 80, "memory": 85.5}, th)
	assert.Equal(t, "cpu=80,memory=85.5", FormatThresholds(th))

	_, err = ParseThresholds("cpu=high")
	assert.Error(t, err)
	_, err = ParseThresholds(" , ")
	assert.Error(t, err)

	for _, raw := range []string{"cpu=NaN", "cpu=+Inf", "memory=80,cpu=-inf"} {
		_, err = ParseThresholds(raw)
		var cfgErr *ConfigurationError
		require.ErrorAs(t, err, &cfgErr, raw)
		assert.Equal(t, "thresholds", cfgErr.Field)
	}
}

func TestLoad_NaNThresholdInFileRejected(t *testing.T) {
	path := writeConfig(t, "thresholds:\n  cpu: .nan\n")
	_, err := Load(Options{Path: path})
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "thresholds", cfgErr.Field)
}

func TestTLSConfig(t *testing.T) {
	cfg := Defaults(EnvProduction)
	tlsCfg, err := cfg.TLSConfig()
	require.NoError(t, err)
	assert.Nil(t, tlsCfg)

	cfg.TLSEnabled = true
	cfg.TLSSkipVerify = true
	tlsCfg, err = cfg.TLSConfig()
	require.NoError(t, err)
	assert.True(t, tlsCfg.InsecureSkipVerify)

	cfg.TLSCertPath = "/only/cert.pem"
	_, err = cfg.TLSConfig()
	assert.Error(t, err)
}

func TestDump_MasksToken(t *testing.T) {
	cfg := Defaults(EnvProduction)
	cfg.BackendToken = "s3cr3t"

	out, err := cfg.Dump()
	require.NoError(t, err)
	assert.NotContains(t, string(out), "s3cr3t")

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(out, &decoded))
	assert.Equal(t, "********", decoded["backend_token"])
	assert.Equal(t, "production", decoded["environment"])
	thresholds, ok := decoded["thresholds"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 80, thresholds["cpu"])
	assert.Equal(t, "s3cr3t", cfg.BackendToken)
}
