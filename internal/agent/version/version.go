package version

import (
	"runtime"
	"runtime/debug"
	"time"

	"healthmon-agent/internal/config"
)

// Version is set at build time with -ldflags "-X healthmon-agent/internal/agent/version.Version=...".
var Version = "dev"

type Info struct {
	Instance    string `json:"instance"`
	Environment string `json:"environment"`
	Version     string `json:"version"`
	Revision    string `json:"revision,omitempty"`
	GoVersion   string `json:"go_version"`
	ProbeAddr   string `json:"probe_addr,omitempty"`
	CheckedAt   int64  `json:"checked_at_unix"`
}

func Get(cfg config.Config) Info {
	return Info{
		Instance:    cfg.InstanceName,
		Environment: string(cfg.Environment),
		Version:     Version,
		Revision:    revision(),
		GoVersion:   runtime.Version(),
		ProbeAddr:   cfg.ProbeListenAddr,
		CheckedAt:   time.Now().UTC().Unix(),
	}
}

func revision() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range bi.Settings {
		if s.Key == "vcs.revision" {
			return s.Value
		}
	}
	return ""
}
