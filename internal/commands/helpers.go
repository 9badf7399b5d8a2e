package commands

import (
	"os"
	"path/filepath"
	"strings"

	"mongodoctor/internal/appconfig"
	"mongodoctor/internal/logger"
	"mongodoctor/internal/output"
)

func expandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			if path == "~" {
				return home
			}
			return filepath.Join(home, strings.TrimPrefix(path, "~/"))
		}
	}
	return path
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// Loaded is a configuration read from Path. On failure Err is set and Config
// holds the defaults.
type Loaded struct {
	Path   string
	Config appconfig.Config
	Err    error
}

// LoadConfig reads the configuration once for the dispatcher. An empty path
// means environment only.
func LoadConfig(path string) Loaded {
	path = expandPath(strings.TrimSpace(path))
	cfg, err := appconfig.Load(path)
	if err != nil {
		logger.Config.Warn().Err(err).Str("path", path).Msg("config load failed, using defaults")
		return Loaded{Path: path, Config: appconfig.Default(), Err: err}
	}
	output.Debugf("loaded config: %q\n", path)
	return Loaded{Path: path, Config: cfg}
}

// reload replaces base when an explicit --config path names another file.
func reload(base Loaded, path string) Loaded {
	path = expandPath(strings.TrimSpace(path))
	if path == "" || path == base.Path {
		return base
	}
	return LoadConfig(path)
}
