// Package testutil holds helpers shared by command-level tests.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"mongodoctor/internal/appconfig"
	"mongodoctor/internal/logger"
	"mongodoctor/internal/output"

	"github.com/rs/zerolog"
)

// ConfigEnvKeys is every variable the configuration layer reads.
var ConfigEnvKeys = []string{
	"MONGODB_URI",
	"MONGODB_URI_FALLBACK",
	"MONGODB_SRV_URI",
	"MONGODB_HOST",
	"MONGODB_URI_DIRECT",
	"MONGODB_STANDARD_URI",
	"MONGODOCTOR_RESOLVE_TIMEOUT",
	"MONGODOCTOR_DNS_SERVER",
	"MONGODOCTOR_LOOKUP_SRV",
	"MONGODOCTOR_SERVER_SELECTION_TIMEOUT",
	"MONGODOCTOR_SOCKET_TIMEOUT",
	"MONGODOCTOR_CONNECT_TIMEOUT",
	"MONGODOCTOR_MAX_POOL_SIZE",
	"MONGODOCTOR_WRITE_CONCERN",
	"MONGODOCTOR_FORCE_IPV4",
	"MONGODOCTOR_LOG_LEVEL",
	"MONGODOCTOR_LOG_MODE",
	"MONGODOCTOR_LOG_FILE",
	"MONGODOCTOR_CONFIG",
}

// ClearConfigEnv unsets ConfigEnvKeys for the test and moves the working
// directory to an empty temp dir so no stray .env is picked up.
func ClearConfigEnv(t *testing.T) string {
	t.Helper()
	for _, k := range ConfigEnvKeys {
		t.Setenv(k, "")
		if err := os.Unsetenv(k); err != nil {
			t.Fatalf("unset %s: %v", k, err)
		}
	}
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

// CaptureOutput redirects console output into the returned buffer with
// colors disabled until the test ends.
func CaptureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	color := output.ColorEnabled()
	output.SetWriter(buf)
	output.SetColor(false)
	t.Cleanup(func() {
		output.SetWriter(nil)
		output.SetColor(color)
	})
	return buf
}

// WriteFile writes content to name inside a fresh temp dir and returns the path.
func WriteFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// CaptureLog points every module logger at the returned buffer as JSON lines
// at debug level until the test ends.
func CaptureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	level := zerolog.GlobalLevel()
	logger.InitWithWriter(appconfig.LogConfig{Level: "debug", Mode: appconfig.LogModeJSON}, buf)
	t.Cleanup(func() {
		logger.Log = zerolog.Nop()
		logger.CLI = zerolog.Nop()
		logger.Config = zerolog.Nop()
		logger.Doctor = zerolog.Nop()
		logger.Probe = zerolog.Nop()
		zerolog.SetGlobalLevel(level)
	})
	return buf
}
