package logger

import (
	"io"
	"os"
	"path/filepath"

	"mongodoctor/internal/appconfig"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

var Log = zerolog.Nop()

// Module sub-loggers
var (
	CLI    = zerolog.Nop()
	Config = zerolog.Nop()
	Doctor = zerolog.Nop()
	Probe  = zerolog.Nop()
)

func Init(cfg appconfig.LogConfig) {
	InitWithWriter(cfg, nil)
}

// InitWithWriter is Init with an explicit sink for the console and json
// modes. A nil writer means stderr.
func InitWithWriter(cfg appconfig.LogConfig, w io.Writer) {
	level := parseLevel(cfg.Level)
	if cfg.Mode == appconfig.LogModeDebug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	if w == nil {
		w = os.Stderr
	}

	var writer io.Writer
	switch cfg.Mode {
	case appconfig.LogModeJSON:
		writer = w
	case appconfig.LogModeFile:
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
			writer = w
		} else {
			writer = &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    cfg.MaxSizeMB,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAgeDays,
				Compress:   cfg.Compress,
			}
		}
	default:
		writer = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05", NoColor: w != os.Stderr}
	}

	Log = zerolog.New(writer).With().Timestamp().Logger()
	if cfg.Mode == appconfig.LogModeDebug {
		Log = Log.With().Caller().Logger()
	}

	CLI = Log.With().Str("module", "cli").Logger()
	Config = Log.With().Str("module", "config").Logger()
	Doctor = Log.With().Str("module", "doctor").Logger()
	Probe = Log.With().Str("module", "probe").Logger()
}

func parseLevel(s string) zerolog.Level {
	switch s {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.WarnLevel
	}
}
