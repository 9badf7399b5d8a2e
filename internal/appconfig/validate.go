package appconfig

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"
)

// Validate reports every problem in the configuration at once.
func Validate(cfg Config) error {
	var err error

	err = multierr.Append(err, checkDuration("resolve_timeout", cfg.ResolveTimeout))
	err = multierr.Append(err, checkDuration("mongo.server_selection_timeout", cfg.Mongo.ServerSelectionTimeout))
	err = multierr.Append(err, checkDuration("mongo.socket_timeout", cfg.Mongo.SocketTimeout))
	err = multierr.Append(err, checkDuration("mongo.connect_timeout", cfg.Mongo.ConnectTimeout))

	if cfg.Mongo.MaxPoolSize == 0 {
		err = multierr.Append(err, fmt.Errorf("mongo.max_pool_size must be greater than zero"))
	}
	if wc := strings.TrimSpace(cfg.Mongo.WriteConcern); wc != "" && !strings.EqualFold(wc, "majority") {
		if n, convErr := strconv.Atoi(wc); convErr != nil || n < 0 {
			err = multierr.Append(err, fmt.Errorf("mongo.write_concern must be \"majority\" or a non-negative integer, got %q", wc))
		}
	}

	if cfg.DNSServer != "" {
		if _, _, splitErr := net.SplitHostPort(cfg.DNSServer); splitErr != nil {
			err = multierr.Append(err, fmt.Errorf("dns_server must be host:port: %w", splitErr))
		}
	}

	switch cfg.Log.Mode {
	case "", LogModeConsole, LogModeDebug, LogModeJSON:
	case LogModeFile:
		if cfg.Log.FilePath == "" {
			err = multierr.Append(err, fmt.Errorf("log.file_path is required when log.mode is %q", LogModeFile))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("unsupported log.mode: %s", cfg.Log.Mode))
	}

	return err
}

// Problems flattens a Validate error into individual messages.
func Problems(err error) []string {
	errs := multierr.Errors(err)
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Error())
	}
	return out
}

func checkDuration(name, raw string) error {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q", name, raw)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive, got %s", name, raw)
	}
	return nil
}
