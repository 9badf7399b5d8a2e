package commands

import (
	"flag"
	"fmt"
	"strings"

	"mongodoctor/internal/appconfig"
	"mongodoctor/internal/connstr"
	"mongodoctor/internal/output"
)

func ConfigShow(base Loaded, args []string) int {
	fs := flag.NewFlagSet("config show", flag.ContinueOnError)
	fs.SetOutput(output.Writer())
	cfgPath := fs.String("config", "", "config file (.json, .yaml, .toml or .env)")
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		output.Printf("error: %s\n", err)
		return 2
	}

	loaded := reload(base, *cfgPath)
	if loaded.Err != nil {
		output.Printf("error: failed to read config %s: %s\n", loaded.Path, loaded.Err)
		return 1
	}
	cfg := loaded.Config
	output.Println(renderConfig(loaded.Path, cfg))
	if err := appconfig.Validate(cfg); err != nil {
		output.Println(output.Colorize("warning", "problems:"))
		for _, p := range appconfig.Problems(err) {
			output.Printf("  - %s\n", p)
		}
	}
	return 0
}

func renderConfig(path string, cfg appconfig.Config) string {
	b := &strings.Builder{}
	fmt.Fprintln(b, output.Colorize("title", "mongodoctor configuration"))
	if path == "" {
		path = "(environment only)"
	}
	row := func(k, v string) {
		fmt.Fprintf(b, "%s %s\n", output.Colorize("dim", fmt.Sprintf("%-25s", k+":")), v)
	}
	row("path", path)
	primary := connstr.Mask(cfg.Primary)
	if cfg.UsesPlaceholder() {
		primary = appconfig.PlaceholderHost + " (placeholder)"
	}
	row("primary", primary)
	row("fallback", firstNonEmpty(connstr.Mask(cfg.Fallback), "(not configured)"))
	row("resolve_timeout", cfg.ResolveTimeout)
	row("dns_server", firstNonEmpty(cfg.DNSServer, "(system)"))
	row("lookup_srv", fmt.Sprint(cfg.LookupSRV))
	row("server_selection_timeout", cfg.Mongo.ServerSelectionTimeout)
	row("socket_timeout", cfg.Mongo.SocketTimeout)
	row("connect_timeout", cfg.Mongo.ConnectTimeout)
	row("max_pool_size", fmt.Sprint(cfg.Mongo.MaxPoolSize))
	row("write_concern", cfg.Mongo.WriteConcern)
	row("force_ipv4", fmt.Sprint(cfg.Mongo.ForceIPv4))
	row("log.level", cfg.Log.Level)
	row("log.mode", cfg.Log.Mode)
	if cfg.Log.FilePath != "" {
		row("log.file_path", cfg.Log.FilePath)
	}
	return strings.TrimRight(b.String(), "\n")
}
