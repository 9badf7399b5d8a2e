package commands

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"strings"
	"time"

	"mongodoctor/internal/appconfig"
	"mongodoctor/internal/connstr"
	"mongodoctor/internal/diagnostics"
	"mongodoctor/internal/logger"
	"mongodoctor/internal/output"
)

// replaced in tests
var (
	newResolver = func(server string, timeout time.Duration) diagnostics.Resolver {
		return diagnostics.NewResolver(server, timeout)
	}
	newSRVLookup = func(server string, timeout time.Duration) diagnostics.SRVLookup {
		return diagnostics.NewSRVLookup(server, timeout)
	}
	newConnector = func() diagnostics.Connector {
		return diagnostics.MongoConnector{}
	}
)

func Doctor(base Loaded, args []string) int {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	fs.SetOutput(output.Writer())
	uri := fs.String("uri", "", "primary endpoint: hostname or mongodb+srv:// string (overrides MONGODB_URI)")
	fallback := fs.String("fallback", "", "fallback mongodb:// string (overrides MONGODB_URI_FALLBACK)")
	cfgPath := fs.String("config", "", "config file (.json, .yaml, .toml or .env)")
	asJSON := fs.Bool("json", false, "print the report as JSON")
	noColor := fs.Bool("no-color", false, "disable colored output")
	resolveTimeout := fs.Duration("resolve-timeout", 0, "deadline for the DNS resolution probe (default 10s)")
	dnsServer := fs.String("dns-server", "", "send DNS queries to host:port instead of the system resolver")
	noSRV := fs.Bool("no-srv", false, "skip the informational SRV record lookup")
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		output.Printf("error: %s\n", err)
		return 2
	}
	if *noColor {
		output.SetColor(false)
	}

	loaded := reload(base, *cfgPath)
	if loaded.Err != nil {
		output.Printf("warning: failed to read config %s: %s\n", loaded.Path, loaded.Err)
	}
	cfg := loaded.Config
	if *uri != "" {
		cfg.Primary = *uri
	}
	if *fallback != "" {
		cfg.Fallback = *fallback
	}
	if *resolveTimeout > 0 {
		cfg.ResolveTimeout = resolveTimeout.String()
	}
	if *dnsServer != "" {
		cfg.DNSServer = *dnsServer
	}
	if *noSRV {
		cfg.LookupSRV = false
	}
	cfg = cfg.Normalize()

	if err := appconfig.Validate(cfg); err != nil {
		output.Println(output.Colorize("danger", "invalid configuration:"))
		for _, p := range appconfig.Problems(err) {
			output.Printf("  - %s\n", p)
		}
		return 2
	}

	opts := diagnostics.OptionsFromConfig(cfg)
	dopts := []diagnostics.Option{
		diagnostics.WithResolver(newResolver(cfg.DNSServer, opts.ResolveTimeout)),
		diagnostics.WithConnector(newConnector()),
		diagnostics.WithLogger(logger.Probe),
	}
	if cfg.LookupSRV {
		dopts = append(dopts, diagnostics.WithSRVLookup(newSRVLookup(cfg.DNSServer, opts.ResolveTimeout)))
	}
	if !*asJSON {
		output.Println(renderHeader(cfg))
		dopts = append(dopts, diagnostics.WithObserver(consoleObserver{}))
	}

	logger.Doctor.Debug().
		Str("primary", connstr.Mask(cfg.Primary)).
		Str("fallback", connstr.Mask(cfg.Fallback)).
		Str("dns_server", cfg.DNSServer).
		Dur("resolve_timeout", opts.ResolveTimeout).
		Msg("starting diagnosis")

	report, err := diagnostics.New(opts, dopts...).Run(context.Background())
	if err != nil {
		msg := connstr.Redact(err.Error(), cfg.Primary, cfg.Fallback)
		logger.Doctor.Error().Str("error", msg).Msg("diagnosis failed")
		output.Printf("%s %s\n", output.Colorize("danger", "error:"), msg)
		return 1
	}

	if *asJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			output.Printf("error: %s\n", err)
			return 1
		}
		output.Println(string(data))
		return 0
	}
	output.Println(renderSummary(report))
	return 0
}

// consoleObserver prints each probe as it starts and settles.
type consoleObserver struct{}

func (consoleObserver) ProbeStarted(name, target string) {
	label := probeLabel(name)
	if target == "" {
		output.Printf("%s %s\n", output.Colorize("dim", "->"), label)
		return
	}
	output.Printf("%s %s %s\n", output.Colorize("dim", "->"), label, output.Colorize("dim", target))
}

func (consoleObserver) ProbeFinished(result diagnostics.ProbeResult) {
	output.Printf("%s", renderProbe(result))
}

func probeLabel(name string) string {
	switch name {
	case diagnostics.ProbeResolve:
		return "Resolving primary host"
	case diagnostics.ProbeFallback:
		return "Connecting with fallback string"
	default:
		return name
	}
}

func renderHeader(cfg appconfig.Config) string {
	b := &strings.Builder{}
	fmt.Fprintln(b, output.Colorize("title", "MongoDB connectivity diagnosis"))
	fmt.Fprintln(b, output.Colorize("dim", "=============================="))

	primary := connstr.Classify(cfg.PrimaryOrPlaceholder())
	fmt.Fprintf(b, "%s %s\n", output.Colorize("dim", "Primary: "), primary.Masked)
	if cfg.UsesPlaceholder() {
		fmt.Fprintf(b, "          %s\n", output.Colorize("warning", "MONGODB_URI is not set; probing a placeholder host"))
	}
	fmt.Fprintf(b, "%s %s\n", output.Colorize("dim", "Format:  "), primary.Format.Label())
	fmt.Fprintf(b, "          %s\n", primary.Guidance)

	if cfg.Fallback == "" {
		fmt.Fprintf(b, "%s %s\n", output.Colorize("dim", "Fallback:"), output.Colorize("dim", "(not configured)"))
	} else {
		fb := connstr.Classify(cfg.Fallback)
		fmt.Fprintf(b, "%s %s (%s)\n", output.Colorize("dim", "Fallback:"), fb.Masked, fb.Format.Label())
	}
	return b.String()
}

func renderProbe(p diagnostics.ProbeResult) string {
	b := &strings.Builder{}
	fmt.Fprintf(b, "%s %s", colorStatus(p.Status), p.Label)
	if p.Target != "" {
		fmt.Fprintf(b, " %s", p.Target)
	}
	if !p.Skipped() {
		fmt.Fprintf(b, " %s", output.Colorize("dim", fmt.Sprintf("(%dms)", p.ElapsedMS)))
	}
	fmt.Fprintln(b)

	switch {
	case p.Passed():
		if len(p.Addresses) > 0 {
			fmt.Fprintf(b, "  %s %s\n", output.Colorize("dim", "addresses:"), strings.Join(p.Addresses, ", "))
		}
		if p.Database != "" {
			fmt.Fprintf(b, "  %s %s\n", output.Colorize("dim", "database:"), p.Database)
		}
		if p.Host != "" {
			fmt.Fprintf(b, "  %s %s\n", output.Colorize("dim", "host:"), p.Host)
		}
		if p.ReplicaSet != "" {
			fmt.Fprintf(b, "  %s %s\n", output.Colorize("dim", "replica set:"), p.ReplicaSet)
		}
	case p.Failed():
		if p.ErrorKind != diagnostics.ErrorKindNone {
			fmt.Fprintf(b, "  %s %s %s\n", output.Colorize("danger", "error:"), p.Detail, output.Colorize("dim", "["+string(p.ErrorKind)+"]"))
		} else {
			fmt.Fprintf(b, "  %s %s\n", output.Colorize("danger", "error:"), p.Detail)
		}
	default:
		fmt.Fprintf(b, "  %s\n", output.Colorize("dim", p.Detail))
	}
	if len(p.SRVTargets) > 0 {
		fmt.Fprintf(b, "  %s %s\n", output.Colorize("dim", "srv targets:"), strings.Join(p.SRVTargets, ", "))
	}
	for _, note := range p.Notes {
		fmt.Fprintf(b, "  %s %s\n", output.Colorize("dim", "note:"), note)
	}
	return b.String()
}

func renderSummary(report diagnostics.Report) string {
	b := &strings.Builder{}
	fmt.Fprintln(b)
	fmt.Fprintf(b, "%s %s\n", output.Colorize("title", "Verdict:"), colorVerdict(report.Verdict))
	fmt.Fprintln(b, output.Colorize("title", "Recommendation:"))
	for _, line := range strings.Split(report.Recommendation, "\n") {
		fmt.Fprintf(b, "  %s\n", line)
	}
	fmt.Fprintf(b, "%s\n", output.Colorize("dim", "run "+report.RunID))
	return b.String()
}

func colorStatus(s diagnostics.Status) string {
	switch s {
	case diagnostics.StatusPass:
		return output.Colorize("success", "[PASS]")
	case diagnostics.StatusFail:
		return output.Colorize("danger", "[FAIL]")
	case diagnostics.StatusSkipped:
		return output.Colorize("warning", "[SKIP]")
	default:
		return "[" + strings.ToUpper(string(s)) + "]"
	}
}

func colorVerdict(s diagnostics.Status) string {
	if s == diagnostics.StatusPass {
		return output.Colorize("success", "reachable")
	}
	return output.Colorize("danger", "unreachable")
}
