package cli

import (
	"fmt"
	"runtime/debug"
	"strings"

	"mongodoctor/internal/appconfig"
	"mongodoctor/internal/commands"
	"mongodoctor/internal/connstr"
	"mongodoctor/internal/logger"
	"mongodoctor/internal/output"
	"mongodoctor/internal/version"
)

// replaced in tests
var (
	runDoctor  = commands.Doctor
	initLogger = logger.Init
)

func Run(args []string) (code int) {
	var loaded commands.Loaded
	defer func() {
		if r := recover(); r != nil {
			msg := connstr.Redact(fmt.Sprint(r), loaded.Config.Primary, loaded.Config.Fallback)
			logger.CLI.Error().Str("panic", msg).Str("stack", connstr.Redact(string(debug.Stack()))).Msg("unexpected failure")
			output.Printf("error: unexpected failure: %s\n", msg)
			code = 1
		}
	}()

	// a broken file is reported by the command that needs it
	loaded = commands.LoadConfig(appconfig.ConfigPath())
	initLogger(loaded.Config.Log)
	output.SetDebug(loaded.Config.IsDebug())
	output.Debugf("config path: %q mode=%s\n", loaded.Path, loaded.Config.Log.Mode)

	if len(args) < 2 {
		return runDoctor(loaded, nil)
	}

	logger.CLI.Debug().Strs("args", args[1:2]).Msg("dispatch")
	switch args[1] {
	case "-h", "--help", "help":
		output.Println(usage())
		return 0
	case "-v", "--version", "version":
		output.Printf("mongodoctor %s (%s)\n", version.Version, version.Build)
		return 0
	case "doctor":
		return runDoctor(loaded, args[2:])
	case "classify":
		return commands.Classify(args[2:])
	case "config":
		return handleConfig(loaded, args[2:])
	default:
		if strings.HasPrefix(args[1], "-") {
			// bare flags belong to doctor
			return runDoctor(loaded, args[1:])
		}
		output.Printf("unknown command: %s\n\n", args[1])
		output.Println(usage())
		return 2
	}
}

func usage() string {
	b := &strings.Builder{}
	fmt.Fprintln(b, "mongodoctor - MongoDB connectivity diagnoser")
	fmt.Fprintln(b, "")
	fmt.Fprintln(b, "Usage:")
	fmt.Fprintln(b, "  mongodoctor [doctor flags]          run the diagnosis")
	fmt.Fprintln(b, "  mongodoctor <command> [flags]")
	fmt.Fprintln(b, "")
	fmt.Fprintln(b, "Commands:")
	fmt.Fprintln(b, "  doctor       resolve the primary host and try the fallback string")
	fmt.Fprintln(b, "  classify     classify connection strings without touching the network")
	fmt.Fprintln(b, "  config show  print the effective configuration")
	fmt.Fprintln(b, "  version      print the version")
	fmt.Fprintln(b, "")
	fmt.Fprintln(b, "Doctor flags:")
	fmt.Fprintln(b, "      --uri S               primary hostname or mongodb+srv:// string")
	fmt.Fprintln(b, "      --fallback S          fallback mongodb:// string")
	fmt.Fprintln(b, "      --config PATH         config file (.json, .yaml, .toml or .env)")
	fmt.Fprintln(b, "      --json                print the report as JSON")
	fmt.Fprintln(b, "      --no-color            disable colored output")
	fmt.Fprintln(b, "      --resolve-timeout D   DNS probe deadline (default 10s)")
	fmt.Fprintln(b, "      --dns-server ADDR     query host:port instead of the system resolver")
	fmt.Fprintln(b, "      --no-srv              skip the SRV record lookup")
	fmt.Fprintln(b, "")
	fmt.Fprintln(b, "Environment:")
	fmt.Fprintln(b, "  MONGODB_URI            primary endpoint")
	fmt.Fprintln(b, "  MONGODB_URI_FALLBACK   address-literal fallback")
	fmt.Fprintln(b, "  MONGODOCTOR_CONFIG     config file path (default ./.env when present)")
	fmt.Fprintln(b, "")
	fmt.Fprintln(b, "Examples:")
	fmt.Fprintln(b, "  mongodoctor                                               # diagnose from env/.env")
	fmt.Fprintln(b, "  mongodoctor doctor --uri mongodb+srv://u:p@c.example.net  # diagnose a given string")
	fmt.Fprintln(b, "  mongodoctor classify --file .env                          # classify the .env strings")
	return b.String()
}

func handleConfig(loaded commands.Loaded, args []string) int {
	if len(args) == 0 {
		output.Println(configUsage())
		return 2
	}
	switch args[0] {
	case "show":
		return commands.ConfigShow(loaded, args[1:])
	default:
		output.Printf("unknown config subcommand: %s\n\n", args[0])
		output.Println(configUsage())
		return 2
	}
}

func configUsage() string {
	return subUsage("config", []string{
		"show  print the effective configuration with masked connection strings",
	})
}

func subUsage(name string, lines []string) string {
	b := &strings.Builder{}
	fmt.Fprintf(b, "Usage:\n  mongodoctor %s <subcommand> [flags]\n\n", name)
	fmt.Fprintln(b, "Subcommands:")
	for _, line := range lines {
		fmt.Fprintf(b, "  %s\n", line)
	}
	return b.String()
}
