package commands

import (
	"flag"
	"fmt"
	"strings"

	"mongodoctor/internal/connstr"
	"mongodoctor/internal/output"

	"github.com/joho/godotenv"
)

var defaultClassifyKeys = []string{"MONGODB_URI", "MONGODB_URI_FALLBACK"}

// keyList collects repeated --key flags.
type keyList []string

func (k *keyList) String() string { return strings.Join(*k, ",") }

func (k *keyList) Set(v string) error {
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*k = append(*k, part)
		}
	}
	return nil
}

func Classify(args []string) int {
	fs := flag.NewFlagSet("classify", flag.ContinueOnError)
	fs.SetOutput(output.Writer())
	file := fs.String("file", "", "read connection strings from a .env-style file")
	var keys keyList
	fs.Var(&keys, "key", "variable to read from --file (repeatable; default MONGODB_URI,MONGODB_URI_FALLBACK)")
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		output.Printf("error: %s\n", err)
		return 2
	}

	type input struct {
		source string
		value  string
	}
	var inputs []input
	for _, arg := range fs.Args() {
		inputs = append(inputs, input{value: arg})
	}

	if *file != "" {
		path := expandPath(*file)
		values, err := godotenv.Read(path)
		if err != nil {
			output.Printf("error: read %s: %s\n", path, err)
			return 1
		}
		if len(keys) == 0 {
			keys = defaultClassifyKeys
		}
		for _, k := range keys {
			v, ok := values[k]
			if !ok {
				output.Printf("%s %s is not set in %s\n", output.Colorize("warning", "[SKIP]"), k, path)
				continue
			}
			inputs = append(inputs, input{source: k, value: v})
		}
	}

	if len(inputs) == 0 {
		output.Println("usage: mongodoctor classify [URI ...] [--file PATH] [--key NAME]")
		return 2
	}

	for i, in := range inputs {
		if i > 0 {
			output.Println("")
		}
		output.Printf("%s", renderClassification(in.source, connstr.Classify(in.value)))
	}
	return 0
}

func renderClassification(source string, c connstr.Classification) string {
	b := &strings.Builder{}
	if source != "" {
		fmt.Fprintf(b, "%s %s\n", output.Colorize("title", source+":"), c.Masked)
	} else {
		fmt.Fprintln(b, output.Colorize("title", c.Masked))
	}
	role := "success"
	switch c.Format {
	case connstr.FormatSRV:
		role = "warning"
	case connstr.FormatUnknown:
		role = "danger"
	}
	fmt.Fprintf(b, "  %s %s\n", output.Colorize("dim", "format:"), output.Colorize(role, c.Format.Label()))
	fmt.Fprintf(b, "  %s %s\n", output.Colorize("dim", "guidance:"), c.Guidance)
	return b.String()
}
