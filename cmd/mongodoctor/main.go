package main

import (
	"os"

	"mongodoctor/internal/cli"
)

func main() {
	os.Exit(cli.Run(os.Args))
}
