package main

import (
	"fmt"
	"os"

	"github.com/KoDakness/404syndicate-sub000/internal/cli"
)

func main() {
	if err := cli.BuildCLI().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
