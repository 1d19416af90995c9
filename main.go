package main

import (
	"fmt"
	"os"

	"github.com/ZenleX-Dost/RadiKal-V2.0-sub001/cmd"
	"github.com/ZenleX-Dost/RadiKal-V2.0-sub001/internal/conf"
)

// build information, set at link time
var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	settings.Version = version
	settings.BuildDate = buildDate

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
