// Command rvdasd is the research-vessel data acquisition and logging
// daemon: it loads a cruise definition into the control store, runs the
// pipeline the active mode calls for, and serves the record-store and
// metrics HTTP surfaces until told to stop.
package main

import (
	"flag"
	"fmt"
	"os"

	"rvdas-go/internal/app"
)

func main() {
	var configFile string
	flag.StringVar(&configFile, "config", "", "Path to configuration file")
	flag.Parse()

	if configFile == "" {
		if envConfigFile := os.Getenv("RVDAS_CONFIG_FILE"); envConfigFile != "" {
			configFile = envConfigFile
		} else {
			configFile = "/etc/rvdas/config.yaml"
		}
	}

	application, err := app.New(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rvdasd: failed to initialize: %v\n", err)
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "rvdasd: %v\n", err)
		os.Exit(1)
	}
}
