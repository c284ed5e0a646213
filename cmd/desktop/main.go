// Package main runs the lifetrack desktop daemon: the local store, the
// background sync and a REST API on localhost.
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/fx"

	"github.com/kimhsiao/lifetrack/backend/internal/config"
)

func main() {
	configPath := flag.String("config", "", "config file (default <data_dir>/config.toml)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fx.New(Module(cfg)).Run()
}

// loadConfig reads path, or the default config file of the default data
// directory when path is empty.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = config.DefaultPath(config.DefaultDataDir())
	}
	return config.Load(path)
}
