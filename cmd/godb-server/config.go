package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// serverConfig holds everything needed to start the engine. It can come
// from a YAML file, command-line flags, or both — flags always win.
type serverConfig struct {
	DataDir     string `yaml:"data_dir"`
	PageSizeKiB int    `yaml:"page_size_kib"`
	LogLevel    string `yaml:"log_level"`
}

func defaultConfig() serverConfig {
	return serverConfig{
		DataDir:     "./data",
		PageSizeKiB: 64,
		LogLevel:    "info",
	}
}

// loadConfig reads path (if non-empty and present) as YAML over the
// defaults, then applies any flags the user passed on top.
func loadConfig(args []string) (serverConfig, error) {
	cfg := defaultConfig()

	fs := flag.NewFlagSet("godb-server", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a pagedb.yaml config file")
	dataDir := fs.String("data-dir", "", "directory holding table files and WAL segments")
	pageSizeKiB := fs.Int("page-size-kib", 0, "slotted page size in KiB (must be a power of two)")
	logLevel := fs.String("log-level", "", "logrus level: debug, info, warn, error")

	if err := fs.Parse(args); err != nil {
		return cfg, fmt.Errorf("godb-server: parse flags: %w", err)
	}

	if *configPath != "" {
		f, err := os.Open(*configPath)
		if err != nil {
			return cfg, fmt.Errorf("godb-server: open config %q: %w", *configPath, err)
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		if err := dec.Decode(&cfg); err != nil {
			return cfg, fmt.Errorf("godb-server: parse config %q: %w", *configPath, err)
		}
	}

	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *pageSizeKiB != 0 {
		cfg.PageSizeKiB = *pageSizeKiB
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	return cfg, nil
}
