package main

import (
	"flag"
	"fmt"
	"os"
	"time"
)

// CLIConfig holds command-line configuration.
type CLIConfig struct {
	ConfigPath      string
	LogLevel        string
	LogFormat       string
	NATSURL         string
	HTTPAddr        string
	ShutdownTimeout time.Duration
	ShowVersion     bool
	ShowHelp        bool
	Validate        bool
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	flag.StringVar(&cfg.ConfigPath, "config",
		getEnv("CRMSTORE_CONFIG", ""),
		"Path to configuration file, empty for defaults (env: CRMSTORE_CONFIG)")

	flag.StringVar(&cfg.LogLevel, "log-level",
		getEnv("CRMSTORE_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: CRMSTORE_LOG_LEVEL)")

	flag.StringVar(&cfg.LogFormat, "log-format",
		getEnv("CRMSTORE_LOG_FORMAT", "json"),
		"Log format: json, text (env: CRMSTORE_LOG_FORMAT)")

	flag.StringVar(&cfg.NATSURL, "nats-url",
		getEnv("CRMSTORE_NATS_URL", ""),
		"NATS server URL, overrides the config file (env: CRMSTORE_NATS_URL)")

	flag.StringVar(&cfg.HTTPAddr, "http-addr",
		getEnv("CRMSTORE_HTTP_ADDR", ""),
		"Health/metrics listen address, overrides the config file (env: CRMSTORE_HTTP_ADDR)")

	flag.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("CRMSTORE_SHUTDOWN_TIMEOUT", 30*time.Second),
		"Graceful shutdown timeout (env: CRMSTORE_SHUTDOWN_TIMEOUT)")

	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	flag.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")

	flag.Usage = printDetailedHelp
	flag.Parse()

	return cfg
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	if cfg.ConfigPath != "" {
		if _, err := os.Stat(cfg.ConfigPath); err != nil {
			return fmt.Errorf("config file not found: %s", cfg.ConfigPath)
		}
	}
	if !contains([]string{"debug", "info", "warn", "error"}, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}
	if !contains([]string{"json", "text"}, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}
	return nil
}

func printDetailedHelp() {
	_, _ = fmt.Fprintf(os.Stderr, `%s - CRM data layer over NATS JetStream KV

Usage: %s [options]

Options:
`, appName, os.Args[0])
	flag.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Examples:
  # Run with custom config
  %s --config=/etc/crmstore/config.json

  # Point at a different NATS server with text logs
  %s --nats-url=nats://10.0.0.5:4222 --log-format=text

  # Validate configuration only
  %s --config=/etc/crmstore/config.json --validate

Version: %s
`, os.Args[0], os.Args[0], os.Args[0], Version)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
