package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/moolen/gameterm/internal/config"
	"github.com/moolen/gameterm/internal/logging"
)

const Version = "0.1.0"

var (
	logLevelFlags []string // Supports multiple --log-level flags
	logFile       string
	configPath    string
)

var rootCmd = &cobra.Command{
	Use:   "gameterm",
	Short: "gameterm - terminal client for multiplayer games",
	Long: `gameterm is a terminal client for text-driven multiplayer games. It
routes typed lines to game commands, runs multi-step commands such as
registration, completes command names, and paces what it sends.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLog(logLevelFlags)
	},
}

func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

func init() {
	// Supports per-package log levels: --log-level debug --log-level interpreter.session=debug
	rootCmd.PersistentFlags().StringSliceVar(&logLevelFlags, "log-level",
		[]string{"info"},
		"Log level for packages. Use 'default=level' for default, or 'package.name=level' for per-package.\n"+
			"Examples: --log-level debug (all), --log-level transport=debug --log-level interpreter.*=warn")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "",
		"Write logs to this file. In full-screen mode logs are discarded unless this is set")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Path to the client config file (YAML)")

	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(validateCmd)
}

// loadConfig reads --config on top of the defaults.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLog initializes the logging system with parsed log level flags.
// Priority: CLI flags > Environment variables > default
func setupLog(flags []string) error {
	defaultLevel, packageLevels, err := parseLogLevelFlags(flags, os.Environ())
	if err != nil {
		return err
	}
	return logging.Initialize(defaultLevel, packageLevels)
}

// parseLogLevelFlags merges LOG_LEVEL_* environment variables and CLI
// flags, flags winning.
//
// CLI format: ["debug"], ["default=info", "transport=debug"]
// Env vars: LOG_LEVEL_INTERPRETER_SESSION=debug (package name uppercased, dots to underscores)
//
// Returns: (defaultLevel, packageLevels map, error)
func parseLogLevelFlags(flags, environ []string) (string, map[string]string, error) {
	result := make(map[string]string)

	for _, envPair := range environ {
		key, level, ok := strings.Cut(envPair, "=")
		if !ok || !strings.HasPrefix(key, "LOG_LEVEL_") {
			continue
		}
		result[convertEnvKeyToPackageName(key)] = level
	}

	for _, flag := range flags {
		pkg, level, ok := strings.Cut(flag, "=")
		if !ok {
			result["default"] = flag
			continue
		}
		result[pkg] = level
	}

	defaultLevel := "info"
	if level, exists := result["default"]; exists {
		defaultLevel = level
		delete(result, "default")
	}

	if _, err := logging.ParseLevel(defaultLevel); err != nil {
		return "", nil, err
	}
	for pkg, level := range result {
		if _, err := logging.ParseLevel(level); err != nil {
			return "", nil, fmt.Errorf("invalid log level for package %q: %w", pkg, err)
		}
	}

	return defaultLevel, result, nil
}

// convertEnvKeyToPackageName converts LOG_LEVEL_INTERPRETER_SESSION -> interpreter.session
func convertEnvKeyToPackageName(envKey string) string {
	name := strings.TrimPrefix(envKey, "LOG_LEVEL_")
	return strings.ToLower(strings.ReplaceAll(name, "_", "."))
}
