package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"towertracker/config"
	"towertracker/detection"
	"towertracker/overlay"
	"towertracker/pipeline"
	"towertracker/publish"
	"towertracker/stream"

	"github.com/spf13/cobra"
)

// Version is the application version.
const Version = "1.0.0"

var (
	configPath   string
	debugMode    bool
	debugVerbose bool
	logFile      string

	// cfg is the loaded configuration shared by subcommands
	cfg *config.Config
	// logger is the unified debug logger shared by subcommands
	logger *DebugLogger
)

var rootCmd = &cobra.Command{
	Use:     "towertracker",
	Short:   "Vision targeting for the retro-reflective goal",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = NewDebugLogger(debugMode, debugVerbose, os.Stderr, logFile)
		if err != nil {
			return err
		}
		wireDebugFunctions(logger)

		if configPath != "" {
			cfg, err = config.Load(configPath)
			if err != nil {
				return err
			}
			logger.logMsg("CONFIG", fmt.Sprintf("Loaded %s", configPath))
		} else {
			cfg = config.Default()
		}
		return nil
	},
	// errors are reported through the logger so they also reach --log-file
	SilenceErrors: true,
}

// wireDebugFunctions connects every package to the unified logger
func wireDebugFunctions(dl *DebugLogger) {
	detection.SetDebugFunction(dl.debugMsg)
	overlay.SetDebugFunction(dl.logMsg)
	pipeline.SetDebugFunction(dl.debugMsg)
	pipeline.SetDebugVerboseFunction(dl.debugMsgVerbose)
	publish.SetDebugFunction(dl.logMsg)
	stream.SetDebugFunction(dl.logMsg)
}

// Execute runs the root command until it finishes or the process is interrupted
func Execute() {
	// Create a context that listens for Ctrl+C (SIGINT) or Kill (SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := executeContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// executeContext runs the root command, reports its error and flushes the
// logger on every path.
func executeContext(ctx context.Context) error {
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	err := rootCmd.ExecuteContext(ctx)
	if logger == nil {
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return err
	}

	if err != nil {
		logger.logMsg("SYSTEM", fmt.Sprintf("Error: %v", err))
	}
	if closeErr := logger.Close(); closeErr != nil {
		fmt.Fprintf(os.Stderr, "Error closing log file: %v\n", closeErr)
	}
	logger = nil
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "JSON configuration file (defaults are used for omitted fields)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable per-frame debug logging")
	rootCmd.PersistentFlags().BoolVar(&debugVerbose, "debug-verbose", false, "Enable verbose debug logging (every candidate verdict and state change)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also append log messages to this file")
}
