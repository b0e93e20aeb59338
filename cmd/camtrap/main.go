package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/camtrapnz/camtrap/internal/config"
	"github.com/camtrapnz/camtrap/internal/logger"
	"github.com/camtrapnz/camtrap/internal/pipeline"
)

// Exit codes
const (
	exitOK    = 0
	exitError = 1
	exitInput = 2
)

// app carries state shared between the root command and its subcommands.
type app struct {
	configPath string
	logLevel   string
	cfg        *config.Config
}

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the CLI with args and returns the process exit code.
func execute(args []string, stdout, stderr io.Writer) int {
	root := rootCommand(&app{})
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	logger.Sync()
	if err == nil {
		return exitOK
	}

	fmt.Fprintf(stderr, "Error: %v\n", err)
	if pipeline.IsInputError(err) {
		return exitInput
	}
	return exitError
}

// rootCommand creates the camtrap command tree.
func rootCommand(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "camtrap",
		Short:         "Camera trap survey analysis",
		Long:          "Summarise camera deployments, filter independent detections, estimate trap rates and build detection histories from camera trap image tables.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	setupFlags(rootCmd, a)

	rootCmd.AddCommand(
		analyzeCommand(a),
		speciesCommand(a),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return a.initialize(cmd)
	}

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface.
func setupFlags(rootCmd *cobra.Command, a *app) {
	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Path to configuration file (defaults and CAMTRAP_* environment variables when empty)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Override logging.level: debug, info, warn, error")
}

// initialize loads configuration and sets up logging before any subcommand runs.
func (a *app) initialize(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level = a.logLevel
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	if a.configPath != "" {
		logger.Debug("Configuration loaded from %s", a.configPath)
	}
	a.cfg = cfg
	return nil
}
