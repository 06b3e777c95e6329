// Package cli implements the cobra-based CLI commands for inslaunch.
//
// Each subcommand (variants, args, plan, params, up, ps, start, stop, down)
// is defined in its own file within this package. This file defines the
// root command that owns the global flags, loads the settings file, and
// builds the logger before any subcommand runs.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/inslaunch/inslaunch/internal/config"
	"github.com/inslaunch/inslaunch/internal/logging"
	"github.com/inslaunch/inslaunch/internal/model"
)

// Global flag variables shared across all subcommands.
var (
	// jsonOutput switches command output and errors to JSON.
	jsonOutput bool

	// verbose forces debug-level logging on stderr.
	verbose bool

	// configPath is the settings file. Empty means the default location,
	// which is allowed to be missing.
	configPath string
)

// State built by the root command's PersistentPreRunE.
var (
	settings  = config.Default()
	logger    = zerolog.Nop()
	logCloser io.Closer
)

// Version, Commit, and Date are injected from the main package.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// NewRootCommand creates the root cobra command with every subcommand
// registered.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "inslaunch",
		Short: "Compose and launch the CV7-INS + u-blox F9P ROS 2 sensor stack",
		Long: `inslaunch resolves the launch arguments of the CV7-INS / u-blox F9P sensor
stack against your overrides and produces the ordered list of ROS 2 nodes to
start: the inertial driver, the GNSS driver, the robot state publisher, and
optionally an NTRIP client and RViz.

The plan can be printed (YAML, JSON, text, or ros2 run command lines) or
started on Docker, one container per node.`,

		SilenceUsage:  true,
		SilenceErrors: true,

		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup()
		},
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Settings file (default: $XDG_CONFIG_HOME/inslaunch/config.toml)")

	rootCmd.AddCommand(NewVariantsCommand())
	rootCmd.AddCommand(NewArgsCommand())
	rootCmd.AddCommand(NewPlanCommand())
	rootCmd.AddCommand(NewParamsCommand())
	rootCmd.AddCommand(NewUpCommand())
	rootCmd.AddCommand(NewPsCommand())
	rootCmd.AddCommand(NewStartCommand())
	rootCmd.AddCommand(NewStopCommand())
	rootCmd.AddCommand(NewDownCommand())

	return rootCmd
}

// setup loads settings and builds the logger. Precedence for the log level:
// --verbose, then INSLAUNCH_LOG_LEVEL, then the settings file.
func setup() error {
	path, explicit := configPath, configPath != ""
	if !explicit {
		path = config.DefaultPath(nil)
	}

	cfg, err := config.Load(path, explicit)
	if err != nil {
		return model.WrapCLIError(model.ExitInvalidArgument, "failed to load settings", err)
	}
	settings = cfg

	logCfg := cfg.Log
	logging.ApplyEnv(&logCfg, nil)
	if verbose {
		logCfg.Level = "debug"
	}

	l, closer, err := logging.New(logCfg, os.Stderr)
	if err != nil {
		return model.WrapCLIError(model.ExitInvalidArgument, "invalid log settings", err)
	}
	logger = l
	logCloser = closer

	logger.Debug().Str("config", path).Bool("explicit", explicit).Msg("settings loaded")
	return nil
}

// Execute runs the root command and exits with the code carried by a
// CLIError, or 1 for any other error.
func Execute(rootCmd *cobra.Command) {
	err := rootCmd.Execute()
	if logCloser != nil {
		_ = logCloser.Close()
	}
	if err == nil {
		return
	}

	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		printError(cliErr.Message, cliErr.Err)
		os.Exit(int(cliErr.Code))
	}

	printError(err.Error(), nil)
	os.Exit(int(model.ExitGeneralError))
}

// printError writes an error to stderr as text or, with --json, as
//
//	{"error": {"message": "...", "detail": "..."}}
func printError(message string, underlying error) {
	if jsonOutput {
		errObj := map[string]interface{}{
			"error": map[string]interface{}{
				"message": message,
			},
		}
		if underlying != nil {
			if errMap, ok := errObj["error"].(map[string]interface{}); ok {
				errMap["detail"] = underlying.Error()
			}
		}
		data, _ := json.MarshalIndent(errObj, "", "  ")
		fmt.Fprintln(os.Stderr, string(data))
		return
	}

	if underlying != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", message, underlying)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", message)
	}
}

// VerboseLog emits a debug-level log line. It is shown with --verbose or
// when the configured level is debug.
func VerboseLog(format string, args ...interface{}) {
	logger.Debug().Msgf(format, args...)
}

// IsJSONOutput returns whether the --json flag is set.
func IsJSONOutput() bool {
	return jsonOutput
}

// writeJSON writes v as indented JSON.
func writeJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
