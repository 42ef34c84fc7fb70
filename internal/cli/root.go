package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

// Set at build time via -ldflags
var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

// Exit codes
const (
	ExitSuccess      = 0
	ExitFailed       = 1 // the service rejected or could not process the text
	ExitUsageError   = 2
	ExitRuntimeError = 3
)

var flagConfig string

var rootCmd = &cobra.Command{
	Use:          "redactor",
	Short:        "Anonymize text through a remote anonymization service",
	Long:         "Redactor sends text and a set of redaction options to an anonymization service and returns the anonymized text. It runs one-shot from the command line, over a dataset, or as a workspace server with a web form.",
	SilenceUsage: true,
}

// exitCode is set by command handlers to control the process exit code.
var exitCode = ExitSuccess

// Run executes the root command and returns an exit code.
func Run(args []string) int {
	exitCode = ExitSuccess
	rootCmd.SetArgs(args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		// Cobra already prints the error
		var usage usageError
		if errors.As(err, &usage) || strings.HasPrefix(err.Error(), "unknown command") {
			return ExitUsageError
		}
		return ExitRuntimeError
	}
	return exitCode
}

// usageError marks bad invocations: flags, arguments or input
type usageError struct{ error }

func (e usageError) Unwrap() error { return e.error }

func usageErrorf(format string, args ...any) error {
	return usageError{fmt.Errorf(format, args...)}
}

// usageArgs marks positional argument errors as usage errors
func usageArgs(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print redactor version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "redactor %s (commit: %s, built: %s)\n", version, commit, date)
	},
}

func init() {
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "Path to configuration file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(anonymizeCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(versionCmd)
}
