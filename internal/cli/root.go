// Package cli provides the command-line interface for fileferry.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fileferry/fileferry/internal/logging"
	"github.com/fileferry/fileferry/internal/version"
)

var (
	// Global flags
	cfgFile  string
	logLevel string
	quiet    bool

	// Global logger
	logger *logging.Logger

	// Global context for signal handling
	rootContext context.Context
	cancelFunc  context.CancelFunc
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fileferry",
		Short: "Copy and move file trees with live progress",
		Long: `fileferry ` + version.String() + `
Copies or moves directory trees with live progress: per-file and
overall byte counts, a smoothed transfer rate, and an ETA. Transfers
can be paused with the keyboard and cancelled with Ctrl+C; a cancelled
file never leaves a partial copy behind.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = logging.NewDefaultCLILogger()
			logging.SetGlobalLevel(logging.ParseLevel(logLevel))
			if quiet {
				logging.SetGlobalLevel(logging.ParseLevel("error"))
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress progress output and non-error logs")

	rootCmd.Version = version.String()

	return rootCmd
}

// Execute runs the CLI.
func Execute() error {
	rootContext, cancelFunc = context.WithCancel(context.Background())

	// First Ctrl+C cancels the running transfer and waits for cleanup;
	// a second one force-quits.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		interrupted := false
		for sig := range sigChan {
			if sig == nil {
				return
			}
			if interrupted {
				fmt.Fprintf(os.Stderr, "\nForced quit.\n")
				os.Exit(130)
			}
			interrupted = true
			fmt.Fprintf(os.Stderr, "\nCancelling transfer... press Ctrl+C again to force quit.\n")
			cancelFunc()
		}
	}()

	rootCmd := NewRootCmd()
	AddCommands(rootCmd)
	err := rootCmd.Execute()

	signal.Stop(sigChan)
	close(sigChan)

	return err
}

// AddCommands adds all subcommands to the root command.
func AddCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newCopyCmd())
	rootCmd.AddCommand(newMoveCmd())
	rootCmd.AddCommand(newPlanCmd())
	rootCmd.AddCommand(newConfigCmd())
}

// GetLogger returns the global CLI logger.
func GetLogger() *logging.Logger {
	if logger == nil {
		logger = logging.NewDefaultCLILogger()
	}
	return logger
}

// GetContext returns the global CLI context with signal handling. It is
// cancelled when the user presses Ctrl+C.
func GetContext() context.Context {
	if rootContext == nil {
		return context.Background()
	}
	return rootContext
}
