package cmd

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mitebill",
	Short: "mitebill – invoice mite time entries via Alphaflow",
	Long: `mitebill reads unlocked time entries from a mite account, aggregates
them into one invoice per run, submits the invoice to the Alphaflow
invoicing platform and locks the billed entries so they cannot be
billed twice.`,
}

// Execute is the entry point called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(versionCmd)
}

// newLogger builds the run logger. Every run carries a fresh run_id so
// that log lines of concurrent or scripted invocations stay separable.
func newLogger(level string, verbose bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	if verbose {
		lvl = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(lvl).
		With().
		Timestamp().
		Str("run_id", uuid.NewString()).
		Logger()
}
