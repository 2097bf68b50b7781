package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/docverify/docverify-backend/pkg/logger"
)

func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "docverify",
		Short: "Verify identity documents and bills offline",
		Long: `docverify runs the document verification pipeline from the command line.

Available commands:
  verify   - Run the full pipeline over an image
  score    - Score an image for signs of AI generation
  validate - Check already extracted fields against the rules for a type
  types    - List supported document types

Examples:
  docverify verify pan.jpg --type pan --report
  docverify score selfie.png
  docverify validate --type pan name="Priya Verma" pan_number=ABCDE1234F father_name="Suresh Verma"`,
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log pipeline progress to stderr")

	root.AddCommand(
		newVerifyCmd(&verbose),
		newScoreCmd(&verbose),
		newValidateCmd(),
		newTypesCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// cliLogger writes human readable logs to stderr when verbose is set
func cliLogger(cmd *cobra.Command, verbose bool) *logger.Logger {
	if !verbose {
		return logger.Nop()
	}
	return logger.NewWithWriter("docverify", zerolog.ConsoleWriter{
		Out:        cmd.ErrOrStderr(),
		TimeFormat: time.RFC3339,
	})
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
