package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:   "oaibatch",
	Short: "Submit and track OpenAI Batch API jobs",
	Long: `oaibatch submits prompts as asynchronous batch jobs, tracks them in a
local store, and downloads results once they complete.

Examples:
  oaibatch create "Summarize the attached design doc"
  oaibatch create --file ./notes.pdf --effort high
  oaibatch list
  oaibatch read req-1a2b3c4d`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.AddCommand(createCmd, listCmd, readCmd, deleteCmd, configCmd, serveCmd)

	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}
