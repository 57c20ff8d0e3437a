package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "psycho",
	Short: "Client for the psychometric analysis service",
	Long: `psycho submits exam score and item spreadsheets to the analysis
service, follows the live progress stream, and renders the returned
analyses into DOCX reports.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
