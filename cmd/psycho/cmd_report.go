package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"psycho-client/internal/artifacts"
	"psycho-client/internal/report"
	"psycho-client/internal/result"
	"psycho-client/internal/shared/config"
)

var reportFlags struct {
	combined bool
	template string
	outDir   string
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().BoolVar(&reportFlags.combined, "combined", false, "render one combined document instead of one per sheet")
	reportCmd.Flags().StringVar(&reportFlags.template, "template", "", "report template path (default from REPORT_TEMPLATE)")
	reportCmd.Flags().StringVar(&reportFlags.outDir, "out", "", "output directory for reports (default from REPORT_OUTPUT_DIR)")
}

var reportCmd = &cobra.Command{
	Use:   "report <result.json>",
	Short: "Render reports from a saved analysis result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		if reportFlags.template != "" {
			cfg.TemplatePath = reportFlags.template
		}
		if reportFlags.outDir != "" {
			cfg.OutputDir = reportFlags.outDir
		}

		raw, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read result: %w", err)
		}
		res, err := result.Decode(raw)
		if err != nil {
			return err
		}
		for _, problem := range res.Validate() {
			fmt.Fprintf(os.Stderr, "warning: %v\n", problem)
		}

		template, err := os.ReadFile(cfg.TemplatePath)
		if err != nil {
			return fmt.Errorf("read template: %w", err)
		}

		store := artifacts.NewStore(cfg.OutputDir)
		return composeAndSave(template, res, reportFlags.combined, store)
	},
}

// composeAndSave renders the result into documents and writes them out.
// Per-sheet mode keeps going past failing sheets and reports them at the
// end; combined mode is all or nothing.
func composeAndSave(template []byte, res result.AnalysisResult, combined bool, store *artifacts.Store) error {
	if combined {
		artifact, err := report.ComposeCombined(template, res)
		if err != nil {
			return fmt.Errorf("render report: %w", err)
		}
		path, err := store.Save(artifact)
		if err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", path)
		return nil
	}

	rendered, failures := report.ComposePerSheet(template, res)
	paths, saveErrs := store.SaveAll(rendered)
	for _, path := range paths {
		fmt.Printf("wrote %s\n", path)
	}
	for _, f := range failures {
		fmt.Fprintf(os.Stderr, "failed: %v\n", f)
	}
	for _, err := range saveErrs {
		fmt.Fprintf(os.Stderr, "failed: %v\n", err)
	}
	if len(failures)+len(saveErrs) > 0 {
		return fmt.Errorf("%d of %d reports failed", len(failures)+len(saveErrs), len(res.Sheets))
	}
	return nil
}
