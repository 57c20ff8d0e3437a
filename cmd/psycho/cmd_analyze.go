package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"psycho-client/internal/artifacts"
	"psycho-client/internal/history"
	"psycho-client/internal/progress"
	"psycho-client/internal/session"
	"psycho-client/internal/shared/config"
	"psycho-client/internal/transport"
)

var analyzeFlags struct {
	scores   string
	items    string
	combined bool
	template string
	outDir   string
	quiet    bool
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVar(&analyzeFlags.scores, "scores", "", "path to the scores spreadsheet (required)")
	analyzeCmd.Flags().StringVar(&analyzeFlags.items, "items", "", "path to the items spreadsheet (required)")
	analyzeCmd.Flags().BoolVar(&analyzeFlags.combined, "combined", false, "render one combined document instead of one per sheet")
	analyzeCmd.Flags().StringVar(&analyzeFlags.template, "template", "", "report template path (default from REPORT_TEMPLATE)")
	analyzeCmd.Flags().StringVar(&analyzeFlags.outDir, "out", "", "output directory for reports (default from REPORT_OUTPUT_DIR)")
	analyzeCmd.Flags().BoolVarP(&analyzeFlags.quiet, "quiet", "q", false, "suppress progress output")
	_ = analyzeCmd.MarkFlagRequired("scores")
	_ = analyzeCmd.MarkFlagRequired("items")
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Submit spreadsheets for analysis and render reports",
	Args:  cobra.NoArgs,
	RunE:  runAnalyze,
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if analyzeFlags.template != "" {
		cfg.TemplatePath = analyzeFlags.template
	}
	if analyzeFlags.outDir != "" {
		cfg.OutputDir = analyzeFlags.outDir
	}

	template, err := os.ReadFile(cfg.TemplatePath)
	if err != nil {
		return fmt.Errorf("read template: %w", err)
	}

	scores, err := os.Open(analyzeFlags.scores)
	if err != nil {
		return fmt.Errorf("open scores file: %w", err)
	}
	defer scores.Close()
	items, err := os.Open(analyzeFlags.items)
	if err != nil {
		return fmt.Errorf("open items file: %w", err)
	}
	defer items.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, closeRepo, err := openHistory(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	ctrl := session.NewController(cfg.ServiceURL, transport.FromConfig(cfg.ForceHTTPS), nil)
	h := ctrl.Submit(ctx, session.Inputs{
		ScoresName: filepath.Base(analyzeFlags.scores),
		Scores:     scores,
		ItemsName:  filepath.Base(analyzeFlags.items),
		Items:      items,
	})

	if err := repo.Create(ctx, history.Record{
		ID:          h.ID(),
		ScoresFile:  filepath.Base(analyzeFlags.scores),
		ItemsFile:   filepath.Base(analyzeFlags.items),
		State:       session.Submitting.String(),
		SubmittedAt: time.Now().UTC(),
	}); err != nil {
		fmt.Fprintf(os.Stderr, "warning: record submission: %v\n", err)
	}

	if !analyzeFlags.quiet {
		watchProgress(h)
	}

	select {
	case <-ctx.Done():
		h.Cancel()
		<-h.Done()
	case <-h.Done():
	}

	final := h.Current()
	finishRecord(repo, final)

	if final.State == session.Failed {
		return fmt.Errorf("analysis failed: %s", final.Err)
	}
	for _, w := range final.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}

	store := artifacts.NewStore(cfg.OutputDir)
	return composeAndSave(template, *final.Result, analyzeFlags.combined, store)
}

// watchProgress prints each distinct progress event as it arrives.
// Snapshots can be published from both the stream and the submission
// goroutine, hence the lock.
func watchProgress(h *session.Handle) {
	var mu sync.Mutex
	var last *progress.Event
	h.Subscribe(func(s session.Session) {
		mu.Lock()
		defer mu.Unlock()
		if s.Progress == nil || s.Progress == last {
			return
		}
		last = s.Progress
		fmt.Printf("[%3.0f%%] %s: %s\n", last.Percent, last.Label, last.Message)
	})
}

func finishRecord(repo history.Repo, final session.Session) {
	sheetCount := 0
	if final.Result != nil {
		sheetCount = len(final.Result.Sheets)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := repo.Finish(ctx, final.ID, final.State.String(), final.Err, sheetCount, time.Now().UTC()); err != nil {
		fmt.Fprintf(os.Stderr, "warning: record outcome: %v\n", err)
	}
}
