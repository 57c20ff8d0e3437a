package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"psycho-client/internal/history"
	"psycho-client/internal/shared/config"
	"psycho-client/internal/shared/storage/db"
)

var historyLimit int

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of records to show")
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past submission attempts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		ctx := context.Background()

		repo, closeRepo, err := openHistory(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeRepo()

		records, err := repo.List(ctx, historyLimit)
		if err != nil {
			return fmt.Errorf("list history: %w", err)
		}
		if len(records) == 0 {
			fmt.Println("No submissions recorded.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATE\tSHEETS\tSCORES\tITEMS\tSUBMITTED")
		for _, rec := range records {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
				rec.ID,
				rec.State,
				rec.SheetCount,
				rec.ScoresFile,
				rec.ItemsFile,
				rec.SubmittedAt.Format("2006-01-02 15:04:05"),
			)
		}
		return w.Flush()
	},
}

// openHistory picks the history backend: Postgres when DATABASE_URL is
// configured, otherwise an in-process store that lives for this run only.
func openHistory(ctx context.Context, cfg config.Config) (history.Repo, func(), error) {
	if cfg.DatabaseURL == "" {
		return history.NewMemoryRepo(), func() {}, nil
	}
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultOptions()))
	if err != nil {
		return nil, nil, fmt.Errorf("connect history database: %w", err)
	}
	return &history.PGRepo{DB: sqlDB}, func() { sqlDB.Close() }, nil
}
