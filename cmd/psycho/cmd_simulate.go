package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"psycho-client/internal/progress"
	"psycho-client/internal/session"
	"psycho-client/internal/shared/config"
	"psycho-client/internal/transport"
)

func init() {
	rootCmd.AddCommand(simulateCmd)
}

// simulateCmd drives the service's diagnostic simulate endpoint and tails
// the resulting progress stream. It requires a service with the diagnostic
// endpoints enabled, such as the local devserver.
var simulateCmd = &cobra.Command{
	Use:   "simulate [session-id]",
	Short: "Trigger a simulated analysis and watch its progress",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		baseURL := transport.FromConfig(cfg.ForceHTTPS).Apply(cfg.ServiceURL)

		sessionID := session.NewSessionID()
		if len(args) == 1 {
			sessionID = args[0]
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		ch := progress.NewChannel(baseURL, nil)
		ch.OnUpdate(func(ev progress.Event) {
			fmt.Printf("[%3.0f%%] %s: %s\n", ev.Percent, progress.StageLabel(ev.Stage), ev.Message)
			if ev.Terminal() {
				ch.Close()
			}
		})
		if err := ch.Open(ctx, sessionID); err != nil {
			return fmt.Errorf("open progress stream: %w", err)
		}
		defer ch.Close()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/simulate-analysis/"+sessionID, nil)
		if err != nil {
			return err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return fmt.Errorf("start simulation: %w", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("start simulation: status %s (are diagnostic endpoints enabled?)", resp.Status)
		}

		select {
		case <-ctx.Done():
		case <-ch.Done():
		}
		return nil
	},
}
