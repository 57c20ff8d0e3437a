package main

// Local stand-in for the analysis service. Serves the same endpoints and
// progress stream, with scripted stage updates:
//   go run ./cmd/devserver

import (
	"log"
	"time"

	"psycho-client/internal/devserver"
	"psycho-client/internal/shared/config"
)

func main() {
	cfg := config.Load()

	srv := devserver.NewServer(devserver.Options{
		CORSAllowOrigin: cfg.CORSAllowOrigin,
		DevEndpoints:    cfg.DevEndpoints,
		StepDelay:       500 * time.Millisecond,
	})

	addr := devserver.Addr(cfg.Port)
	log.Printf("Starting analysis simulator on %s", addr)

	if err := srv.Router().Run(addr); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
