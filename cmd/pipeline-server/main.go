package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vidflow/pipeline/internal/config"
	"github.com/vidflow/pipeline/internal/server"
)

const buildVersion = "1.0.0"

func main() {
	port := flag.Int("port", 0, "HTTP listen port (default: 8080, or config/server.port)")
	storageDir := flag.String("storage-dir", "", "base directory for workflow/job/artifact state")
	showVersion := flag.Bool("version", false, "show version")
	flag.Parse()

	if *showVersion {
		fmt.Printf("pipeline-server %s\n", buildVersion)
		return
	}

	cfg := config.LoadOrDefault()

	if *port != 0 {
		cfg.Server.Port = *port
	} else if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}

	if *storageDir != "" {
		cfg.StorageDir = *storageDir
	}

	srv, err := server.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize server: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start(context.Background())
	}()

	select {
	case <-sigChan:
		log.Println("shutting down pipeline-server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Stop(ctx); err != nil {
			log.Printf("error during shutdown: %v", err)
		}
	case err := <-errChan:
		if err != nil {
			log.Fatalf("server error: %v", err)
		}
	}
}
