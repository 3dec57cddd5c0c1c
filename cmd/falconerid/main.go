package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/faradayio/falconeri/pkg/bootstrap"
	"github.com/faradayio/falconeri/pkg/logger/log"
)

func main() {
	configPath := flag.String("config", "", "path to falconerid config YAML")
	flag.Parse()

	log.Info("starting falconerid...")

	server, err := bootstrap.NewServer(*configPath)
	if err != nil {
		log.Fatalf("failed to build server: %v", err)
	}

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down falconerid...")
	if err := server.Stop(); err != nil {
		log.Errorf("error during shutdown: %v", err)
	}
	log.Info("falconerid stopped")
}
