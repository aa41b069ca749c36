package main

import (
	"log"

	"github.com/docsage/docsage-api/internal/config"
	"github.com/docsage/docsage-api/internal/infrastructure/server"
	"github.com/joho/godotenv"
)

func main() {
	log.Println("Starting DocSage API Orchestrator...")

	// Load .env when present; environment variables win either way.
	if err := godotenv.Load(); err != nil {
		log.Println("[Config] No .env file found, relying on environment")
	}

	cfg := config.Load()

	srv := server.New(cfg)
	if err := srv.Run(); err != nil {
		log.Fatalf("Server exited with error: %v", err)
	}
}
