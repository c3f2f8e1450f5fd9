package main

import (
	"log"

	"schedge-backend/internal/config"
	"schedge-backend/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	srv := server.New(cfg)
	if err := srv.Initialize(); err != nil {
		log.Fatalf("failed to initialize server: %v", err)
	}

	if err := srv.Start(); err != nil {
		srv.Echo.Logger.Fatal(err)
	}
}
