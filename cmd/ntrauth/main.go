package main

import (
	"log"

	"github.com/joho/godotenv"

	"github.com/BulshitMan-BM/ntr-sub000/internal/app"
	"github.com/BulshitMan-BM/ntr-sub000/internal/config"
)

func main() {
	// .env is optional; real env vars win either way
	_ = godotenv.Load()

	cfg, err := config.Load("config/config.yml")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := app.Run(cfg); err != nil {
		log.Fatalf("app: %v", err)
	}
}
