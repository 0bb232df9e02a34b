package main

import (
	"context"
	"log"

	"github.com/carevault/carevault/internal/server"
	"github.com/carevault/carevault/internal/server/config"
)

func main() {
	cfg := config.LoadConfig()
	app, err := server.NewApp(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}
	app.Run(context.Background())
}
