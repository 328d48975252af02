package main

import (
	"log"
	_ "time/tzdata"

	"github.com/ibeloyar/payrelay/internal/app"
	"github.com/ibeloyar/payrelay/internal/config"
	"github.com/ibeloyar/payrelay/pgk/logger"
)

func main() {
	cfg, err := config.Read()
	if err != nil {
		log.Fatal(err)
	}

	lg, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatal(err)
	}
	defer lg.Sync()

	if err := app.Run(cfg, lg); err != nil {
		lg.Fatal(err)
	}
}
