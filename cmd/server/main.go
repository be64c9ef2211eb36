package main

import (
	"log"

	appfx "github.com/amityadav/clipping/internal/fx"
	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	app := fx.New(
		appfx.BaseModules,     // config, store, settings, sources, enrichment, notify, cores
		appfx.ServerModule,    // gRPC + HTTP (gRPC-Web + REST)
		appfx.SchedulerModule, // cron-triggered ingestion

		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
	)

	// Run blocks until the app receives a shutdown signal
	app.Run()
}
