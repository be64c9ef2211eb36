// Command runonce performs a single ingestion or correction pass and prints
// the result as JSON. It shares the server's configuration and wiring.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/amityadav/clipping/internal/config"
	"github.com/amityadav/clipping/internal/core"
	appfx "github.com/amityadav/clipping/internal/fx"
	"github.com/amityadav/clipping/internal/server"
	"github.com/amityadav/clipping/internal/settings"
	"github.com/amityadav/clipping/internal/token"
	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

type cli struct {
	seed        bool
	fixAll      bool
	fixTenant   string
	lockStatus  bool
	releaseLock bool
	tokenSub    string
}

func main() {
	var c cli
	flag.BoolVar(&c.seed, "seed", false, "write default global settings if missing, then exit")
	flag.BoolVar(&c.fixAll, "fix-all", false, "run the source/author correction over every tenant")
	flag.StringVar(&c.fixTenant, "fix-tenant", "", "run the correction for one tenant id")
	flag.BoolVar(&c.lockStatus, "lock-status", false, "print the correction lock state")
	flag.BoolVar(&c.releaseLock, "release-lock", false, "force-release the correction lock (only when no job is running)")
	flag.StringVar(&c.tokenSub, "token", "", "print a signed operator JWT for this subject")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	if c.tokenSub != "" {
		cfg, err := config.Load()
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		tok, err := token.NewManager(cfg.JWTSecret).Generate(c.tokenSub)
		if err != nil {
			log.Fatalf("token: %v", err)
		}
		fmt.Println(tok)
		return
	}

	var (
		cfg    config.Config
		ingest *core.IngestCore
		fix    *core.FixCore
		svc    *settings.Service
	)
	app := fx.New(
		appfx.BaseModules,
		fx.Populate(&cfg, &ingest, &fix, &svc),
		fx.NopLogger,
	)
	if err := app.Err(); err != nil {
		log.Fatalf("wiring: %v", err)
	}

	startCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		log.Fatalf("start: %v", err)
	}

	code := run(c, cfg, ingest, fix, svc)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil {
		log.Printf("stop: %v", err)
	}
	os.Exit(code)
}

type ingester interface {
	Run(ctx context.Context) (*core.RunReport, error)
}

type fixer interface {
	FixAll(ctx context.Context) (*core.FixAllReport, error)
	FixOne(ctx context.Context, tenantID string) (*core.FixTenantReport, error)
	LockStatus(ctx context.Context) (*core.LockStatus, error)
	ReleaseLock(ctx context.Context) error
}

type seeder interface {
	Seed(ctx context.Context) (bool, error)
}

func run(c cli, cfg config.Config, ingest *core.IngestCore, fix *core.FixCore, svc *settings.Service) int {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.RunTimeout)
	defer cancel()

	out, err := execute(ctx, c, ingest, fix, svc)
	if out != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(out)
	}
	if err != nil {
		log.Printf("error: %v", err)
		return 1
	}
	return 0
}

// execute performs the selected operation. out is nil whenever there is
// nothing to print, never a nil pointer wrapped in an interface.
func execute(ctx context.Context, c cli, ingest ingester, fix fixer, svc seeder) (interface{}, error) {
	switch {
	case c.seed:
		seeded, err := svc.Seed(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]bool{"seeded": seeded}, nil
	case c.lockStatus:
		status, err := fix.LockStatus(ctx)
		if err != nil {
			return nil, err
		}
		return status, nil
	case c.releaseLock:
		if err := fix.ReleaseLock(ctx); err != nil {
			return nil, err
		}
		return map[string]string{"message": server.LockReleasedMessage}, nil
	case c.fixAll:
		report, err := fix.FixAll(ctx)
		if err != nil {
			return nil, err
		}
		return report, nil
	case c.fixTenant != "":
		report, err := fix.FixOne(ctx, c.fixTenant)
		if err != nil {
			return nil, err
		}
		return report, nil
	default:
		// A failed run still carries a report worth printing.
		report, err := ingest.Run(ctx)
		if report == nil {
			return nil, err
		}
		return report, err
	}
}
