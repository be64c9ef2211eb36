package fx

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/amityadav/clipping/internal/config"
	"github.com/amityadav/clipping/internal/core"
	"github.com/amityadav/clipping/internal/middleware"
	"github.com/amityadav/clipping/internal/scheduler"
	"github.com/amityadav/clipping/internal/server"
	"github.com/amityadav/clipping/internal/token"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"
)

// ServerModule provides gRPC and HTTP servers
var ServerModule = fx.Module("server",
	fx.Provide(
		NewServices,
		NewGRPCServer,
	),
	fx.Invoke(
		RegisterGRPCServices,
		StartServers,
	),
)

// SchedulerModule runs ingestion on INGEST_SCHEDULE
var SchedulerModule = fx.Module("scheduler",
	fx.Provide(NewScheduler),
	fx.Invoke(StartScheduler),
)

func NewServices(ingest *core.IngestCore, fix *core.FixCore, cfg config.Config) server.Services {
	return server.Services{Ingest: ingest, Fix: fix, RunTimeout: cfg.RunTimeout}
}

// NewGRPCServer creates configured gRPC server with auth interceptor
func NewGRPCServer(tm *token.Manager, log *zap.Logger) *grpc.Server {
	authInterceptor := middleware.NewAuthInterceptor(tm)
	srv := grpc.NewServer(
		grpc.UnaryInterceptor(authInterceptor.Unary()),
	)
	reflection.Register(srv)
	log.Debug("gRPC server created")
	return srv
}

// RegisterGRPCServices registers all gRPC services with the server
func RegisterGRPCServices(srv *grpc.Server, services server.Services) {
	server.RegisterIngestService(srv, server.NewIngestServer(services))
}

// ServerParams groups dependencies for starting servers
type ServerParams struct {
	fx.In
	Lifecycle  fx.Lifecycle
	GRPCServer *grpc.Server
	Services   server.Services
	Config     config.Config
	Log        *zap.Logger
}

// StartServers starts gRPC and HTTP servers with lifecycle management
func StartServers(p ServerParams) {
	log := p.Log.Named("server")
	wrappedServer := server.CreateGRPCWebWrapper(p.GRPCServer)
	httpHandler := server.CreateHTTPHandler(wrappedServer)
	restHandler := server.CreateRESTHandler(p.Services, p.Config.TriggerAPIKey, p.Log)
	combinedHandler := server.CreateCombinedHandler(httpHandler, restHandler)
	httpServer := &http.Server{
		Addr:              p.Config.HTTPAddr,
		Handler:           server.CreateRecoveryHandler(combinedHandler, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			lis, err := net.Listen("tcp", p.Config.GRPCAddr)
			if err != nil {
				return err
			}
			go func() {
				log.Info("gRPC server listening", zap.String("addr", p.Config.GRPCAddr))
				if err := p.GRPCServer.Serve(lis); err != nil {
					log.Error("gRPC server error", zap.Error(err))
				}
			}()

			go func() {
				log.Info("HTTP server (gRPC-Web + REST) listening", zap.String("addr", p.Config.HTTPAddr))
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("HTTP server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("shutting down servers")
			err := httpServer.Shutdown(ctx)
			p.GRPCServer.GracefulStop()
			return err
		},
	})
}

func NewScheduler(ingest *core.IngestCore, cfg config.Config, log *zap.Logger) *scheduler.Worker {
	return scheduler.NewWorker(ingest, cfg.IngestSchedule, cfg.Location(), cfg.RunTimeout, log)
}

// StartScheduler starts the cron worker unless INGEST_SCHEDULE is "off"
func StartScheduler(lc fx.Lifecycle, w *scheduler.Worker, cfg config.Config, log *zap.Logger) {
	if cfg.IngestSchedule == "" || cfg.IngestSchedule == "off" {
		log.Info("scheduler disabled")
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return w.Start()
		},
		OnStop: func(ctx context.Context) error {
			w.Stop(ctx)
			return nil
		},
	})
}
