package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/amityadav/clipping/internal/core"
	"go.uber.org/zap"
)

// Ingester runs one ingestion pass.
type Ingester interface {
	Run(ctx context.Context) (*core.RunReport, error)
}

// Fixer is the correction job and its lock.
type Fixer interface {
	FixAll(ctx context.Context) (*core.FixAllReport, error)
	FixOne(ctx context.Context, tenantID string) (*core.FixTenantReport, error)
	LockStatus(ctx context.Context) (*core.LockStatus, error)
	ReleaseLock(ctx context.Context) error
}

// Services groups the operations exposed over REST and gRPC
type Services struct {
	Ingest Ingester
	Fix    Fixer
	// RunTimeout bounds a triggered run independently of the caller.
	RunTimeout time.Duration
}

// jobContext detaches a job from the request so a dropped connection does
// not abort a half-written run.
func (s Services) jobContext(parent context.Context) (context.Context, context.CancelFunc) {
	timeout := s.RunTimeout
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return context.WithTimeout(context.WithoutCancel(parent), timeout)
}

// CreateRESTHandler creates REST API endpoints guarded by X-API-Key
func CreateRESTHandler(services Services, apiKey string, log *zap.Logger) http.HandlerFunc {
	log = log.Named("rest")
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if r.URL.Path == "/healthz" {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
			return
		}

		if apiKey == "" {
			writeError(w, http.StatusServiceUnavailable, "TRIGGER_API_KEY not configured on server")
			return
		}
		if r.Header.Get("X-API-Key") != apiKey {
			writeError(w, http.StatusUnauthorized, "unauthorized - invalid or missing X-API-Key header")
			return
		}

		route := r.Method + " " + r.URL.Path
		switch route {
		case "POST /api/ingest/run":
			handleRun(w, r, services, log)
		case "POST /api/fix/all":
			handleFixAll(w, r, services, log)
		case "POST /api/fix/one":
			handleFixOne(w, r, services, log)
		case "GET /api/fix/status":
			handleLockStatus(w, r, services)
		case "POST /api/fix/release":
			handleReleaseLock(w, r, services)
		default:
			http.NotFound(w, r)
		}
	}
}

func handleRun(w http.ResponseWriter, r *http.Request, s Services, log *zap.Logger) {
	ctx, cancel := s.jobContext(r.Context())
	defer cancel()

	report, err := s.Ingest.Run(ctx)
	if err != nil {
		log.Error("triggered run failed", zap.Error(err))
		writeJSON(w, httpStatus(err), map[string]interface{}{"error": err.Error(), "report": report})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func handleFixAll(w http.ResponseWriter, r *http.Request, s Services, log *zap.Logger) {
	ctx, cancel := s.jobContext(r.Context())
	defer cancel()

	report, err := s.Fix.FixAll(ctx)
	if err != nil {
		log.Warn("fix all rejected", zap.Error(err))
		writeError(w, httpStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func handleFixOne(w http.ResponseWriter, r *http.Request, s Services, log *zap.Logger) {
	tenant := r.URL.Query().Get("tenant")
	if tenant == "" {
		writeError(w, http.StatusBadRequest, "tenant query parameter is required")
		return
	}
	ctx, cancel := s.jobContext(r.Context())
	defer cancel()

	report, err := s.Fix.FixOne(ctx, tenant)
	if err != nil {
		log.Warn("fix one rejected", zap.String("tenant", tenant), zap.Error(err))
		writeError(w, httpStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func handleLockStatus(w http.ResponseWriter, r *http.Request, s Services) {
	status, err := s.Fix.LockStatus(r.Context())
	if err != nil {
		writeError(w, httpStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func handleReleaseLock(w http.ResponseWriter, r *http.Request, s Services) {
	if err := s.Fix.ReleaseLock(r.Context()); err != nil {
		writeError(w, httpStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": LockReleasedMessage})
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, core.ErrLockConflict):
		return http.StatusConflict
	case errors.Is(err, core.ErrConfigMissing):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
