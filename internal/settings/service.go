package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/amityadav/clipping/internal/store"
	"go.uber.org/zap"
)

// Store defines the interface for settings persistence
type Store interface {
	GetGlobalSettings(ctx context.Context) (*store.GlobalSettings, error)
	SaveGlobalSettings(ctx context.Context, gs *store.GlobalSettings) error
}

// Service seeds and loads the global settings document.
type Service struct {
	store Store
	log   *zap.Logger
}

func NewService(st Store, log *zap.Logger) *Service {
	return &Service{store: st, log: log.Named("settings")}
}

// Seed writes the default document when none exists. An existing document
// is never touched.
func (s *Service) Seed(ctx context.Context) (bool, error) {
	_, err := s.store.GetGlobalSettings(ctx)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return false, fmt.Errorf("failed to read global settings: %w", err)
	}

	defaults := DefaultGlobalSettings()
	if err := s.store.SaveGlobalSettings(ctx, &defaults); err != nil {
		return false, fmt.Errorf("failed to seed global settings: %w", err)
	}
	s.log.Info("seeded default global settings")
	return true, nil
}
