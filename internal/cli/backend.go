package cli

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/interview-slots/internal/repository"
	"github.com/noah-isme/interview-slots/internal/service"
	"github.com/noah-isme/interview-slots/pkg/cache"
	"github.com/noah-isme/interview-slots/pkg/config"
	"github.com/noah-isme/interview-slots/pkg/database"
	"github.com/noah-isme/interview-slots/pkg/logger"
	"github.com/noah-isme/interview-slots/pkg/sheets"
)

// NewBackend wires slotctl against the configured database, Redis and
// spreadsheet. Redis and the mirror are optional.
func NewBackend(ctx context.Context, opts Options) (*Backend, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.NewCLI(opts.Verbose)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	backend := &Backend{
		Tokens: service.NewTokenService(service.TokenConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer}),
	}
	closers := []func(){func() { _ = log.Sync() }}
	backend.Close = func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	if opts.Offline {
		return backend, nil
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("connect database: %w", err)
	}
	closers = append(closers, func() { _ = db.Close() })

	if cfg.Database.AutoMigrate {
		if err := database.EnsureSchema(ctx, db); err != nil {
			backend.Close()
			return nil, err
		}
	}

	slots := repository.NewTimeSlotRepository(db)

	var notifier service.RevocationNotifier
	if redisClient, err := cache.NewRedis(cfg.Redis); err != nil {
		log.Warn("redis unavailable, revocations will only be logged", zap.Error(err))
		notifier = service.NewLogRevocationNotifier(log)
	} else {
		closers = append(closers, func() { _ = redisClient.Close() })
		notifier = service.NewRedisRevocationNotifier(redisClient)
	}

	if !cfg.Mirror.Enabled {
		backend.Operator = service.NewOperatorService(slots, nil, notifier, nil, nil, log)
		return backend, nil
	}

	directory, err := repository.NewCandidateDirectoryRepository(db, cfg.Database.ProfileTable)
	if err != nil {
		backend.Close()
		return nil, err
	}
	sheetClient, err := sheets.NewClient(ctx, cfg.Mirror.SpreadsheetID, cfg.Mirror.CredentialsFile)
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("init sheets client: %w", err)
	}
	mirror := service.NewMirrorService(sheetClient, slots, directory, nil, log, mirrorConfig(cfg.Mirror))
	backend.Operator = service.NewOperatorService(slots, mirror, notifier, nil, nil, log)
	return backend, nil
}

func mirrorConfig(cfg config.MirrorConfig) service.MirrorConfig {
	return service.MirrorConfig{
		SheetNames:          cfg.SheetNames,
		MaxAttempts:         cfg.MaxAttempts,
		BaseDelay:           cfg.BaseDelay,
		MaxDelay:            cfg.MaxDelay,
		WriteQuotaPerMinute: cfg.WriteQuotaPerMinute,
		ReconcileInterval:   cfg.ReconcileInterval,
		CallTimeout:         cfg.CallTimeout,
	}
}
