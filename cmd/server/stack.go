package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Harshitk-cp/bdi/internal/agent"
	"github.com/Harshitk-cp/bdi/internal/belief"
	"github.com/Harshitk-cp/bdi/internal/config"
	"github.com/Harshitk-cp/bdi/internal/fuzzy"
	"github.com/Harshitk-cp/bdi/internal/program"
	"github.com/Harshitk-cp/bdi/internal/runtime"
	"github.com/Harshitk-cp/bdi/internal/store"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// stack is the runner plus whatever storage backs its agents.
type stack struct {
	runner *runtime.Runner
	pool   *pgxpool.Pool
	badger *store.Badger
	logger *zap.Logger
}

func buildStack(ctx context.Context, programPath string, logger *zap.Logger) (*stack, error) {
	bundle, err := program.LoadFile(programPath)
	if err != nil {
		return nil, err
	}
	defuzz, err := fuzzy.ParseDefuzzifier(config.FuzzyMode(), config.FuzzyThreshold())
	if err != nil {
		return nil, err
	}
	agg, err := fuzzy.ParseAggregation(config.Aggregation())
	if err != nil {
		return nil, err
	}

	s := &stack{logger: logger}
	storage, err := s.openStorage(ctx)
	if err != nil {
		s.close()
		return nil, err
	}

	s.runner = runtime.New(runtime.Options{
		Interval: config.CycleInterval(),
		Workers:  config.AgentWorkers(),
		Logger:   logger,
	})
	for i := range config.AgentCount() {
		id := uuid.NewSHA1(uuid.NameSpaceURL, fmt.Appendf(nil, "%s#%d", programPath, i))
		_, err := s.runner.SpawnID(id, agent.Configuration{
			Bundle:         bundle,
			Fuzzy:          defuzz,
			Aggregation:    agg,
			Storage:        storage,
			TriggerWorkers: config.TriggerWorkers(),
		})
		if err != nil {
			s.close()
			return nil, fmt.Errorf("spawn agent %d: %w", i, err)
		}
	}
	logger.Info("agents ready",
		zap.String("program", programPath),
		zap.Int("agents", config.AgentCount()),
		zap.String("storage", config.StorageBackend()),
	)
	return s, nil
}

func (s *stack) openStorage(ctx context.Context) (belief.StorageFactory, error) {
	switch config.StorageBackend() {
	case config.StorageBadger:
		db, err := store.OpenBadger(store.BadgerOptions{
			Dir:            config.BadgerDir(),
			GCInterval:     5 * time.Minute,
			GCDiscardRatio: 0.5,
			Logger:         s.logger,
		})
		if err != nil {
			return nil, err
		}
		s.badger = db
		return db.Factory(), nil

	case config.StoragePostgres:
		dbURL := config.DatabaseURL()
		if dbURL == "" {
			return nil, errors.New("DATABASE_URL is required for the postgres backend")
		}
		pool, err := pgxpool.New(ctx, dbURL)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		s.pool = pool
		if err := pool.Ping(ctx); err != nil {
			return nil, fmt.Errorf("ping database: %w", err)
		}
		pg := store.NewPostgres(pool, s.logger)
		if err := pg.Migrate(ctx); err != nil {
			return nil, err
		}
		s.logger.Info("connected to database")
		return pg.Factory(), nil

	default:
		return belief.NewMemoryFactory(), nil
	}
}

func (s *stack) close() {
	if s.runner != nil {
		s.runner.Close()
	}
	if s.badger != nil {
		if err := s.badger.Close(); err != nil {
			s.logger.Error("failed to close badger", zap.Error(err))
		}
	}
	if s.pool != nil {
		s.pool.Close()
	}
}
