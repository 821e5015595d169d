package factory

import (
	"fmt"
	"path/filepath"

	"github.com/Layr-Labs/eigenx-ballot-go/pkg/config"
	"github.com/Layr-Labs/eigenx-ballot-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-ballot-go/pkg/persistence/badger"
	"github.com/Layr-Labs/eigenx-ballot-go/pkg/persistence/file"
	"github.com/Layr-Labs/eigenx-ballot-go/pkg/persistence/memory"
	"github.com/Layr-Labs/eigenx-ballot-go/pkg/persistence/redis"
	"go.uber.org/zap"
)

// badgerSubdir keeps badger's files apart from the JSON layout of the file backend
const badgerSubdir = "badger"

// NewPersistence opens the backend selected by cfg. The config is validated first.
func NewPersistence(cfg *config.BallotConfig, logger *zap.Logger) (persistence.IBallotPersistence, error) {
	if cfg == nil {
		return nil, fmt.Errorf("ballot config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger.Sugar().Debugw("Opening persistence", "type", cfg.PersistenceType)

	var (
		store persistence.IBallotPersistence
		err   error
	)
	switch cfg.PersistenceType {
	case config.PersistenceTypeMemory:
		store = memory.NewMemoryPersistence()
	case config.PersistenceTypeFile:
		store, err = file.NewFilePersistence(cfg.DataDir, logger)
	case config.PersistenceTypeBadger:
		store, err = badger.NewBadgerPersistence(filepath.Join(cfg.DataDir, badgerSubdir), logger)
	case config.PersistenceTypeRedis:
		store, err = redis.NewRedisPersistence(&redis.RedisConfig{
			Address:   cfg.RedisAddress,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.RedisKeyPrefix,
		}, logger)
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s", cfg.PersistenceType)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s persistence: %w", cfg.PersistenceType, err)
	}
	return store, nil
}
