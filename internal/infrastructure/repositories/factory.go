package repositories

import (
	"visionrelay/internal/core/ports"
	"visionrelay/internal/infrastructure/repositories/memory"
	redisrepo "visionrelay/internal/infrastructure/repositories/redis"
	"visionrelay/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RepositoryFactory creates the peer directory, falling back to memory
// when Redis is disabled or unreachable.
type RepositoryFactory struct {
	useRedis    bool
	redisClient *redis.Client
	logger      *zap.SugaredLogger
}

func NewRepositoryFactory(cfg *config.Config, logger *zap.SugaredLogger) (*RepositoryFactory, error) {
	factory := &RepositoryFactory{
		useRedis: cfg.Redis.Enabled,
		logger:   logger,
	}

	if cfg.Redis.Enabled {
		client, err := redisrepo.NewRedisClient(
			cfg.Redis.Address,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.PoolSize,
			logger,
		)
		if err != nil {
			logger.Warnw("failed to connect to Redis, falling back to memory directory", "error", err)
			factory.useRedis = false
		} else {
			factory.redisClient = client
			logger.Info("using Redis peer directory")
		}
	}

	if !factory.useRedis {
		logger.Info("using memory peer directory")
	}

	return factory, nil
}

func (f *RepositoryFactory) CreatePeerDirectory() ports.PeerDirectory {
	if f.useRedis && f.redisClient != nil {
		return redisrepo.NewRedisPeerDirectory(f.redisClient)
	}
	return memory.NewMemoryPeerDirectory()
}

func (f *RepositoryFactory) Close() error {
	return redisrepo.CloseRedisClient(f.redisClient)
}
