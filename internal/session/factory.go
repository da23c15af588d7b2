package session

import (
	"fmt"

	"github.com/amoylab/boom/internal/common/cnst"
	"github.com/amoylab/boom/internal/common/config"
	"go.uber.org/zap"
)

// NewStore creates a session store based on configuration. The store is not
// usable until Init succeeds.
func NewStore(logger *zap.Logger, cfg *config.StoreConfig) (Store, error) {
	logger.Info("Initializing session store", zap.String("type", cfg.Type))
	switch cnst.StoreType(cfg.Type) {
	case cnst.StoreTypeDB:
		return NewDBStore(logger, cfg)
	case cnst.StoreTypeRedis:
		return NewRedisStore(logger, cfg), nil
	case cnst.StoreTypeNoop:
		return NewNoopStore(logger), nil
	case cnst.StoreTypeMemcached:
		logger.Warn("memcached session store is a placeholder, sessions are not persisted")
		return NewNoopStore(logger), nil
	default:
		return nil, fmt.Errorf("%w: %s", cnst.ErrInvalidStoreType, cfg.Type)
	}
}
