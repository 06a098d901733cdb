// Package storage selects and opens the configured entity store.
package storage

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"wanderlust/internal/domain"
	"wanderlust/internal/shared"
	"wanderlust/internal/storage/memory"
	mongostore "wanderlust/internal/storage/mongo"
	mysqlrepo "wanderlust/internal/storage/mysql"
)

// Open connects to the store named by cfg.StoreDriver and prepares its schema
// (mongo indexes, mysql tables). Any failure is returned; callers treat it as
// fatal.
func Open(ctx context.Context, cfg shared.Config) (domain.Store, error) {
	switch cfg.StoreDriver {
	case shared.DriverMemory:
		log.Warn().Msg("using in-memory store, data is lost on exit")
		return memory.New(), nil

	case shared.DriverMySQL:
		repo, err := mysqlrepo.Open(ctx, cfg.MySQLDSN)
		if err != nil {
			return nil, err
		}
		if err := repo.Migrate(ctx); err != nil {
			_ = repo.Close(ctx)
			return nil, fmt.Errorf("mysql migrate: %w", err)
		}
		log.Info().Msg("mysql connection ok")
		return repo, nil

	default:
		st, err := mongostore.Connect(ctx, cfg.MongoURL)
		if err != nil {
			return nil, err
		}
		if err := st.EnsureIndexes(ctx); err != nil {
			_ = st.Close(ctx)
			return nil, fmt.Errorf("mongo indexes: %w", err)
		}
		log.Info().Str("database", mongostore.DatabaseName(cfg.MongoURL)).Msg("mongo connection ok")
		return st, nil
	}
}
