// Package backends opens the storage, nonce and event adapters selected by
// configuration.
package backends

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	kafkaevents "github.com/Huaoe/ElurcFleet/internal/adapters/kafka/events"
	memmemberrepo "github.com/Huaoe/ElurcFleet/internal/adapters/memory/memberrepo"
	memnoncestore "github.com/Huaoe/ElurcFleet/internal/adapters/memory/noncestore"
	memprofilerepo "github.com/Huaoe/ElurcFleet/internal/adapters/memory/profilerepo"
	postgres "github.com/Huaoe/ElurcFleet/internal/adapters/postgres"
	pgmemberrepo "github.com/Huaoe/ElurcFleet/internal/adapters/postgres/memberrepo"
	pgnoncestore "github.com/Huaoe/ElurcFleet/internal/adapters/postgres/noncestore"
	pgprofilerepo "github.com/Huaoe/ElurcFleet/internal/adapters/postgres/profilerepo"
	redisclient "github.com/Huaoe/ElurcFleet/internal/adapters/redis"
	redisnoncestore "github.com/Huaoe/ElurcFleet/internal/adapters/redis/noncestore"
	"github.com/Huaoe/ElurcFleet/internal/adapters/sqlite"
	sqlitememberrepo "github.com/Huaoe/ElurcFleet/internal/adapters/sqlite/memberrepo"
	sqliteprofilerepo "github.com/Huaoe/ElurcFleet/internal/adapters/sqlite/profilerepo"
	"github.com/Huaoe/ElurcFleet/internal/platform/config"
	"github.com/Huaoe/ElurcFleet/internal/platform/logging"
	clockport "github.com/Huaoe/ElurcFleet/internal/ports/out/clock"
	"github.com/Huaoe/ElurcFleet/internal/ports/out/events"
	"github.com/Huaoe/ElurcFleet/internal/ports/out/memberrepo"
	"github.com/Huaoe/ElurcFleet/internal/ports/out/noncestore"
	"github.com/Huaoe/ElurcFleet/internal/ports/out/profilerepo"
)

// DefaultSQLitePath is used when STORAGE_BACKEND=sqlite and SQLITE_PATH is empty.
const DefaultSQLitePath = "membership.db"

// Purger removes expired nonces from stores that do not expire them natively.
type Purger interface {
	Purge(ctx context.Context) (int64, error)
}

type Stores struct {
	Identities memberrepo.Repository
	Profiles   profilerepo.Repository
	Nonces     noncestore.Store
	Events     events.Publisher
	// NoncePurger is set when the nonce store needs periodic purging.
	NoncePurger Purger

	closers []func() error
}

// Open wires the adapters named by cfg. Close must be called to release them.
func Open(ctx context.Context, cfg config.Server, clk clockport.Clock, logger *zap.Logger) (*Stores, error) {
	log := logging.OrNop(logger)
	s := &Stores{Events: events.Discard{}}

	var pool *pgxpool.Pool
	if cfg.StorageBackend == "postgres" || cfg.NonceBackend == "postgres" {
		p, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() error { p.Close(); return nil })
		if err := postgres.Migrate(ctx, p); err != nil {
			_ = s.Close()
			return nil, err
		}
		pool = p
	}

	switch cfg.StorageBackend {
	case "postgres":
		s.Identities = pgmemberrepo.NewRepo(pool)
		s.Profiles = pgprofilerepo.NewRepo(pool)
	case "sqlite":
		path := cfg.SQLitePath
		if path == "" {
			path = DefaultSQLitePath
		}
		db, err := sqlite.Open(path)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s.closers = append(s.closers, func() error { return sqlite.Close(db) })
		s.Identities = sqlitememberrepo.NewRepo(db)
		s.Profiles = sqliteprofilerepo.NewRepo(db)
	case "memory":
		s.Identities = memmemberrepo.NewRepo()
		s.Profiles = memprofilerepo.NewRepo()
	default:
		_ = s.Close()
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}

	switch cfg.NonceBackend {
	case "redis":
		rdb, err := redisclient.Open(ctx, cfg.RedisURL)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s.closers = append(s.closers, rdb.Close)
		s.Nonces = redisnoncestore.NewStore(rdb)
	case "postgres":
		ns := pgnoncestore.NewStore(pool)
		s.Nonces = ns
		s.NoncePurger = ns
	case "memory":
		s.Nonces = memnoncestore.NewStore(clk)
	default:
		_ = s.Close()
		return nil, fmt.Errorf("unknown nonce backend %q", cfg.NonceBackend)
	}

	if len(cfg.KafkaBrokers) > 0 {
		pub := kafkaevents.NewPublisher(kafkaevents.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic), log)
		s.closers = append(s.closers, pub.Close)
		s.Events = pub
	}

	log.Info("backends ready",
		zap.String("storage", cfg.StorageBackend),
		zap.String("nonces", cfg.NonceBackend),
		zap.Bool("kafka", len(cfg.KafkaBrokers) > 0),
	)
	return s, nil
}

// Close releases adapters in reverse order of opening.
func (s *Stores) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// RunNoncePurge purges expired nonces every interval until ctx is done. It is
// a no-op for stores that expire entries themselves.
func (s *Stores) RunNoncePurge(ctx context.Context, interval time.Duration, logger *zap.Logger) {
	if s.NoncePurger == nil {
		return
	}
	log := logging.OrNop(logger)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := s.NoncePurger.Purge(ctx)
			if err != nil {
				log.Warn("nonce purge failed", zap.Error(err))
				continue
			}
			if n > 0 {
				log.Debug("expired nonces purged", zap.Int64("count", n))
			}
		}
	}
}
