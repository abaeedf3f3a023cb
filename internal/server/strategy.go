package server

import (
	"context"
	"fmt"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/MrEthical07/jwtauth/internal/config"
	"github.com/MrEthical07/jwtauth/revocation"
	"github.com/MrEthical07/jwtauth/revocation/gormstore"
	"github.com/MrEthical07/jwtauth/revocation/mongostore"
	"github.com/MrEthical07/jwtauth/revocation/redisstore"
)

type closer func() error

// buildStrategy constructs the configured revocation strategy. The returned
// closers release its resources in reverse order of acquisition.
func buildStrategy(ctx context.Context, cfg config.RevocationConfig, log zerolog.Logger) (revocation.Strategy, []closer, error) {
	var closers []closer
	fail := func(err error) (revocation.Strategy, []closer, error) {
		_ = runClosers(closers)
		return nil, nil, err
	}

	switch cfg.Strategy {
	case config.StrategyNull:
		return revocation.Null{}, nil, nil

	case config.StrategyCutoff:
		return revocation.NewCutoff(), nil, nil

	case config.StrategyMemory:
		store := revocation.NewMemoryStore(cfg.CleanupInterval)
		return revocation.NewDenylist(store), []closer{store.Close}, nil

	case config.StrategyRedis:
		client, cs, err := openRedis(ctx, cfg.Redis, log)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, cs...)
		return revocation.NewDenylist(redisstore.New(client, cfg.Redis.Prefix)), closers, nil

	case config.StrategySQL:
		db, err := gorm.Open(sqlite.Open(cfg.SQL.DSN), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		if err != nil {
			return fail(fmt.Errorf("opening sql store: %w", err))
		}
		sqlDB, err := db.DB()
		if err != nil {
			return fail(err)
		}
		sqlDB.SetMaxOpenConns(1)
		closers = append(closers, sqlDB.Close)

		store, err := gormstore.New(db)
		if err != nil {
			return fail(err)
		}
		stop := startSweeper(cfg.CleanupInterval, log, func(ctx context.Context) (int64, error) {
			return store.Cleanup(ctx)
		})
		closers = append(closers, stop)
		return revocation.NewDenylist(store), closers, nil

	case config.StrategyMongo:
		timeout := cfg.Mongo.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		cctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		client, err := mongo.Connect(cctx, options.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			return fail(fmt.Errorf("connecting to mongo: %w", err))
		}
		closers = append(closers, func() error { return client.Disconnect(context.Background()) })

		if err := client.Ping(cctx, nil); err != nil {
			return fail(fmt.Errorf("pinging mongo: %w", err))
		}

		store, err := mongostore.New(client.Database(cfg.Mongo.Database).Collection(cfg.Mongo.Collection))
		if err != nil {
			return fail(err)
		}
		if err := store.EnsureIndexes(cctx); err != nil {
			return fail(err)
		}
		return revocation.NewDenylist(store), closers, nil
	}

	return nil, nil, fmt.Errorf("unknown revocation strategy %q", cfg.Strategy)
}

// openRedis connects to cfg.Addr, or to a fresh in-process miniredis when
// cfg.Embedded is set, and pings it.
func openRedis(ctx context.Context, cfg config.RedisConfig, log zerolog.Logger) (redis.UniversalClient, []closer, error) {
	var closers []closer

	addr := cfg.Addr
	if cfg.Embedded {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("starting embedded redis: %w", err)
		}
		closers = append(closers, func() error { mr.Close(); return nil })
		addr = mr.Addr()
		log.Warn().Str("addr", addr).Msg("redis.embedded")
	}

	client := redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Password, DB: cfg.DB})
	closers = append(closers, client.Close)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = runClosers(closers)
		return nil, nil, fmt.Errorf("%w: %v", redisstore.ErrRedisUnavailable, err)
	}
	return client, closers, nil
}

// startSweeper runs sweep every interval until the returned closer is called.
func startSweeper(interval time.Duration, log zerolog.Logger, sweep func(context.Context) (int64, error)) closer {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := sweep(ctx)
				if err != nil {
					log.Error().Err(err).Msg("revocation.cleanup_failed")
					continue
				}
				if n > 0 {
					log.Debug().Int64("removed", n).Msg("revocation.cleanup")
				}
			}
		}
	}()

	return func() error {
		cancel()
		<-done
		return nil
	}
}

func runClosers(closers []closer) error {
	var first error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}
