package bootstrap

import (
	"context"
	"fmt"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"

	"github.com/sonenae10-blip/todo/config"
	"github.com/sonenae10-blip/todo/internal/store"
	fsstore "github.com/sonenae10-blip/todo/internal/store/firestore"
	"github.com/sonenae10-blip/todo/internal/store/pgstore"
	"github.com/sonenae10-blip/todo/internal/store/redisstore"
)

// OpenStore connects the backend selected by STORE_BACKEND. The returned
// func releases the connection. app is only used by the firestore backend.
func OpenStore(ctx context.Context, cfg *config.Config, app *firebase.App, logger *log.Logger) (store.Store, func(), error) {
	storeLog := logger.WithPrefix("store")

	switch cfg.Store.Backend {
	case config.BackendFirestore:
		if app == nil {
			return nil, nil, fmt.Errorf("firestore backend needs the Firebase app")
		}
		client, err := app.Firestore(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get Firestore client: %w", err)
		}
		return fsstore.New(client, storeLog), func() { _ = client.Close() }, nil

	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := client.Ping(pctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		return redisstore.New(client, storeLog), func() { _ = client.Close() }, nil

	case config.BackendPostgres:
		dsn := cfg.Database.DSN
		if dsn == "" {
			db := cfg.Database
			dsn = pgstore.DSN(db.Host, db.Port, db.User, db.Password, db.Name, db.SSLMode)
		}
		pool, err := pgstore.Open(ctx, pgstore.Options{DSN: dsn, MaxConns: int32(cfg.Database.MaxConns)})
		if err != nil {
			return nil, nil, err
		}
		s := pgstore.New(pool, dsn, storeLog)
		if err := s.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return s, pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
