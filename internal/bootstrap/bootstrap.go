// Package bootstrap opens the backends selected by configuration. It is
// shared by the api and worker binaries.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"campus/internal/config"
	"campus/internal/docstore"
	"campus/internal/queue"
	"campus/internal/session"
	"campus/internal/store"
)

// Infra is the set of opened backends.
type Infra struct {
	Docs     docstore.Store
	Sessions session.Store
	Queue    queue.Queue
	Health   *store.Health

	// QueueLocal is true when the queue lives in process, so the api has to
	// run the audit consumer itself.
	QueueLocal bool

	redis   *redis.Client
	db      *sql.DB
	closers []func() error
	log     *zap.Logger
}

// Open connects everything cfg asks for. The caller must Close the result.
func Open(ctx context.Context, cfg config.App, log *zap.Logger) (*Infra, error) {
	if log == nil {
		log = zap.NewNop()
	}
	in := &Infra{Health: store.NewHealth(), log: log}
	if err := in.openDocs(ctx, cfg); err != nil {
		in.Close()
		return nil, err
	}
	if err := in.openSessions(ctx, cfg); err != nil {
		in.Close()
		return nil, err
	}
	if err := in.openQueue(ctx, cfg); err != nil {
		in.Close()
		return nil, err
	}
	return in, nil
}

func (in *Infra) redisClient(ctx context.Context, cfg config.App) (*redis.Client, error) {
	if in.redis != nil {
		return in.redis, nil
	}
	client, err := store.OpenRedis(ctx, cfg.RedisAddr)
	if err != nil {
		return nil, err
	}
	in.redis = client
	in.closers = append(in.closers, client.Close)
	in.Health.AddRedis(client)
	in.log.Info("redis connected", zap.String("addr", cfg.RedisAddr))
	return client, nil
}

func (in *Infra) openDocs(ctx context.Context, cfg config.App) error {
	switch cfg.DocstoreBackend {
	case "memory":
		in.Docs = docstore.NewMemory()
	case "postgres":
		db, err := store.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		in.db = db
		in.closers = append(in.closers, db.Close)
		in.Health.AddPostgres(db)
		client, err := in.redisClient(ctx, cfg)
		if err != nil {
			return fmt.Errorf("postgres docstore needs redis for change notifications: %w", err)
		}
		pg := docstore.NewPostgres(db, docstore.NewRedisFeed(client, ""), in.log)
		if err := pg.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("postgres schema: %w", err)
		}
		in.Docs = pg
	case "firestore":
		fs, err := docstore.NewFirestore(ctx, cfg.FirebaseProject, cfg.FirebaseCreds, in.log)
		if err != nil {
			return err
		}
		in.closers = append(in.closers, fs.Close)
		in.Docs = fs
	default:
		return fmt.Errorf("unknown DOCSTORE_BACKEND %q", cfg.DocstoreBackend)
	}
	in.log.Info("document store ready", zap.String("backend", cfg.DocstoreBackend))
	return nil
}

func (in *Infra) openSessions(ctx context.Context, cfg config.App) error {
	switch cfg.SessionBackend {
	case "memory":
		in.Sessions = session.NewMemoryStore()
	case "redis":
		client, err := in.redisClient(ctx, cfg)
		if err != nil {
			return err
		}
		in.Sessions = session.NewRedisStore(client, "")
	default:
		return fmt.Errorf("unknown SESSION_BACKEND %q", cfg.SessionBackend)
	}
	return nil
}

func (in *Infra) openQueue(ctx context.Context, cfg config.App) error {
	switch cfg.QueueBackend {
	case "memory":
		in.Queue = queue.NewInMemory(256)
		in.QueueLocal = true
	case "redis":
		client, err := in.redisClient(ctx, cfg)
		if err != nil {
			return err
		}
		in.Queue = queue.NewRedisQueue(client, "")
	default:
		return fmt.Errorf("unknown QUEUE_BACKEND %q", cfg.QueueBackend)
	}
	return nil
}

// Close releases every backend in reverse open order.
func (in *Infra) Close() {
	for i := len(in.closers) - 1; i >= 0; i-- {
		if err := in.closers[i](); err != nil {
			in.log.Warn("close failed", zap.Error(err))
		}
	}
	in.closers = nil
}
