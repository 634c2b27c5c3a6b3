// cmd/worker-manager/app.go
package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	awsclients "notification-workers/internal/common/aws"
	"notification-workers/internal/common/config"
	"notification-workers/internal/common/database"
	"notification-workers/internal/common/logger"
	"notification-workers/internal/common/observability"
	"notification-workers/internal/notification/dedup"
	"notification-workers/internal/notification/dispatcher"
	"notification-workers/internal/notification/email"
	"notification-workers/internal/notification/gateway"
	"notification-workers/internal/notification/journal"
	"notification-workers/internal/notification/registry"
)

// app holds the connected stores and the dispatcher built on top of them.
type app struct {
	cfg        *config.Config
	zap        *zap.Logger
	log        logger.Logger
	obs        *observability.Observability
	mongo      *database.MongoClient
	pg         *database.PostgresClient
	redis      *database.RedisClient
	es         *database.ElasticsearchClient
	dispatcher *dispatcher.Dispatcher
}

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	a := &app{
		cfg: cfg,
		zap: zapLog,
		log: logger.NewZapAdapter(zapLog).WithFields(map[string]interface{}{"app": cfg.App.Name}),
		obs: observability.New(cfg.App.Name),
	}
	if err := a.connect(ctx); err != nil {
		a.close()
		return nil, err
	}

	reg := a.registry()

	snsClient, err := awsclients.NewSNSClient(ctx, cfg.Push.Region)
	if err != nil {
		a.close()
		return nil, err
	}
	sender := gateway.NewSNSSender(snsClient, gateway.SNSSenderOptions{
		TopicARNPrefix: cfg.Push.TopicARNPrefix,
		TopicPrefix:    cfg.Push.TopicPrefix,
		MaxConcurrency: cfg.Push.MaxConcurrency,
		Hints:          gateway.HintsFromConfig(cfg.Push),
	})

	deps := dispatcher.Deps{
		Registry:      reg,
		Delivery:      gateway.New(sender, reg, a.log),
		Observability: a.obs,
		Logger:        a.log,
	}

	if cfg.Email.Enabled {
		sesClient, err := awsclients.NewSESClient(ctx, cfg.Email.Region)
		if err != nil {
			a.close()
			return nil, err
		}
		deps.Mailer = email.NewSESMailer(sesClient, cfg.Email.FromEmail)
	}
	if cfg.Dispatch.DedupEnabled {
		deps.Dedup = dedup.NewRedisStore(a.redis.Client, time.Duration(cfg.Dispatch.DedupTTL)*time.Second)
	}
	if cfg.Journal.Enabled {
		deps.Journal = journal.NewElasticsearchJournal(a.es.Client, cfg.Journal.Index)
	}

	a.dispatcher = dispatcher.New(deps, dispatcher.Options{
		AppName:        cfg.App.DisplayName,
		Timeout:        config.GetDuration(cfg.Dispatch.Timeout),
		MailOnApproval: cfg.Email.Enabled,
	})
	return a, nil
}

// connect opens the stores the configuration asks for.
func (a *app) connect(ctx context.Context) error {
	cfg := a.cfg

	switch cfg.Store.Driver {
	case config.DriverMongo:
		m, err := database.NewMongo(ctx, cfg.Database.Mongo)
		if err != nil {
			return err
		}
		a.mongo = m
		a.zap.Info("MongoDB connected successfully", zap.String("database", cfg.Database.Mongo.Database))
	case config.DriverPostgres:
		err := retryWithBackoff(func() error {
			pg, err := database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			if err := pg.Ping(ctx); err != nil {
				pg.Close()
				return err
			}
			a.pg = pg
			return nil
		}, 15, 2*time.Second, a.zap, "PostgreSQL connection")
		if err != nil {
			return err
		}
		a.zap.Info("PostgreSQL connected successfully")
	}

	if cfg.Database.Redis.Address != "" {
		r := database.NewRedis(cfg.Database.Redis)
		if err := retryWithBackoff(func() error {
			return r.Ping(ctx)
		}, 10, 2*time.Second, a.zap, "Redis connection"); err != nil {
			r.Close()
			return err
		}
		a.redis = r
		a.zap.Info("Redis connected successfully")
	}

	if cfg.Journal.Enabled {
		err := retryWithBackoff(func() error {
			es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			if err := es.Ping(ctx); err != nil {
				return err
			}
			a.es = es
			return nil
		}, 15, 2*time.Second, a.zap, "Elasticsearch connection")
		if err != nil {
			return err
		}
		a.zap.Info("Elasticsearch connected successfully")
	}
	return nil
}

func (a *app) registry() registry.Registry {
	if a.pg != nil {
		return registry.NewPostgresRegistry(a.pg.DB, a.cfg.Store.PostgresUsersTable)
	}
	return registry.NewMongoRegistry(a.mongo.Database, registry.MongoOptions{
		Collection:       a.cfg.Store.UsersCollection,
		PreferencesField: a.cfg.Store.PreferencesField,
		EndpointsField:   a.cfg.Store.EndpointsField,
	})
}

// ready pings the user store and, when in use, Redis.
func (a *app) ready(ctx context.Context) error {
	if a.mongo != nil {
		if err := a.mongo.Ping(ctx); err != nil {
			return fmt.Errorf("mongo: %w", err)
		}
	}
	if a.pg != nil {
		if err := a.pg.Ping(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Ping(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if a.mongo != nil {
		if err := a.mongo.Close(ctx); err != nil {
			a.zap.Error("Error closing MongoDB client", zap.Error(err))
		}
	}
	if a.pg != nil {
		if err := a.pg.Close(); err != nil {
			a.zap.Error("Error closing PostgreSQL", zap.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.zap.Error("Error closing Redis", zap.Error(err))
		}
	}
	a.obs.Shutdown()
	_ = a.zap.Sync()
}
