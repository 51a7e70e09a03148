package config

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/anonto42/linkup/backend/pkg/apperror"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type sleeper func(ctx context.Context, d time.Duration) error

// DB owns the process's database connections. Build it once with NewDB,
// then Connect, Health and Close it.
type DB struct {
	Postgres *gorm.DB
	Mongo    *mongo.Client
	Redis    *redis.Client

	cfg      *Config
	attempts int
	delay    time.Duration
	sleep    sleeper
}

// NewDB creates the connection manager. Nothing is dialed until Connect.
func NewDB(cfg *Config) *DB {
	return &DB{
		cfg:      cfg,
		attempts: cfg.DBConnectAttempts,
		delay:    cfg.DBConnectDelay,
		sleep:    sleepContext,
	}
}

// Connect dials MongoDB and PostgreSQL, retrying each one up to the configured
// number of attempts. Redis is optional: a failure there is logged and the
// client stays nil.
func (db *DB) Connect(ctx context.Context) error {
	mongoClient, err := connectWithRetry(ctx, "MongoDB", db.attempts, db.delay, db.sleep, func(ctx context.Context) (*mongo.Client, error) {
		return initMongo(ctx, mongoClientOptions(db.cfg))
	})
	if err != nil {
		return err
	}
	db.Mongo = mongoClient

	postgresDB, err := connectWithRetry(ctx, "PostgreSQL", db.attempts, db.delay, db.sleep, func(ctx context.Context) (*gorm.DB, error) {
		return initPostgres(ctx, db.cfg.PostgresUrl)
	})
	if err != nil {
		db.Close()
		return err
	}
	db.Postgres = postgresDB

	if db.cfg.RedisURL != "" {
		redisClient, err := initRedis(ctx, db.cfg.RedisURL)
		if err != nil {
			log.Printf("Redis unavailable, live notifications and rate limits disabled: %v", err)
		} else {
			db.Redis = redisClient
		}
	}

	return nil
}

// MongoDatabase returns the application database handle.
func (db *DB) MongoDatabase() *mongo.Database {
	return db.Mongo.Database(db.cfg.MongoDatabase)
}

// Health pings every open connection and reports a status per store.
func (db *DB) Health(ctx context.Context) (map[string]string, error) {
	status := map[string]string{}
	var errs []error

	if db.Mongo == nil {
		status["mongo"] = "disconnected"
		errs = append(errs, errors.New("mongo not connected"))
	} else if err := db.Mongo.Ping(ctx, nil); err != nil {
		status["mongo"] = "down"
		errs = append(errs, fmt.Errorf("mongo: %w", err))
	} else {
		status["mongo"] = "up"
	}

	if db.Postgres == nil {
		status["postgres"] = "disconnected"
		errs = append(errs, errors.New("postgres not connected"))
	} else if sqlDB, err := db.Postgres.DB(); err != nil {
		status["postgres"] = "down"
		errs = append(errs, fmt.Errorf("postgres: %w", err))
	} else if err := sqlDB.PingContext(ctx); err != nil {
		status["postgres"] = "down"
		errs = append(errs, fmt.Errorf("postgres: %w", err))
	} else {
		status["postgres"] = "up"
	}

	if db.Redis != nil {
		if err := db.Redis.Ping(ctx).Err(); err != nil {
			status["redis"] = "down"
		} else {
			status["redis"] = "up"
		}
	}

	if len(errs) > 0 {
		return status, apperror.Transient(errors.Join(errs...))
	}
	return status, nil
}

// Close closes the database connections
func (db *DB) Close() {
	if db.Postgres != nil {
		sqlDB, err := db.Postgres.DB()
		if err != nil {
			log.Printf("Error getting SQL DB from GORM: %v\n", err)
		} else if err := sqlDB.Close(); err != nil {
			log.Printf("Error closing PostgreSQL connection: %v\n", err)
		} else {
			log.Println("PostgreSQL connection closed.")
		}
		db.Postgres = nil
	}

	if db.Mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.Mongo.Disconnect(ctx); err != nil {
			log.Printf("Error closing MongoDB connection: %v\n", err)
		} else {
			log.Println("MongoDB connection closed.")
		}
		db.Mongo = nil
	}

	if db.Redis != nil {
		if err := db.Redis.Close(); err != nil {
			log.Printf("Error closing Redis connection: %v\n", err)
		}
		db.Redis = nil
	}
}

// connectWithRetry calls dial until it succeeds or attempts run out, waiting
// delay between tries. The final error wraps apperror.ErrTransientConnection.
func connectWithRetry[T any](ctx context.Context, name string, attempts int, delay time.Duration, sleep sleeper, dial func(context.Context) (T, error)) (T, error) {
	var zero T
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		conn, err := dial(ctx)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		log.Printf("%s connection attempt %d/%d failed: %v", name, attempt, attempts, err)

		if attempt == attempts {
			break
		}
		log.Printf("Retrying %s in %s...", name, delay)
		if err := sleep(ctx, delay); err != nil {
			return zero, apperror.Transient(fmt.Errorf("%s connect cancelled: %w", name, err))
		}
	}

	return zero, apperror.Transient(fmt.Errorf("%s unreachable after %d attempts: %w", name, attempts, lastErr))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// initPostgres initializes the PostgreSQL database connection using GORM
func initPostgres(ctx context.Context, connStr string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(connStr), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Ping the database to verify connection
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err = sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, err
	}

	log.Println("Successfully connected to PostgreSQL!")
	return db, nil
}

// mongoClientOptions leaves the driver defaults in place for zero timeouts.
func mongoClientOptions(cfg *Config) *options.ClientOptions {
	opts := options.Client().ApplyURI(cfg.MongoURI)
	if cfg.MongoServerSelectionTimeout > 0 {
		opts.SetServerSelectionTimeout(cfg.MongoServerSelectionTimeout)
	}
	if cfg.MongoSocketTimeout > 0 {
		opts.SetSocketTimeout(cfg.MongoSocketTimeout)
	}
	return opts
}

// initMongo initializes the MongoDB connection
func initMongo(ctx context.Context, clientOptions *options.ClientOptions) (*mongo.Client, error) {

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, err
	}

	// Ping the primary to verify connection
	if err = client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	log.Println("Successfully connected to MongoDB!")
	return client, nil
}

func initRedis(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	log.Println("Successfully connected to Redis!")
	return client, nil
}
