package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"github.com/wichananm65/secondhand-market/internal/cart"
	"github.com/wichananm65/secondhand-market/internal/category"
	"github.com/wichananm65/secondhand-market/internal/config"
	"github.com/wichananm65/secondhand-market/internal/payment"
	"github.com/wichananm65/secondhand-market/internal/product"
	"github.com/wichananm65/secondhand-market/internal/review"
	"github.com/wichananm65/secondhand-market/internal/user"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const connectTimeout = 10 * time.Second

// stores holds the repository behind every feature. Each backing service is
// optional outside production; a missing one falls back to memory.
type stores struct {
	products   product.Repository
	categories category.Repository
	reviews    review.Repository
	users      user.Repository
	carts      cart.Repository
	payments   payment.Repository

	closers []func()
}

func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func openStores(ctx context.Context, cfg config.Config) (*stores, error) {
	st := &stores{}
	if err := st.openMongo(ctx, cfg); err != nil {
		return nil, err
	}
	if err := st.openRedis(ctx, cfg); err != nil {
		st.Close()
		return nil, err
	}
	if err := st.openPostgres(ctx, cfg); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

type indexed interface {
	EnsureIndexes(ctx context.Context) error
}

func (s *stores) openMongo(ctx context.Context, cfg config.Config) error {
	if cfg.MongoURI == "" {
		log.Warn("MONGO_URI not set, catalog, categories, reviews and users are kept in memory")
		s.products = product.NewInMemoryRepository(nil)
		s.categories = category.NewInMemoryRepository(nil)
		s.reviews = review.NewInMemoryRepository()
		s.users = user.NewInMemoryRepository(nil)
		return nil
	}

	cctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	client, err := mongo.Connect(cctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(cctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return fmt.Errorf("ping mongo: %w", err)
	}
	s.closers = append(s.closers, func() { _ = client.Disconnect(context.Background()) })

	db := client.Database(cfg.MongoDB)
	products := product.NewMongoRepository(db)
	categories := category.NewMongoRepository(db)
	reviews := review.NewMongoRepository(db)
	users := user.NewMongoRepository(db)
	for name, repo := range map[string]indexed{"products": products, "categories": categories, "reviews": reviews, "users": users} {
		if err := repo.EnsureIndexes(cctx); err != nil {
			return fmt.Errorf("ensure %s indexes: %w", name, err)
		}
	}
	s.products, s.categories, s.reviews, s.users = products, categories, reviews, users
	log.Infof("connected to mongo database %s", cfg.MongoDB)
	return nil
}

func (s *stores) openRedis(ctx context.Context, cfg config.Config) error {
	if cfg.RedisURL == "" {
		log.Warn("REDIS_URL not set, server carts are kept in memory")
		s.carts = cart.NewInMemoryRepository()
		return nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	cctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(cctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("ping redis: %w", err)
	}
	s.closers = append(s.closers, func() { _ = client.Close() })
	s.carts = cart.NewRedisRepository(client, cart.DefaultTTL)
	return nil
}

func (s *stores) openPostgres(ctx context.Context, cfg config.Config) error {
	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL not set, the payment ledger is kept in memory")
		s.payments = payment.NewInMemoryRepository()
		return nil
	}
	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	cctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := db.PingContext(cctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping postgres: %w", err)
	}
	s.closers = append(s.closers, func() { _ = db.Close() })

	repo := payment.NewPostgresRepository(db)
	if err := repo.EnsureSchema(cctx); err != nil {
		return fmt.Errorf("payment schema: %w", err)
	}
	s.payments = repo
	return nil
}
