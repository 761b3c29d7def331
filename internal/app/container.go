package app

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BulshitMan-BM/ntr-sub000/domain"
	"github.com/BulshitMan-BM/ntr-sub000/internal/config"
	"github.com/BulshitMan-BM/ntr-sub000/internal/infrastructure/storage"
	"github.com/BulshitMan-BM/ntr-sub000/internal/infrastructure/transport"
	"github.com/BulshitMan-BM/ntr-sub000/internal/services"
	"github.com/BulshitMan-BM/ntr-sub000/internal/timers"
)

// Container holds all dependencies
type Container struct {
	Config *config.Config
	Logger *zap.Logger

	// Infrastructure
	RedisClient *redis.Client
	Store       domain.SessionStore
	Timers      *timers.Service
	AuthClient  domain.AuthClient

	// Core
	Machine *services.Machine
}

// NewContainer creates and initializes all dependencies
func NewContainer(cfg *config.Config) (*Container, error) {
	c := &Container{Config: cfg}

	if err := c.initLogger(); err != nil {
		return nil, err
	}
	if err := c.initStore(); err != nil {
		return nil, err
	}
	c.initClient()
	c.initMachine()

	return c, nil
}

func (c *Container) initLogger() error {
	var err error
	if c.Config.DevLog {
		c.Logger, err = zap.NewDevelopment()
	} else {
		c.Logger, err = zap.NewProduction()
	}
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	return nil
}

func (c *Container) initStore() error {
	switch c.Config.StoreBackend {
	case "file", "":
		store, err := storage.NewFileStore(c.Config.StoreDir)
		if err != nil {
			return fmt.Errorf("init file store: %w", err)
		}
		c.Store = store
	case "memory":
		c.Store = storage.NewMemoryStore()
	case "redis":
		c.RedisClient = redis.NewClient(&redis.Options{
			Addr:     c.Config.RedisAddr,
			Password: c.Config.RedisPassword,
			DB:       c.Config.RedisDB,
		})
		c.Store = storage.NewRedisStore(c.RedisClient)
	default:
		return fmt.Errorf("unknown store backend %q", c.Config.StoreBackend)
	}
	return nil
}

func (c *Container) initClient() {
	c.AuthClient = transport.New(transport.Options{
		EndpointURL: c.Config.EndpointURL,
		Timeout:     c.Config.RequestTimeout,
	}, c.Logger)
}

func (c *Container) initMachine() {
	c.Timers = timers.New()
	c.Machine = services.NewMachine(services.Config{
		OtpExpiry:       c.Config.OtpExpiry,
		ResendCooldowns: c.Config.ResendCooldowns,
		SessionMaxAge:   c.Config.SessionMaxAge,
	}, c.AuthClient, c.Store, c.Timers, c.Logger)
}

// Close releases every resource the container owns.
func (c *Container) Close() {
	if c.Timers != nil {
		c.Timers.Stop()
	}
	if c.RedisClient != nil {
		c.RedisClient.Close()
	}
	if c.Logger != nil {
		c.Logger.Sync()
	}
}
