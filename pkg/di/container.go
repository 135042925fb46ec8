package di

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"victim-support/backend/internal/models"
	"victim-support/backend/internal/relay"
	"victim-support/backend/internal/repository"
	"victim-support/backend/internal/service"
	"victim-support/backend/internal/ws"
	"victim-support/backend/pkg/config"
	"victim-support/backend/pkg/health"
	"victim-support/backend/pkg/jwt"
	"victim-support/backend/pkg/logger"
	"victim-support/backend/pkg/secrets"
)

// Room lookups happen on every message, so rooms are cached in front of the store
const (
	roomCacheTTL   = 30 * time.Second
	roomCacheItems = 10000
)

// Container holds all the dependencies for the application
type Container struct {
	Config     *config.Config
	DB         *gorm.DB // nil with the memory store
	Logger     *logger.Logger
	Secrets    *secrets.VaultManager
	JWTService *jwt.Service
	Rooms      *repository.CachedRoomRepository
	Messages   repository.MessageRepository
	Relay      relay.Relay // nil on a single node
	Hub        *ws.Hub
	Chat       *service.ChatService
	Health     *health.Checker
}

// New creates a new dependency injection container
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Container, error) {
	c := &Container{Config: cfg, Logger: log}

	vault, err := secrets.NewVaultManager(secrets.VaultConfig{
		Address:     cfg.Vault.Address,
		Token:       cfg.Vault.Token,
		Namespace:   cfg.Vault.Namespace,
		MountPath:   cfg.Vault.MountPath,
		SecretsPath: cfg.Vault.SecretsPath,
		Enabled:     cfg.Vault.Enabled,
	}, log.WithComponent("secrets"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize secrets manager: %w", err)
	}
	c.Secrets = vault

	// Initialize JWT service
	jwtSecret := vault.GetSecretWithDefault(ctx, secrets.KeyJWTSecret, cfg.JWT.Secret)
	c.JWTService = jwt.NewService(jwtSecret, cfg.JWT.ExpiryHours)

	rooms, messages, err := c.openStore(ctx)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Rooms = repository.NewCachedRoomRepository(rooms, roomCacheTTL, roomCacheItems)
	c.Messages = messages

	if err := c.openRelay(); err != nil {
		c.Close()
		return nil, err
	}
	c.Hub = ws.NewHub(c.Relay, log.WithComponent("hub"))

	// Initialize core services
	registry := service.NewRoomRegistry(c.Rooms, messages, log.WithComponent("rooms"))
	store := service.NewMessageStore(c.Rooms, messages, log.WithComponent("messages"))
	reads := service.NewReadTracker(c.Rooms, messages, log.WithComponent("reads"))
	ingester := service.NewAttachmentIngester(c.Rooms, service.IngesterConfig{
		StorageRoot:  cfg.Chat.StorageRoot,
		PublicPrefix: cfg.Chat.PublicPrefix,
		MaxSize:      cfg.Chat.MaxUploadSize,
	}, log.WithComponent("attachments"))
	c.Chat = service.NewChatService(registry, store, reads, ingester, c.Hub, cfg.Chat.DefaultAdminID, log.WithComponent("chat"))

	c.Health = health.NewChecker(log.WithComponent("health"), 30*time.Second)
	c.Health.RegisterDatabaseCheck(rooms.Ping)
	if c.Relay != nil {
		c.Health.RegisterRelayCheck(c.Relay.Name(), c.Hub.RelayPing)
	}

	return c, nil
}

func (c *Container) openStore(ctx context.Context) (repository.RoomRepository, repository.MessageRepository, error) {
	switch c.Config.Store.Driver {
	case "memory":
		c.Logger.Warn("Using in-memory store, messages are lost on restart")
		mem := repository.NewMemoryStore()
		return mem, mem, nil
	case "postgres":
		if c.Config.Vault.Enabled {
			c.Config.Database.Password = c.Secrets.GetSecretWithDefault(ctx, secrets.KeyDBPassword, c.Config.Database.Password)
		}
		db, err := config.NewDB(c.Config, c.Logger)
		if err != nil {
			return nil, nil, err
		}
		if err := Migrate(db); err != nil {
			return nil, nil, err
		}
		c.DB = db
		return repository.NewGormRoomRepository(db), repository.NewGormMessageRepository(db), nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", c.Config.Store.Driver)
	}
}

func (c *Container) openRelay() error {
	var err error
	log := c.Logger.WithComponent("relay")

	switch c.Config.Relay.Driver {
	case "", "none":
		return nil
	case "redis":
		c.Relay, err = relay.NewRedisRelay(c.Config.Relay.RedisURL, log)
	case "nats":
		c.Relay, err = relay.NewNatsRelay(c.Config.Relay.NatsURL, log)
	default:
		return fmt.Errorf("unknown relay driver %q", c.Config.Relay.Driver)
	}
	if err != nil {
		return fmt.Errorf("failed to connect %s relay: %w", c.Config.Relay.Driver, err)
	}
	return nil
}

// Migrate creates or updates the chat tables
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Room{}, &models.Message{}, &models.MessageRead{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Close releases the container's connections
func (c *Container) Close() {
	if c.Relay != nil {
		if err := c.Relay.Close(); err != nil {
			c.Logger.Warn("Failed to close relay", "error", err.Error())
		}
	}
	if c.Rooms != nil {
		c.Rooms.Close()
	}
	if c.DB != nil {
		if sqlDB, err := c.DB.DB(); err == nil {
			sqlDB.Close()
		}
	}
	if c.Secrets != nil {
		c.Secrets.Close()
	}
}
