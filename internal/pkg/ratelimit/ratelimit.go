package ratelimit

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/storage/redis"

	"github.com/ServiAPP/serviapp/internal/pkg/cache"
	"github.com/ServiAPP/serviapp/internal/pkg/env"
)

// Config controls a fixed window limiter.
type Config struct {
	Max        int
	Expiration time.Duration
}

// LoadConfig reads RATE_LIMIT_<NAME>_MAX and RATE_LIMIT_<NAME>_WINDOW.
func LoadConfig(name string, def Config) Config {
	return Config{
		Max:        env.GetEnvInt("RATE_LIMIT_"+name+"_MAX", def.Max),
		Expiration: env.GetEnvDuration("RATE_LIMIT_"+name+"_WINDOW", def.Expiration),
	}
}

// NewRedisStorage shares limiter counters between instances. Database 1
// keeps them apart from the locks and the job queue on database 0.
func NewRedisStorage(cfg cache.Config) fiber.Storage {
	return redis.New(redis.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Password: cfg.Password,
		Database: 1,
		Reset:    false,
	})
}

// New builds a limiter. A nil storage keeps counters in memory.
func New(cfg Config, storage fiber.Storage) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        cfg.Max,
		Expiration: cfg.Expiration,
		Storage:    storage,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate_limited"})
		},
	})
}
