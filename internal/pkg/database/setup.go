package database

import (
	"fmt"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/ServiAPP/serviapp/app/models"
	"github.com/ServiAPP/serviapp/internal/pkg/env"
)

const maxRetries = 5
const retryDelay = 5 * time.Second

// Config holds the data store connection settings.
type Config struct {
	User        string `validate:"required"`
	Password    string
	Host        string `validate:"required"`
	Port        string `validate:"required,numeric"`
	Name        string `validate:"required"`
	AutoMigrate bool
}

// LoadConfig reads DB_* variables.
func LoadConfig() Config {
	return Config{
		User:        env.GetEnv("DB_USER", ""),
		Password:    env.GetEnv("DB_PASSWORD", ""),
		Host:        env.GetEnv("DB_HOST", "127.0.0.1"),
		Port:        env.GetEnv("DB_PORT", "3306"),
		Name:        env.GetEnv("DB_NAME", ""),
		AutoMigrate: env.GetEnvBool("DB_AUTO_MIGRATE", true),
	}
}

func (c Config) Validate() error {
	return validator.New().Struct(c)
}

// DSN builds the driver DSN. ClientFoundRows makes UPDATE report matched
// rows, so rewriting an entitlement with identical values is not mistaken
// for a missing record.
func (c Config) DSN() string {
	dc := mysqldriver.NewConfig()
	dc.User = c.User
	dc.Passwd = c.Password
	dc.Net = "tcp"
	dc.Addr = fmt.Sprintf("%s:%s", c.Host, c.Port)
	dc.DBName = c.Name
	dc.ParseTime = true
	dc.Loc = time.UTC
	dc.ClientFoundRows = true
	dc.Params = map[string]string{"charset": "utf8mb4"}
	return dc.FormatDSN()
}

// MigrateURL is the golang-migrate database URL for the same server.
func (c Config) MigrateURL() string {
	dc := mysqldriver.NewConfig()
	dc.User = c.User
	dc.Passwd = c.Password
	dc.Net = "tcp"
	dc.Addr = fmt.Sprintf("%s:%s", c.Host, c.Port)
	dc.DBName = c.Name
	dc.MultiStatements = true
	return "mysql://" + dc.FormatDSN()
}

// Connect opens the database with retries and returns the handle. Callers
// pass it down explicitly; there is no package-level connection.
func Connect(cfg Config) (*gorm.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database config: %w", err)
	}

	var (
		db  *gorm.DB
		err error
	)
	for i := 0; i < maxRetries; i++ {
		db, err = gorm.Open(mysql.New(mysql.Config{
			DSN:                       cfg.DSN(),
			DefaultStringSize:         256,
			DontSupportRenameIndex:    true,
			DontSupportRenameColumn:   true,
			SkipInitializeWithVersion: false,
		}), &gorm.Config{})
		if err == nil {
			break
		}

		log.Warnf("[Database] Failed to connect (try %d/%d): %v", i+1, maxRetries, err)
		if i < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		if err := db.AutoMigrate(
			&models.Profile{},
			&models.ServiceListing{},
			&models.Transaction{},
			&models.BillingWebhookEvent{},
		); err != nil {
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
	}

	log.Infof("[Database] Connected to %s:%s/%s", cfg.Host, cfg.Port, cfg.Name)
	return db, nil
}
