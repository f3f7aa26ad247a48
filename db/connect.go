package db

import (
	"fmt"
	"strings"
	"time"

	"grocery-sync/confs"
	"grocery-sync/entities"

	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DSN builds the postgres connection string from either DB_URL or the
// individual DB_* settings.
func DSN(c confs.DBConfig) (string, error) {
	if c.URL != "" {
		dsn := c.URL
		// Hosted databases expect TLS unless told otherwise
		if !strings.Contains(dsn, "sslmode=") {
			if strings.Contains(dsn, "?") {
				dsn += "&sslmode=require"
			} else {
				dsn += "?sslmode=require"
			}
		}
		return dsn, nil
	}

	if c.Host == "" || c.Port == "" || c.User == "" || c.Password == "" || c.Name == "" {
		return "", fmt.Errorf("missing required database configuration: DB_URL or (DB_HOST, DB_PORT, DB_USER, DB_PASSWORD, DB_NAME)")
	}

	sslMode := "require"
	if c.Host == "localhost" || c.Host == "127.0.0.1" {
		sslMode = "disable"
	}

	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		c.Host, c.User, c.Password, c.Name, c.Port, sslMode), nil
}

// Connect opens the postgres database, configures the pool and migrates the schema.
func Connect(c confs.DBConfig) (*GormDatabase, error) {
	dsn, err := DSN(c)
	if err != nil {
		return nil, err
	}

	log.Println("Connecting to database...")
	database, err := Open(postgres.Open(dsn))
	if err != nil {
		return nil, err
	}

	sqlDB, err := database.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(0)

	log.Println("Database connection established successfully!")
	return database, nil
}

// Open opens a gorm database on the given dialector and migrates the schema.
func Open(dialector gorm.Dialector) (*GormDatabase, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         newLogger(),
		PrepareStmt:    true,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return &GormDatabase{DB: db}, nil
}

// Migrate creates or updates the users and grocery_items tables.
func Migrate(db *gorm.DB) error {
	log.Println("Running database migrations...")
	if err := db.AutoMigrate(&entities.User{}, &entities.GroceryItem{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	log.Println("Database migrations completed successfully!")
	return nil
}

// newLogger writes gorm's SQL log through logrus. Missing rows are an
// expected outcome of lookups and are not logged.
func newLogger() logger.Interface {
	return logger.New(log.StandardLogger(), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  gormLogLevel(),
		IgnoreRecordNotFoundError: true,
	})
}

func gormLogLevel() logger.LogLevel {
	switch log.GetLevel() {
	case log.DebugLevel, log.TraceLevel:
		return logger.Info
	case log.InfoLevel, log.WarnLevel:
		return logger.Warn
	default:
		return logger.Error
	}
}
