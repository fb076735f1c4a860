package helper

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/lib/pq"
)

// DatabaseConfiguration holds the connection parameters for one store.
type DatabaseConfiguration struct {
	Host     string
	Port     string
	Database string
	Username string
	Password string
	Schema   string
	SSLMode  string
}

// NewDatabaseConfiguration reads the configuration from the environment
// (DB_HOST, DB_PORT, DB_NAME, DB_USER, DB_PASSWORD, DB_SCHEMA, DB_SSLMODE).
// A .env file in the working directory is loaded first if present.
func NewDatabaseConfiguration() (*DatabaseConfiguration, error) {
	return NewPrefixedDatabaseConfiguration("")
}

// NewPrefixedDatabaseConfiguration reads the configuration from the
// environment like NewDatabaseConfiguration, but prefers variables with the
// given prefix (eg. LONGTERM_DB_NAME) and falls back to the unprefixed ones.
func NewPrefixedDatabaseConfiguration(prefix string) (*DatabaseConfiguration, error) {
	// The .env file is optional, a missing file is not an error.
	_ = godotenv.Load()

	config := &DatabaseConfiguration{
		Host:     lookupEnv(prefix, "DB_HOST"),
		Port:     lookupEnv(prefix, "DB_PORT"),
		Database: lookupEnv(prefix, "DB_NAME"),
		Username: lookupEnv(prefix, "DB_USER"),
		Password: lookupEnv(prefix, "DB_PASSWORD"),
		Schema:   lookupEnv(prefix, "DB_SCHEMA"),
		SSLMode:  lookupEnv(prefix, "DB_SSLMODE"),
	}

	if config.Schema == "" {
		config.Schema = "public"
	}
	if config.SSLMode == "" {
		config.SSLMode = "disable"
	}

	if config.Host == "" || config.Port == "" || config.Database == "" || config.Username == "" {
		return nil, NewCodeError("database configuration validation", CodeInvalidInput,
			fmt.Errorf("missing required database environment variables (DB_HOST, DB_PORT, DB_NAME, DB_USER)"))
	}

	return config, nil
}

func lookupEnv(prefix string, key string) string {
	if prefix != "" {
		if value, ok := os.LookupEnv(prefix + key); ok {
			return value
		}
	}
	return os.Getenv(key)
}

// ConnectionString returns the lib/pq connection string for the configuration.
func (c *DatabaseConfiguration) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s dbname=%s user=%s password=%s sslmode=%s search_path=%s",
		c.Host, c.Port, c.Database, c.Username, c.Password, c.SSLMode, c.Schema,
	)
}

// WithDatabase returns a copy of the configuration pointing at another database.
func (c *DatabaseConfiguration) WithDatabase(database string) *DatabaseConfiguration {
	copied := *c
	copied.Database = database
	return &copied
}

// Database wraps an open connection to one store.
type Database struct {
	Name     string
	Instance *sql.DB
	Logger   *slog.Logger
}

// NewDatabase connects to the configured database and returns the wrapper.
// A missing database is created on the fly so multiple stores can share one
// server. Panics if the connection cannot be established.
func NewDatabase(name string, config *DatabaseConfiguration, logger *slog.Logger) *Database {
	instance, err := openDatabase(config)
	if err != nil {
		log.Panicf("error connecting to database %v: %v", config.Database, err)
	}

	logger.Info("Connected to database", slog.String("name", name), slog.String("database", config.Database))

	return &Database{
		Name:     name,
		Instance: instance,
		Logger:   logger,
	}
}

// NewTestDatabase connects like NewDatabase with a debug level test logger.
func NewTestDatabase(config *DatabaseConfiguration) *Database {
	opts := PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}
	logger := slog.New(NewPrettyHandler(os.Stdout, opts))
	return NewDatabase("test", config, logger)
}

// Close closes the underlying connection pool.
func (d *Database) Close() error {
	return d.Instance.Close()
}

func openDatabase(config *DatabaseConfiguration) (*sql.DB, error) {
	instance, err := sql.Open("postgres", config.ConnectionString())
	if err != nil {
		return nil, NewCodeError("database open", CodeStoreUnavailable, err)
	}

	err = instance.Ping()
	if err == nil {
		return instance, nil
	}

	pqErr := &pq.Error{}
	if !errors.As(err, &pqErr) || pqErr.Code != "3D000" {
		instance.Close()
		return nil, NewCodeError("database ping", CodeStoreUnavailable, err)
	}

	// invalid_catalog_name, the database does not exist yet.
	instance.Close()
	err = createDatabase(config)
	if err != nil {
		return nil, err
	}

	instance, err = sql.Open("postgres", config.ConnectionString())
	if err != nil {
		return nil, NewCodeError("database open", CodeStoreUnavailable, err)
	}
	err = instance.Ping()
	if err != nil {
		instance.Close()
		return nil, NewCodeError("database ping", CodeStoreUnavailable, err)
	}
	return instance, nil
}

func createDatabase(config *DatabaseConfiguration) error {
	admin, err := sql.Open("postgres", config.WithDatabase("postgres").ConnectionString())
	if err != nil {
		return NewCodeError("database open", CodeStoreUnavailable, err)
	}
	defer admin.Close()

	_, err = admin.Exec(fmt.Sprintf("CREATE DATABASE %s", pq.QuoteIdentifier(config.Database)))
	if err != nil {
		pqErr := &pq.Error{}
		// duplicate_database, another connection created it first.
		if errors.As(err, &pqErr) && pqErr.Code == "42P04" {
			return nil
		}
		return NewCodeError("database create", CodeStoreUnavailable, err)
	}
	return nil
}
