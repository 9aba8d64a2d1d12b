package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
)

//go:embed schema.sql
var schema string

// Defaults for the docqa connection pool. Ingestion workers and HTTP
// handlers share one pool for documents, chunks and tasks.
const (
	DefaultSchema         = "public"
	DefaultAppName        = "sercha-docqa"
	DefaultMaxOpenConns   = 25
	DefaultMaxIdleConns   = 5
	DefaultConnectTimeout = 10 * time.Second
)

var schemaName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// DB is the docqa connection pool. Every connection resolves unqualified
// table names in Schema.
type DB struct {
	*sql.DB
	schema string
}

// Config holds database connection configuration
type Config struct {
	// URL is a postgres:// URL or a key=value connection string
	URL string

	// Schema holds the docqa tables. InitSchema creates it when missing.
	Schema string

	// AppName is reported as application_name in pg_stat_activity
	AppName string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	ConnectTimeout  time.Duration
}

// DefaultConfig returns the pool settings used when only a URL is configured
func DefaultConfig(url string) Config {
	return Config{
		URL:             url,
		Schema:          DefaultSchema,
		AppName:         DefaultAppName,
		MaxOpenConns:    DefaultMaxOpenConns,
		MaxIdleConns:    DefaultMaxIdleConns,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
		ConnectTimeout:  DefaultConnectTimeout,
	}
}

// connString turns the configured URL into a lib/pq key=value string with
// the docqa session settings appended. Later keys win in lib/pq.
func (c Config) connString() (string, error) {
	if c.Schema != "" && !schemaName.MatchString(c.Schema) {
		return "", fmt.Errorf("invalid schema name %q", c.Schema)
	}

	base := strings.TrimSpace(c.URL)
	if base == "" {
		return "", errors.New("database url is empty")
	}
	if strings.HasPrefix(base, "postgres://") || strings.HasPrefix(base, "postgresql://") {
		parsed, err := pq.ParseURL(base)
		if err != nil {
			return "", fmt.Errorf("parse database url: %w", err)
		}
		base = parsed
	}

	parts := []string{base}
	if c.Schema != "" {
		parts = append(parts, "search_path="+quoteConnValue(c.Schema))
	}
	if c.AppName != "" {
		parts = append(parts, "application_name="+quoteConnValue(c.AppName))
	}
	if c.ConnectTimeout > 0 {
		secs := max(int(c.ConnectTimeout/time.Second), 1)
		parts = append(parts, "connect_timeout="+strconv.Itoa(secs))
	}
	return strings.Join(parts, " "), nil
}

func quoteConnValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// Connect opens the pool and verifies the server is reachable
func Connect(ctx context.Context, cfg Config) (*DB, error) {
	dsn, err := cfg.connString()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db, schema: cfg.Schema}, nil
}

// Schema returns the schema holding the docqa tables
func (db *DB) Schema() string {
	if db.schema == "" {
		return DefaultSchema
	}
	return db.schema
}

// InitSchema creates the schema, tables and indexes. Safe to run repeatedly.
func (db *DB) InitSchema(ctx context.Context) error {
	if s := db.Schema(); s != DefaultSchema {
		if _, err := db.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+pq.QuoteIdentifier(s)); err != nil {
			return fmt.Errorf("failed to create schema %s: %w", s, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Ping reports the database healthy once it is reachable and the
// documents table exists in the configured schema.
func (db *DB) Ping(ctx context.Context) error {
	var ready bool
	err := db.QueryRowContext(ctx, `SELECT to_regclass('documents') IS NOT NULL`).Scan(&ready)
	if err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	if !ready {
		return fmt.Errorf("schema %s is not initialized", db.Schema())
	}
	return nil
}

// Close closes the connection pool
func (db *DB) Close() error {
	return db.DB.Close()
}

// Transaction runs fn in a transaction, committing only when fn succeeds
func (db *DB) Transaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
