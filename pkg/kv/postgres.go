package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/studyhelper/studyhelper-api/pkg/config"
)

// Postgres keeps state in a single key/value table.
type Postgres struct {
	db *sqlx.DB
}

// NewPostgres connects to PostgreSQL and ensures the state table exists.
func NewPostgres(cfg config.DatabaseConfig) (*Postgres, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	store := NewPostgresWithDB(db)
	if err := store.ensureTable(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewPostgresWithDB wraps an existing connection, primarily for tests.
func NewPostgresWithDB(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) ensureTable(ctx context.Context) error {
	const query = `CREATE TABLE IF NOT EXISTS app_state (key TEXT PRIMARY KEY, value TEXT NOT NULL, updated_at TIMESTAMPTZ NOT NULL)`
	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ensure app_state table: %w", err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, key string) (string, error) {
	const query = `SELECT value FROM app_state WHERE key = $1 LIMIT 1`
	var value string
	if err := p.db.GetContext(ctx, &value, query, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrKeyNotFound
		}
		return "", fmt.Errorf("get state: %w", err)
	}
	return value, nil
}

func (p *Postgres) Set(ctx context.Context, key, value string) error {
	const query = `INSERT INTO app_state (key, value, updated_at) VALUES ($1, $2, $3) ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
	if _, err := p.db.ExecContext(ctx, query, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("set state: %w", err)
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, key string) error {
	const query = `DELETE FROM app_state WHERE key = $1`
	if _, err := p.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("delete state: %w", err)
	}
	return nil
}

// Close releases the underlying pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}
