package db

import (
	"context"
	"errors"
	"time"

	"github.com/brojonat/solboard/service/metrics"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// APIKeySetting is the settings row holding the indexer API key.
const APIKeySetting = "helius_api_key"

const settingsTable = "settings"

// Store provides database operations for the service.
type Store struct {
	pool    *pgxpool.Pool
	metrics *metrics.Metrics
}

// NewStore creates a new Store with the given database connection pool.
func NewStore(pool *pgxpool.Pool, m *metrics.Metrics) *Store {
	return &Store{pool: pool, metrics: m}
}

// GetSetting returns the value stored under key, or "" if there is none.
func (s *Store) GetSetting(ctx context.Context, key string) (value string, err error) {
	defer metrics.Since(time.Now(), func(d float64) {
		s.metrics.RecordDBQuery("get_setting", settingsTable, d, err)
	})()

	err = s.pool.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// PutSetting upserts value under key.
func (s *Store) PutSetting(ctx context.Context, key, value string) (err error) {
	defer metrics.Since(time.Now(), func(d float64) {
		s.metrics.RecordDBQuery("put_setting", settingsTable, d, err)
	})()

	_, err = s.pool.Exec(ctx, `
		INSERT INTO settings (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		key, value)
	return err
}

// DeleteSetting removes key. Deleting a missing key is not an error.
func (s *Store) DeleteSetting(ctx context.Context, key string) (err error) {
	defer metrics.Since(time.Now(), func(d float64) {
		s.metrics.RecordDBQuery("delete_setting", settingsTable, d, err)
	})()

	_, err = s.pool.Exec(ctx, `DELETE FROM settings WHERE key = $1`, key)
	return err
}

// Load returns the saved API key.
func (s *Store) Load(ctx context.Context) (string, error) {
	return s.GetSetting(ctx, APIKeySetting)
}

// Save stores the API key.
func (s *Store) Save(ctx context.Context, key string) error {
	return s.PutSetting(ctx, APIKeySetting, key)
}

// Clear removes the saved API key.
func (s *Store) Clear(ctx context.Context) error {
	return s.DeleteSetting(ctx, APIKeySetting)
}
