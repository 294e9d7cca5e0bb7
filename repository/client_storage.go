package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"github.com/goliatone/r6-tools/auth"
)

var _ auth.KeyValueStorage = &ClientStorage{}

// ClientStorageItem is the Bun model for persisted client storage entries.
type ClientStorageItem struct {
	bun.BaseModel `bun:"table:client_storage"`

	Key       string    `bun:"key,pk"`
	Value     string    `bun:"value,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// ClientStorage implements auth.KeyValueStorage using Bun. It backs the
// browser session client of the command line tool.
type ClientStorage struct {
	db  *bun.DB
	now func() time.Time
}

// NewClientStorage creates a new storage on db. Call CreateSchema once
// before use.
func NewClientStorage(db *bun.DB) *ClientStorage {
	return &ClientStorage{db: db, now: time.Now}
}

// CreateSchema creates the client_storage table if it does not exist.
func (s *ClientStorage) CreateSchema(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*ClientStorageItem)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

// GetItem implements auth.KeyValueStorage.
func (s *ClientStorage) GetItem(ctx context.Context, key string) (string, bool, error) {
	var item ClientStorageItem
	err := s.db.NewSelect().
		Model(&item).
		Where("key = ?", key).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return item.Value, true, nil
}

// SetItem implements auth.KeyValueStorage.
func (s *ClientStorage) SetItem(ctx context.Context, key, value string) error {
	item := &ClientStorageItem{
		Key:       key,
		Value:     value,
		UpdatedAt: s.now(),
	}

	_, err := s.db.NewInsert().
		Model(item).
		On("CONFLICT (key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)

	return err
}

// RemoveItem implements auth.KeyValueStorage.
func (s *ClientStorage) RemoveItem(ctx context.Context, key string) error {
	_, err := s.db.NewDelete().
		Model((*ClientStorageItem)(nil)).
		Where("key = ?", key).
		Exec(ctx)
	return err
}

// Keys lists the stored keys
func (s *ClientStorage) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := s.db.NewSelect().
		Model((*ClientStorageItem)(nil)).
		Column("key").
		Order("key ASC").
		Scan(ctx, &keys)
	return keys, err
}
