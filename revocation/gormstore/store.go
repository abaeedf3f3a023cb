// Package gormstore implements revocation.Store on any SQL database supported by gorm.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RevokedToken is one denylist row.
type RevokedToken struct {
	JTI       string    `gorm:"primaryKey;type:varchar(64)"`
	ExpiresAt time.Time `gorm:"index:idx_revoked_tokens_expires_at;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName pins the table name used by gorm.
func (RevokedToken) TableName() string {
	return "revoked_tokens"
}

// Store is a SQL-backed denylist.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// New migrates the revoked_tokens table and returns a Store.
func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("database cannot be nil")
	}
	if err := db.AutoMigrate(&RevokedToken{}); err != nil {
		return nil, fmt.Errorf("failed to migrate revoked_tokens: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Revoke inserts jti, or pushes its expiry forward when it is already present.
func (s *Store) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	row := RevokedToken{
		JTI:       jti,
		ExpiresAt: expiresAt.UTC(),
		CreatedAt: s.now().UTC(),
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
		if res.Error != nil {
			return fmt.Errorf("failed to insert revoked token: %w", res.Error)
		}
		if res.RowsAffected > 0 {
			return nil
		}

		err := tx.Model(&RevokedToken{}).
			Where("jti = ? AND expires_at < ?", jti, row.ExpiresAt).
			Update("expires_at", row.ExpiresAt).Error
		if err != nil {
			return fmt.Errorf("failed to extend revoked token: %w", err)
		}
		return nil
	})
}

// IsRevoked reports whether jti has a row that has not expired yet.
func (s *Store) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&RevokedToken{}).
		Where("jti = ? AND expires_at > ?", jti, s.now().UTC()).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to query revoked token: %w", err)
	}
	return count > 0, nil
}

// Cleanup deletes expired rows and returns how many were removed.
func (s *Store) Cleanup(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at <= ?", s.now().UTC()).
		Delete(&RevokedToken{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to cleanup revoked tokens: %w", res.Error)
	}
	return res.RowsAffected, nil
}
