// Package repo implements the local persistence layer of the client-state
// store, backed by GORM. This file provides repository functions for the
// KVEntry model: the durable key/value rows backing the pending pointer,
// staged payloads, the anonymous quota ledger, and the cookie-consent flag.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. They follow the "thin repository"
// approach: no business logic, only CRUD persistence and query composition.
//
// Error semantics:
//   - When a key is missing (or only an expired row exists), functions
//     return ErrNotFound.
//   - On DB errors the raw gorm error is propagated; the defensive
//     "never throws" contract of the client-state store is implemented one
//     layer up (see internal/staging).
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/clausewise/go-clausewise-backend/internal/domain"
)

// ErrNotFound indicates the requested key does not exist or has expired.
var ErrNotFound = errors.New("not found")

// GetKV returns the live value stored under key. Expired rows are treated as
// missing and lazily deleted so orphaned staged payloads are garbage
// collected on first touch after their TTL.
func GetKV(ctx context.Context, db *gorm.DB, key string, now time.Time) (string, error) {
	var entry domain.KVEntry
	err := db.WithContext(ctx).Where("key = ?", key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if !entry.ExpiresAt.IsZero() && now.After(entry.ExpiresAt) {
		_ = db.WithContext(ctx).Where("key = ?", key).Delete(&domain.KVEntry{}).Error
		return "", ErrNotFound
	}
	return entry.Value, nil
}

// SetKV upserts a non-expiring key/value pair (last write wins).
func SetKV(ctx context.Context, db *gorm.DB, key, value string) error {
	return setKV(ctx, db, key, value, time.Time{})
}

// SetKVWithTTL upserts a key/value pair that expires at now+ttl.
func SetKVWithTTL(ctx context.Context, db *gorm.DB, key, value string, now time.Time, ttl time.Duration) error {
	return setKV(ctx, db, key, value, now.Add(ttl))
}

func setKV(ctx context.Context, db *gorm.DB, key, value string, expiresAt time.Time) error {
	entry := domain.KVEntry{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now().UTC(),
		ExpiresAt: expiresAt,
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at", "expires_at"}),
	}).Create(&entry).Error
}

// DeleteKV removes a key unconditionally. Deleting a missing key is not an
// error.
func DeleteKV(ctx context.Context, db *gorm.DB, key string) error {
	return db.WithContext(ctx).Where("key = ?", key).Delete(&domain.KVEntry{}).Error
}

// DeleteKVIfEquals removes a key only when its current value still equals
// want, as a single conditional statement. This is the pointer-equality
// safeguard: clearing a consumed pending pointer must not clobber a newer
// pointer written by a concurrent stage. Returns whether a row was deleted.
func DeleteKVIfEquals(ctx context.Context, db *gorm.DB, key, want string) (bool, error) {
	res := db.WithContext(ctx).
		Where("key = ? AND value = ?", key, want).
		Delete(&domain.KVEntry{})
	return res.RowsAffected > 0, res.Error
}

// SweepExpiredKV deletes all rows whose TTL has passed and returns the number
// removed. Called periodically; correctness does not depend on it because
// GetKV treats expired rows as missing.
func SweepExpiredKV(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at > ? AND expires_at < ?", time.Time{}, now).
		Delete(&domain.KVEntry{})
	return res.RowsAffected, res.Error
}
