// Package repo implements the local persistence layer of the client-state
// store, backed by GORM. This file provides repository helpers for the
// ReconciliationGuard model used to suppress repeated consumption of the
// same pending pointer.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clausewise/go-clausewise-backend/internal/domain"
)

// ErrDuplicate indicates that a guard already exists for the given
// (device_id, pointer_id) tuple, i.e. the pointer has been handled before.
var ErrDuplicate = errors.New("duplicate")

// GetGuard returns a non-expired guard or ErrNotFound.
func GetGuard(ctx context.Context, db *gorm.DB, deviceID, pointerID string, now time.Time) (*domain.ReconciliationGuard, error) {
	if strings.TrimSpace(pointerID) == "" {
		return nil, ErrNotFound
	}
	var rec domain.ReconciliationGuard
	err := db.WithContext(ctx).
		Where("device_id = ? AND pointer_id = ? AND expires_at > ?", deviceID, pointerID, now).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &rec, err
}

// CreateGuard inserts a guard recording the outcome for a handled pointer
// and returns ErrDuplicate on unique violation (another invocation already
// handled this pointer).
func CreateGuard(ctx context.Context, db *gorm.DB, deviceID, pointerID, outcome, recordID string, ttl time.Duration) (*domain.ReconciliationGuard, error) {
	now := time.Now().UTC()
	rec := &domain.ReconciliationGuard{
		ID:        uuid.NewString(),
		DeviceID:  deviceID,
		PointerID: pointerID,
		Outcome:   outcome,
		RecordID:  recordID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
		low := strings.ToLower(err.Error())
		if errors.Is(err, gorm.ErrDuplicatedKey) ||
			strings.Contains(low, "unique constraint failed") ||
			strings.Contains(low, "constraint failed: unique") {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}

// SweepExpiredGuards removes guards whose TTL has passed.
func SweepExpiredGuards(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("expires_at < ?", now).
		Delete(&domain.ReconciliationGuard{})
	return res.RowsAffected, res.Error
}
