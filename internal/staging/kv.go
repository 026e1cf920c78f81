// Package staging implements the deferred-write store: the durable
// client-side staging area holding anonymous results until they are
// reconciled into permanent records after authentication.
//
// This file defines the defensive key/value contract the store is built on,
// and its two backends: a GORM/SQLite implementation (the default,
// device-local durable store) and a Redis implementation for deployments
// where staging must be shared across replicas.
//
// The KV contract deliberately has no error returns. The original store is
// browser-grade storage that can be disabled, full, or corrupted at any
// time; every operation must degrade to "no value" rather than propagate a
// failure into navigation. Failures are logged, never thrown.
package staging

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/clausewise/go-clausewise-backend/internal/repo"
)

// KV is the defensive key/value contract of the client-state store.
//
// Implementations must be safe for concurrent use. Last write wins; the only
// conditional primitive is DeleteIfEquals, which is the sole concurrency
// control the design relies on (spec'd pointer-equality safeguard).
type KV interface {
	// Get returns the live value for key, or ok=false when the key is
	// missing, expired, or the backend failed.
	Get(ctx context.Context, key string) (value string, ok bool)
	// Set stores a non-expiring value. Reports success.
	Set(ctx context.Context, key, value string) bool
	// SetTTL stores a value that expires after ttl. Reports success.
	SetTTL(ctx context.Context, key, value string, ttl time.Duration) bool
	// Delete removes a key. Removing a missing key is success.
	Delete(ctx context.Context, key string) bool
	// DeleteIfEquals removes key only when its current value equals want.
	// Reports whether a deletion happened.
	DeleteIfEquals(ctx context.Context, key, want string) bool
}

// DeviceKey namespaces a logical key per client device so devices sharing a
// backend never see each other's pointers or ledgers.
func DeviceKey(deviceID, name string) string {
	return "cw:" + deviceID + ":" + name
}

// GormKV is the SQLite-backed KV, wrapping the thin repo layer with the
// defensive contract.
type GormKV struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormKV returns a KV backed by the given GORM handle.
func NewGormKV(db *gorm.DB) *GormKV {
	return &GormKV{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Get implements KV.
func (s *GormKV) Get(ctx context.Context, key string) (string, bool) {
	v, err := repo.GetKV(ctx, s.db, key, s.now())
	if err == repo.ErrNotFound {
		return "", false
	}
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("kv get failed")
		return "", false
	}
	return v, true
}

// Set implements KV.
func (s *GormKV) Set(ctx context.Context, key, value string) bool {
	if err := repo.SetKV(ctx, s.db, key, value); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("kv set failed")
		return false
	}
	return true
}

// SetTTL implements KV.
func (s *GormKV) SetTTL(ctx context.Context, key, value string, ttl time.Duration) bool {
	if err := repo.SetKVWithTTL(ctx, s.db, key, value, s.now(), ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("kv set with ttl failed")
		return false
	}
	return true
}

// Delete implements KV.
func (s *GormKV) Delete(ctx context.Context, key string) bool {
	if err := repo.DeleteKV(ctx, s.db, key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("kv delete failed")
		return false
	}
	return true
}

// DeleteIfEquals implements KV.
func (s *GormKV) DeleteIfEquals(ctx context.Context, key, want string) bool {
	deleted, err := repo.DeleteKVIfEquals(ctx, s.db, key, want)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("kv conditional delete failed")
		return false
	}
	return deleted
}
