// Package staging implements the deferred-write store. This file holds the
// store itself: staging, peeking, consuming, and clearing deferred records
// addressed through the single pending pointer.
package staging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/clausewise/go-clausewise-backend/internal/domain"
)

// Logical key names, namespaced per device via DeviceKey.
const (
	// keyPending is the well-known pointer key holding the id of the one
	// outstanding deferred record.
	keyPending = "pending"
	// keyRecordPrefix prefixes record-scoped staged payload keys.
	keyRecordPrefix = "record:"

	// KeyAnonQuota holds the device-scoped anonymous quota ledger (owned by
	// the quota package, named here so all persisted keys are in one place).
	KeyAnonQuota = "anon_quota"
	// KeyConsent holds the cookie-consent flag.
	KeyConsent = "cookie_consent"
)

// DefaultTTL is how long a staged record stays promotable.
const DefaultTTL = 24 * time.Hour

// Store is the deferred-write store. At most one deferred record is
// outstanding per device: staging a second one overwrites the pointer and
// orphans the previous payload, which is only collected by TTL expiry.
// This is deliberate; there is no multi-record queue.
type Store struct {
	kv  KV
	ttl time.Duration
	now func() time.Time
}

// Option customizes a Store.
type Option func(*Store)

// WithTTL overrides the staging TTL.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore builds a Store over the given KV backend.
func NewStore(kv KV, opts ...Option) *Store {
	s := &Store{
		kv:  kv,
		ttl: DefaultTTL,
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stage writes the payload under a fresh record-scoped key and overwrites
// the pending pointer with the new id. Returns ok=false when the backend
// refused the write; the caller reports "could not complete, try again".
func (s *Store) Stage(ctx context.Context, deviceID string, payload domain.StagedAnalysis) (string, bool) {
	now := s.now()
	rec := domain.DeferredRecord{
		ID:        uuid.NewString(),
		Payload:   payload,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		log.Warn().Err(err).Msg("staging: marshal deferred record failed")
		return "", false
	}

	// Record first, pointer second: a pointer must never dangle on a
	// half-completed stage. If the pointer write fails the record is
	// unreachable and the TTL collects it.
	if !s.kv.SetTTL(ctx, s.recordKey(deviceID, rec.ID), string(raw), s.ttl) {
		return "", false
	}
	if !s.kv.SetTTL(ctx, s.pendingKey(deviceID), rec.ID, s.ttl) {
		s.kv.Delete(ctx, s.recordKey(deviceID, rec.ID))
		return "", false
	}
	return rec.ID, true
}

// PeekPending reads the pending pointer without side effects.
func (s *Store) PeekPending(ctx context.Context, deviceID string) (string, bool) {
	id, ok := s.kv.Get(ctx, s.pendingKey(deviceID))
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// Consume reads and validates the staged record for id. Missing or corrupt
// data yields ok=false; the caller decides whether to clear staging.
func (s *Store) Consume(ctx context.Context, deviceID, id string) (*domain.DeferredRecord, bool) {
	raw, ok := s.kv.Get(ctx, s.recordKey(deviceID, id))
	if !ok {
		return nil, false
	}
	var rec domain.DeferredRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		log.Warn().Err(err).Str("record_id", id).Msg("staging: corrupt deferred record")
		return nil, false
	}
	if rec.ID != id {
		log.Warn().Str("record_id", id).Str("stored_id", rec.ID).Msg("staging: record id mismatch")
		return nil, false
	}
	return &rec, true
}

// Clear removes the record-scoped key for id, and the pending pointer only
// if it still equals id — a pointer overwritten by a newer Stage is left
// untouched. Clear is idempotent.
func (s *Store) Clear(ctx context.Context, deviceID, id string) {
	s.kv.DeleteIfEquals(ctx, s.pendingKey(deviceID), id)
	s.kv.Delete(ctx, s.recordKey(deviceID, id))
}

// TTL returns the configured staging lifetime.
func (s *Store) TTL() time.Duration { return s.ttl }

func (s *Store) pendingKey(deviceID string) string {
	return DeviceKey(deviceID, keyPending)
}

func (s *Store) recordKey(deviceID, id string) string {
	return DeviceKey(deviceID, keyRecordPrefix+id)
}
