// Package domain defines the core data types of the reconciliation backend.
// This file holds the reconciliation guard model used to suppress repeated
// consumption of the same pending pointer.
package domain

import "time"

// ReconciliationGuard records that a pending pointer id has already been
// handled by the reconciliation worker, together with the outcome that was
// reported. Replayed reconcile calls for the same pointer short-circuit to
// the recorded outcome instead of re-executing side effects.
//
// Guards are scoped per device so two devices staging records with colliding
// ids (which uuid makes effectively impossible anyway) never interfere. Rows
// expire alongside the staged record they protect.
type ReconciliationGuard struct {
	ID        string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	DeviceID  string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_device_pointer,priority:1"`
	PointerID string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_device_pointer,priority:2"`
	Outcome   string    `gorm:"type:TEXT NOT NULL"`
	RecordID  string    `gorm:"type:TEXT NOT NULL"`
	CreatedAt time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (ReconciliationGuard) TableName() string { return "reconciliation_guards" }
