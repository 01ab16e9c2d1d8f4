package models

import "time"

// IdempotencyKey records a client supplied request key inside the ledger transaction it
// guarded. Unique constraint: (operation, request_key).
type IdempotencyKey struct {
	ID          int       `gorm:"primary_key" json:"id"`
	Operation   string    `gorm:"size:100;not null;index:uniq_idem,unique" json:"operation"`
	RequestKey  string    `gorm:"size:255;not null;index:uniq_idem,unique" json:"request_key"`
	PerformedBy string    `gorm:"size:100" json:"performed_by"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}
