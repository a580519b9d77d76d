package models

import "time"

// NotificationState is the dedup memory for one owner: the fingerprint of the
// last digest claimed for delivery on Day (YYYY-MM-DD), and the claim it
// replaced so a failed delivery can fall back to it.
type NotificationState struct {
	Owner           string    `gorm:"primaryKey;size:100" json:"owner"`
	Day             string    `gorm:"size:10;not null" json:"day"`
	Fingerprint     string    `gorm:"size:64;not null" json:"fingerprint"`
	PrevDay         string    `gorm:"size:10;not null;default:''" json:"prev_day"`
	PrevFingerprint string    `gorm:"size:64;not null;default:''" json:"prev_fingerprint"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// DeliveryKind distinguishes owner digests from the admin summary.
type DeliveryKind string

const (
	DeliveryKindDigest  DeliveryKind = "digest"
	DeliveryKindSummary DeliveryKind = "summary"
)

// DeliveryStatus is the outcome of one send attempt.
type DeliveryStatus string

const (
	DeliverySent   DeliveryStatus = "sent"
	DeliveryFailed DeliveryStatus = "failed"
)

// DeliveryLog records one notification send attempt.
type DeliveryLog struct {
	Base
	RunID     string         `gorm:"size:36;not null;index" json:"run_id"`
	Kind      DeliveryKind   `gorm:"size:16;not null" json:"kind"`
	Owner     string         `gorm:"size:100;index" json:"owner,omitempty"`
	Recipient string         `gorm:"size:300;not null" json:"recipient"`
	Channel   string         `gorm:"size:16;not null" json:"channel"`
	Subject   string         `gorm:"size:300" json:"subject"`
	Status    DeliveryStatus `gorm:"size:16;not null" json:"status"`
	Error     string         `gorm:"type:text" json:"error,omitempty"`
}
