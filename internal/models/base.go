package models

import (
	"time"

	"github.com/kiko9987/itglobal/internal/uuid"

	"gorm.io/gorm"
)

// Base contains the UUID primary key and creation time for append-only tables.
type Base struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New()
	}
	return nil
}
