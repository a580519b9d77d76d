package models

import "time"

// RegionCounter holds the last sequence number issued for a region. Value only
// ever grows; deleting a project never gives its number back.
type RegionCounter struct {
	Region    string    `gorm:"primaryKey;size:16" json:"region"`
	Value     int64     `gorm:"not null;default:0" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
