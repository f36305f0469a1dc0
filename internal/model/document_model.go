package model

import (
	"time"
)

type Document struct {
	Id          string `gorm:"type:varchar(16);primaryKey"`
	Name        string `gorm:"type:text;not null"`
	Path        string `gorm:"type:text;not null"`
	Fingerprint string `gorm:"type:varchar(64);not null"`
	Status      string `gorm:"type:varchar(16);not null;default:pending"`
	ChunkCount  int    `gorm:"default:0"`
	Generation  int    `gorm:"default:0"`
	CreatedAt   time.Time  `gorm:"autoCreateTime"`
	UpdatedAt   *time.Time `gorm:"autoUpdateTime"`
}

func (Document) TableName() string {
	return "documents"
}
