package models

import (
	"time"
)

type TimeClaim struct {
	ID       int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	OwnerID  string    `json:"ownerId" gorm:"type:text;not null;index"`
	StartAt  time.Time `json:"start" gorm:"type:timestamp with time zone;not null;index:time_claim_range"`
	EndAt    time.Time `json:"end" gorm:"type:timestamp with time zone;not null;index:time_claim_range"`
	Message  *string   `json:"message" gorm:"type:text"`
	ImageURL *string   `json:"imageUrl" gorm:"type:text"`
	CDate    time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
}
