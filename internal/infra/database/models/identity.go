package models

import (
	"time"
)

// Identity mirrors users of the external identity provider that have authenticated here.
type Identity struct {
	ID    string    `json:"id" gorm:"primaryKey;type:text"`
	Email string    `json:"email" gorm:"type:text;not null;index:identity_email,unique"`
	MDate time.Time `json:"mdate" gorm:"type:timestamp with time zone;not null"`
}
