package models

import (
	"time"

	"gorm.io/gorm"
)

type Device struct {
	gorm.Model
	Token      string `gorm:"not null;uniqueIndex:idx_token_user" json:"token"`
	UserID     uint   `gorm:"not null;index;uniqueIndex:idx_token_user" json:"user_id"`
	DeviceType string `gorm:"type:varchar(50)" json:"device_type"`
	DeviceName string `gorm:"type:varchar(100)" json:"device_name,omitempty"`
}

type NotificationHistory struct {
	gorm.Model
	UserID uint      `gorm:"index" json:"user_id"`
	Title  string    `json:"title"`
	Body   string    `json:"body"`
	Data   string    `gorm:"type:text" json:"data,omitempty"` // JSON string of additional data
	Status string    `gorm:"type:varchar(20)" json:"status"`  // sent, failed
	SentAt time.Time `json:"sent_at"`
}
