package models

import (
	"gorm.io/gorm"
)

// Transaction is an append-only ledger entry. Rows are written exactly once,
// when a booking reaches confirmed, and are never updated afterwards.
type Transaction struct {
	gorm.Model
	UserID    uint    `gorm:"column:user_id;not null;index" json:"user_id"`
	Amount    float64 `gorm:"column:amount;type:float;not null" json:"amount"`
	Direction string  `gorm:"column:direction;size:10;not null;default:debit" json:"direction"`
	Purpose   string  `gorm:"column:purpose;type:text;not null" json:"purpose"`
	Reference string  `gorm:"column:reference;size:64;index" json:"reference"`

	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
