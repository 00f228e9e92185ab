package booking

import (
	"context"

	"github.com/mentorika/Mentorika-server/cmd/models"
	"gorm.io/gorm"
)

// Ledger records the financial side effect of a confirmed booking. Entries
// are append-only; nothing in the lifecycle ever reads them back.
type Ledger interface {
	Debit(ctx context.Context, userID uint, amount float64, purpose, reference string) error
}

type GormLedger struct {
	db *gorm.DB
}

func NewGormLedger(db *gorm.DB) *GormLedger {
	return &GormLedger{db: db}
}

// Debit is replayable per reference: a confirm retried after a partial
// failure finds the earlier entry and writes nothing.
func (l *GormLedger) Debit(ctx context.Context, userID uint, amount float64, purpose, reference string) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		err := tx.Model(&models.Transaction{}).
			Where("reference = ? AND direction = ?", reference, "debit").
			Count(&existing).Error
		if err != nil {
			return err
		}
		if existing > 0 {
			return nil
		}
		return tx.Create(&models.Transaction{
			UserID:    userID,
			Amount:    amount,
			Direction: "debit",
			Purpose:   purpose,
			Reference: reference,
		}).Error
	})
}
