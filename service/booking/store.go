package booking

import (
	"context"
	"errors"
	"time"

	"github.com/mentorika/Mentorika-server/cmd/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store persists bookings. The service serializes slot-claiming writes per
// mentor on top of whatever the implementation offers.
type Store interface {
	Get(ctx context.Context, id uint) (*models.Booking, error)
	Create(ctx context.Context, b *models.Booking) error
	Update(ctx context.Context, b *models.Booking) error
	ActiveForMentor(ctx context.Context, mentorID uint) ([]models.Booking, error)
	ActiveForAuction(ctx context.Context, auctionID uint) ([]models.Booking, error)
	ForBooker(ctx context.Context, bookerID uint) ([]models.Booking, error)
	ForMentor(ctx context.Context, mentorID uint) ([]models.Booking, error)
	PendingBefore(ctx context.Context, cutoff time.Time) ([]models.Booking, error)
	All(ctx context.Context) ([]models.Booking, error)
}

var activeStatuses = []string{models.BookingPending, models.BookingConfirmed}

// GormStore is the Postgres tier. Creates run inside a transaction that
// locks competing rows, so the no-double-booking guarantee holds even when
// this store is used directly rather than behind the replicated tier.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Get(ctx context.Context, id uint) (*models.Booking, error) {
	var b models.Booking
	if err := s.db.WithContext(ctx).First(&b, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (s *GormStore) Create(ctx context.Context, b *models.Booking) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Lock candidate rows for the same slot so two concurrent creates
		// cannot both pass the capacity check upstream.
		var competing []models.Booking
		err := tx.Model(&models.Booking{}).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("mentor_id = ? AND date = ? AND time_label = ? AND status IN ?",
				b.MentorID, b.Date, b.TimeLabel, activeStatuses).
			Find(&competing).Error
		if err != nil {
			return err
		}
		return tx.Create(b).Error
	})
}

func (s *GormStore) Update(ctx context.Context, b *models.Booking) error {
	return s.db.WithContext(ctx).Save(b).Error
}

func (s *GormStore) ActiveForMentor(ctx context.Context, mentorID uint) ([]models.Booking, error) {
	var out []models.Booking
	err := s.db.WithContext(ctx).
		Where("mentor_id = ? AND status IN ?", mentorID, activeStatuses).
		Find(&out).Error
	return out, err
}

func (s *GormStore) ActiveForAuction(ctx context.Context, auctionID uint) ([]models.Booking, error) {
	var out []models.Booking
	err := s.db.WithContext(ctx).
		Where("auction_id = ? AND status IN ?", auctionID, activeStatuses).
		Find(&out).Error
	return out, err
}

func (s *GormStore) ForBooker(ctx context.Context, bookerID uint) ([]models.Booking, error) {
	var out []models.Booking
	err := s.db.WithContext(ctx).
		Where("booker_id = ?", bookerID).
		Order("date DESC, time_label DESC").
		Find(&out).Error
	return out, err
}

func (s *GormStore) ForMentor(ctx context.Context, mentorID uint) ([]models.Booking, error) {
	var out []models.Booking
	err := s.db.WithContext(ctx).
		Where("mentor_id = ?", mentorID).
		Order("date DESC, time_label DESC").
		Find(&out).Error
	return out, err
}

func (s *GormStore) PendingBefore(ctx context.Context, cutoff time.Time) ([]models.Booking, error) {
	var out []models.Booking
	err := s.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", models.BookingPending, cutoff).
		Find(&out).Error
	return out, err
}

func (s *GormStore) All(ctx context.Context) ([]models.Booking, error) {
	var out []models.Booking
	err := s.db.WithContext(ctx).Find(&out).Error
	return out, err
}
