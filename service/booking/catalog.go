package booking

import (
	"context"
	"errors"

	"github.com/mentorika/Mentorika-server/cmd/models"
	"gorm.io/gorm"
)

var (
	ErrMentorNotFound  = errors.New("mentor not found")
	ErrListingNotFound = errors.New("listing not found")
)

// Catalog looks up the provider side of a booking: the mentor profile and,
// when the booking goes through a listing, the listing itself.
type Catalog interface {
	Mentor(ctx context.Context, id uint) (*models.MentorProfile, error)
	Listing(ctx context.Context, id uint) (*models.Listing, error)
}

type GormCatalog struct {
	db *gorm.DB
}

func NewGormCatalog(db *gorm.DB) *GormCatalog {
	return &GormCatalog{db: db}
}

func (c *GormCatalog) Mentor(ctx context.Context, id uint) (*models.MentorProfile, error) {
	var profile models.MentorProfile
	if err := c.db.WithContext(ctx).First(&profile, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMentorNotFound
		}
		return nil, err
	}
	return &profile, nil
}

func (c *GormCatalog) Listing(ctx context.Context, id uint) (*models.Listing, error) {
	var listing models.Listing
	if err := c.db.WithContext(ctx).First(&listing, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrListingNotFound
		}
		return nil, err
	}
	return &listing, nil
}
