package models

import (
	"gorm.io/gorm"
)

// Listing is a service a mentor offers: a titled session package with its
// own pricing and, optionally, its own availability calendar. When Schedule
// is non-empty it fully replaces the mentor's default map for bookings of
// this listing; the two are never merged.
type Listing struct {
	gorm.Model
	MentorID    uint   `gorm:"column:mentor_id;not null;index" json:"mentor_id"`
	Title       string `gorm:"column:title;size:255;not null" json:"title"`
	Description string `gorm:"column:description;type:text" json:"description"`
	Category    string `gorm:"column:category;size:50" json:"category"`

	IndividualPrice float64 `gorm:"column:individual_price;default:0" json:"individual_price"`
	GroupPrice      float64 `gorm:"column:group_price;default:0" json:"group_price"`
	MaxParticipants int     `gorm:"column:max_participants;default:1" json:"max_participants"`

	Schedule SlotMap `gorm:"column:schedule;type:jsonb;default:'{}'" json:"schedule"`

	// Auctioned listings collect bids instead of fixed-price bookings.
	Auctioned bool `gorm:"column:auctioned;default:false" json:"auctioned"`

	Mentor *MentorProfile `gorm:"foreignKey:MentorID" json:"mentor,omitempty"`
}

func (Listing) TableName() string {
	return "listings"
}

// HasOwnSchedule reports whether the listing overrides the mentor's default
// availability map.
func (l *Listing) HasOwnSchedule() bool {
	return len(l.Schedule) > 0
}

// Capacity is how many active bookings a single (date, time) slot of this
// listing can hold for the given booking format.
func (l *Listing) Capacity(format string) int {
	if IsGroupFormat(format) && l.MaxParticipants > 1 {
		return l.MaxParticipants
	}
	return 1
}
