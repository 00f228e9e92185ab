package models

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	FullName     string `gorm:"column:full_name;size:255;not null" json:"full_name"`
	Email        string `gorm:"column:email;size:255;not null;uniqueIndex" json:"email"`
	PasswordHash string `gorm:"column:password_hash;size:255;not null" json:"-"`
	Role         string `gorm:"column:role;size:50;not null" json:"role"` // mentor | youth
	Phone        string `gorm:"column:phone;size:20" json:"phone"`
	Status       string `gorm:"column:status;size:50;not null;default:active" json:"status"`

	Refresh               string    `gorm:"column:refresh_token;size:255" json:"-"`
	RefreshTokenExpiredAt time.Time `gorm:"column:refresh_token_expired_at" json:"-"`

	MentorProfile *MentorProfile `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"mentor_profile,omitempty"`
}

// MentorProfile carries everything bookers see about a mentor plus the
// mentor's personal availability calendar. Listings may override the
// calendar per service; the profile map is the default.
type MentorProfile struct {
	gorm.Model
	UserID    uint   `gorm:"column:user_id;not null;uniqueIndex" json:"user_id"`
	Expertise string `gorm:"column:expertise;size:255" json:"expertise"`
	Bio       string `gorm:"column:bio;type:text" json:"bio"`
	Verified  bool   `gorm:"column:verified;default:false" json:"verified"`

	IndividualPrice float64 `gorm:"column:individual_price;default:0" json:"individual_price"`
	// Zero means the mentor has not configured group sessions and group
	// formats are not offered for direct bookings.
	GroupPrice      float64 `gorm:"column:group_price;default:0" json:"group_price"`
	MaxParticipants int     `gorm:"column:max_participants;default:1" json:"max_participants"`

	Schedule SlotMap `gorm:"column:schedule;type:jsonb;default:'{}'" json:"schedule"`
	// Stamped when the mentor reconfirms the calendar; nil or older than
	// FreshnessWindow hides the mentor from bookable listings.
	LastWeeklyUpdate *time.Time `gorm:"column:last_weekly_update" json:"last_weekly_update,omitempty"`

	AverageRating float64 `gorm:"column:average_rating;default:0" json:"average_rating"`
	TotalRatings  int     `gorm:"column:total_ratings;default:0" json:"total_ratings"`

	User *User `gorm:"foreignKey:UserID" json:"-"`
}

func (MentorProfile) TableName() string {
	return "mentor_profiles"
}

type Rating struct {
	gorm.Model
	UserID   uint    `gorm:"column:user_id;not null" json:"user_id"`
	MentorID uint    `gorm:"column:mentor_id;not null" json:"mentor_id"`
	Rating   float64 `gorm:"column:rating;not null" json:"rating"`
	Comment  string  `gorm:"column:comment;type:text" json:"comment"`

	User   *User          `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Mentor *MentorProfile `gorm:"foreignKey:MentorID" json:"mentor,omitempty"`
}

func (Rating) TableName() string {
	return "ratings"
}

type PasswordResetToken struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"not null"`
	Token     string    `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null"`
}
