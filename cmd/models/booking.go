package models

import (
	"gorm.io/gorm"
)

// Booking statuses. Refunded is terminal and counts the same as cancelled
// for slot availability.
const (
	BookingPending   = "pending"
	BookingConfirmed = "confirmed"
	BookingCompleted = "completed"
	BookingCancelled = "cancelled"
	BookingRefunded  = "refunded"
)

// Session formats.
const (
	FormatIndividualOnline  = "individual_online"
	FormatIndividualOffline = "individual_offline"
	FormatGroupOnline       = "group_online"
	FormatGroupOffline      = "group_offline"
)

func IsGroupFormat(format string) bool {
	return format == FormatGroupOnline || format == FormatGroupOffline
}

func ValidFormat(format string) bool {
	switch format {
	case FormatIndividualOnline, FormatIndividualOffline, FormatGroupOnline, FormatGroupOffline:
		return true
	}
	return false
}

// ActiveStatus reports whether a booking in this status occupies its slot.
func ActiveStatus(status string) bool {
	return status == BookingPending || status == BookingConfirmed
}

// CanTransition is the booking state machine. Reschedule is modeled as
// confirmed -> confirmed. There is no path out of a terminal status and no
// direct pending -> completed.
func CanTransition(from, to string) bool {
	switch from {
	case BookingPending:
		return to == BookingConfirmed || to == BookingCancelled
	case BookingConfirmed:
		return to == BookingCompleted || to == BookingCancelled ||
			to == BookingRefunded || to == BookingConfirmed
	}
	return false
}

// Booking reserves a single (date, time) slot between a youth and a mentor,
// optionally through a specific listing. Rows are never deleted; terminal
// statuses keep the history for the ledger.
type Booking struct {
	gorm.Model
	MentorID  uint  `gorm:"column:mentor_id;not null;index" json:"mentor_id"`
	BookerID  uint  `gorm:"column:booker_id;not null;index" json:"booker_id"`
	ListingID *uint `gorm:"column:listing_id;index" json:"listing_id,omitempty"`

	// Set when the booking came out of a won auction. At most one active
	// booking may exist per auction.
	AuctionID *uint `gorm:"column:auction_id;index" json:"auction_id,omitempty"`

	Format    string  `gorm:"column:format;size:50;not null" json:"format"`
	Date      string  `gorm:"column:date;size:10;not null" json:"date"`       // "2006-01-02"
	TimeLabel string  `gorm:"column:time_label;size:20;not null" json:"time"` // free-text, e.g. "14:00"
	Price     float64 `gorm:"column:price;not null" json:"price"`
	Status    string  `gorm:"column:status;size:20;not null;default:pending" json:"status"`

	Goal          string `gorm:"column:goal;type:text" json:"goal"`
	ExchangeOffer string `gorm:"column:exchange_offer;type:text" json:"exchange_offer"`
	CancelReason  string `gorm:"column:cancel_reason;type:text" json:"cancel_reason,omitempty"`

	// Reference handed to the payment collaborator; confirmation comes back
	// keyed on it.
	PaymentRef string `gorm:"column:payment_ref;size:64;index" json:"payment_ref"`

	Mentor  *MentorProfile `gorm:"foreignKey:MentorID" json:"mentor,omitempty"`
	Booker  *User          `gorm:"foreignKey:BookerID" json:"booker,omitempty"`
	Listing *Listing       `gorm:"foreignKey:ListingID" json:"listing,omitempty"`
}

// OccupiesSlot reports whether this booking blocks the given slot.
func (b *Booking) OccupiesSlot(mentorID uint, date, timeLabel string) bool {
	return b.MentorID == mentorID && b.Date == date && b.TimeLabel == timeLabel &&
		ActiveStatus(b.Status)
}
