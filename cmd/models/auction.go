package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	AuctionActive = "active"
	AuctionClosed = "closed"
)

// Auction is a biddable lot for one listing. CurrentBid only ever moves up,
// and only by at least MinStep at a time; PlaceBid is its sole mutator.
type Auction struct {
	gorm.Model
	ListingID   uint      `gorm:"column:listing_id;not null;uniqueIndex" json:"listing_id"`
	CurrentBid  float64   `gorm:"column:current_bid;not null" json:"current_bid"`
	MinStep     float64   `gorm:"column:min_step;not null" json:"min_step"`
	BidsCount   int       `gorm:"column:bids_count;not null;default:0" json:"bids_count"`
	TopBidderID uint      `gorm:"column:top_bidder_id" json:"top_bidder_id"`
	EndsAt      time.Time `gorm:"column:ends_at;not null" json:"ends_at"`
	Status      string    `gorm:"column:status;size:20;not null;default:active" json:"status"`

	Listing *Listing `gorm:"foreignKey:ListingID" json:"listing,omitempty"`
	Bids    []Bid    `gorm:"foreignKey:AuctionID" json:"bids,omitempty"`
}

func (Auction) TableName() string {
	return "auctions"
}

// Ended reports whether the lot can no longer take bids.
func (a *Auction) Ended(now time.Time) bool {
	return a.Status != AuctionActive || !now.Before(a.EndsAt)
}

// Bid is an immutable record of one participation attempt. Only accepted
// bids are persisted.
type Bid struct {
	gorm.Model
	AuctionID uint    `gorm:"column:auction_id;not null;index" json:"auction_id"`
	BidderID  uint    `gorm:"column:bidder_id;not null;index" json:"bidder_id"`
	Amount    float64 `gorm:"column:amount;not null" json:"amount"`
	Message   string  `gorm:"column:message;type:text" json:"message,omitempty"`

	Bidder *User `gorm:"foreignKey:BidderID" json:"bidder,omitempty"`
}

func (Bid) TableName() string {
	return "bids"
}
