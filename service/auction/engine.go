package auction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mentorika/Mentorika-server/cmd/models"
	"github.com/mentorika/Mentorika-server/service/booking"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrBidTooLow: the amount is below currentBid + minStep. The client
	// should reload the floor and re-prompt.
	ErrBidTooLow = errors.New("bid below current floor")

	ErrAuctionNotFound  = errors.New("auction not found")
	ErrAuctionClosed    = errors.New("auction already closed")
	ErrAuctionStillOpen = errors.New("auction has not ended yet")
	ErrNoBids           = errors.New("auction received no bids")
	ErrListingMissing   = errors.New("auction listing missing")
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// ApplyBid validates one participation attempt against the lot's floor and,
// on acceptance, advances the lot: currentBid, bidsCount and topBidderId
// move together or not at all. The returned Bid is the immutable record the
// caller persists in the same transaction as the auction update.
func ApplyBid(a *models.Auction, bidderID uint, amount float64, message string, now time.Time) (*models.Bid, error) {
	if a.Ended(now) {
		return nil, ErrAuctionClosed
	}
	if amount < a.CurrentBid+a.MinStep {
		return nil, ErrBidTooLow
	}

	a.CurrentBid = amount
	a.BidsCount++
	a.TopBidderID = bidderID

	return &models.Bid{
		AuctionID: a.ID,
		BidderID:  bidderID,
		Amount:    amount,
		Message:   message,
	}, nil
}

// Engine runs the bidding side of auctioned listings. Bids and their parent
// auction update are written in a single database transaction; the winning
// bid converts into a normal pending booking through the lifecycle manager.
type Engine struct {
	db       *gorm.DB
	bookings *booking.Service
	log      *zap.Logger
	clock    Clock
}

func NewEngine(db *gorm.DB, bookings *booking.Service, log *zap.Logger) *Engine {
	return &Engine{
		db:       db,
		bookings: bookings,
		log:      log.With(zap.String("service", "auction")),
		clock:    realClock{},
	}
}

// PlaceBid accepts or rejects a bid. It returns the persisted Bid and the
// bidder who was on top before, so callers can notify the outbid user.
func (e *Engine) PlaceBid(ctx context.Context, auctionID, bidderID uint, amount float64, message string) (*models.Bid, uint, error) {
	var bid *models.Bid
	var prevTop uint

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a models.Auction
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&a, auctionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAuctionNotFound
			}
			return err
		}
		prevTop = a.TopBidderID

		b, err := ApplyBid(&a, bidderID, amount, message, e.clock.Now())
		if err != nil {
			return err
		}
		if err := tx.Save(&a).Error; err != nil {
			return err
		}
		if err := tx.Create(b).Error; err != nil {
			return err
		}
		bid = b
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	e.log.Info("bid accepted",
		zap.Uint("auction_id", auctionID),
		zap.Uint("bidder_id", bidderID),
		zap.Float64("amount", amount))
	return bid, prevTop, nil
}

// Close finalizes a lot whose endsAt has passed and returns the winning bid.
// The conversion into a Booking is a separate, explicit step.
func (e *Engine) Close(ctx context.Context, auctionID uint) (*models.Auction, *models.Bid, error) {
	var closed models.Auction
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a models.Auction
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&a, auctionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAuctionNotFound
			}
			return err
		}
		if a.Status != models.AuctionActive {
			return ErrAuctionClosed
		}
		if e.clock.Now().Before(a.EndsAt) {
			return ErrAuctionStillOpen
		}

		a.Status = models.AuctionClosed
		if err := tx.Save(&a).Error; err != nil {
			return err
		}
		closed = a
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	if closed.TopBidderID == 0 {
		e.log.Info("auction closed without bids", zap.Uint("auction_id", closed.ID))
		return &closed, nil, nil
	}

	win, err := e.winningBid(ctx, &closed)
	if err != nil {
		return &closed, nil, err
	}
	e.log.Info("auction closed",
		zap.Uint("auction_id", closed.ID),
		zap.Uint("winner_id", win.BidderID),
		zap.Float64("amount", win.Amount))
	return &closed, win, nil
}

// winningBid is the deterministic winner: the bid matching the lot's
// topBidderId and currentBid.
func (e *Engine) winningBid(ctx context.Context, a *models.Auction) (*models.Bid, error) {
	var win models.Bid
	err := e.db.WithContext(ctx).
		Where("auction_id = ? AND bidder_id = ? AND amount = ?", a.ID, a.TopBidderID, a.CurrentBid).
		Order("created_at DESC").
		First(&win).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoBids
		}
		return nil, err
	}
	return &win, nil
}

// ConvertWinner books the chosen slot for a closed lot's winner as a normal
// pending booking priced at the winning amount. The winner then pays through
// the same confirm path as any fixed-price booking. While an active booking
// from this lot exists the call fails with booking.ErrAuctionBooked; once
// that booking is cancelled, say by the pending sweep, converting again with
// a new slot is legal.
func (e *Engine) ConvertWinner(ctx context.Context, auctionID uint, format, date, timeLabel string) (*models.Booking, error) {
	var a models.Auction
	if err := e.db.WithContext(ctx).Preload("Listing").First(&a, auctionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAuctionNotFound
		}
		return nil, err
	}
	if a.Status != models.AuctionClosed {
		return nil, ErrAuctionStillOpen
	}
	if a.TopBidderID == 0 {
		return nil, ErrNoBids
	}
	if a.Listing == nil {
		return nil, ErrListingMissing
	}

	price := a.CurrentBid
	listingID := a.ListingID
	lotID := a.ID
	return e.bookings.Create(ctx, booking.CreateRequest{
		MentorID:      a.Listing.MentorID,
		BookerID:      a.TopBidderID,
		ListingID:     &listingID,
		AuctionID:     &lotID,
		Format:        format,
		Date:          date,
		TimeLabel:     timeLabel,
		Goal:          fmt.Sprintf("Auction lot #%d", a.ID),
		PriceOverride: &price,
	})
}

// CloseDue closes every active lot whose end time has passed. Returns the
// closed auctions with their winning bids (nil entries for lots without bids).
func (e *Engine) CloseDue(ctx context.Context) ([]models.Auction, []*models.Bid, error) {
	var due []models.Auction
	err := e.db.WithContext(ctx).
		Where("status = ? AND ends_at <= ?", models.AuctionActive, e.clock.Now()).
		Find(&due).Error
	if err != nil {
		return nil, nil, err
	}

	var closed []models.Auction
	var winners []*models.Bid
	for _, a := range due {
		c, win, err := e.Close(ctx, a.ID)
		if err != nil {
			if !errors.Is(err, ErrAuctionClosed) {
				e.log.Warn("auction close failed", zap.Uint("auction_id", a.ID), zap.Error(err))
			}
			continue
		}
		closed = append(closed, *c)
		winners = append(winners, win)
	}
	return closed, winners, nil
}

// StartCloseSweep drives CloseDue on a ticker until ctx is cancelled.
// onClose runs for each closed lot, outside the database transaction.
func (e *Engine) StartCloseSweep(ctx context.Context, interval time.Duration, onClose func(models.Auction, *models.Bid)) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				closed, winners, err := e.CloseDue(ctx)
				if err != nil {
					e.log.Error("auction sweep failed", zap.Error(err))
					continue
				}
				if onClose != nil {
					for i := range closed {
						onClose(closed[i], winners[i])
					}
				}
			}
		}
	}()
}
