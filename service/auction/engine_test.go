package auction

import (
	"errors"
	"testing"
	"time"

	"github.com/mentorika/Mentorika-server/cmd/models"
)

func activeAuction(currentBid, minStep float64) *models.Auction {
	a := &models.Auction{
		ListingID:  1,
		CurrentBid: currentBid,
		MinStep:    minStep,
		EndsAt:     time.Date(2026, 9, 30, 12, 0, 0, 0, time.UTC),
		Status:     models.AuctionActive,
	}
	a.ID = 1
	return a
}

var bidTime = time.Date(2026, 9, 7, 12, 0, 0, 0, time.UTC)

func TestApplyBidBelowFloorRejected(t *testing.T) {
	a := activeAuction(1000, 100)

	if _, err := ApplyBid(a, 7, 1050, "", bidTime); !errors.Is(err, ErrBidTooLow) {
		t.Fatalf("1050 against floor 1100 should be rejected, got %v", err)
	}
	if a.CurrentBid != 1000 || a.BidsCount != 0 || a.TopBidderID != 0 {
		t.Fatalf("rejected bid must not move the lot: %+v", a)
	}
}

func TestApplyBidAtFloorAccepted(t *testing.T) {
	a := activeAuction(1000, 100)

	bid, err := ApplyBid(a, 7, 1100, "take my money", bidTime)
	if err != nil {
		t.Fatalf("ApplyBid: %v", err)
	}
	if a.CurrentBid != 1100 || a.BidsCount != 1 || a.TopBidderID != 7 {
		t.Fatalf("lot did not advance together: %+v", a)
	}
	if bid.AuctionID != a.ID || bid.BidderID != 7 || bid.Amount != 1100 || bid.Message != "take my money" {
		t.Fatalf("bid record mismatch: %+v", bid)
	}
}

func TestApplyBidMonotonicFloor(t *testing.T) {
	a := activeAuction(100, 25)

	amounts := []float64{125, 150, 200, 225}
	for i, amount := range amounts {
		if _, err := ApplyBid(a, uint(i+1), amount, "", bidTime); err != nil {
			t.Fatalf("bid %v: %v", amount, err)
		}
	}
	if a.CurrentBid != 225 || a.BidsCount != len(amounts) || a.TopBidderID != 4 {
		t.Fatalf("final lot state: %+v", a)
	}

	// Equal to current and below the new floor both fail.
	if _, err := ApplyBid(a, 9, 225, "", bidTime); !errors.Is(err, ErrBidTooLow) {
		t.Fatalf("repeat of current bid should be rejected, got %v", err)
	}
	if _, err := ApplyBid(a, 9, 249, "", bidTime); !errors.Is(err, ErrBidTooLow) {
		t.Fatalf("249 against floor 250 should be rejected, got %v", err)
	}
}

func TestApplyBidAfterEndRejected(t *testing.T) {
	a := activeAuction(1000, 100)

	late := a.EndsAt.Add(time.Second)
	if _, err := ApplyBid(a, 7, 5000, "", late); !errors.Is(err, ErrAuctionClosed) {
		t.Fatalf("bid after endsAt should be rejected, got %v", err)
	}

	exact := a.EndsAt
	if _, err := ApplyBid(a, 7, 5000, "", exact); !errors.Is(err, ErrAuctionClosed) {
		t.Fatalf("bid at endsAt should be rejected, got %v", err)
	}
}

func TestApplyBidClosedStatusRejected(t *testing.T) {
	a := activeAuction(1000, 100)
	a.Status = models.AuctionClosed

	if _, err := ApplyBid(a, 7, 5000, "", bidTime); !errors.Is(err, ErrAuctionClosed) {
		t.Fatalf("closed lot must reject bids, got %v", err)
	}
}

func TestAuctionEnded(t *testing.T) {
	a := activeAuction(100, 10)

	if a.Ended(a.EndsAt.Add(-time.Minute)) {
		t.Fatal("lot should still be open before endsAt")
	}
	if !a.Ended(a.EndsAt) {
		t.Fatal("lot ends exactly at endsAt")
	}

	a.Status = models.AuctionClosed
	if !a.Ended(a.EndsAt.Add(-time.Hour)) {
		t.Fatal("closed status ends the lot regardless of time")
	}
}
