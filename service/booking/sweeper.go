package booking

import (
	"context"
	"time"

	"github.com/mentorika/Mentorika-server/cmd/models"
	"go.uber.org/zap"
)

// ExpirePending cancels unpaid pending bookings older than maxAge and
// returns how many were swept. Each expiry frees its slot like any other
// cancellation.
func (s *Service) ExpirePending(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := s.clock.Now().Add(-maxAge)
	stale, err := s.store.PendingBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, b := range stale {
		expired, err := s.expireOne(ctx, b.ID, "payment window elapsed")
		if err != nil {
			s.log.Warn("pending sweep skip", zap.Uint("booking_id", b.ID), zap.Error(err))
			continue
		}
		if expired {
			swept++
		}
	}
	if swept > 0 {
		s.log.Info("pending bookings expired", zap.Int("count", swept))
	}
	return swept, nil
}

// expireOne re-checks the status under the mentor lock before cancelling.
// The listing query's snapshot may be stale: a booking confirmed since then
// must stay confirmed, not be paid for and then swept.
func (s *Service) expireOne(ctx context.Context, id uint, reason string) (bool, error) {
	b, err := s.store.Get(ctx, id)
	if err != nil {
		return false, err
	}

	lock := s.mentorLock(b.MentorID)
	lock.Lock()
	defer lock.Unlock()

	b, err = s.store.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if b.Status != models.BookingPending {
		return false, nil
	}

	b.Status = models.BookingCancelled
	b.CancelReason = reason
	if err := s.store.Update(ctx, b); err != nil {
		return false, err
	}
	return true, nil
}

// StartPendingSweep runs ExpirePending on a ticker until ctx is cancelled.
// A non-positive maxAge disables the sweep.
func (s *Service) StartPendingSweep(ctx context.Context, interval, maxAge time.Duration) {
	if maxAge <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.ExpirePending(ctx, maxAge); err != nil {
					s.log.Error("pending sweep failed", zap.Error(err))
				}
			}
		}
	}()
}
