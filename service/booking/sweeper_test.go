package booking

import (
	"context"
	"testing"
	"time"

	"github.com/mentorika/Mentorika-server/cmd/models"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestExpirePendingCancelsStale(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	clock := &fakeClock{now: time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)}
	svc.clock = clock

	stale, err := svc.Create(ctx, individualRequest("2026-09-07", "09:00"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	// CreatedAt comes from the store, pin it to the fake clock.
	stale.CreatedAt = clock.Now()
	if err := svc.store.Update(ctx, stale); err != nil {
		t.Fatalf("Update: %v", err)
	}

	clock.Advance(45 * time.Minute)

	fresh, err := svc.Create(ctx, individualRequest("2026-09-07", "14:00"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	fresh.CreatedAt = clock.Now()
	if err := svc.store.Update(ctx, fresh); err != nil {
		t.Fatalf("Update: %v", err)
	}

	swept, err := svc.ExpirePending(ctx, 30*time.Minute)
	if err != nil {
		t.Fatalf("ExpirePending: %v", err)
	}
	if swept != 1 {
		t.Fatalf("want 1 swept, got %d", swept)
	}

	got, _ := svc.Get(ctx, stale.ID)
	if got.Status != models.BookingCancelled {
		t.Fatalf("stale pending should be cancelled, got %s", got.Status)
	}
	if got.CancelReason != "payment window elapsed" {
		t.Fatalf("cancel reason: %q", got.CancelReason)
	}

	kept, _ := svc.Get(ctx, fresh.ID)
	if kept.Status != models.BookingPending {
		t.Fatalf("fresh pending should survive, got %s", kept.Status)
	}

	// The expired slot is bookable again.
	if _, err := svc.Create(ctx, individualRequest("2026-09-07", "09:00")); err != nil {
		t.Fatalf("slot should be free after expiry: %v", err)
	}
}

// staleSnapshotStore hands the sweeper an outdated pending snapshot, the way
// a booking confirmed between the listing query and the cancel looks.
type staleSnapshotStore struct {
	Store
	stale []models.Booking
}

func (s *staleSnapshotStore) PendingBefore(ctx context.Context, cutoff time.Time) ([]models.Booking, error) {
	return s.stale, nil
}

func TestExpirePendingConfirmRace(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	catalog := &memCatalog{
		mentors:  map[uint]*models.MentorProfile{1: mentorFixture(1)},
		listings: map[uint]*models.Listing{},
	}
	mem := NewMemStore()
	svc := NewService(mem, catalog, &memLedger{}, zap.New(core))
	ctx := context.Background()

	b, err := svc.Create(ctx, individualRequest("2026-09-07", "09:00"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	snapshot := *b

	if _, err := svc.Confirm(ctx, b.ID); err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	svc.store = &staleSnapshotStore{Store: mem, stale: []models.Booking{snapshot}}

	swept, err := svc.ExpirePending(ctx, 30*time.Minute)
	if err != nil {
		t.Fatalf("ExpirePending: %v", err)
	}
	if swept != 0 {
		t.Fatalf("a since-confirmed booking must not be swept, got %d", swept)
	}

	got, _ := svc.Get(ctx, b.ID)
	if got.Status != models.BookingConfirmed {
		t.Fatalf("booking lost its confirmation: %s", got.Status)
	}
	if logs.Len() != 0 {
		t.Fatalf("the lost race is benign and must not warn, got %d entries", logs.Len())
	}
}

func TestExpirePendingSkipsConfirmed(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	clock := &fakeClock{now: time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)}
	svc.clock = clock

	b, err := svc.Create(ctx, individualRequest("2026-09-07", "09:00"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	b.CreatedAt = clock.Now()
	if err := svc.store.Update(ctx, b); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, err := svc.Confirm(ctx, b.ID); err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	clock.Advance(2 * time.Hour)

	swept, err := svc.ExpirePending(ctx, 30*time.Minute)
	if err != nil {
		t.Fatalf("ExpirePending: %v", err)
	}
	if swept != 0 {
		t.Fatalf("confirmed bookings must never be swept, got %d", swept)
	}

	got, _ := svc.Get(ctx, b.ID)
	if got.Status != models.BookingConfirmed {
		t.Fatalf("status changed by sweep: %s", got.Status)
	}
}
