package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mentorika/Mentorika-server/cmd/models"
	"go.uber.org/zap"
)

type memCatalog struct {
	mentors  map[uint]*models.MentorProfile
	listings map[uint]*models.Listing
}

func (c *memCatalog) Mentor(ctx context.Context, id uint) (*models.MentorProfile, error) {
	m, ok := c.mentors[id]
	if !ok {
		return nil, ErrMentorNotFound
	}
	cp := *m
	return &cp, nil
}

func (c *memCatalog) Listing(ctx context.Context, id uint) (*models.Listing, error) {
	l, ok := c.listings[id]
	if !ok {
		return nil, ErrListingNotFound
	}
	cp := *l
	return &cp, nil
}

type debit struct {
	userID    uint
	amount    float64
	reference string
}

type memLedger struct {
	mu      sync.Mutex
	entries []debit
}

func (l *memLedger) Debit(ctx context.Context, userID uint, amount float64, purpose, reference string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, debit{userID: userID, amount: amount, reference: reference})
	return nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func mentorFixture(id uint) *models.MentorProfile {
	p := &models.MentorProfile{
		IndividualPrice: 50,
		GroupPrice:      20,
		MaxParticipants: 3,
		Schedule: models.SlotMap{
			"2026-09-07": {"09:00", "14:00"},
			"2026-09-08": {"10:00"},
		},
	}
	p.ID = id
	p.UserID = 100 + id
	return p
}

func newTestService(t *testing.T) (*Service, *memCatalog, *memLedger) {
	t.Helper()
	catalog := &memCatalog{
		mentors:  map[uint]*models.MentorProfile{1: mentorFixture(1)},
		listings: map[uint]*models.Listing{},
	}
	ledger := &memLedger{}
	svc := NewService(NewMemStore(), catalog, ledger, zap.NewNop())
	return svc, catalog, ledger
}

func individualRequest(date, timeLabel string) CreateRequest {
	return CreateRequest{
		MentorID:  1,
		BookerID:  7,
		Format:    models.FormatIndividualOnline,
		Date:      date,
		TimeLabel: timeLabel,
		Goal:      "interview prep",
	}
}

func TestCreatePendingBooking(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	b, err := svc.Create(ctx, individualRequest("2026-09-07", "09:00"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if b.Status != models.BookingPending {
		t.Fatalf("new booking should be pending, got %s", b.Status)
	}
	if b.Price != 50 {
		t.Fatalf("individual booking should take the individual price, got %v", b.Price)
	}
	if b.PaymentRef == "" {
		t.Fatal("booking needs a payment reference")
	}
}

func TestCreateRejectsUnofferedSlot(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, individualRequest("2026-09-07", "23:00")); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("want ErrSlotUnavailable for unoffered time, got %v", err)
	}
	if _, err := svc.Create(ctx, individualRequest("2026-12-25", "09:00")); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("want ErrSlotUnavailable for unoffered date, got %v", err)
	}
}

func TestCreateRejectsUnknownFormat(t *testing.T) {
	svc, _, _ := newTestService(t)
	req := individualRequest("2026-09-07", "09:00")
	req.Format = "carrier_pigeon"

	if _, err := svc.Create(context.Background(), req); err == nil {
		t.Fatal("unknown format must be rejected")
	}
}

func TestConcurrentCreatesOneWinner(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := individualRequest("2026-09-07", "09:00")
			req.BookerID = uint(10 + i)
			_, errs[i] = svc.Create(ctx, req)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrSlotUnavailable):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("exactly one concurrent create should win, got %d", wins)
	}
}

func TestGroupCapacityFillsUp(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		req := individualRequest("2026-09-07", "09:00")
		req.Format = models.FormatGroupOnline
		req.BookerID = uint(10 + i)
		b, err := svc.Create(ctx, req)
		if err != nil {
			t.Fatalf("seat %d: %v", i+1, err)
		}
		if b.Price != 20 {
			t.Fatalf("group booking should take the group price, got %v", b.Price)
		}
	}

	req := individualRequest("2026-09-07", "09:00")
	req.Format = models.FormatGroupOnline
	req.BookerID = 99
	if _, err := svc.Create(ctx, req); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("fourth seat should be rejected, got %v", err)
	}
}

func TestMixedFormatsNeverShareSlot(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	b, err := svc.Create(ctx, individualRequest("2026-09-07", "09:00"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Confirm(ctx, b.ID); err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	// No group seats on top of a confirmed 1:1 session.
	group := individualRequest("2026-09-07", "09:00")
	group.Format = models.FormatGroupOnline
	group.BookerID = 8
	if _, err := svc.Create(ctx, group); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("group seat over an individual session must be rejected, got %v", err)
	}

	// And no 1:1 session over a slot that already sold group seats.
	seat := individualRequest("2026-09-07", "14:00")
	seat.Format = models.FormatGroupOffline
	if _, err := svc.Create(ctx, seat); err != nil {
		t.Fatalf("group seat: %v", err)
	}
	if _, err := svc.Create(ctx, individualRequest("2026-09-07", "14:00")); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("individual session over group seats must be rejected, got %v", err)
	}
}

func TestGroupFormatRequiresGroupPrice(t *testing.T) {
	svc, catalog, _ := newTestService(t)
	catalog.mentors[1].GroupPrice = 0

	req := individualRequest("2026-09-07", "09:00")
	req.Format = models.FormatGroupOffline
	if _, err := svc.Create(context.Background(), req); !errors.Is(err, ErrFormatNotOffered) {
		t.Fatalf("want ErrFormatNotOffered, got %v", err)
	}
}

func TestListingScheduleOverrides(t *testing.T) {
	svc, catalog, _ := newTestService(t)
	listing := &models.Listing{
		MentorID:        1,
		IndividualPrice: 80,
		MaxParticipants: 1,
		Schedule:        models.SlotMap{"2026-09-10": {"16:00"}},
	}
	listing.ID = 5
	catalog.listings[5] = listing

	ctx := context.Background()
	listingID := uint(5)

	// The mentor's default date is not merged in.
	req := individualRequest("2026-09-07", "09:00")
	req.ListingID = &listingID
	if _, err := svc.Create(ctx, req); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("listing with own calendar must replace the default, got %v", err)
	}

	req = individualRequest("2026-09-10", "16:00")
	req.ListingID = &listingID
	b, err := svc.Create(ctx, req)
	if err != nil {
		t.Fatalf("Create on listing slot: %v", err)
	}
	if b.Price != 80 {
		t.Fatalf("listing price should apply, got %v", b.Price)
	}
}

func TestListingWithoutScheduleUsesMentorDefault(t *testing.T) {
	svc, catalog, _ := newTestService(t)
	listing := &models.Listing{
		MentorID:        1,
		IndividualPrice: 60,
		MaxParticipants: 1,
	}
	listing.ID = 6
	catalog.listings[6] = listing

	listingID := uint(6)
	req := individualRequest("2026-09-07", "14:00")
	req.ListingID = &listingID

	b, err := svc.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if b.Price != 60 {
		t.Fatalf("listing price should apply even without own calendar, got %v", b.Price)
	}
}

func TestConfirmWritesSingleDebit(t *testing.T) {
	svc, _, ledger := newTestService(t)
	ctx := context.Background()

	b, err := svc.Create(ctx, individualRequest("2026-09-07", "09:00"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	first, err := svc.Confirm(ctx, b.ID)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if first.Status != models.BookingConfirmed {
		t.Fatalf("status after confirm: %s", first.Status)
	}

	// Duplicate payment webhooks must be harmless.
	second, err := svc.Confirm(ctx, b.ID)
	if err != nil {
		t.Fatalf("repeat Confirm: %v", err)
	}
	if second.Status != models.BookingConfirmed {
		t.Fatalf("status after repeat confirm: %s", second.Status)
	}

	if len(ledger.entries) != 1 {
		t.Fatalf("want exactly one ledger debit, got %d", len(ledger.entries))
	}
	entry := ledger.entries[0]
	if entry.userID != 7 || entry.amount != 50 || entry.reference != b.PaymentRef {
		t.Fatalf("debit mismatch: %+v", entry)
	}
}

type flakyLedger struct {
	memLedger
	fail bool
}

func (l *flakyLedger) Debit(ctx context.Context, userID uint, amount float64, purpose, reference string) error {
	if l.fail {
		return errors.New("ledger unavailable")
	}
	return l.memLedger.Debit(ctx, userID, amount, purpose, reference)
}

func TestConfirmLedgerFailureKeepsPending(t *testing.T) {
	catalog := &memCatalog{
		mentors:  map[uint]*models.MentorProfile{1: mentorFixture(1)},
		listings: map[uint]*models.Listing{},
	}
	ledger := &flakyLedger{fail: true}
	svc := NewService(NewMemStore(), catalog, ledger, zap.NewNop())
	ctx := context.Background()

	b, err := svc.Create(ctx, individualRequest("2026-09-07", "09:00"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := svc.Confirm(ctx, b.ID); err == nil {
		t.Fatal("confirm must fail when the ledger write fails")
	}
	got, _ := svc.Get(ctx, b.ID)
	if got.Status != models.BookingPending {
		t.Fatalf("failed confirm must leave the booking pending, got %s", got.Status)
	}
	if len(ledger.entries) != 0 {
		t.Fatalf("no debit should be recorded, got %d", len(ledger.entries))
	}

	// The webhook retry drives the whole step once the ledger is back.
	ledger.fail = false
	confirmed, err := svc.Confirm(ctx, b.ID)
	if err != nil {
		t.Fatalf("retried Confirm: %v", err)
	}
	if confirmed.Status != models.BookingConfirmed {
		t.Fatalf("status after retried confirm: %s", confirmed.Status)
	}
	if len(ledger.entries) != 1 {
		t.Fatalf("want exactly one debit after the retry, got %d", len(ledger.entries))
	}
}

func TestCancelFreesSlot(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	b, err := svc.Create(ctx, individualRequest("2026-09-07", "09:00"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	cancelled, err := svc.Cancel(ctx, b.ID, "changed my mind")
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancelled.Status != models.BookingCancelled || cancelled.CancelReason != "changed my mind" {
		t.Fatalf("cancel result: %+v", cancelled)
	}

	if _, err := svc.Create(ctx, individualRequest("2026-09-07", "09:00")); err != nil {
		t.Fatalf("slot should be free after cancel: %v", err)
	}
}

func TestCancelCompletedRejected(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	b, _ := svc.Create(ctx, individualRequest("2026-09-07", "09:00"))
	if _, err := svc.Confirm(ctx, b.ID); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if _, err := svc.Complete(ctx, b.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if _, err := svc.Cancel(ctx, b.ID, "too late"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("cancelling a completed booking must fail, got %v", err)
	}
}

func TestRescheduleConfirmedBooking(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	b, _ := svc.Create(ctx, individualRequest("2026-09-07", "09:00"))
	if _, err := svc.Confirm(ctx, b.ID); err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	moved, err := svc.Reschedule(ctx, b.ID, "2026-09-08", "10:00")
	if err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
	if moved.Date != "2026-09-08" || moved.TimeLabel != "10:00" {
		t.Fatalf("booking did not move: %+v", moved)
	}
	if moved.Status != models.BookingConfirmed {
		t.Fatalf("reschedule must keep the booking confirmed, got %s", moved.Status)
	}

	// Old slot is free again.
	if _, err := svc.Create(ctx, individualRequest("2026-09-07", "09:00")); err != nil {
		t.Fatalf("old slot should be free after reschedule: %v", err)
	}
}

func TestRescheduleBackToOwnSlot(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	b, _ := svc.Create(ctx, individualRequest("2026-09-07", "09:00"))
	if _, err := svc.Confirm(ctx, b.ID); err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	// The moving booking is excluded from the count, so its own slot is
	// a legal target.
	if _, err := svc.Reschedule(ctx, b.ID, "2026-09-07", "09:00"); err != nil {
		t.Fatalf("Reschedule onto own slot: %v", err)
	}
}

func TestReschedulePendingRejected(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	b, _ := svc.Create(ctx, individualRequest("2026-09-07", "09:00"))
	if _, err := svc.Reschedule(ctx, b.ID, "2026-09-08", "10:00"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("pending bookings must not reschedule, got %v", err)
	}
}

func TestRescheduleToTakenSlotRejected(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	first, _ := svc.Create(ctx, individualRequest("2026-09-07", "09:00"))
	if _, err := svc.Confirm(ctx, first.ID); err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	second, _ := svc.Create(ctx, individualRequest("2026-09-08", "10:00"))
	if _, err := svc.Confirm(ctx, second.ID); err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	if _, err := svc.Reschedule(ctx, second.ID, "2026-09-07", "09:00"); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("reschedule onto a taken slot must fail, got %v", err)
	}
}

func TestPriceOverride(t *testing.T) {
	svc, _, _ := newTestService(t)

	override := 1100.0
	req := individualRequest("2026-09-07", "09:00")
	req.PriceOverride = &override

	b, err := svc.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if b.Price != 1100 {
		t.Fatalf("override price should win, got %v", b.Price)
	}
}

func TestAuctionConvertsToSingleActiveBooking(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	lot := uint(9)
	price := 1100.0
	req := individualRequest("2026-09-07", "09:00")
	req.AuctionID = &lot
	req.PriceOverride = &price

	first, err := svc.Create(ctx, req)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	again := individualRequest("2026-09-07", "14:00")
	again.AuctionID = &lot
	again.PriceOverride = &price
	if _, err := svc.Create(ctx, again); !errors.Is(err, ErrAuctionBooked) {
		t.Fatalf("second booking from one auction must be rejected, got %v", err)
	}

	// A swept or cancelled conversion frees the auction for another try.
	if _, err := svc.Cancel(ctx, first.ID, "payment window elapsed"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if _, err := svc.Create(ctx, again); err != nil {
		t.Fatalf("re-booking after cancellation should work: %v", err)
	}
}

func TestCompleteRequiresConfirmed(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	b, _ := svc.Create(ctx, individualRequest("2026-09-07", "09:00"))
	if _, err := svc.Complete(ctx, b.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("completing a pending booking must fail, got %v", err)
	}
}

func TestGetUnknownBooking(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, err := svc.Get(context.Background(), 42); !errors.Is(err, ErrBookingNotFound) {
		t.Fatalf("want ErrBookingNotFound, got %v", err)
	}
}
