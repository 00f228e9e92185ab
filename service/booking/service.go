package booking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mentorika/Mentorika-server/cmd/models"
	"github.com/mentorika/Mentorika-server/service/availability"
	"go.uber.org/zap"
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Service is the booking lifecycle manager. All slot-claiming writes for a
// mentor run under that mentor's lock, so the availability check and the
// write that claims the slot are a single critical section.
type Service struct {
	store   Store
	catalog Catalog
	ledger  Ledger
	log     *zap.Logger
	clock   Clock

	mu      sync.Mutex
	mentors map[uint]*sync.Mutex
}

func NewService(store Store, catalog Catalog, ledger Ledger, log *zap.Logger) *Service {
	return &Service{
		store:   store,
		catalog: catalog,
		ledger:  ledger,
		log:     log.With(zap.String("service", "booking")),
		clock:   realClock{},
		mentors: make(map[uint]*sync.Mutex),
	}
}

func (s *Service) mentorLock(mentorID uint) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.mentors[mentorID]
	if !ok {
		l = &sync.Mutex{}
		s.mentors[mentorID] = l
	}
	return l
}

type CreateRequest struct {
	MentorID      uint
	BookerID      uint
	ListingID     *uint
	Format        string
	Date          string
	TimeLabel     string
	Goal          string
	ExchangeOffer string

	// Set when a closed auction converts its winning bid: the booking is
	// priced at the winning amount instead of the provider's list price,
	// and at most one active booking may come out of the auction.
	AuctionID     *uint
	PriceOverride *float64
}

// provider resolves the calendar, capacity and list price that apply to a
// request: the listing override when the booking goes through a listing with
// its own calendar, the mentor default otherwise.
func (s *Service) provider(ctx context.Context, req CreateRequest) (models.SlotMap, int, float64, error) {
	profile, err := s.catalog.Mentor(ctx, req.MentorID)
	if err != nil {
		return nil, 0, 0, err
	}

	schedule := profile.Schedule
	capacity := 1
	individual := profile.IndividualPrice
	group := profile.GroupPrice
	maxParticipants := profile.MaxParticipants

	if req.ListingID != nil {
		listing, err := s.catalog.Listing(ctx, *req.ListingID)
		if err != nil {
			return nil, 0, 0, err
		}
		if listing.MentorID != req.MentorID {
			return nil, 0, 0, ErrListingNotFound
		}
		if listing.HasOwnSchedule() {
			schedule = listing.Schedule
		}
		individual = listing.IndividualPrice
		group = listing.GroupPrice
		maxParticipants = listing.MaxParticipants
	}

	price := individual
	if models.IsGroupFormat(req.Format) {
		if group <= 0 {
			return nil, 0, 0, ErrFormatNotOffered
		}
		price = group
		if maxParticipants > 1 {
			capacity = maxParticipants
		}
	}
	return schedule, capacity, price, nil
}

// Create reserves a slot as a pending booking. The requested (date, time)
// must be free in the resolved availability at check time; anything else is
// ErrSlotUnavailable, never a silently overlapping booking.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Booking, error) {
	if !models.ValidFormat(req.Format) {
		return nil, fmt.Errorf("unknown format %q", req.Format)
	}
	if req.Date == "" || req.TimeLabel == "" {
		return nil, ErrSlotUnavailable
	}

	schedule, capacity, price, err := s.provider(ctx, req)
	if err != nil {
		return nil, err
	}
	if req.PriceOverride != nil {
		price = *req.PriceOverride
	}

	lock := s.mentorLock(req.MentorID)
	lock.Lock()
	defer lock.Unlock()

	if req.AuctionID != nil {
		converted, err := s.store.ActiveForAuction(ctx, *req.AuctionID)
		if err != nil {
			return nil, err
		}
		if len(converted) > 0 {
			return nil, ErrAuctionBooked
		}
	}

	active, err := s.store.ActiveForMentor(ctx, req.MentorID)
	if err != nil {
		return nil, err
	}
	resolved := availability.Resolve(schedule, active, capacity, 0)
	if !resolved.Offers(req.Date, req.TimeLabel) {
		return nil, ErrSlotUnavailable
	}

	b := &models.Booking{
		MentorID:      req.MentorID,
		BookerID:      req.BookerID,
		ListingID:     req.ListingID,
		AuctionID:     req.AuctionID,
		Format:        req.Format,
		Date:          req.Date,
		TimeLabel:     req.TimeLabel,
		Price:         price,
		Status:        models.BookingPending,
		Goal:          req.Goal,
		ExchangeOffer: req.ExchangeOffer,
		PaymentRef:    fmt.Sprintf("BKG-%s", uuid.NewString()),
	}
	if err := s.store.Create(ctx, b); err != nil {
		return nil, err
	}

	s.log.Info("booking created",
		zap.Uint("booking_id", b.ID),
		zap.Uint("mentor_id", b.MentorID),
		zap.String("date", b.Date),
		zap.String("time", b.TimeLabel))
	return b, nil
}

// Confirm moves a pending booking to confirmed after the payment
// collaborator reports success, and writes the single debit ledger entry.
// Confirming an already confirmed booking is a no-op so duplicate payment
// webhooks are harmless.
func (s *Service) Confirm(ctx context.Context, id uint) (*models.Booking, error) {
	b, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	lock := s.mentorLock(b.MentorID)
	lock.Lock()
	defer lock.Unlock()

	b, err = s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if b.Status == models.BookingConfirmed {
		return b, nil
	}
	if b.Status != models.BookingPending {
		return nil, fmt.Errorf("confirm from %s: %w", b.Status, ErrInvalidTransition)
	}

	// The debit lands before the status flip: a failed ledger write leaves
	// the booking pending, so the payment webhook retry drives the whole
	// step again instead of losing the transaction.
	if err := s.ledger.Debit(ctx, b.BookerID, b.Price, "Mentoring session", b.PaymentRef); err != nil {
		s.log.Error("ledger write failed", zap.Uint("booking_id", b.ID), zap.Error(err))
		return nil, fmt.Errorf("ledger debit: %w", err)
	}
	b.Status = models.BookingConfirmed
	if err := s.store.Update(ctx, b); err != nil {
		return nil, err
	}

	s.log.Info("booking confirmed", zap.Uint("booking_id", b.ID))
	return b, nil
}

// Cancel terminates a pending or confirmed booking and frees its slot.
func (s *Service) Cancel(ctx context.Context, id uint, reason string) (*models.Booking, error) {
	b, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	lock := s.mentorLock(b.MentorID)
	lock.Lock()
	defer lock.Unlock()

	b, err = s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !models.CanTransition(b.Status, models.BookingCancelled) {
		return nil, fmt.Errorf("cancel from %s: %w", b.Status, ErrInvalidTransition)
	}

	b.Status = models.BookingCancelled
	b.CancelReason = reason
	if err := s.store.Update(ctx, b); err != nil {
		return nil, err
	}

	s.log.Info("booking cancelled", zap.Uint("booking_id", b.ID), zap.String("reason", reason))
	return b, nil
}

// Reschedule moves a confirmed booking to a new slot. The target slot is
// validated with the same precondition as Create, with the moving booking
// excluded from the count so same-day swaps work. Unpaid pending bookings
// reschedule by cancel and recreate, not through here.
func (s *Service) Reschedule(ctx context.Context, id uint, newDate, newTime string) (*models.Booking, error) {
	b, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	lock := s.mentorLock(b.MentorID)
	lock.Lock()
	defer lock.Unlock()

	b, err = s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if b.Status != models.BookingConfirmed {
		return nil, fmt.Errorf("reschedule from %s: %w", b.Status, ErrInvalidTransition)
	}

	schedule, capacity, _, err := s.provider(ctx, CreateRequest{
		MentorID:  b.MentorID,
		ListingID: b.ListingID,
		Format:    b.Format,
	})
	if err != nil {
		return nil, err
	}

	active, err := s.store.ActiveForMentor(ctx, b.MentorID)
	if err != nil {
		return nil, err
	}
	resolved := availability.Resolve(schedule, active, capacity, b.ID)
	if !resolved.Offers(newDate, newTime) {
		return nil, ErrSlotUnavailable
	}

	b.Date = newDate
	b.TimeLabel = newTime
	if err := s.store.Update(ctx, b); err != nil {
		return nil, err
	}

	s.log.Info("booking rescheduled",
		zap.Uint("booking_id", b.ID), zap.String("date", newDate), zap.String("time", newTime))
	return b, nil
}

// Complete marks a confirmed booking as held, driven by review submission.
func (s *Service) Complete(ctx context.Context, id uint) (*models.Booking, error) {
	b, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	lock := s.mentorLock(b.MentorID)
	lock.Lock()
	defer lock.Unlock()

	b, err = s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if b.Status != models.BookingConfirmed {
		return nil, fmt.Errorf("complete from %s: %w", b.Status, ErrInvalidTransition)
	}

	b.Status = models.BookingCompleted
	if err := s.store.Update(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*models.Booking, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) ForBooker(ctx context.Context, bookerID uint) ([]models.Booking, error) {
	return s.store.ForBooker(ctx, bookerID)
}

func (s *Service) ForMentor(ctx context.Context, mentorID uint) ([]models.Booking, error) {
	return s.store.ForMentor(ctx, mentorID)
}

// ActiveForMentor satisfies the availability resolver's booking source.
func (s *Service) ActiveForMentor(ctx context.Context, mentorID uint) ([]models.Booking, error) {
	return s.store.ActiveForMentor(ctx, mentorID)
}
