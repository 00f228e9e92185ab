package booking

import (
	"context"
	"sync"
	"time"

	"github.com/mentorika/Mentorika-server/cmd/models"
)

// MemStore keeps bookings in memory under a single lock. It is the
// authoritative local tier of the replicated store and the fixture the
// lifecycle tests run against.
type MemStore struct {
	mu       sync.RWMutex
	byID     map[uint]*models.Booking
	byMentor map[uint][]uint
	nextID   uint
}

func NewMemStore() *MemStore {
	return &MemStore{
		byID:     make(map[uint]*models.Booking),
		byMentor: make(map[uint][]uint),
		nextID:   1,
	}
}

// Load seeds the store with existing rows, typically read from the upstream
// database at startup. IDs are preserved.
func (s *MemStore) Load(bookings []models.Booking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range bookings {
		b := bookings[i]
		s.byID[b.ID] = &b
		s.byMentor[b.MentorID] = append(s.byMentor[b.MentorID], b.ID)
		if b.ID >= s.nextID {
			s.nextID = b.ID + 1
		}
	}
}

func (s *MemStore) Get(ctx context.Context, id uint) (*models.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.byID[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *MemStore) Create(ctx context.Context, b *models.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == 0 {
		b.ID = s.nextID
		s.nextID++
	} else if b.ID >= s.nextID {
		s.nextID = b.ID + 1
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	cp := *b
	s.byID[b.ID] = &cp
	s.byMentor[b.MentorID] = append(s.byMentor[b.MentorID], b.ID)
	return nil
}

func (s *MemStore) Update(ctx context.Context, b *models.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[b.ID]; !ok {
		return ErrBookingNotFound
	}
	cp := *b
	s.byID[b.ID] = &cp
	return nil
}

func (s *MemStore) ActiveForMentor(ctx context.Context, mentorID uint) ([]models.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Booking
	for _, id := range s.byMentor[mentorID] {
		if b := s.byID[id]; b != nil && models.ActiveStatus(b.Status) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (s *MemStore) ActiveForAuction(ctx context.Context, auctionID uint) ([]models.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Booking
	for _, b := range s.byID {
		if b.AuctionID != nil && *b.AuctionID == auctionID && models.ActiveStatus(b.Status) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (s *MemStore) ForBooker(ctx context.Context, bookerID uint) ([]models.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Booking
	for _, b := range s.byID {
		if b.BookerID == bookerID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (s *MemStore) ForMentor(ctx context.Context, mentorID uint) ([]models.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Booking
	for _, id := range s.byMentor[mentorID] {
		if b := s.byID[id]; b != nil {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (s *MemStore) PendingBefore(ctx context.Context, cutoff time.Time) ([]models.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Booking
	for _, b := range s.byID {
		if b.Status == models.BookingPending && b.CreatedAt.Before(cutoff) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (s *MemStore) All(ctx context.Context) ([]models.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Booking
	for _, b := range s.byID {
		out = append(out, *b)
	}
	return out, nil
}
