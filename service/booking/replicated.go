package booking

import (
	"context"
	"time"

	"github.com/mentorika/Mentorika-server/cmd/models"
	"go.uber.org/zap"
)

// ReplicatedStore is the two-tier booking store: a local in-memory tier that
// is authoritative for the running process, with every write replicated to
// the upstream database in the background. Upstream failures are logged and
// retried on the next write of the same row, never surfaced to the caller.
// Local state is the source of truth for the current session.
type ReplicatedStore struct {
	local    *MemStore
	upstream Store
	log      *zap.Logger
}

func NewReplicatedStore(local *MemStore, upstream Store, log *zap.Logger) *ReplicatedStore {
	return &ReplicatedStore{
		local:    local,
		upstream: upstream,
		log:      log.With(zap.String("component", "booking-store")),
	}
}

// Warm seeds the local tier from upstream. Called once at startup before the
// store takes traffic.
func (s *ReplicatedStore) Warm(ctx context.Context) error {
	all, err := s.upstream.All(ctx)
	if err != nil {
		return err
	}
	s.local.Load(all)
	return nil
}

func (s *ReplicatedStore) replicate(op string, id uint, fn func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := fn(ctx); err != nil {
			s.log.Warn("upstream replication failed",
				zap.String("op", op), zap.Uint("booking_id", id), zap.Error(err))
		}
	}()
}

func (s *ReplicatedStore) Get(ctx context.Context, id uint) (*models.Booking, error) {
	return s.local.Get(ctx, id)
}

func (s *ReplicatedStore) Create(ctx context.Context, b *models.Booking) error {
	if err := s.local.Create(ctx, b); err != nil {
		return err
	}
	cp := *b
	s.replicate("create", b.ID, func(ctx context.Context) error {
		return s.upstream.Create(ctx, &cp)
	})
	return nil
}

func (s *ReplicatedStore) Update(ctx context.Context, b *models.Booking) error {
	if err := s.local.Update(ctx, b); err != nil {
		return err
	}
	cp := *b
	s.replicate("update", b.ID, func(ctx context.Context) error {
		return s.upstream.Update(ctx, &cp)
	})
	return nil
}

func (s *ReplicatedStore) ActiveForMentor(ctx context.Context, mentorID uint) ([]models.Booking, error) {
	return s.local.ActiveForMentor(ctx, mentorID)
}

func (s *ReplicatedStore) ActiveForAuction(ctx context.Context, auctionID uint) ([]models.Booking, error) {
	return s.local.ActiveForAuction(ctx, auctionID)
}

func (s *ReplicatedStore) ForBooker(ctx context.Context, bookerID uint) ([]models.Booking, error) {
	return s.local.ForBooker(ctx, bookerID)
}

func (s *ReplicatedStore) ForMentor(ctx context.Context, mentorID uint) ([]models.Booking, error) {
	return s.local.ForMentor(ctx, mentorID)
}

func (s *ReplicatedStore) PendingBefore(ctx context.Context, cutoff time.Time) ([]models.Booking, error) {
	return s.local.PendingBefore(ctx, cutoff)
}

func (s *ReplicatedStore) All(ctx context.Context) ([]models.Booking, error) {
	return s.local.All(ctx)
}
