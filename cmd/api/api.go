package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/mentorika/Mentorika-server/cmd/config"
	"github.com/mentorika/Mentorika-server/cmd/models"
	"github.com/mentorika/Mentorika-server/service/auction"
	"github.com/mentorika/Mentorika-server/service/availability"
	"github.com/mentorika/Mentorika-server/service/booking"
	"github.com/mentorika/Mentorika-server/service/listing"
	notification "github.com/mentorika/Mentorika-server/service/notifications"
	"github.com/mentorika/Mentorika-server/service/transactions"
	"github.com/mentorika/Mentorika-server/service/user"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type APIServer struct {
	address string
	db      *gorm.DB
	cfg     config.Config
	log     *zap.Logger
}

func NewApiServer(address string, db *gorm.DB, cfg config.Config, log *zap.Logger) *APIServer {
	return &APIServer{
		address: address,
		db:      db,
		cfg:     cfg,
		log:     log,
	}
}

func (s *APIServer) Run(ctx context.Context) error {
	router := mux.NewRouter()
	subrouter := router.PathPrefix("/api/v1").Subrouter()

	pusher := notification.NewPusher(s.db, s.log)

	// Bookings are served from the in-memory tier and replicated to
	// Postgres; the warm load rebuilds the local tier from the database.
	store := booking.NewReplicatedStore(booking.NewMemStore(), booking.NewGormStore(s.db), s.log)
	if err := store.Warm(ctx); err != nil {
		return fmt.Errorf("warming booking store: %w", err)
	}

	bookingSvc := booking.NewService(store,
		booking.NewGormCatalog(s.db),
		booking.NewGormLedger(s.db),
		s.log)
	if s.cfg.PendingTTL() > 0 {
		bookingSvc.StartPendingSweep(ctx, s.cfg.SweepInterval(), s.cfg.PendingTTL())
	}

	userHandler := user.NewHandler(s.db, s.log)
	userHandler.RegisterRoutes(subrouter)

	listingHandler := listing.NewListingHandler(s.db)
	listingHandler.RegisterRoutes(subrouter)

	availabilityHandler := availability.NewAvailabilityHandler(s.db, bookingSvc, s.log)
	availabilityHandler.RegisterRoutes(subrouter)

	bookingHandler := booking.NewBookingHandler(s.db, bookingSvc, pusher)
	bookingHandler.RegisterRoutes(subrouter)

	hub := auction.NewHub(s.log)
	engine := auction.NewEngine(s.db, bookingSvc, s.log)
	engine.StartCloseSweep(ctx, s.cfg.SweepInterval(), func(a models.Auction, win *models.Bid) {
		hub.Broadcast(auction.BidEvent{Type: "closed", AuctionID: a.ID, CurrentBid: a.CurrentBid})
		if win != nil {
			pusher.PushToUser(win.BidderID, "You won the auction",
				fmt.Sprintf("Your bid of %.2f won, pick a time to book your session", win.Amount),
				map[string]string{"auction_id": strconv.FormatUint(uint64(a.ID), 10)})
		}
	})
	auctionHandler := auction.NewAuctionHandler(s.db, engine, hub, pusher, s.log)
	auctionHandler.RegisterRoutes(subrouter)

	transactionHandler := transactions.NewTransactionHandler(s.db)
	transactionHandler.RegisterRoutes(subrouter)

	notificationHandler := notification.NewNotificationHandler(s.db, pusher)
	notificationHandler.RegisterRoutes(subrouter)

	corsHandler := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)(router)

	srv := &http.Server{
		Addr:    s.address,
		Handler: corsHandler,
	}

	// Drain in-flight requests when the run context is cancelled, which
	// main wires to SIGINT/SIGTERM.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Warn("server shutdown", zap.Error(err))
		}
	}()

	s.log.Info("server running", zap.String("address", s.address))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
