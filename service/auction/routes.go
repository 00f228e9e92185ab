package auction

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/mentorika/Mentorika-server/cmd/models"
	"github.com/mentorika/Mentorika-server/cmd/utils"
	"github.com/mentorika/Mentorika-server/service/booking"
	notification "github.com/mentorika/Mentorika-server/service/notifications"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type AuctionHandler struct {
	db     *gorm.DB
	engine *Engine
	hub    *Hub
	pusher *notification.Pusher
	log    *zap.Logger
}

func NewAuctionHandler(db *gorm.DB, engine *Engine, hub *Hub, pusher *notification.Pusher, log *zap.Logger) *AuctionHandler {
	return &AuctionHandler{
		db:     db,
		engine: engine,
		hub:    hub,
		pusher: pusher,
		log:    log.With(zap.String("handler", "auction")),
	}
}

func (h *AuctionHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/listings/{listingId}/auction", utils.AuthMiddleware(h.CreateAuction)).Methods("POST")
	router.HandleFunc("/auctions/{id}", h.GetAuction).Methods("GET")
	router.HandleFunc("/auctions/{id}/bids", h.GetBids).Methods("GET")
	router.HandleFunc("/auctions/{id}/bids", utils.AuthMiddleware(h.PlaceBid)).Methods("POST")
	router.HandleFunc("/auctions/{id}/close", utils.AuthMiddleware(h.CloseAuction)).Methods("POST")
	router.HandleFunc("/auctions/{id}/convert", utils.AuthMiddleware(h.ConvertWinner)).Methods("POST")
	router.HandleFunc("/auctions/{id}/live", h.LiveFeed).Methods("GET")
}

func auctionID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 32)
	if err != nil {
		http.Error(w, "Invalid auction ID", http.StatusBadRequest)
		return 0, false
	}
	return uint(id), true
}

func writeAuctionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBidTooLow):
		http.Error(w, "Bid is below the current minimum", http.StatusConflict)
	case errors.Is(err, ErrAuctionClosed):
		http.Error(w, "Auction is no longer taking bids", http.StatusConflict)
	case errors.Is(err, ErrAuctionStillOpen):
		http.Error(w, "Auction has not ended yet", http.StatusConflict)
	case errors.Is(err, ErrNoBids):
		http.Error(w, "Auction received no bids", http.StatusConflict)
	case errors.Is(err, ErrAuctionNotFound):
		http.Error(w, "Auction not found", http.StatusNotFound)
	default:
		http.Error(w, "Error processing auction", http.StatusInternalServerError)
	}
}

func (h *AuctionHandler) CreateAuction(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	listingID, err := strconv.ParseUint(mux.Vars(r)["listingId"], 10, 32)
	if err != nil {
		http.Error(w, "Invalid listing ID", http.StatusBadRequest)
		return
	}

	var req struct {
		StartingBid float64 `json:"starting_bid"`
		MinStep     float64 `json:"min_step"`
		EndsAt      string  `json:"ends_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.MinStep <= 0 {
		http.Error(w, "Minimum step must be positive", http.StatusBadRequest)
		return
	}
	endsAt, err := time.Parse(time.RFC3339, req.EndsAt)
	if err != nil || !endsAt.After(time.Now()) {
		http.Error(w, "ends_at must be a future RFC3339 timestamp", http.StatusBadRequest)
		return
	}

	var listing models.Listing
	if err := h.db.Preload("Mentor").First(&listing, listingID).Error; err != nil {
		http.Error(w, "Listing not found", http.StatusNotFound)
		return
	}
	if listing.Mentor == nil || listing.Mentor.UserID != userID {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	auction := models.Auction{
		ListingID:  listing.ID,
		CurrentBid: req.StartingBid,
		MinStep:    req.MinStep,
		EndsAt:     endsAt,
		Status:     models.AuctionActive,
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&auction).Error; err != nil {
			return err
		}
		return tx.Model(&listing).Update("auctioned", true).Error
	})
	if err != nil {
		http.Error(w, "Error creating auction", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(auction)
}

func (h *AuctionHandler) GetAuction(w http.ResponseWriter, r *http.Request) {
	id, ok := auctionID(w, r)
	if !ok {
		return
	}

	var auction models.Auction
	if err := h.db.Preload("Listing").First(&auction, id).Error; err != nil {
		http.Error(w, "Auction not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(auction)
}

func (h *AuctionHandler) GetBids(w http.ResponseWriter, r *http.Request) {
	id, ok := auctionID(w, r)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	var total int64
	h.db.Model(&models.Bid{}).Where("auction_id = ?", id).Count(&total)

	var bids []models.Bid
	err := h.db.Where("auction_id = ?", id).
		Order("amount DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&bids).Error
	if err != nil {
		http.Error(w, "Error retrieving bids", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"bids":        bids,
		"total":       total,
		"page":        page,
		"total_pages": (total + int64(limit) - 1) / int64(limit),
	})
}

func (h *AuctionHandler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	bidderID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	id, ok := auctionID(w, r)
	if !ok {
		return
	}

	var req struct {
		Amount  float64 `json:"amount"`
		Message string  `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	bid, prevTop, err := h.engine.PlaceBid(r.Context(), id, bidderID, req.Amount, req.Message)
	if err != nil {
		writeAuctionError(w, err)
		return
	}

	h.hub.Broadcast(BidEvent{
		Type:        "bid",
		AuctionID:   id,
		CurrentBid:  bid.Amount,
		TopBidderID: bid.BidderID,
	})
	if prevTop != 0 && prevTop != bidderID {
		h.pusher.PushToUser(prevTop, "You have been outbid",
			fmt.Sprintf("A higher bid of %.2f was placed", bid.Amount),
			map[string]string{"auction_id": strconv.FormatUint(uint64(id), 10)})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(bid)
}

func (h *AuctionHandler) CloseAuction(w http.ResponseWriter, r *http.Request) {
	id, ok := auctionID(w, r)
	if !ok {
		return
	}

	auction, win, err := h.engine.Close(r.Context(), id)
	if err != nil {
		writeAuctionError(w, err)
		return
	}

	h.hub.Broadcast(BidEvent{Type: "closed", AuctionID: id, CurrentBid: auction.CurrentBid})
	if win != nil {
		h.pusher.PushToUser(win.BidderID, "You won the auction",
			fmt.Sprintf("Your bid of %.2f won, pick a time to book your session", win.Amount),
			map[string]string{"auction_id": strconv.FormatUint(uint64(id), 10)})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"auction":     auction,
		"winning_bid": win,
	})
}

// ConvertWinner turns a closed lot into a pending booking for the winner at
// the winning price. The winner or the listing's mentor may trigger it.
func (h *AuctionHandler) ConvertWinner(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	id, ok := auctionID(w, r)
	if !ok {
		return
	}

	var auction models.Auction
	if err := h.db.Preload("Listing.Mentor").First(&auction, id).Error; err != nil {
		http.Error(w, "Auction not found", http.StatusNotFound)
		return
	}
	ownsListing := auction.Listing != nil && auction.Listing.Mentor != nil &&
		auction.Listing.Mentor.UserID == userID
	if userID != auction.TopBidderID && !ownsListing {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	var req struct {
		Format string `json:"format"`
		Date   string `json:"date"`
		Time   string `json:"time"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Format == "" {
		req.Format = models.FormatIndividualOnline
	}

	bkg, err := h.engine.ConvertWinner(r.Context(), id, req.Format, req.Date, req.Time)
	if err != nil {
		switch {
		case errors.Is(err, booking.ErrSlotUnavailable):
			http.Error(w, "This time was just taken, please pick another", http.StatusConflict)
		case errors.Is(err, booking.ErrFormatNotOffered):
			http.Error(w, "Group sessions are not offered by this provider", http.StatusConflict)
		case errors.Is(err, booking.ErrAuctionBooked):
			http.Error(w, "This auction already has an active booking", http.StatusConflict)
		default:
			writeAuctionError(w, err)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(bkg)
}

// LiveFeed streams bid events for one lot over websocket. The read loop only
// watches for the client going away.
func (h *AuctionHandler) LiveFeed(w http.ResponseWriter, r *http.Request) {
	id, ok := auctionID(w, r)
	if !ok {
		return
	}

	var auction models.Auction
	if err := h.db.First(&auction, id).Error; err != nil {
		http.Error(w, "Auction not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	h.hub.Subscribe(id, conn)

	snapshot, _ := json.Marshal(BidEvent{
		Type:        "snapshot",
		AuctionID:   id,
		CurrentBid:  auction.CurrentBid,
		BidsCount:   auction.BidsCount,
		TopBidderID: auction.TopBidderID,
	})
	if err := conn.WriteMessage(websocket.TextMessage, snapshot); err != nil {
		h.hub.Unsubscribe(id, conn)
		conn.Close()
		return
	}

	go func() {
		defer func() {
			h.hub.Unsubscribe(id, conn)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
