package booking

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/mentorika/Mentorika-server/cmd/utils"
	notification "github.com/mentorika/Mentorika-server/service/notifications"
	"gorm.io/gorm"
)

type BookingHandler struct {
	db     *gorm.DB
	svc    *Service
	pusher *notification.Pusher
}

func NewBookingHandler(db *gorm.DB, svc *Service, pusher *notification.Pusher) *BookingHandler {
	return &BookingHandler{db: db, svc: svc, pusher: pusher}
}

func (h *BookingHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/bookings/book", utils.AuthMiddleware(h.BookSlot)).Methods("POST")
	router.HandleFunc("/bookings/{id}", h.GetBooking).Methods("GET")
	router.HandleFunc("/bookings/{id}/confirm", h.ConfirmBooking).Methods("POST")
	router.HandleFunc("/bookings/{id}/cancel", utils.AuthMiddleware(h.CancelBooking)).Methods("PATCH")
	router.HandleFunc("/bookings/{id}/reschedule", utils.AuthMiddleware(h.RescheduleBooking)).Methods("PATCH")
	router.HandleFunc("/bookings/{id}/complete", utils.AuthMiddleware(h.CompleteBooking)).Methods("POST")
	router.HandleFunc("/bookings/booker/{bookerId}", utils.AuthMiddleware(h.GetBookerBookings)).Methods("GET")
	router.HandleFunc("/bookings/mentor/{mentorId}", utils.AuthMiddleware(h.GetMentorBookings)).Methods("GET")
}

// writeLifecycleError maps the typed lifecycle failures onto responses the
// client can branch on: contention asks the user to pick another slot,
// illegal transitions report the current terminal status.
func writeLifecycleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrSlotUnavailable):
		http.Error(w, "This time was just taken, please pick another", http.StatusConflict)
	case errors.Is(err, ErrInvalidTransition):
		http.Error(w, "Booking is already cancelled or completed", http.StatusConflict)
	case errors.Is(err, ErrFormatNotOffered):
		http.Error(w, "Group sessions are not offered by this provider", http.StatusConflict)
	case errors.Is(err, ErrBookingNotFound):
		http.Error(w, "Booking not found", http.StatusNotFound)
	case errors.Is(err, ErrMentorNotFound):
		http.Error(w, "Mentor not found", http.StatusNotFound)
	case errors.Is(err, ErrListingNotFound):
		http.Error(w, "Listing not found", http.StatusNotFound)
	default:
		http.Error(w, "Error processing booking", http.StatusInternalServerError)
	}
}

func (h *BookingHandler) BookSlot(w http.ResponseWriter, r *http.Request) {
	bookerID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		MentorID      uint   `json:"mentor_id"`
		ListingID     *uint  `json:"listing_id,omitempty"`
		Format        string `json:"format"`
		Date          string `json:"date"`
		Time          string `json:"time"`
		Goal          string `json:"goal"`
		ExchangeOffer string `json:"exchange_offer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	booking, err := h.svc.Create(r.Context(), CreateRequest{
		MentorID:      req.MentorID,
		BookerID:      bookerID,
		ListingID:     req.ListingID,
		Format:        req.Format,
		Date:          req.Date,
		TimeLabel:     req.Time,
		Goal:          req.Goal,
		ExchangeOffer: req.ExchangeOffer,
	})
	if err != nil {
		writeLifecycleError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(booking)
}

func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := bookingID(w, r)
	if !ok {
		return
	}

	booking, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeLifecycleError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(booking)
}

// validPaymentSignature reports whether sig is the hex HMAC-SHA512 of body
// under key.
func validPaymentSignature(body, key []byte, sig string) bool {
	mac := hmac.New(sha512.New, key)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(sig), []byte(expected))
}

// ConfirmBooking is the payment collaborator's callback: it fires once the
// external gateway reports a successful charge for the booking's reference.
// The gateway signs the raw body with the shared webhook secret; anything
// else is rejected before it can touch the booking.
func (h *BookingHandler) ConfirmBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := bookingID(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Error reading request body", http.StatusBadRequest)
		return
	}
	sig := r.Header.Get("X-Payment-Signature")
	if !validPaymentSignature(body, []byte(os.Getenv("PAYMENT_SECRET_KEY")), sig) {
		http.Error(w, "Invalid signature", http.StatusBadRequest)
		return
	}

	booking, err := h.svc.Confirm(r.Context(), id)
	if err != nil {
		writeLifecycleError(w, err)
		return
	}

	mentorUser := h.mentorUserID(booking.MentorID)
	msg := fmt.Sprintf("Session on %s at %s is confirmed", booking.Date, booking.TimeLabel)
	h.pusher.PushToUser(booking.BookerID, "Booking confirmed", msg, map[string]string{
		"booking_id": strconv.FormatUint(uint64(booking.ID), 10),
	})
	if mentorUser != 0 {
		h.pusher.PushToUser(mentorUser, "New confirmed session", msg, map[string]string{
			"booking_id": strconv.FormatUint(uint64(booking.ID), 10),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(booking)
}

func (h *BookingHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := bookingID(w, r)
	if !ok {
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	booking, err := h.svc.Cancel(r.Context(), id, req.Reason)
	if err != nil {
		writeLifecycleError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(booking)
}

func (h *BookingHandler) RescheduleBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := bookingID(w, r)
	if !ok {
		return
	}

	var req struct {
		Date string `json:"date"`
		Time string `json:"time"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Date == "" || req.Time == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	booking, err := h.svc.Reschedule(r.Context(), id, req.Date, req.Time)
	if err != nil {
		writeLifecycleError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(booking)
}

// CompleteBooking is called by the review flow after a review lands for a
// past session. Only the booker or the session's mentor may complete it.
func (h *BookingHandler) CompleteBooking(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	id, ok := bookingID(w, r)
	if !ok {
		return
	}

	existing, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeLifecycleError(w, err)
		return
	}
	if userID != existing.BookerID && userID != h.mentorUserID(existing.MentorID) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	booking, err := h.svc.Complete(r.Context(), id)
	if err != nil {
		writeLifecycleError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(booking)
}

func (h *BookingHandler) GetBookerBookings(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	bookerID, err := strconv.ParseUint(vars["bookerId"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid booker ID", http.StatusBadRequest)
		return
	}

	bookings, err := h.svc.ForBooker(r.Context(), uint(bookerID))
	if err != nil {
		http.Error(w, "Error retrieving bookings", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"bookings": bookings,
		"total":    len(bookings),
	})
}

func (h *BookingHandler) GetMentorBookings(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	mentorID, err := strconv.ParseUint(vars["mentorId"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid mentor ID", http.StatusBadRequest)
		return
	}

	bookings, err := h.svc.ForMentor(r.Context(), uint(mentorID))
	if err != nil {
		http.Error(w, "Error retrieving bookings", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"bookings": bookings,
		"total":    len(bookings),
	})
}

func bookingID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	vars := mux.Vars(r)
	id, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid booking ID", http.StatusBadRequest)
		return 0, false
	}
	return uint(id), true
}

// mentorUserID maps a mentor profile to its user account for notification
// fan-out. Best effort; zero when the lookup fails.
func (h *BookingHandler) mentorUserID(mentorID uint) uint {
	var profile struct {
		UserID uint
	}
	if err := h.db.Table("mentor_profiles").Select("user_id").
		Where("id = ?", mentorID).Scan(&profile).Error; err != nil {
		return 0
	}
	return profile.UserID
}
