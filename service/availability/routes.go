package availability

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/mentorika/Mentorika-server/cmd/models"
	"github.com/mentorika/Mentorika-server/cmd/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// BookingSource supplies the active bookings the resolver subtracts from a
// calendar. Implemented by the booking service.
type BookingSource interface {
	ActiveForMentor(ctx context.Context, mentorID uint) ([]models.Booking, error)
}

type AvailabilityHandler struct {
	db       *gorm.DB
	bookings BookingSource
	log      *zap.Logger
}

func NewAvailabilityHandler(db *gorm.DB, bookings BookingSource, log *zap.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{db: db, bookings: bookings, log: log.With(zap.String("service", "availability"))}
}

func (h *AvailabilityHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/mentors/{mentorId}/availability", h.GetMentorAvailability).Methods("GET")
	router.HandleFunc("/mentors/{mentorId}/availability", utils.AuthMiddleware(h.UpdateMentorAvailability)).Methods("PUT")
	router.HandleFunc("/mentors/{mentorId}/availability/toggle", utils.AuthMiddleware(h.ToggleMentorSlot)).Methods("POST")
	router.HandleFunc("/mentors/{mentorId}/availability/reconfirm", utils.AuthMiddleware(h.ReconfirmAvailability)).Methods("POST")
	router.HandleFunc("/listings/{listingId}/availability", h.GetListingAvailability).Methods("GET")
	router.HandleFunc("/listings/{listingId}/availability", utils.AuthMiddleware(h.UpdateListingAvailability)).Methods("PUT")
	router.HandleFunc("/listings/{listingId}/availability/toggle", utils.AuthMiddleware(h.ToggleListingSlot)).Methods("POST")
}

type slotRequest struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

// GetMentorAvailability returns the mentor's default calendar with booked
// slots removed. A mentor whose calendar has gone stale is hidden: the
// response carries fresh=false and an empty map.
func (h *AvailabilityHandler) GetMentorAvailability(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	mentorID, err := strconv.ParseUint(vars["mentorId"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid mentor ID", http.StatusBadRequest)
		return
	}

	var profile models.MentorProfile
	if err := h.db.First(&profile, mentorID).Error; err != nil {
		http.Error(w, "Mentor not found", http.StatusNotFound)
		return
	}

	fresh := models.FreshAvailability(profile.LastWeeklyUpdate, time.Now())
	resolved := models.SlotMap{}
	if fresh {
		capacity := 1
		format := r.URL.Query().Get("format")
		if models.IsGroupFormat(format) {
			if profile.GroupPrice <= 0 {
				http.Error(w, "Group sessions not offered by this mentor", http.StatusConflict)
				return
			}
			capacity = profile.MaxParticipants
		}

		active, err := h.bookings.ActiveForMentor(r.Context(), uint(mentorID))
		if err != nil {
			http.Error(w, "Error retrieving bookings", http.StatusInternalServerError)
			return
		}
		resolved = Resolve(profile.Schedule, active, capacity, 0)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"availability": resolved,
		"fresh":        fresh,
	})
}

// GetListingAvailability resolves a listing's calendar: the listing override
// when it has one, the mentor default otherwise. Group capacity comes from
// the listing.
func (h *AvailabilityHandler) GetListingAvailability(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	listingID, err := strconv.ParseUint(vars["listingId"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid listing ID", http.StatusBadRequest)
		return
	}

	var listing models.Listing
	if err := h.db.Preload("Mentor").First(&listing, listingID).Error; err != nil {
		http.Error(w, "Listing not found", http.StatusNotFound)
		return
	}

	fresh := listing.Mentor != nil && models.FreshAvailability(listing.Mentor.LastWeeklyUpdate, time.Now())
	resolved := models.SlotMap{}
	if fresh {
		format := r.URL.Query().Get("format")
		if models.IsGroupFormat(format) && listing.GroupPrice <= 0 {
			http.Error(w, "Group sessions not offered for this listing", http.StatusConflict)
			return
		}

		schedule := listing.Schedule
		if !listing.HasOwnSchedule() {
			schedule = listing.Mentor.Schedule
		}

		active, err := h.bookings.ActiveForMentor(r.Context(), listing.MentorID)
		if err != nil {
			http.Error(w, "Error retrieving bookings", http.StatusInternalServerError)
			return
		}
		resolved = Resolve(schedule, active, listing.Capacity(format), 0)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"availability": resolved,
		"fresh":        fresh,
	})
}

func (h *AvailabilityHandler) ToggleMentorSlot(w http.ResponseWriter, r *http.Request) {
	profile, ok := h.ownedProfile(w, r)
	if !ok {
		return
	}

	var req slotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Date == "" || req.Time == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	profile.Schedule = profile.Schedule.Toggle(req.Date, req.Time)
	if err := h.db.Model(profile).Update("schedule", profile.Schedule).Error; err != nil {
		http.Error(w, "Error updating availability", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(profile.Schedule)
}

func (h *AvailabilityHandler) UpdateMentorAvailability(w http.ResponseWriter, r *http.Request) {
	profile, ok := h.ownedProfile(w, r)
	if !ok {
		return
	}

	var schedule models.SlotMap
	if err := json.NewDecoder(r.Body).Decode(&schedule); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	for date, times := range schedule {
		if len(times) == 0 {
			delete(schedule, date)
		}
	}

	profile.Schedule = schedule
	if err := h.db.Model(profile).Update("schedule", profile.Schedule).Error; err != nil {
		http.Error(w, "Error updating availability", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(profile.Schedule)
}

// ReconfirmAvailability stamps the weekly freshness marker. Mentors call it
// (or accept the renewal prompt) to keep their calendar surfaced.
func (h *AvailabilityHandler) ReconfirmAvailability(w http.ResponseWriter, r *http.Request) {
	profile, ok := h.ownedProfile(w, r)
	if !ok {
		return
	}

	now := time.Now()
	if err := h.db.Model(profile).Update("last_weekly_update", now).Error; err != nil {
		http.Error(w, "Error reconfirming availability", http.StatusInternalServerError)
		return
	}
	h.log.Info("availability reconfirmed", zap.Uint("mentor_id", profile.ID))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"last_weekly_update": now,
		"fresh":              true,
	})
}

func (h *AvailabilityHandler) ToggleListingSlot(w http.ResponseWriter, r *http.Request) {
	listing, ok := h.ownedListing(w, r)
	if !ok {
		return
	}

	var req slotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Date == "" || req.Time == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	listing.Schedule = listing.Schedule.Toggle(req.Date, req.Time)
	if err := h.db.Model(listing).Update("schedule", listing.Schedule).Error; err != nil {
		http.Error(w, "Error updating availability", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(listing.Schedule)
}

func (h *AvailabilityHandler) UpdateListingAvailability(w http.ResponseWriter, r *http.Request) {
	listing, ok := h.ownedListing(w, r)
	if !ok {
		return
	}

	var schedule models.SlotMap
	if err := json.NewDecoder(r.Body).Decode(&schedule); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	for date, times := range schedule {
		if len(times) == 0 {
			delete(schedule, date)
		}
	}

	listing.Schedule = schedule
	if err := h.db.Model(listing).Update("schedule", listing.Schedule).Error; err != nil {
		http.Error(w, "Error updating availability", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(listing.Schedule)
}

// ownedProfile loads the mentor profile from the URL and verifies the
// authenticated user owns it.
func (h *AvailabilityHandler) ownedProfile(w http.ResponseWriter, r *http.Request) (*models.MentorProfile, bool) {
	vars := mux.Vars(r)
	mentorID, err := strconv.ParseUint(vars["mentorId"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid mentor ID", http.StatusBadRequest)
		return nil, false
	}

	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return nil, false
	}

	var profile models.MentorProfile
	if err := h.db.First(&profile, mentorID).Error; err != nil {
		http.Error(w, "Mentor not found", http.StatusNotFound)
		return nil, false
	}
	if profile.UserID != userID {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return nil, false
	}
	return &profile, true
}

func (h *AvailabilityHandler) ownedListing(w http.ResponseWriter, r *http.Request) (*models.Listing, bool) {
	vars := mux.Vars(r)
	listingID, err := strconv.ParseUint(vars["listingId"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid listing ID", http.StatusBadRequest)
		return nil, false
	}

	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return nil, false
	}

	var listing models.Listing
	if err := h.db.Preload("Mentor").First(&listing, listingID).Error; err != nil {
		http.Error(w, "Listing not found", http.StatusNotFound)
		return nil, false
	}
	if listing.Mentor == nil || listing.Mentor.UserID != userID {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return nil, false
	}
	return &listing, true
}
