package listing

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/mentorika/Mentorika-server/cmd/models"
	"github.com/mentorika/Mentorika-server/cmd/utils"
	"gorm.io/gorm"
)

type ListingHandler struct {
	db *gorm.DB
}

func NewListingHandler(db *gorm.DB) *ListingHandler {
	return &ListingHandler{db: db}
}

func (h *ListingHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/listings", h.GetListings).Methods("GET")
	router.HandleFunc("/listings", utils.AuthMiddleware(h.CreateListing)).Methods("POST")
	router.HandleFunc("/listings/{id}", h.GetListing).Methods("GET")
	router.HandleFunc("/listings/{id}", utils.AuthMiddleware(h.UpdateListing)).Methods("PUT")
	router.HandleFunc("/listings/{id}", utils.AuthMiddleware(h.DeleteListing)).Methods("DELETE")
	router.HandleFunc("/listings/mentor/{mentorId}", h.GetMentorListings).Methods("GET")
}

// ownedListing loads the listing from the URL and verifies the
// authenticated user owns the mentor profile behind it.
func (h *ListingHandler) ownedListing(w http.ResponseWriter, r *http.Request) (*models.Listing, bool) {
	listingID, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
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

func (h *ListingHandler) GetListings(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize := 20

	query := h.db.Model(&models.Listing{}).Preload("Mentor")
	if category != "" {
		query = query.Where("category = ?", category)
	}
	if r.URL.Query().Get("auctioned") != "" {
		auctioned, _ := strconv.ParseBool(r.URL.Query().Get("auctioned"))
		query = query.Where("auctioned = ?", auctioned)
	}

	var total int64
	query.Count(&total)

	var listings []models.Listing
	result := query.Offset((page - 1) * pageSize).Limit(pageSize).Find(&listings)
	if result.Error != nil {
		http.Error(w, "Error retrieving listings", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"listings":    listings,
		"total":       total,
		"page":        page,
		"page_size":   pageSize,
		"total_pages": (total + int64(pageSize) - 1) / int64(pageSize),
	})
}

func (h *ListingHandler) CreateListing(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		Title           string          `json:"title"`
		Description     string          `json:"description"`
		Category        string          `json:"category"`
		IndividualPrice float64         `json:"individual_price"`
		GroupPrice      float64         `json:"group_price"`
		MaxParticipants int             `json:"max_participants"`
		Schedule        json.RawMessage `json:"schedule"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Title == "" {
		http.Error(w, "Title is required", http.StatusBadRequest)
		return
	}

	var profile models.MentorProfile
	if err := h.db.Where("user_id = ?", userID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.Error(w, "Only mentors can create listings", http.StatusForbidden)
		} else {
			http.Error(w, "Error loading mentor profile", http.StatusInternalServerError)
		}
		return
	}

	listing := models.Listing{
		MentorID:        profile.ID,
		Title:           req.Title,
		Description:     req.Description,
		Category:        req.Category,
		IndividualPrice: req.IndividualPrice,
		GroupPrice:      req.GroupPrice,
		MaxParticipants: req.MaxParticipants,
		Schedule:        models.ParseSlotMap(req.Schedule),
	}
	if listing.MaxParticipants < 1 {
		listing.MaxParticipants = 1
	}

	if err := h.db.Create(&listing).Error; err != nil {
		http.Error(w, "Error creating listing", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(listing)
}

func (h *ListingHandler) GetListing(w http.ResponseWriter, r *http.Request) {
	listingID, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid listing ID", http.StatusBadRequest)
		return
	}

	var listing models.Listing
	if err := h.db.Preload("Mentor").First(&listing, listingID).Error; err != nil {
		http.Error(w, "Listing not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(listing)
}

func (h *ListingHandler) UpdateListing(w http.ResponseWriter, r *http.Request) {
	listing, ok := h.ownedListing(w, r)
	if !ok {
		return
	}

	var req struct {
		Title           string          `json:"title"`
		Description     string          `json:"description"`
		Category        string          `json:"category"`
		IndividualPrice *float64        `json:"individual_price"`
		GroupPrice      *float64        `json:"group_price"`
		MaxParticipants *int            `json:"max_participants"`
		Schedule        json.RawMessage `json:"schedule"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Title != "" {
		listing.Title = req.Title
	}
	if req.Description != "" {
		listing.Description = req.Description
	}
	if req.Category != "" {
		listing.Category = req.Category
	}
	if req.IndividualPrice != nil {
		listing.IndividualPrice = *req.IndividualPrice
	}
	if req.GroupPrice != nil {
		listing.GroupPrice = *req.GroupPrice
	}
	if req.MaxParticipants != nil && *req.MaxParticipants >= 1 {
		listing.MaxParticipants = *req.MaxParticipants
	}
	if len(req.Schedule) > 0 {
		listing.Schedule = models.ParseSlotMap(req.Schedule)
	}

	if err := h.db.Save(listing).Error; err != nil {
		http.Error(w, "Error updating listing", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(listing)
}

func (h *ListingHandler) DeleteListing(w http.ResponseWriter, r *http.Request) {
	listing, ok := h.ownedListing(w, r)
	if !ok {
		return
	}

	if err := h.db.Delete(listing).Error; err != nil {
		http.Error(w, "Error deleting listing", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Listing deleted"})
}

func (h *ListingHandler) GetMentorListings(w http.ResponseWriter, r *http.Request) {
	mentorID, err := strconv.ParseUint(mux.Vars(r)["mentorId"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid mentor ID", http.StatusBadRequest)
		return
	}

	var listings []models.Listing
	if err := h.db.Where("mentor_id = ?", mentorID).Find(&listings).Error; err != nil {
		http.Error(w, "Error retrieving listings", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"listings": listings,
		"total":    len(listings),
	})
}
