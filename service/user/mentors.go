package user

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/mentorika/Mentorika-server/cmd/models"
	"github.com/mentorika/Mentorika-server/cmd/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// GetMentors lists mentor profiles. The fresh filter (on by default) hides
// mentors whose calendar has not been reconfirmed within the weekly window.
func (h *Handler) GetMentors(w http.ResponseWriter, r *http.Request) {
	verified := r.URL.Query().Get("verified")
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	pageSize := 20

	query := h.db.Model(&models.MentorProfile{}).Preload("User")

	if verified != "" {
		isVerified, parseErr := strconv.ParseBool(verified)
		if parseErr != nil {
			http.Error(w, "Invalid value for 'verified'", http.StatusBadRequest)
			return
		}
		query = query.Where("verified = ?", isVerified)
	}

	includeStale := r.URL.Query().Get("include_stale") == "true"
	if !includeStale {
		cutoff := time.Now().Add(-models.FreshnessWindow)
		query = query.Where("last_weekly_update IS NOT NULL AND last_weekly_update > ?", cutoff)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		http.Error(w, "Error counting mentors", http.StatusInternalServerError)
		return
	}

	var mentors []models.MentorProfile
	result := query.Offset((page - 1) * pageSize).Limit(pageSize).Find(&mentors)
	if result.Error != nil {
		http.Error(w, "Error retrieving mentors", http.StatusInternalServerError)
		return
	}

	response := make([]map[string]interface{}, 0, len(mentors))
	for _, mentor := range mentors {
		if mentor.User == nil {
			continue
		}
		response = append(response, mentorPayload(&mentor))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"mentors":     response,
		"total":       total,
		"page":        page,
		"page_size":   pageSize,
		"total_pages": (total + int64(pageSize) - 1) / int64(pageSize),
	})
}

func mentorPayload(mentor *models.MentorProfile) map[string]interface{} {
	return map[string]interface{}{
		"ID":               mentor.ID,
		"CreatedAt":        mentor.CreatedAt,
		"UpdatedAt":        mentor.UpdatedAt,
		"UserID":           mentor.UserID,
		"Expertise":        mentor.Expertise,
		"Bio":              mentor.Bio,
		"Verified":         mentor.Verified,
		"IndividualPrice":  mentor.IndividualPrice,
		"GroupPrice":       mentor.GroupPrice,
		"MaxParticipants":  mentor.MaxParticipants,
		"AverageRating":    mentor.AverageRating,
		"TotalRatings":     mentor.TotalRatings,
		"LastWeeklyUpdate": mentor.LastWeeklyUpdate,
		"Fresh":            models.FreshAvailability(mentor.LastWeeklyUpdate, time.Now()),
		"User": map[string]interface{}{
			"FullName": mentor.User.FullName,
			"Email":    mentor.User.Email,
			"Phone":    mentor.User.Phone,
			"Role":     mentor.User.Role,
			"Status":   mentor.User.Status,
		},
	}
}

// GetMentor retrieves a specific mentor by ID with full details
func (h *Handler) GetMentor(w http.ResponseWriter, r *http.Request) {
	mentorID, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid mentor ID", http.StatusBadRequest)
		return
	}

	var mentor models.MentorProfile
	result := h.db.Preload("User").First(&mentor, mentorID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			http.Error(w, "Mentor not found", http.StatusNotFound)
		} else {
			http.Error(w, "Error retrieving mentor", http.StatusInternalServerError)
		}
		return
	}
	if mentor.User == nil {
		http.Error(w, "Mentor user data not found", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(mentorPayload(&mentor))
}

// UpdateMentor allows a mentor to update their own profile information
func (h *Handler) UpdateMentor(w http.ResponseWriter, r *http.Request) {
	mentorID, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid mentor ID", http.StatusBadRequest)
		return
	}

	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var updateRequest struct {
		Expertise       string   `json:"expertise"`
		Bio             string   `json:"bio"`
		IndividualPrice *float64 `json:"individual_price"`
		GroupPrice      *float64 `json:"group_price"`
		MaxParticipants *int     `json:"max_participants"`
	}
	if err := json.NewDecoder(r.Body).Decode(&updateRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var mentor models.MentorProfile
	if result := h.db.First(&mentor, mentorID); result.Error != nil {
		http.Error(w, "Mentor not found", http.StatusNotFound)
		return
	}
	if mentor.UserID != userID {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	if updateRequest.Expertise != "" {
		mentor.Expertise = updateRequest.Expertise
	}
	if updateRequest.Bio != "" {
		mentor.Bio = updateRequest.Bio
	}
	if updateRequest.IndividualPrice != nil {
		mentor.IndividualPrice = *updateRequest.IndividualPrice
	}
	if updateRequest.GroupPrice != nil {
		mentor.GroupPrice = *updateRequest.GroupPrice
	}
	if updateRequest.MaxParticipants != nil && *updateRequest.MaxParticipants >= 1 {
		mentor.MaxParticipants = *updateRequest.MaxParticipants
	}

	if err := h.db.Save(&mentor).Error; err != nil {
		http.Error(w, "Error updating mentor", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Mentor updated successfully",
		"mentor":  mentor,
	})
}

// VerifyMentor handles mentor verification by an admin
func (h *Handler) VerifyMentor(w http.ResponseWriter, r *http.Request) {
	mentorID, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid mentor ID", http.StatusBadRequest)
		return
	}

	var verifyRequest struct {
		Verified bool `json:"verified"`
	}
	if err := json.NewDecoder(r.Body).Decode(&verifyRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var mentor models.MentorProfile
	result := h.db.First(&mentor, mentorID)
	if result.Error != nil {
		http.Error(w, "Mentor not found", http.StatusNotFound)
		return
	}

	mentor.Verified = verifyRequest.Verified
	if err := h.db.Save(&mentor).Error; err != nil {
		http.Error(w, "Error updating mentor verification", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message":  "Mentor verification updated",
		"verified": mentor.Verified,
	})
}

// SearchMentors allows searching mentors by various criteria
func (h *Handler) SearchMentors(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	expertise := r.URL.Query().Get("expertise")
	verified := r.URL.Query().Get("verified")
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize := 10

	dbQuery := h.db.Model(&models.MentorProfile{}).Preload("User")

	if query != "" {
		searchQuery := "%" + query + "%"
		dbQuery = dbQuery.Where(
			"expertise LIKE ? OR bio LIKE ?",
			searchQuery, searchQuery,
		)
	}

	if expertise != "" {
		dbQuery = dbQuery.Where("expertise LIKE ?", "%"+expertise+"%")
	}

	if verified != "" {
		isVerified, _ := strconv.ParseBool(verified)
		dbQuery = dbQuery.Where("verified = ?", isVerified)
	}

	var total int64
	dbQuery.Count(&total)

	var mentors []models.MentorProfile
	result := dbQuery.Offset((page - 1) * pageSize).Limit(pageSize).Find(&mentors)
	if result.Error != nil {
		http.Error(w, "Error searching mentors", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"mentors":     mentors,
		"total":       total,
		"page":        page,
		"page_size":   pageSize,
		"total_pages": (total + int64(pageSize) - 1) / int64(pageSize),
	})
}

// RateMentor records a rating and folds it into the mentor's running average.
func (h *Handler) RateMentor(w http.ResponseWriter, r *http.Request) {
	mentorID, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid mentor ID", http.StatusBadRequest)
		return
	}

	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var rateRequest struct {
		Rating  float64 `json:"rating"`
		Comment string  `json:"comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&rateRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if rateRequest.Rating < 1 || rateRequest.Rating > 5 {
		http.Error(w, "Rating must be between 1 and 5", http.StatusBadRequest)
		return
	}

	var mentor models.MentorProfile
	if result := h.db.First(&mentor, mentorID); result.Error != nil {
		http.Error(w, "Mentor not found", http.StatusNotFound)
		return
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		rating := models.Rating{
			UserID:   userID,
			MentorID: mentor.ID,
			Rating:   rateRequest.Rating,
			Comment:  rateRequest.Comment,
		}
		if err := tx.Create(&rating).Error; err != nil {
			return err
		}

		total := mentor.AverageRating*float64(mentor.TotalRatings) + rateRequest.Rating
		mentor.TotalRatings++
		mentor.AverageRating = total / float64(mentor.TotalRatings)
		return tx.Save(&mentor).Error
	})
	if err != nil {
		h.log.Error("rating failed", zap.Uint("mentor_id", mentor.ID), zap.Error(err))
		http.Error(w, "Error saving rating", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message":        "Rating saved",
		"average_rating": mentor.AverageRating,
		"total_ratings":  mentor.TotalRatings,
	})
}
