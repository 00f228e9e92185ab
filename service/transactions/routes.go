package transactions

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/mentorika/Mentorika-server/cmd/models"
	"github.com/mentorika/Mentorika-server/cmd/utils"
	"gorm.io/gorm"
)

// TransactionFilter represents all possible filters for ledger entries
type TransactionFilter struct {
	UserID    uint
	Direction string
	Purpose   string
	MinAmount float64
	MaxAmount float64
	StartDate time.Time
	EndDate   time.Time
}

// PaginatedResponse represents the standard paginated API response structure
type PaginatedResponse struct {
	Data       interface{}    `json:"data"`
	Pagination PaginationMeta `json:"pagination"`
	Error      string         `json:"error,omitempty"`
}

// PaginationMeta contains pagination metadata
type PaginationMeta struct {
	CurrentPage int   `json:"current_page"`
	PerPage     int   `json:"per_page"`
	TotalItems  int64 `json:"total_items"`
	TotalPages  int   `json:"total_pages"`
	HasPrevious bool  `json:"has_previous"`
	HasNext     bool  `json:"has_next"`
}

type TransactionHandler struct {
	db *gorm.DB
}

func NewTransactionHandler(db *gorm.DB) *TransactionHandler {
	return &TransactionHandler{db: db}
}

// RegisterRoutes registers transaction-related routes with Gorilla Mux
func (h *TransactionHandler) RegisterRoutes(router *mux.Router) {
	transactionRouter := router.PathPrefix("/transactions").Subrouter()

	transactionRouter.HandleFunc("", utils.AuthMiddleware(h.GetTransactions)).Methods("GET")
	transactionRouter.HandleFunc("/users/{userId}/summary", utils.AuthMiddleware(h.GetUserSummary)).Methods("GET")
}

// ParsePaginationParams extracts and validates pagination parameters from request
func ParsePaginationParams(r *http.Request) (int, int, error) {
	query := r.URL.Query()

	page := 1
	if query.Get("page") != "" {
		parsedPage, err := strconv.Atoi(query.Get("page"))
		if err != nil || parsedPage < 1 {
			return 0, 0, err
		}
		page = parsedPage
	}

	perPage := 10
	if query.Get("per_page") != "" {
		parsedPerPage, err := strconv.Atoi(query.Get("per_page"))
		if err != nil || parsedPerPage < 1 {
			return 0, 0, err
		}
		if parsedPerPage > 100 {
			perPage = 100
		} else {
			perPage = parsedPerPage
		}
	}

	return page, perPage, nil
}

// GetTransactions handles retrieving ledger entries with various filters
func (h *TransactionHandler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var filter TransactionFilter
	var err error

	queryParams := r.URL.Query()

	if userIDStr := queryParams.Get("user_id"); userIDStr != "" {
		userID, err := strconv.ParseUint(userIDStr, 10, 32)
		if err == nil {
			filter.UserID = uint(userID)
		}
	}

	filter.Direction = queryParams.Get("direction")
	filter.Purpose = queryParams.Get("purpose")

	if minAmountStr := queryParams.Get("min_amount"); minAmountStr != "" {
		filter.MinAmount, err = strconv.ParseFloat(minAmountStr, 64)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid min_amount parameter")
			return
		}
	}

	if maxAmountStr := queryParams.Get("max_amount"); maxAmountStr != "" {
		filter.MaxAmount, err = strconv.ParseFloat(maxAmountStr, 64)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid max_amount parameter")
			return
		}
	}

	layout := "2006-01-02"

	if startDateStr := queryParams.Get("start_date"); startDateStr != "" {
		filter.StartDate, err = time.Parse(layout, startDateStr)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid start_date format. Use YYYY-MM-DD")
			return
		}
	}

	if endDateStr := queryParams.Get("end_date"); endDateStr != "" {
		filter.EndDate, err = time.Parse(layout, endDateStr)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid end_date format. Use YYYY-MM-DD")
			return
		}
	}

	query := h.db.Model(&models.Transaction{})

	if filter.UserID != 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}

	if filter.Direction != "" {
		query = query.Where("direction = ?", filter.Direction)
	}

	if filter.Purpose != "" {
		query = query.Where("purpose LIKE ?", "%"+filter.Purpose+"%")
	}

	if filter.MinAmount != 0 {
		query = query.Where("amount >= ?", filter.MinAmount)
	}

	if filter.MaxAmount != 0 {
		query = query.Where("amount <= ?", filter.MaxAmount)
	}

	if !filter.StartDate.IsZero() {
		query = query.Where("created_at >= ?", filter.StartDate)
	}

	if !filter.EndDate.IsZero() {
		// Add one day to include the end date fully
		endDatePlusDay := filter.EndDate.Add(24 * time.Hour)
		query = query.Where("created_at < ?", endDatePlusDay)
	}

	page, perPage, err := ParsePaginationParams(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid pagination parameters")
		return
	}

	offset := (page - 1) * perPage

	var totalItems int64
	query.Count(&totalItems)

	var entries []models.Transaction
	result := query.Order("created_at DESC").Limit(perPage).Offset(offset).Find(&entries)
	if result.Error != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to retrieve transactions")
		return
	}

	totalPages := int(math.Ceil(float64(totalItems) / float64(perPage)))
	paginationMeta := PaginationMeta{
		CurrentPage: page,
		PerPage:     perPage,
		TotalItems:  totalItems,
		TotalPages:  totalPages,
		HasPrevious: page > 1,
		HasNext:     page < totalPages,
	}

	respondWithJSON(w, http.StatusOK, PaginatedResponse{
		Data:       entries,
		Pagination: paginationMeta,
	})
}

// GetUserSummary totals a user's ledger by direction.
func (h *TransactionHandler) GetUserSummary(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	userID, err := strconv.ParseUint(mux.Vars(r)["userId"], 10, 32)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	type row struct {
		Direction string
		Total     float64
		Count     int64
	}
	var rows []row
	err = h.db.Model(&models.Transaction{}).
		Select("direction, SUM(amount) AS total, COUNT(*) AS count").
		Where("user_id = ?", userID).
		Group("direction").
		Scan(&rows).Error
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to summarize transactions")
		return
	}

	summary := map[string]interface{}{
		"user_id":      uint(userID),
		"total_debit":  0.0,
		"total_credit": 0.0,
		"entries":      int64(0),
	}
	for _, r := range rows {
		switch r.Direction {
		case "debit":
			summary["total_debit"] = r.Total
		case "credit":
			summary["total_credit"] = r.Total
		}
		summary["entries"] = summary["entries"].(int64) + r.Count
	}

	respondWithJSON(w, http.StatusOK, summary)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, PaginatedResponse{Error: message})
}

// Helper function to respond with JSON
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}
