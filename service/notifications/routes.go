package notification

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/mentorika/Mentorika-server/cmd/models"
	"github.com/mentorika/Mentorika-server/cmd/utils"
	expo "github.com/oliveroneill/exponent-server-sdk-golang/sdk"
	"gorm.io/gorm"
)

type NotificationHandler struct {
	db     *gorm.DB
	pusher *Pusher
}

func NewNotificationHandler(db *gorm.DB, pusher *Pusher) *NotificationHandler {
	return &NotificationHandler{db: db, pusher: pusher}
}

func (h *NotificationHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/devices", utils.AuthMiddleware(h.RegisterDevice)).Methods("POST")
	router.HandleFunc("/devices/{id}", utils.AuthMiddleware(h.DeleteDevice)).Methods("DELETE")
	router.HandleFunc("/users/{userId}/devices", utils.AuthMiddleware(h.GetUserDevices)).Methods("GET")
	router.HandleFunc("/users/{userId}/history", utils.AuthMiddleware(h.GetUserNotificationHistory)).Methods("GET")
}

// RegisterDevice stores an Expo push token for the authenticated user.
func (h *NotificationHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var device models.Device
	if err := json.NewDecoder(r.Body).Decode(&device); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	device.UserID = userID

	if device.Token == "" {
		http.Error(w, "Token is required", http.StatusBadRequest)
		return
	}
	if _, err := expo.NewExponentPushToken(device.Token); err != nil {
		http.Error(w, "Invalid Expo push token format", http.StatusBadRequest)
		return
	}

	var existingDevice models.Device
	result := h.db.Where("token = ? AND user_id = ?", device.Token, device.UserID).First(&existingDevice)
	if result.Error == nil {
		existingDevice.DeviceType = device.DeviceType
		existingDevice.DeviceName = device.DeviceName
		if err := h.db.Save(&existingDevice).Error; err != nil {
			http.Error(w, "Error updating device", http.StatusInternalServerError)
			return
		}
		device = existingDevice
	} else {
		if err := h.db.Create(&device).Error; err != nil {
			http.Error(w, "Error creating device", http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Device registered successfully",
		"device":  device,
	})
}

func (h *NotificationHandler) GetUserDevices(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID, err := strconv.ParseUint(vars["userId"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	var devices []models.Device
	if err := h.db.Where("user_id = ?", userID).Find(&devices).Error; err != nil {
		http.Error(w, "Error retrieving devices", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(devices)
}

func (h *NotificationHandler) GetUserNotificationHistory(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID, err := strconv.ParseUint(vars["userId"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize := 50

	var total int64
	query := h.db.Model(&models.NotificationHistory{}).Where("user_id = ?", userID)
	query.Count(&total)

	var history []models.NotificationHistory
	if err := query.Order("sent_at DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&history).Error; err != nil {
		http.Error(w, "Error retrieving history", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"history":   history,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

func (h *NotificationHandler) DeleteDevice(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	deviceID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid device ID", http.StatusBadRequest)
		return
	}

	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	result := h.db.Where("id = ? AND user_id = ?", deviceID, userID).Delete(&models.Device{})
	if result.Error != nil {
		http.Error(w, "Error deleting device", http.StatusInternalServerError)
		return
	}
	if result.RowsAffected == 0 {
		http.Error(w, "Device not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Device deleted successfully",
	})
}
