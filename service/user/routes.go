package user

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"gopkg.in/gomail.v2"

	"github.com/gorilla/mux"
	"github.com/mentorika/Mentorika-server/cmd/models"
	"github.com/mentorika/Mentorika-server/cmd/utils"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type Handler struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewHandler(db *gorm.DB, log *zap.Logger) *Handler {
	return &Handler{db: db, log: log.With(zap.String("handler", "user"))}
}

// RegisterRoutes sets up all user-related routes
func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/login", h.handleLogin).Methods("POST")
	router.HandleFunc("/register", h.HandleRegister).Methods("POST")
	router.HandleFunc("/users/{id}", h.GetUser).Methods("GET")
	router.HandleFunc("/users/{id}", utils.AuthMiddleware(h.UpdateUser)).Methods("PUT")
	router.HandleFunc("/refresh", h.handleRefreshToken).Methods("POST")
	router.HandleFunc("/reset-password", h.handlePasswordResetRequest).Methods("POST")
	router.HandleFunc("/reset-password/{userId}/confirm", h.handlePasswordReset).Methods("POST")
	router.HandleFunc("/verify-reset-token", h.handleVerifyResetToken).Methods("POST")
	router.HandleFunc("/mentors", h.GetMentors).Methods("GET")
	router.HandleFunc("/mentors/{id}", h.GetMentor).Methods("GET")
	router.HandleFunc("/mentors/{id}", utils.AuthMiddleware(h.UpdateMentor)).Methods("PUT")
	router.HandleFunc("/mentors/verify/{id}", h.VerifyMentor).Methods("POST")
	router.HandleFunc("/mentors/search", h.SearchMentors).Methods("GET")
	router.HandleFunc("/mentors/{id}/ratings", utils.AuthMiddleware(h.RateMentor)).Methods("POST")
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var loginRequest struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&loginRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var user models.User
	result := h.db.Where("email = ?", loginRequest.Email).First(&user)
	if result.Error != nil {
		http.Error(w, "User not found", http.StatusUnauthorized)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(loginRequest.Password)); err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	accessToken, err := generateJWT(user.ID, 7500)
	if err != nil {
		http.Error(w, "Error generating access token", http.StatusInternalServerError)
		return
	}

	refreshToken, err := generateRefreshToken(user.ID)
	if err != nil {
		http.Error(w, "Error generating refresh token", http.StatusInternalServerError)
		return
	}

	if err := saveRefreshToken(h.db, user.ID, refreshToken); err != nil {
		http.Error(w, "Error saving refresh token", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"message":       "Login successful",
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"user_id":       user.ID,
	}

	if user.Role == "mentor" {
		var profile models.MentorProfile
		result := h.db.Where("user_id = ?", user.ID).First(&profile)
		if result.Error == nil {
			response["mentor_id"] = profile.ID
		} else if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			http.Error(w, "Error fetching mentor profile", http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var registerRequest struct {
		FullName        string          `json:"full_name"`
		Email           string          `json:"email"`
		Password        string          `json:"password"`
		Phone           string          `json:"phone"`
		Role            string          `json:"role"`
		Expertise       string          `json:"expertise"`
		Bio             string          `json:"bio"`
		IndividualPrice float64         `json:"individual_price"`
		GroupPrice      float64         `json:"group_price"`
		MaxParticipants int             `json:"max_participants"`
		Schedule        json.RawMessage `json:"schedule"`
	}
	if err := json.NewDecoder(r.Body).Decode(&registerRequest); err != nil {
		http.Error(w, "Invalid JSON input", http.StatusBadRequest)
		return
	}
	if registerRequest.FullName == "" || registerRequest.Email == "" || registerRequest.Password == "" || registerRequest.Role == "" {
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}
	if registerRequest.Role != "mentor" && registerRequest.Role != "youth" {
		http.Error(w, "Role must be mentor or youth", http.StatusBadRequest)
		return
	}

	var existingUser models.User
	if result := h.db.Where("email = ?", registerRequest.Email).First(&existingUser); !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		if result.Error != nil {
			http.Error(w, "Database error", http.StatusInternalServerError)
			return
		}
		http.Error(w, "Email is already in use", http.StatusConflict)
		return
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(registerRequest.Password), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "Error hashing password", http.StatusInternalServerError)
		return
	}

	tx := h.db.Begin()

	user := models.User{
		FullName:     registerRequest.FullName,
		Email:        registerRequest.Email,
		PasswordHash: string(passwordHash),
		Phone:        registerRequest.Phone,
		Role:         registerRequest.Role,
	}

	if err := tx.Create(&user).Error; err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") || strings.Contains(err.Error(), "duplicate key") {
			tx.Rollback()
			http.Error(w, "Email is already in use", http.StatusConflict)
			return
		}
		tx.Rollback()
		http.Error(w, "Error registering user", http.StatusInternalServerError)
		return
	}

	var mentorID uint
	if registerRequest.Role == "mentor" {
		profile := models.MentorProfile{
			UserID:          user.ID,
			Expertise:       registerRequest.Expertise,
			Bio:             registerRequest.Bio,
			IndividualPrice: registerRequest.IndividualPrice,
			GroupPrice:      registerRequest.GroupPrice,
			MaxParticipants: registerRequest.MaxParticipants,
			Schedule:        models.ParseSlotMap(registerRequest.Schedule),
		}
		if profile.MaxParticipants < 1 {
			profile.MaxParticipants = 1
		}
		if len(profile.Schedule) > 0 {
			now := time.Now()
			profile.LastWeeklyUpdate = &now
		}

		if err := tx.Create(&profile).Error; err != nil {
			tx.Rollback()
			http.Error(w, "Error creating mentor profile", http.StatusInternalServerError)
			return
		}
		mentorID = profile.ID
	}

	if err := tx.Commit().Error; err != nil {
		http.Error(w, "Error committing transaction", http.StatusInternalServerError)
		return
	}

	go func() {
		if err := sendWelcomeEmail(user.Email, user.FullName); err != nil {
			h.log.Warn("welcome email failed", zap.String("email", user.Email), zap.Error(err))
		}
	}()

	w.Header().Set("Content-Type", "application/json")
	response := map[string]interface{}{
		"message": "User registered successfully",
		"user_id": user.ID,
	}
	if mentorID != 0 {
		response["mentor_id"] = mentorID
	}
	json.NewEncoder(w).Encode(response)
}

// sendWelcomeEmail greets a new account over SMTP.
func sendWelcomeEmail(email, name string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", os.Getenv("MAIL_FROM"))
	m.SetHeader("To", email)
	m.SetHeader("Subject", "Welcome to Mentorika")
	m.SetBody("text/plain", fmt.Sprintf("Hi %s, your account is ready. Log in to browse mentors and book your first session.", name))

	return dialSMTP().DialAndSend(m)
}

// sendResetEmail sends a password reset code.
func sendResetEmail(email, code string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", os.Getenv("MAIL_FROM"))
	m.SetHeader("To", email)
	m.SetHeader("Subject", "Password Reset Code")
	m.SetBody("text/plain", fmt.Sprintf("Your reset code is: %s. Ignore this email if you did not request a password reset.", code))

	return dialSMTP().DialAndSend(m)
}

func dialSMTP() *gomail.Dialer {
	port, err := strconv.Atoi(os.Getenv("SMTP_PORT"))
	if err != nil {
		port = 587
	}
	return gomail.NewDialer(os.Getenv("SMTP_HOST"), port, os.Getenv("SMTP_USER"), os.Getenv("SMTP_PASS"))
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 32)
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	var user models.User
	if err := h.db.Preload("MentorProfile").First(&user, id).Error; err != nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 32)
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	userID, err := utils.GetUserIDFromContext(r)
	if err != nil || userID != uint(id) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	var updateRequest struct {
		FullName string `json:"full_name"`
		Phone    string `json:"phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&updateRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	updates := map[string]interface{}{}
	if updateRequest.FullName != "" {
		updates["full_name"] = updateRequest.FullName
	}
	if updateRequest.Phone != "" {
		updates["phone"] = updateRequest.Phone
	}

	if len(updates) > 0 {
		if err := h.db.Model(&models.User{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			http.Error(w, "Error updating user", http.StatusInternalServerError)
			return
		}
	}

	var user models.User
	h.db.First(&user, id)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

func (h *Handler) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	var refreshRequest struct {
		RefreshToken string `json:"refresh_token"`
	}

	if err := json.NewDecoder(r.Body).Decode(&refreshRequest); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	tx := h.db.Begin()

	var user models.User
	if err := tx.Where("refresh_token = ?", refreshRequest.RefreshToken).First(&user).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Invalid refresh token", http.StatusUnauthorized)
		return
	}

	if user.RefreshTokenExpiredAt.Before(time.Now()) {
		tx.Rollback()
		http.Error(w, "Refresh token expired", http.StatusUnauthorized)
		return
	}

	newAccessToken, err := generateJWT(user.ID, 15)
	if err != nil {
		tx.Rollback()
		http.Error(w, "Error generating new token", http.StatusInternalServerError)
		return
	}

	newRefreshToken, err := generateRefreshToken(user.ID)
	if err != nil {
		tx.Rollback()
		http.Error(w, "Error generating refresh token", http.StatusInternalServerError)
		return
	}

	updateResult := tx.Model(&user).Updates(models.User{
		Refresh:               newRefreshToken,
		RefreshTokenExpiredAt: time.Now().Add(30 * 24 * time.Hour),
	})
	if updateResult.Error != nil {
		tx.Rollback()
		http.Error(w, "Error updating refresh token", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit().Error; err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.log.Info("token refreshed", zap.Uint("user_id", user.ID))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"access_token":  newAccessToken,
		"refresh_token": newRefreshToken,
	})
}

var jwtSecretKey = []byte(os.Getenv("SECRET_KEY"))

func generateJWT(userID uint, expirationMinutes int) (string, error) {
	claims := &jwt.RegisteredClaims{
		Subject:   fmt.Sprint(userID),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute * time.Duration(expirationMinutes))),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecretKey)
}

func generateRefreshToken(userID uint) (string, error) {
	b := make([]byte, 32)
	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}

	mac := hmac.New(sha256.New, []byte(os.Getenv("SECRET_KEY")))
	mac.Write([]byte(fmt.Sprintf("%d", userID)))
	mac.Write(b)

	signature := mac.Sum(nil)
	return fmt.Sprintf("%d_%x_%x", userID, b, signature), nil
}

func saveRefreshToken(db *gorm.DB, userID uint, refreshToken string) error {
	expirationTime := time.Now().Add(30 * 24 * time.Hour)
	return db.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"refresh_token":            refreshToken,
		"refresh_token_expired_at": expirationTime,
	}).Error
}

// resetCode draws a 6-digit code from crypto/rand.
func resetCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func (h *Handler) handlePasswordResetRequest(w http.ResponseWriter, r *http.Request) {
	var resetRequest struct {
		Email string `json:"email"`
	}

	if err := json.NewDecoder(r.Body).Decode(&resetRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if resetRequest.Email == "" {
		http.Error(w, "Email is required", http.StatusBadRequest)
		return
	}

	// Keep responses vague so callers cannot enumerate accounts.
	vague := func() {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"message": "If an account exists, a reset code will be sent to your email",
		})
	}

	var user models.User
	result := h.db.Where("email = ?", resetRequest.Email).First(&user)
	if result.Error != nil {
		vague()
		return
	}

	token, err := resetCode()
	if err != nil {
		http.Error(w, "Error processing reset request", http.StatusInternalServerError)
		return
	}

	tx := h.db.Begin()

	if err := tx.Where("user_id = ?", user.ID).Delete(&models.PasswordResetToken{}).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Error processing reset request", http.StatusInternalServerError)
		return
	}

	passwordResetToken := models.PasswordResetToken{
		UserID:    user.ID,
		Token:     token,
		ExpiresAt: time.Now().Add(5 * time.Minute),
	}
	if err := tx.Create(&passwordResetToken).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Error creating reset token", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit().Error; err != nil {
		http.Error(w, "Error processing reset request", http.StatusInternalServerError)
		return
	}

	if err := sendResetEmail(user.Email, token); err != nil {
		http.Error(w, "Error sending email", http.StatusInternalServerError)
		return
	}

	vague()
}

func (h *Handler) handlePasswordReset(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseUint(mux.Vars(r)["userId"], 10, 32)
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	var resetRequest struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&resetRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(resetRequest.Password) < 6 {
		http.Error(w, "Password must be at least 6 characters long", http.StatusBadRequest)
		return
	}

	tx := h.db.Begin()

	var user models.User
	if err := tx.First(&user, userID).Error; err != nil {
		tx.Rollback()
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(resetRequest.Password), bcrypt.DefaultCost)
	if err != nil {
		tx.Rollback()
		http.Error(w, "Error hashing password", http.StatusInternalServerError)
		return
	}

	user.PasswordHash = string(passwordHash)
	if err := tx.Save(&user).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Error updating password", http.StatusInternalServerError)
		return
	}

	if err := tx.Where("user_id = ?", user.ID).Delete(&models.PasswordResetToken{}).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Error processing password reset", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit().Error; err != nil {
		http.Error(w, "Error processing password reset", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Password reset successful",
	})
}

type TokenVerificationRequest struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

func (h *Handler) handleVerifyResetToken(w http.ResponseWriter, r *http.Request) {
	var req TokenVerificationRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var user models.User
	if err := h.db.Where("email = ?", req.Email).First(&user).Error; err != nil {
		http.Error(w, "Invalid email or token", http.StatusBadRequest)
		return
	}

	var resetToken models.PasswordResetToken
	if err := h.db.Where("user_id = ? AND token = ?", user.ID, req.Token).First(&resetToken).Error; err != nil {
		http.Error(w, "Invalid email or token", http.StatusBadRequest)
		return
	}

	if time.Now().After(resetToken.ExpiresAt) {
		http.Error(w, "Token expired", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Token is valid",
		"user_id": user.ID,
	})
}
