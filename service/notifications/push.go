package notification

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mentorika/Mentorika-server/cmd/models"
	expo "github.com/oliveroneill/exponent-server-sdk-golang/sdk"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Pusher fans a push notification out to every registered device of a user.
// Delivery is best effort: booking and auction flows fire it after their own
// write committed and never wait on the result.
type Pusher struct {
	db         *gorm.DB
	expoClient *expo.PushClient
	log        *zap.Logger
}

func NewPusher(db *gorm.DB, log *zap.Logger) *Pusher {
	return &Pusher{
		db:         db,
		expoClient: expo.NewPushClient(nil),
		log:        log.With(zap.String("service", "notifications")),
	}
}

// PushToUser sends title/body to all of the user's devices and records the
// attempt in the notification history.
func (p *Pusher) PushToUser(userID uint, title, body string, data map[string]string) {
	var devices []models.Device
	if err := p.db.Where("user_id = ?", userID).Find(&devices).Error; err != nil {
		p.log.Warn("device lookup failed", zap.Uint("user_id", userID), zap.Error(err))
		return
	}
	if len(devices) == 0 {
		return
	}

	var tokens []string
	for _, device := range devices {
		tokens = append(tokens, device.Token)
	}

	err := p.send(tokens, title, body, data)
	status := "sent"
	if err != nil {
		status = "failed"
		p.log.Warn("push delivery failed", zap.Uint("user_id", userID), zap.Error(err))
	}

	dataJSON, _ := json.Marshal(data)
	history := models.NotificationHistory{
		UserID: userID,
		Title:  title,
		Body:   body,
		Data:   string(dataJSON),
		Status: status,
		SentAt: time.Now(),
	}
	if dbErr := p.db.Create(&history).Error; dbErr != nil {
		p.log.Warn("notification history write failed", zap.Error(dbErr))
	}
}

func (p *Pusher) send(tokenStrings []string, title, body string, data map[string]string) error {
	var validTokens []expo.ExponentPushToken
	var invalidTokens []string

	for _, tokenString := range tokenStrings {
		pushToken, err := expo.NewExponentPushToken(tokenString)
		if err != nil {
			invalidTokens = append(invalidTokens, tokenString)
			continue
		}
		validTokens = append(validTokens, pushToken)
	}
	defer p.cleanupInvalidTokens(invalidTokens)

	if len(validTokens) == 0 {
		return fmt.Errorf("no valid push tokens found")
	}

	pushMessage := &expo.PushMessage{
		To:       validTokens,
		Body:     body,
		Title:    title,
		Sound:    "default",
		Priority: expo.DefaultPriority,
		Data:     data,
	}

	response, err := p.expoClient.Publish(pushMessage)
	if err != nil {
		return fmt.Errorf("failed to publish notification: %v", err)
	}
	if validationErr := response.ValidateResponse(); validationErr != nil {
		return fmt.Errorf("notification validation failed: %v", validationErr)
	}
	return nil
}

func (p *Pusher) cleanupInvalidTokens(tokens []string) {
	if len(tokens) == 0 {
		return
	}
	if err := p.db.Where("token IN ?", tokens).Delete(&models.Device{}).Error; err != nil {
		p.log.Warn("invalid token cleanup failed", zap.Error(err))
	}
}
