package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"github.com/callrescue/callrescue/internal/config"
)

// PushService sends FCM push notifications to the operator's mobile device.
// It supplements SMS for emergency alerts; all methods degrade to a no-op
// when Firebase credentials are not configured.
type PushService struct {
	PG     *sql.DB
	client *messaging.Client
}

func NewPushService(pg *sql.DB) (*PushService, error) {
	service := &PushService{PG: pg}

	credFile := config.App.FCMCredentialsFile
	if credFile == "" {
		log.Println("Push service: FCM_CREDENTIALS_FILE not set, push disabled")
		return service, nil
	}

	opt := option.WithCredentialsFile(credFile)
	app, err := firebase.NewApp(context.Background(), nil, opt)
	if err != nil {
		log.Printf("Push service: Firebase app not initialized: %v", err)
		return service, nil
	}

	client, err := app.Messaging(context.Background())
	if err != nil {
		log.Printf("Push service: messaging client not initialized: %v", err)
		return service, nil
	}

	service.client = client
	log.Println("Push service: Firebase messaging initialized")
	return service, nil
}

// SendEmergencyPush delivers a high-priority push to the user's registered
// device. Missing token or disabled client is not an error: SMS remains the
// primary channel and push is best effort.
func (s *PushService) SendEmergencyPush(ctx context.Context, userID, title, body string, data map[string]string) error {
	if s.client == nil {
		return nil
	}

	var fcmToken string
	err := s.PG.QueryRow(
		"SELECT fcm_token FROM users WHERE id = $1 AND fcm_token IS NOT NULL AND fcm_token != ''",
		userID,
	).Scan(&fcmToken)
	if err != nil {
		if err == sql.ErrNoRows {
			log.Printf("Push service: no FCM token for user %s, skipping", userID)
			return nil
		}
		return fmt.Errorf("error fetching FCM token: %w", err)
	}

	message := &messaging.Message{
		Token: fcmToken,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound:        "default",
				ChannelID:    "high_importance_channel",
				Priority:     messaging.PriorityHigh,
				DefaultSound: true,
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Alert: &messaging.ApsAlert{
						Title: title,
						Body:  body,
					},
					Sound: "default",
				},
			},
		},
	}

	response, err := s.client.Send(ctx, message)
	if err != nil {
		return fmt.Errorf("error sending push to user %s: %w", userID, err)
	}

	log.Printf("Push service: sent emergency push to user %s: %s", userID, response)
	return nil
}

// UpdateUserFCMToken stores the device token registered by the mobile app.
func (s *PushService) UpdateUserFCMToken(userID, fcmToken string) error {
	_, err := s.PG.Exec(
		"UPDATE users SET fcm_token = $1, updated_at = NOW() WHERE id = $2",
		fcmToken, userID,
	)
	if err != nil {
		return fmt.Errorf("error updating FCM token: %w", err)
	}
	return nil
}
