package utils

import (
	"context"
	"fmt"
	"os"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

var fcmClient *messaging.Client

// InitFirebase initializes the Firebase Admin SDK messaging client used for
// push delivery. Optional: when FIREBASE_CREDENTIALS is unset, push is
// disabled and SendPush becomes a no-op error.
func InitFirebase(ctx context.Context) error {
	credPath := os.Getenv("FIREBASE_CREDENTIALS")
	if credPath == "" {
		return nil
	}
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credPath))
	if err != nil {
		return err
	}
	fcmClient, err = app.Messaging(ctx)
	return err
}

// SendPush delivers a push notification to a device token via FCM.
func SendPush(ctx context.Context, deviceToken, title, body string) error {
	if fcmClient == nil {
		return fmt.Errorf("push not configured")
	}
	if deviceToken == "" {
		return fmt.Errorf("empty device token")
	}
	_, err := fcmClient.Send(ctx, &messaging.Message{
		Token: deviceToken,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
	})
	return err
}
