package notify

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// Messenger is the part of *messaging.Client that FCMSender needs.
type Messenger interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMSender delivers messages through Firebase Cloud Messaging. Customer
// device tokens are FCM registration tokens.
type FCMSender struct {
	client Messenger
}

// NewFCMSender authenticates with a service-account credentials file.
func NewFCMSender(ctx context.Context, credentialsFile string) (*FCMSender, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("init messaging client: %w", err)
	}
	return NewFCMSenderWithClient(client), nil
}

// NewFCMSenderWithClient wraps an existing messaging client.
func NewFCMSenderWithClient(client Messenger) *FCMSender {
	return &FCMSender{client: client}
}

func (s *FCMSender) Send(ctx context.Context, msg Message) error {
	if _, err := s.client.Send(ctx, toFCM(msg)); err != nil {
		if messaging.IsUnregistered(err) {
			return fmt.Errorf("fcm send to %s: %w: %w", MaskToken(msg.Token), ErrUnregistered, err)
		}
		return fmt.Errorf("fcm send to %s: %w", MaskToken(msg.Token), err)
	}
	return nil
}

func toFCM(msg Message) *messaging.Message {
	return &messaging.Message{
		Token: msg.Token,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: msg.Data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
	}
}
