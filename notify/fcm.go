package notify

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

const ProviderFCM = "fcm"

// MessagingClient is the part of *messaging.Client the FCM dispatcher needs.
type MessagingClient interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

type FCMDispatcher struct {
	client MessagingClient
}

var _ Dispatcher = (*FCMDispatcher)(nil)

func NewFCMDispatcher(client MessagingClient) *FCMDispatcher {
	return &FCMDispatcher{client: client}
}

// NewFirebaseMessagingClient builds a messaging client from a service account file.
func NewFirebaseMessagingClient(ctx context.Context, credentialsFile string) (*messaging.Client, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase messaging: %w", err)
	}

	return client, nil
}

func (d *FCMDispatcher) Provider() string {
	return ProviderFCM
}

func (d *FCMDispatcher) Send(ctx context.Context, msg Message) (*Receipt, error) {
	if msg.To == "" {
		return nil, ErrNoRecipient
	}

	id, err := d.client.Send(ctx, &messaging.Message{
		Token: msg.To,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: msg.Data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{Sound: "default"},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to send fcm message: %w", err)
	}

	return &Receipt{Provider: ProviderFCM, ID: id}, nil
}
