package firebase

import (
	"context"
	"fmt"

	fcm "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
)

// Sender publishes data messages to FCM topics
type Sender struct {
	client *messaging.Client
	log    *zap.Logger
}

// NewSender creates a Sender on an initialized Firebase app
func NewSender(ctx context.Context, app *fcm.App, log *zap.Logger) (*Sender, error) {
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get messaging client: %w", err)
	}
	log = log.Named("fcm")
	log.Info("initialized FCM sender")
	return &Sender{client: client, log: log}, nil
}

// SendToTopic publishes a data-only message to every subscriber of topic.
func (s *Sender) SendToTopic(ctx context.Context, topic string, data map[string]string) error {
	message := &messaging.Message{
		Topic: topic,
		Data:  data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
	}

	id, err := s.client.Send(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to send to topic %s: %w", topic, err)
	}
	s.log.Debug("topic message sent", zap.String("topic", topic), zap.String("message_id", id))
	return nil
}
