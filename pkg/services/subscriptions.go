package services

import (
	"context"
	"fmt"

	"project-collab-backend/pkg/models"
	"project-collab-backend/pkg/pubsub"
)

// RegisterSubscriptions wires the cross-domain event handlers onto the
// broker. Must run before broker.Start.
func RegisterSubscriptions(broker *pubsub.Broker, conversations *ConversationService) error {
	// Every new project gets a default discussion conversation, created on
	// behalf of the project owner.
	err := broker.Subscribe(ProjectCreatedTopic, pubsub.SubscriptionConfig{
		Name: "project-created-conversation",
	}, func(ctx context.Context, ev pubsub.Event) error {
		payload, ok := ev.Payload.(ProjectCreatedEvent)
		if !ok {
			return fmt.Errorf("unexpected payload type %T on %s", ev.Payload, ev.Topic)
		}

		_, err := conversations.CreateConversation(payload.OwnerID, &models.CreateConversationRequest{
			ProjectID: payload.ProjectID,
			Title:     payload.Name + " - Discussion",
		})
		if err != nil {
			return fmt.Errorf("failed to create default conversation for project %s: %w", payload.ProjectID, err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to register project-created subscription: %w", err)
	}

	return nil
}
