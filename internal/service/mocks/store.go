package mocks

import (
	"context"
	"errors"

	"github.com/godilite/feedback-reward/internal/repository/models"
)

// MockConversationStore is a mock implementation of the ConversationStore
// interface for testing the service layer.
type MockConversationStore struct {
	StreamConversationsFunc func(ctx context.Context, filter models.ConversationFilter, fn func(models.Conversation) error) error
	GetConversationFunc     func(ctx context.Context, id string) (*models.Conversation, error)
}

// StreamConversations implements the ConversationStore interface
func (m *MockConversationStore) StreamConversations(ctx context.Context, filter models.ConversationFilter, fn func(models.Conversation) error) error {
	if m.StreamConversationsFunc != nil {
		return m.StreamConversationsFunc(ctx, filter, fn)
	}
	return errors.New("StreamConversationsFunc not implemented")
}

// GetConversation implements the ConversationStore interface
func (m *MockConversationStore) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	if m.GetConversationFunc != nil {
		return m.GetConversationFunc(ctx, id)
	}
	return nil, errors.New("GetConversationFunc not implemented")
}

// StreamOf returns a StreamConversationsFunc that replays convs.
func StreamOf(convs ...models.Conversation) func(context.Context, models.ConversationFilter, func(models.Conversation) error) error {
	return func(_ context.Context, _ models.ConversationFilter, fn func(models.Conversation) error) error {
		for _, c := range convs {
			if err := fn(c); err != nil {
				return err
			}
		}
		return nil
	}
}
