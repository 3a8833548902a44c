package inbox

import (
	"context"

	"github.com/google/uuid"
)

// MessageFilter is used to filter contact messages.
// If a field is empty or nil, it's ignored.
type MessageFilter struct {
	IDs       []uuid.UUID
	Processed *bool
}

// RecommendationFilter is used to filter recommendations.
// If a field is empty or nil, it's ignored.
type RecommendationFilter struct {
	IDs      []uuid.UUID
	Featured *bool
}

// Store persists submissions. Submissions are append-mostly, only the
// triage flags are ever updated.
type Store interface {
	CreateMessage(ctx context.Context, m *Message) error
	FindMessages(ctx context.Context, filter *MessageFilter) ([]Message, error)

	CreateRecommendation(ctx context.Context, r *Recommendation) error
	FindRecommendations(ctx context.Context, filter *RecommendationFilter) ([]Recommendation, error)
}
