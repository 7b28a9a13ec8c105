// Package userstore defines the external collaborator contracts of §6.2:
// the user profile store, chat service, and analytics sink. These are
// consumed only as interfaces — the concrete services live outside this
// module's scope — mirroring how the teacher treats its provider registry
// as a pure interface boundary (provider.Provider) rather than owning
// concrete vendor implementations inline.
package userstore

import (
	"context"
	"time"

	"github.com/edgearb/edge/internal/types"
)

// UserFilter narrows ListUsers results; zero values mean "no filter".
type UserFilter struct {
	Tier types.UserTier
}

// Store is the read-only external user profile service.
type Store interface {
	GetUser(ctx context.Context, userID string) (*types.UserProfile, error)
	ListUsers(ctx context.Context, filter UserFilter) ([]*types.UserProfile, error)
}

// ChatService sends a private message to a user through whatever chat
// backend is wired in (bot API, internal messaging service, etc.).
type ChatService interface {
	SendPrivateMessage(ctx context.Context, userID, text string) error
}

// AnalyticsEvent is one row accepted by AnalyticsSink.WriteDataPoint.
type AnalyticsEvent struct {
	EventID   string                 `json:"event_id"`
	EventType string                 `json:"event_type"`
	UserID    string                 `json:"user_id"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// AnalyticsSink accepts batched analytics events for external processing.
type AnalyticsSink interface {
	WriteDataPoint(ctx context.Context, events []AnalyticsEvent) error
}
