package dto

import (
	"time"

	"github.com/noah-isme/edu-center-api/internal/models"
)

// ActivityListRequest defines filters for retrieving activity logs.
type ActivityListRequest struct {
	ListQuery
	ActorID    uint       `query:"actor_id"`
	Action     string     `query:"action"`
	EntityType string     `query:"entity_type"`
	EntityID   uint       `query:"entity_id"`
	Since      *time.Time `query:"-"`
}

// ActivityResponse serializes activity log entries.
type ActivityResponse struct {
	ID         uint                   `json:"id"`
	ActorID    uint                   `json:"actor_id"`
	ActorRole  string                 `json:"actor_role"`
	Action     string                 `json:"action"`
	EntityType string                 `json:"entity_type"`
	EntityID   *uint                  `json:"entity_id"`
	Metadata   map[string]interface{} `json:"metadata"`
	CreatedAt  time.Time              `json:"created_at"`
}

// NewActivityResponse converts a model into an activity DTO.
func NewActivityResponse(entry models.ActivityLog) ActivityResponse {
	metadata := make(map[string]interface{}, len(entry.Metadata))
	for key, value := range entry.Metadata {
		metadata[key] = value
	}
	return ActivityResponse{
		ID:         entry.ID,
		ActorID:    entry.ActorID,
		ActorRole:  entry.ActorRole,
		Action:     entry.Action,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Metadata:   metadata,
		CreatedAt:  entry.CreatedAt,
	}
}

// ActivityFeedRequest filters the recent activity feed. UserID defaults to the caller.
type ActivityFeedRequest struct {
	ListQuery
	UserID     uint   `query:"user_id"`
	Action     string `query:"action"`
	EntityType string `query:"entity_type"`
}

// ActivityFeedResponse is one page of the recent activity feed.
type ActivityFeedResponse struct {
	ListResponse[ActivityResponse]
	CacheHit bool `json:"-"`
}
