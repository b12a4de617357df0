package dto

import (
	"time"

	"github.com/noah-isme/edu-center-api/internal/models"
)

// MessageSendRequest sends a direct, group or announcement message.
type MessageSendRequest struct {
	RecipientID *uint  `json:"recipient_id" validate:"omitempty,gt=0"`
	CourseID    *uint  `json:"course_id" validate:"omitempty,gt=0"`
	ParentID    *uint  `json:"parent_id" validate:"omitempty,gt=0"`
	Subject     string `json:"subject" validate:"omitempty,max=255"`
	Content     string `json:"content" validate:"required,max=10000"`
	Type        string `json:"type" validate:"required,oneof=direct group announcement"`
}

// MessageListRequest filters the inbox and sent listings.
type MessageListRequest struct {
	ListQuery
	CourseID uint   `query:"course_id"`
	Type     string `query:"type" validate:"omitempty,oneof=direct group announcement"`
	Status   string `query:"status" validate:"omitempty,oneof=unread read replied"`
}

// MessageResponse serializes a message.
type MessageResponse struct {
	ID          uint       `json:"id"`
	SenderID    uint       `json:"sender_id"`
	RecipientID *uint      `json:"recipient_id"`
	CourseID    *uint      `json:"course_id"`
	ParentID    *uint      `json:"parent_id"`
	Subject     string     `json:"subject"`
	Content     string     `json:"content"`
	Type        string     `json:"type"`
	Status      string     `json:"status"`
	ReadAt      *time.Time `json:"read_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

// NewMessageResponse converts a model into a DTO.
func NewMessageResponse(model models.Message) MessageResponse {
	return MessageResponse{
		ID:          model.ID,
		SenderID:    model.SenderID,
		RecipientID: model.RecipientID,
		CourseID:    model.CourseID,
		ParentID:    model.ParentID,
		Subject:     model.Subject,
		Content:     model.Content,
		Type:        model.Type,
		Status:      model.Status,
		ReadAt:      model.ReadAt,
		CreatedAt:   model.CreatedAt,
	}
}

// NewMessageResponseSlice converts a slice of models into DTOs.
func NewMessageResponseSlice(items []models.Message) []MessageResponse {
	responses := make([]MessageResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, NewMessageResponse(item))
	}
	return responses
}

// ForumTopicCreateRequest opens a topic.
type ForumTopicCreateRequest struct {
	CourseID    *uint  `json:"course_id" validate:"omitempty,gt=0"`
	Title       string `json:"title" validate:"required,min=3,max=255"`
	Description string `json:"description" validate:"omitempty,max=5000"`
	Type        string `json:"type" validate:"omitempty,oneof=discussion question announcement"`
}

// ForumTopicPatch is the typed partial update for a topic.
type ForumTopicPatch struct {
	Title       *string `json:"title" validate:"omitempty,min=3,max=255"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
	Status      *string `json:"status" validate:"omitempty,oneof=active locked hidden archived"`
	IsPinned    *bool   `json:"is_pinned"`
}

// ForumTopicListRequest filters topics.
type ForumTopicListRequest struct {
	ListQuery
	CourseID uint   `query:"course_id"`
	Status   string `query:"status"`
}

// ForumPostCreateRequest adds a post to a topic.
type ForumPostCreateRequest struct {
	ParentID *uint  `json:"parent_id" validate:"omitempty,gt=0"`
	Title    string `json:"title" validate:"omitempty,max=255"`
	Content  string `json:"content" validate:"required,max=10000"`
	Type     string `json:"type" validate:"omitempty,oneof=reply question answer"`
}

// ForumPostListRequest filters posts of a topic.
type ForumPostListRequest struct {
	ListQuery
	AuthorID uint `query:"author_id"`
}

// ForumPostPatch edits a post.
type ForumPostPatch struct {
	Title   *string `json:"title" validate:"omitempty,max=255"`
	Content *string `json:"content" validate:"omitempty,min=1,max=10000"`
	Status  *string `json:"status" validate:"omitempty,oneof=published hidden"`
}

// NotificationCreateRequest describes a notification to deliver.
type NotificationCreateRequest struct {
	UserID  uint   `json:"user_id" validate:"required,gt=0"`
	Type    string `json:"type" validate:"required,max=64"`
	Message string `json:"message" validate:"required,max=2000"`
}

// NotificationResponse serializes notification payloads.
type NotificationResponse struct {
	ID        uint      `json:"id"`
	UserID    uint      `json:"user_id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// NewNotificationResponse converts a model into a DTO.
func NewNotificationResponse(model models.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        model.ID,
		UserID:    model.UserID,
		Type:      model.Type,
		Message:   model.Message,
		Read:      model.Read,
		CreatedAt: model.CreatedAt,
	}
}

// NewNotificationResponseSlice converts a slice of models into DTOs.
func NewNotificationResponseSlice(items []models.Notification) []NotificationResponse {
	responses := make([]NotificationResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, NewNotificationResponse(item))
	}
	return responses
}
