package models

import (
	"time"

	"github.com/noah-isme/edu-center-api/internal/apperror"
)

// Message types and statuses.
const (
	MessageTypeDirect       = "direct"
	MessageTypeGroup        = "group"
	MessageTypeAnnouncement = "announcement"

	MessageStatusUnread  = "unread"
	MessageStatusRead    = "read"
	MessageStatusReplied = "replied"
)

// Message is a direct, course group or announcement message.
type Message struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	SenderID    uint       `gorm:"not null;index" json:"sender_id"`
	RecipientID *uint      `gorm:"index" json:"recipient_id"`
	CourseID    *uint      `gorm:"index" json:"course_id"`
	ParentID    *uint      `gorm:"index" json:"parent_id"`
	Subject     string     `gorm:"size:255" json:"subject"`
	Content     string     `gorm:"type:text;not null" json:"content"`
	Type        string     `gorm:"size:16;not null;default:direct" json:"type"`
	Status      string     `gorm:"size:16;not null;default:unread;index" json:"status"`
	ReadAt      *time.Time `json:"read_at"`
	Audit
}

// MarkRead records that the recipient opened the message.
func (m *Message) MarkRead(recipientID uint, now time.Time) error {
	if m.Type != MessageTypeDirect {
		return apperror.InvalidState("only direct messages track read state")
	}
	if m.RecipientID == nil || *m.RecipientID != recipientID {
		return apperror.Forbidden("only the recipient can mark a message as read")
	}
	if m.Status != MessageStatusUnread {
		return nil
	}
	readAt := now
	m.Status = MessageStatusRead
	m.ReadAt = &readAt
	return nil
}

// Forum topic types and statuses.
const (
	TopicTypeDiscussion   = "discussion"
	TopicTypeQuestion     = "question"
	TopicTypeAnnouncement = "announcement"

	TopicStatusActive   = "active"
	TopicStatusLocked   = "locked"
	TopicStatusHidden   = "hidden"
	TopicStatusArchived = "archived"
)

// ForumTopic groups forum posts, optionally inside a course.
type ForumTopic struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	CourseID    *uint      `gorm:"index" json:"course_id"`
	AuthorID    uint       `gorm:"not null;index" json:"author_id"`
	Title       string     `gorm:"size:255;not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	Type        string     `gorm:"size:16;not null;default:discussion" json:"type"`
	Status      string     `gorm:"size:16;not null;default:active;index" json:"status"`
	IsPinned    bool       `gorm:"not null;default:false" json:"is_pinned"`
	PostCount   int        `gorm:"not null;default:0" json:"post_count"`
	LastPostAt  *time.Time `json:"last_post_at"`
	Audit
}

// AcceptsPosts reports whether new posts may be added.
func (t ForumTopic) AcceptsPosts() bool {
	return t.Status == TopicStatusActive && !t.IsDeleted
}

// Forum post statuses.
const (
	PostStatusPublished = "published"
	PostStatusHidden    = "hidden"
)

// ForumPost is a reply inside a topic, optionally threaded under another post.
type ForumPost struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	TopicID  uint   `gorm:"not null;index" json:"topic_id"`
	AuthorID uint   `gorm:"not null;index" json:"author_id"`
	ParentID *uint  `gorm:"index" json:"parent_id"`
	Title    string `gorm:"size:255" json:"title"`
	Content  string `gorm:"type:text;not null" json:"content"`
	Type     string `gorm:"size:16;not null;default:reply" json:"type"`
	Status   string `gorm:"size:16;not null;default:published" json:"status"`
	IsEdited bool   `gorm:"not null;default:false" json:"is_edited"`
	Audit
}

// Notification represents a push notification targeted to a specific user.
type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Type      string    `gorm:"size:64" json:"type"`
	Message   string    `gorm:"type:text" json:"message"`
	Read      bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
