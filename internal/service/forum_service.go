package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/edu-center-api/internal/apperror"
	"github.com/noah-isme/edu-center-api/internal/database"
	"github.com/noah-isme/edu-center-api/internal/dto"
	"github.com/noah-isme/edu-center-api/internal/models"
	"github.com/noah-isme/edu-center-api/internal/repository"
)

var mentionPattern = regexp.MustCompile(`(?:^|[^\w@])@([A-Za-z0-9_.\-]{3,64})`)

// ForumService manages discussion topics and their posts.
type ForumService interface {
	CreateTopic(ctx context.Context, actor Actor, req dto.ForumTopicCreateRequest) (models.ForumTopic, error)
	GetTopic(ctx context.Context, actor Actor, id uint, includeDeleted bool) (models.ForumTopic, error)
	ListTopics(ctx context.Context, actor Actor, req dto.ForumTopicListRequest) (dto.ListResponse[models.ForumTopic], error)
	UpdateTopic(ctx context.Context, actor Actor, id uint, patch dto.ForumTopicPatch) (models.ForumTopic, error)
	DeleteTopic(ctx context.Context, actor Actor, id uint) error
	CreatePost(ctx context.Context, actor Actor, topicID uint, req dto.ForumPostCreateRequest) (models.ForumPost, error)
	ListPosts(ctx context.Context, actor Actor, topicID uint, req dto.ForumPostListRequest) (dto.ListResponse[models.ForumPost], error)
	UpdatePost(ctx context.Context, actor Actor, id uint, patch dto.ForumPostPatch) (models.ForumPost, error)
	DeletePost(ctx context.Context, actor Actor, id uint) error
}

// ForumDependencies groups the collaborators of the forum service.
type ForumDependencies struct {
	Topics     repository.AuditedRepository[models.ForumTopic]
	Posts      repository.AuditedRepository[models.ForumPost]
	Courses    repository.AuditedRepository[models.Course]
	Members    repository.CourseMemberRepository
	Users      repository.UserRepository
	Transactor database.Transactor
	Notifier   Notifier
	Activity   ActivityRecorder
}

type forumService struct {
	topics     *lifecycle[models.ForumTopic, *models.ForumTopic]
	posts      *lifecycle[models.ForumPost, *models.ForumPost]
	courses    *lifecycle[models.Course, *models.Course]
	members    repository.CourseMemberRepository
	users      repository.UserRepository
	transactor database.Transactor
	notifier   Notifier
	activity   ActivityRecorder
	validator  *validator.Validate
	sanitizer  *bluemonday.Policy
	logger     zerolog.Logger
	now        func() time.Time
}

// NewForumService constructs the forum service.
func NewForumService(deps ForumDependencies, validate *validator.Validate, logger zerolog.Logger) ForumService {
	return newForumService(deps, validate, logger, time.Now)
}

func newForumService(deps ForumDependencies, validate *validator.Validate, logger zerolog.Logger, now func() time.Time) *forumService {
	return &forumService{
		topics:     newLifecycle[models.ForumTopic](deps.Topics, "forum topic", now),
		posts:      newLifecycle[models.ForumPost](deps.Posts, "forum post", now),
		courses:    newLifecycle[models.Course](deps.Courses, "course", now),
		members:    deps.Members,
		users:      deps.Users,
		transactor: deps.Transactor,
		notifier:   deps.Notifier,
		activity:   deps.Activity,
		validator:  validate,
		sanitizer:  bluemonday.UGCPolicy(),
		logger:     logger.With().Str("component", "forum_service").Logger(),
		now:        now,
	}
}

func (s *forumService) CreateTopic(ctx context.Context, actor Actor, req dto.ForumTopicCreateRequest) (models.ForumTopic, error) {
	if err := Authorize(actor); err != nil {
		return models.ForumTopic{}, err
	}
	if err := validatePayload(s.validator, req); err != nil {
		return models.ForumTopic{}, err
	}

	topicType := req.Type
	if topicType == "" {
		topicType = models.TopicTypeDiscussion
	}
	if topicType == models.TopicTypeAnnouncement {
		if err := Authorize(actor, models.PermissionForumModerate); err != nil {
			return models.ForumTopic{}, err
		}
	}
	if req.CourseID != nil {
		if err := s.requireCourseAccess(ctx, actor, *req.CourseID); err != nil {
			return models.ForumTopic{}, err
		}
	}

	topic := models.ForumTopic{
		CourseID:    req.CourseID,
		AuthorID:    actor.ID,
		Title:       strings.TrimSpace(s.sanitizer.Sanitize(req.Title)),
		Description: strings.TrimSpace(s.sanitizer.Sanitize(req.Description)),
		Type:        topicType,
		Status:      models.TopicStatusActive,
	}
	if topic.Title == "" {
		return models.ForumTopic{}, apperror.Validation("title empty after sanitization")
	}
	if err := s.topics.create(ctx, actor, &topic); err != nil {
		return models.ForumTopic{}, err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     "forum.topic_created",
		EntityType: "forum_topic",
		EntityID:   &topic.ID,
	})
	return topic, nil
}

func (s *forumService) requireCourseAccess(ctx context.Context, actor Actor, courseID uint) error {
	if _, err := s.courses.get(ctx, courseID); err != nil {
		return err
	}
	if actor.Can(models.PermissionForumModerate) {
		return nil
	}
	member, err := s.members.IsMember(ctx, courseID, actor.ID)
	if err != nil {
		return apperror.Internal(err)
	}
	if !member {
		return apperror.Forbidden("only course members can use this forum")
	}
	return nil
}

// GetTopic hides hidden topics from everyone but moderators and the author.
func (s *forumService) GetTopic(ctx context.Context, actor Actor, id uint, includeDeleted bool) (models.ForumTopic, error) {
	if err := Authorize(actor); err != nil {
		return models.ForumTopic{}, err
	}
	topic, err := s.topics.getVisible(ctx, actor, id, includeDeleted)
	if err != nil {
		return models.ForumTopic{}, err
	}
	if topic.Status == models.TopicStatusHidden && topic.AuthorID != actor.ID && !actor.Can(models.PermissionForumModerate) {
		return models.ForumTopic{}, apperror.NotFound("forum topic")
	}
	return topic, nil
}

func (s *forumService) ListTopics(ctx context.Context, actor Actor, req dto.ForumTopicListRequest) (dto.ListResponse[models.ForumTopic], error) {
	if err := Authorize(actor); err != nil {
		return dto.ListResponse[models.ForumTopic]{}, err
	}

	var scopes []repository.Scope
	if req.CourseID > 0 {
		scopes = append(scopes, repository.FieldEquals("course_id", req.CourseID))
	}
	if req.Status != "" {
		scopes = append(scopes, repository.FieldEquals("status", req.Status))
	}
	if !actor.Can(models.PermissionForumModerate) {
		scopes = append(scopes, func(db *gorm.DB) *gorm.DB {
			return db.Where("status <> ? OR author_id = ?", models.TopicStatusHidden, actor.ID)
		})
	}
	return s.topics.listOrdered(ctx, actor, req.ListQuery, "is_pinned DESC, last_post_at DESC, id DESC", scopes...)
}

// UpdateTopic lets authors edit text; status and pinning are for moderators.
func (s *forumService) UpdateTopic(ctx context.Context, actor Actor, id uint, patch dto.ForumTopicPatch) (models.ForumTopic, error) {
	if err := Authorize(actor); err != nil {
		return models.ForumTopic{}, err
	}
	if err := validatePayload(s.validator, patch); err != nil {
		return models.ForumTopic{}, err
	}

	topic, err := s.topics.get(ctx, id)
	if err != nil {
		return models.ForumTopic{}, err
	}
	if err := authorizeOwnerOr(actor, topic.AuthorID, models.PermissionForumModerate); err != nil {
		return models.ForumTopic{}, err
	}
	if (patch.Status != nil || patch.IsPinned != nil) && !actor.Can(models.PermissionForumModerate) {
		return models.ForumTopic{}, apperror.Forbidden("only moderators can change topic status")
	}

	previous := topic.Status
	if patch.Title != nil {
		topic.Title = strings.TrimSpace(s.sanitizer.Sanitize(*patch.Title))
	}
	if patch.Description != nil {
		topic.Description = strings.TrimSpace(s.sanitizer.Sanitize(*patch.Description))
	}
	if patch.Status != nil {
		topic.Status = *patch.Status
	}
	if patch.IsPinned != nil {
		topic.IsPinned = *patch.IsPinned
	}

	if err := s.topics.updateIfStatus(ctx, actor, &topic, previous); err != nil {
		return models.ForumTopic{}, err
	}
	if topic.Status != previous {
		recordActivity(ctx, s.activity, s.logger, ActivityEntry{
			Actor:      actor,
			Action:     "forum.topic_" + topic.Status,
			EntityType: "forum_topic",
			EntityID:   &topic.ID,
			Metadata:   map[string]interface{}{"from": previous},
		})
	}
	return topic, nil
}

func (s *forumService) DeleteTopic(ctx context.Context, actor Actor, id uint) error {
	if err := Authorize(actor); err != nil {
		return err
	}
	topic, err := s.topics.get(ctx, id)
	if err != nil {
		return err
	}
	if err := authorizeOwnerOr(actor, topic.AuthorID, models.PermissionForumModerate); err != nil {
		return err
	}
	_, err = s.topics.softDelete(ctx, actor, id)
	return err
}

// CreatePost appends a post and bumps the topic counters in one transaction.
func (s *forumService) CreatePost(ctx context.Context, actor Actor, topicID uint, req dto.ForumPostCreateRequest) (models.ForumPost, error) {
	if err := Authorize(actor); err != nil {
		return models.ForumPost{}, err
	}
	if err := validatePayload(s.validator, req); err != nil {
		return models.ForumPost{}, err
	}

	content := strings.TrimSpace(s.sanitizer.Sanitize(req.Content))
	if content == "" {
		return models.ForumPost{}, apperror.Validation("post content empty after sanitization")
	}
	postType := req.Type
	if postType == "" {
		postType = "reply"
	}

	var post models.ForumPost
	err := s.transactor.WithinTransaction(ctx, func(tx *gorm.DB) error {
		topics := s.topics.withRepo(s.topics.repo.WithTx(tx))
		topic, err := topics.get(ctx, topicID)
		if err != nil {
			return err
		}
		if !topic.AcceptsPosts() {
			return apperror.Newf(apperror.KindInvalidState, "topic is %s", topic.Status)
		}
		if topic.CourseID != nil && !actor.Can(models.PermissionForumModerate) {
			member, err := s.members.WithTx(tx).IsMember(ctx, *topic.CourseID, actor.ID)
			if err != nil {
				return apperror.Internal(err)
			}
			if !member {
				return apperror.Forbidden("only course members can post in this topic")
			}
		}

		posts := s.posts.withRepo(s.posts.repo.WithTx(tx))
		if req.ParentID != nil {
			parent, err := posts.get(ctx, *req.ParentID)
			if err != nil {
				return err
			}
			if parent.TopicID != topic.ID {
				return apperror.Validation("parent post belongs to another topic")
			}
		}

		post = models.ForumPost{
			TopicID:  topic.ID,
			AuthorID: actor.ID,
			ParentID: req.ParentID,
			Title:    strings.TrimSpace(s.sanitizer.Sanitize(req.Title)),
			Content:  content,
			Type:     postType,
			Status:   models.PostStatusPublished,
		}
		if err := posts.create(ctx, actor, &post); err != nil {
			return err
		}

		lastPostAt := post.CreatedAt
		topic.PostCount++
		topic.LastPostAt = &lastPostAt
		return topics.updateIfStatus(ctx, actor, &topic, models.TopicStatusActive)
	})
	if err != nil {
		return models.ForumPost{}, err
	}

	s.notifyMentions(ctx, actor, post)
	return post, nil
}

func (s *forumService) notifyMentions(ctx context.Context, actor Actor, post models.ForumPost) {
	usernames := extractMentions(post.Content)
	if len(usernames) == 0 {
		return
	}
	ids, err := s.users.ActiveIDsByUsernames(ctx, usernames)
	if err != nil {
		s.logger.Warn().Err(err).Uint("post_id", post.ID).Msg("failed to resolve mentions")
		return
	}
	for _, id := range ids {
		if id == actor.ID {
			continue
		}
		notify(ctx, s.notifier, s.logger, id, NotificationForumMention,
			fmt.Sprintf("You were mentioned in topic %d.", post.TopicID))
	}
}

// extractMentions returns the distinct @usernames in content, in order of appearance.
func extractMentions(content string) []string {
	seen := make(map[string]struct{})
	var usernames []string
	for _, match := range mentionPattern.FindAllStringSubmatch(content, -1) {
		name := strings.TrimRight(match[1], ".-")
		key := strings.ToLower(name)
		if _, dup := seen[key]; dup || name == "" {
			continue
		}
		seen[key] = struct{}{}
		usernames = append(usernames, name)
	}
	return usernames
}

func (s *forumService) ListPosts(ctx context.Context, actor Actor, topicID uint, req dto.ForumPostListRequest) (dto.ListResponse[models.ForumPost], error) {
	if _, err := s.GetTopic(ctx, actor, topicID, false); err != nil {
		return dto.ListResponse[models.ForumPost]{}, err
	}

	scopes := []repository.Scope{repository.FieldEquals("topic_id", topicID)}
	if req.AuthorID > 0 {
		scopes = append(scopes, repository.FieldEquals("author_id", req.AuthorID))
	}
	if !actor.Can(models.PermissionForumModerate) {
		scopes = append(scopes, func(db *gorm.DB) *gorm.DB {
			return db.Where("status = ? OR author_id = ?", models.PostStatusPublished, actor.ID)
		})
	}
	return s.posts.listOrdered(ctx, actor, req.ListQuery, "created_at ASC, id ASC", scopes...)
}

// UpdatePost lets authors edit their posts; hiding posts is for moderators.
func (s *forumService) UpdatePost(ctx context.Context, actor Actor, id uint, patch dto.ForumPostPatch) (models.ForumPost, error) {
	if err := Authorize(actor); err != nil {
		return models.ForumPost{}, err
	}
	if err := validatePayload(s.validator, patch); err != nil {
		return models.ForumPost{}, err
	}

	post, err := s.posts.get(ctx, id)
	if err != nil {
		return models.ForumPost{}, err
	}
	if err := authorizeOwnerOr(actor, post.AuthorID, models.PermissionForumModerate); err != nil {
		return models.ForumPost{}, err
	}
	if patch.Status != nil && !actor.Can(models.PermissionForumModerate) {
		return models.ForumPost{}, apperror.Forbidden("only moderators can change post status")
	}

	topic, err := s.topics.get(ctx, post.TopicID)
	if err != nil {
		return models.ForumPost{}, err
	}
	if topic.Status == models.TopicStatusLocked || topic.Status == models.TopicStatusArchived {
		if !actor.Can(models.PermissionForumModerate) {
			return models.ForumPost{}, apperror.Newf(apperror.KindInvalidState, "topic is %s", topic.Status)
		}
	}

	previous := post.Status
	if patch.Title != nil {
		post.Title = strings.TrimSpace(s.sanitizer.Sanitize(*patch.Title))
	}
	if patch.Content != nil {
		content := strings.TrimSpace(s.sanitizer.Sanitize(*patch.Content))
		if content == "" {
			return models.ForumPost{}, apperror.Validation("post content empty after sanitization")
		}
		post.Content = content
		post.IsEdited = true
	}
	if patch.Status != nil {
		post.Status = *patch.Status
	}

	if err := s.posts.updateIfStatus(ctx, actor, &post, previous); err != nil {
		return models.ForumPost{}, err
	}
	return post, nil
}

func (s *forumService) DeletePost(ctx context.Context, actor Actor, id uint) error {
	if err := Authorize(actor); err != nil {
		return err
	}
	post, err := s.posts.get(ctx, id)
	if err != nil {
		return err
	}
	if err := authorizeOwnerOr(actor, post.AuthorID, models.PermissionForumModerate); err != nil {
		return err
	}
	_, err = s.posts.softDelete(ctx, actor, id)
	return err
}
