package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/edu-center-api/internal/apperror"
	"github.com/noah-isme/edu-center-api/internal/dto"
	"github.com/noah-isme/edu-center-api/internal/models"
	"github.com/noah-isme/edu-center-api/internal/observability"
	"github.com/noah-isme/edu-center-api/internal/repository"
)

const activityFeedWindow = 24 * time.Hour

// ActivityFeedService serves the last day of a user's activity from a short-lived cache.
type ActivityFeedService interface {
	Recent(ctx context.Context, actor Actor, req dto.ActivityFeedRequest) (dto.ActivityFeedResponse, error)
}

type activityFeedService struct {
	repo   repository.ActivityLogRepository
	cache  *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
	now    func() time.Time
}

// NewActivityFeedService builds the activity feed service. A nil cache disables caching.
func NewActivityFeedService(repo repository.ActivityLogRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) ActivityFeedService {
	return newActivityFeedService(repo, cache, ttl, logger, time.Now)
}

func newActivityFeedService(repo repository.ActivityLogRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger, now func() time.Time) *activityFeedService {
	if ttl <= 0 {
		ttl = 45 * time.Second
	}
	return &activityFeedService{
		repo:   repo,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With().Str("component", "activity_feed_service").Logger(),
		now:    now,
	}
}

func (s *activityFeedService) Recent(ctx context.Context, actor Actor, req dto.ActivityFeedRequest) (dto.ActivityFeedResponse, error) {
	if err := Authorize(actor); err != nil {
		return dto.ActivityFeedResponse{}, err
	}

	userID := req.UserID
	if userID == 0 {
		userID = actor.ID
	}
	if userID != actor.ID {
		if err := Authorize(actor, models.PermissionActivityView); err != nil {
			return dto.ActivityFeedResponse{}, err
		}
	}

	offset, limit := req.Window()
	opts := repository.ListOptions{Offset: offset, Limit: limit}.Normalize()
	// The window start is truncated to the minute so concurrent readers share a cache key.
	since := s.now().UTC().Add(-activityFeedWindow).Truncate(time.Minute)
	filter := repository.ActivityLogFilter{
		ActorID:    &userID,
		Action:     strings.ToLower(strings.TrimSpace(req.Action)),
		EntityType: strings.ToLower(strings.TrimSpace(req.EntityType)),
		Since:      &since,
	}

	key := s.cacheKey(filter, opts)
	if cached, ok := s.readCache(ctx, key); ok {
		observability.ActivityFeedRequests().WithLabelValues("hit").Inc()
		return cached, nil
	}

	entries, total, err := s.repo.List(ctx, filter, opts)
	if err != nil {
		observability.ActivityFeedRequests().WithLabelValues("error").Inc()
		return dto.ActivityFeedResponse{}, apperror.Internal(err)
	}

	items := make([]dto.ActivityResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, dto.NewActivityResponse(entry))
	}
	response := dto.ActivityFeedResponse{ListResponse: dto.NewListResponse(items, opts.Offset, opts.Limit, total)}

	s.writeCache(ctx, key, response)
	observability.ActivityFeedRequests().WithLabelValues("miss").Inc()

	return response, nil
}

func (s *activityFeedService) readCache(ctx context.Context, key string) (dto.ActivityFeedResponse, bool) {
	if s.cache == nil {
		return dto.ActivityFeedResponse{}, false
	}
	cached, err := s.cache.Get(ctx, key).Result()
	if err != nil || cached == "" {
		return dto.ActivityFeedResponse{}, false
	}

	var response dto.ActivityFeedResponse
	if err := json.Unmarshal([]byte(cached), &response.ListResponse); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("discarding unreadable activity feed cache entry")
		return dto.ActivityFeedResponse{}, false
	}
	response.CacheHit = true
	return response, true
}

func (s *activityFeedService) writeCache(ctx context.Context, key string, response dto.ActivityFeedResponse) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(response.ListResponse)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, payload, s.ttl).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to write activity feed cache")
	}
}

func (s *activityFeedService) cacheKey(filter repository.ActivityLogFilter, opts repository.ListOptions) string {
	return fmt.Sprintf("activities:recent:v1:%d:%s|%s:%d:%d:%d",
		*filter.ActorID, filter.Action, filter.EntityType, opts.Offset, opts.Limit, filter.Since.Unix())
}
