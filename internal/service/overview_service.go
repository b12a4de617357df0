package service

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/edu-center-api/internal/apperror"
	"github.com/noah-isme/edu-center-api/internal/dto"
	"github.com/noah-isme/edu-center-api/internal/models"
	"github.com/noah-isme/edu-center-api/internal/repository"
)

const (
	overviewCacheKey   = "overview:summary:v1"
	overviewWeeks      = 8
	defaultOverviewTTL = 5 * time.Minute
)

// OverviewService aggregates the administrator overview.
type OverviewService interface {
	Summary(ctx context.Context, actor Actor) (dto.OverviewResponse, error)
}

type overviewService struct {
	repo     repository.OverviewRepository
	cache    *redis.Client
	cacheTTL time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

// NewOverviewService constructs the overview service. A nil cache disables caching.
func NewOverviewService(repo repository.OverviewRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) OverviewService {
	if ttl <= 0 {
		ttl = defaultOverviewTTL
	}
	return &overviewService{
		repo:     repo,
		cache:    cache,
		cacheTTL: ttl,
		logger:   logger.With().Str("component", "overview_service").Logger(),
		now:      time.Now,
	}
}

func (s *overviewService) Summary(ctx context.Context, actor Actor) (dto.OverviewResponse, error) {
	if err := Authorize(actor, models.PermissionReportView); err != nil {
		return dto.OverviewResponse{}, err
	}

	tracer := otel.Tracer("github.com/noah-isme/edu-center-api/internal/service/overview")
	ctx, span := tracer.Start(ctx, "overview.aggregate")
	span.SetAttributes(attribute.String("overview.cache_key", overviewCacheKey))
	defer span.End()

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, overviewCacheKey).Result()
		if err == nil {
			var response dto.OverviewResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				response.CacheHit = true
				span.SetAttributes(attribute.Bool("overview.cache_hit", true))
				return response, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read overview cache")
			span.RecordError(err)
		}
	}

	summary, err := s.aggregate(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "aggregate_failed")
		return dto.OverviewResponse{}, apperror.Internal(err)
	}
	span.SetAttributes(
		attribute.Int64("overview.pending_enrollments", summary.PendingEnrollments),
		attribute.Int64("overview.awaiting_grade", summary.AwaitingGrade),
	)

	if s.cache != nil {
		payload, err := json.Marshal(summary)
		if err == nil {
			if err := s.cache.Set(ctx, overviewCacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store overview cache")
				span.RecordError(err)
			}
		}
	}

	return summary, nil
}

func (s *overviewService) aggregate(ctx context.Context) (dto.OverviewResponse, error) {
	now := s.now().UTC()

	users, err := s.repo.CountActiveUsersByRole(ctx)
	if err != nil {
		return dto.OverviewResponse{}, err
	}
	courses, err := s.repo.CountCoursesByStatus(ctx)
	if err != nil {
		return dto.OverviewResponse{}, err
	}
	pending, err := s.repo.CountPendingEnrollments(ctx)
	if err != nil {
		return dto.OverviewResponse{}, err
	}
	awaiting, err := s.repo.CountAwaitingGrade(ctx)
	if err != nil {
		return dto.OverviewResponse{}, err
	}
	scores, err := s.repo.ListGradedScores(ctx)
	if err != nil {
		return dto.OverviewResponse{}, err
	}
	submitted, err := s.repo.ListSubmittedSince(ctx, startOfWeek(now).AddDate(0, 0, -7*(overviewWeeks-1)))
	if err != nil {
		return dto.OverviewResponse{}, err
	}
	revenue, err := s.repo.SumCompletedPayments(ctx)
	if err != nil {
		return dto.OverviewResponse{}, err
	}

	response := dto.OverviewResponse{
		ActiveUsersByRole:  groupCounts(users),
		CoursesByStatus:    groupCounts(courses),
		PendingEnrollments: pending,
		AwaitingGrade:      awaiting,
		GradeDistribution:  gradeDistribution(scores),
		WeeklyEngagement:   weeklyEngagement(submitted),
		Revenue:            make(map[string]float64, len(revenue)),
		GeneratedAt:        now,
	}
	for _, row := range revenue {
		response.Revenue[row.Currency] = row.Total
	}
	return response, nil
}

func groupCounts(rows []repository.GroupCount) map[string]int64 {
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Name] = row.Total
	}
	return counts
}

func gradeDistribution(scores []repository.GradedScore) dto.GradeDistributionResponse {
	distribution := dto.GradeDistributionResponse{
		"90-100": 0,
		"75-89":  0,
		"60-74":  0,
		"0-59":   0,
	}
	for _, row := range scores {
		maxScore := 100.0
		if row.MaxScore != nil && *row.MaxScore > 0 {
			maxScore = *row.MaxScore
		}
		percent := row.Score / maxScore * 100
		switch {
		case percent >= 90:
			distribution["90-100"]++
		case percent >= 75:
			distribution["75-89"]++
		case percent >= 60:
			distribution["60-74"]++
		default:
			distribution["0-59"]++
		}
	}
	return distribution
}

func weeklyEngagement(submitted []time.Time) []dto.WeeklyEngagementPoint {
	weekly := map[time.Time]int64{}
	for _, at := range submitted {
		weekly[startOfWeek(at)]++
	}

	weeks := make([]time.Time, 0, len(weekly))
	for week := range weekly {
		weeks = append(weeks, week)
	}
	sort.Slice(weeks, func(i, j int) bool { return weeks[i].Before(weeks[j]) })

	points := make([]dto.WeeklyEngagementPoint, 0, len(weeks))
	for _, week := range weeks {
		points = append(points, dto.WeeklyEngagementPoint{WeekStart: week, Submissions: weekly[week]})
	}
	return points
}

// startOfWeek returns the Monday 00:00 UTC of the week containing t.
func startOfWeek(t time.Time) time.Time {
	utc := t.UTC()
	weekday := int(utc.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	start := utc.AddDate(0, 0, -(weekday - 1))
	return time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
}
