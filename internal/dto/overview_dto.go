package dto

import "time"

// GradeDistributionResponse buckets graded submissions by percentage.
type GradeDistributionResponse map[string]int64

// WeeklyEngagementPoint counts submissions handed in during one week.
type WeeklyEngagementPoint struct {
	WeekStart   time.Time `json:"week_start"`
	Submissions int64     `json:"submissions"`
}

// OverviewResponse summarises the state of the centre for administrators.
type OverviewResponse struct {
	ActiveUsersByRole  map[string]int64          `json:"active_users_by_role"`
	CoursesByStatus    map[string]int64          `json:"courses_by_status"`
	PendingEnrollments int64                     `json:"pending_enrollments"`
	AwaitingGrade      int64                     `json:"awaiting_grade"`
	GradeDistribution  GradeDistributionResponse `json:"grade_distribution"`
	WeeklyEngagement   []WeeklyEngagementPoint   `json:"weekly_engagement"`
	Revenue            map[string]float64        `json:"revenue"`
	GeneratedAt        time.Time                 `json:"generated_at"`
	CacheHit           bool                      `json:"cache_hit"`
}
