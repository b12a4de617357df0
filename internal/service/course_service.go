package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/edu-center-api/internal/apperror"
	"github.com/noah-isme/edu-center-api/internal/dto"
	"github.com/noah-isme/edu-center-api/internal/models"
	"github.com/noah-isme/edu-center-api/internal/repository"
)

const lessonOrder = "lesson_order ASC, id ASC"

// CourseService manages courses, their lessons and their member roster.
type CourseService interface {
	CreateCourse(ctx context.Context, actor Actor, req dto.CourseCreateRequest) (models.Course, error)
	GetCourse(ctx context.Context, actor Actor, id uint, includeDeleted bool) (models.Course, error)
	ListCourses(ctx context.Context, actor Actor, req dto.CourseListRequest) (dto.ListResponse[models.Course], error)
	UpdateCourse(ctx context.Context, actor Actor, id uint, patch dto.CoursePatch) (models.Course, error)
	DeleteCourse(ctx context.Context, actor Actor, id uint) error

	CreateLesson(ctx context.Context, actor Actor, courseID uint, req dto.LessonCreateRequest) (models.Lesson, error)
	GetLesson(ctx context.Context, actor Actor, id uint, includeDeleted bool) (models.Lesson, error)
	ListLessons(ctx context.Context, actor Actor, courseID uint, query dto.ListQuery) (dto.ListResponse[models.Lesson], error)
	UpdateLesson(ctx context.Context, actor Actor, id uint, patch dto.LessonPatch) (models.Lesson, error)
	DeleteLesson(ctx context.Context, actor Actor, id uint) error

	ListMembers(ctx context.Context, actor Actor, courseID uint, query dto.ListQuery) (dto.ListResponse[models.CourseMember], error)
	UpdateMember(ctx context.Context, actor Actor, courseID, userID uint, patch dto.CourseMemberPatch) (models.CourseMember, error)
	RemoveMember(ctx context.Context, actor Actor, courseID, userID uint) error
	ListUserCourses(ctx context.Context, actor Actor, userID uint, query dto.ListQuery) (dto.ListResponse[models.CourseMember], error)
}

type courseService struct {
	courses   *lifecycle[models.Course, *models.Course]
	lessons   *lifecycle[models.Lesson, *models.Lesson]
	members   repository.CourseMemberRepository
	activity  ActivityRecorder
	validator *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
}

// NewCourseService constructs the course service.
func NewCourseService(courses repository.AuditedRepository[models.Course], lessons repository.AuditedRepository[models.Lesson], members repository.CourseMemberRepository, activity ActivityRecorder, validate *validator.Validate, logger zerolog.Logger) CourseService {
	return newCourseService(courses, lessons, members, activity, validate, logger, time.Now)
}

func newCourseService(courses repository.AuditedRepository[models.Course], lessons repository.AuditedRepository[models.Lesson], members repository.CourseMemberRepository, activity ActivityRecorder, validate *validator.Validate, logger zerolog.Logger, now func() time.Time) *courseService {
	return &courseService{
		courses:   newLifecycle[models.Course](courses, "course", now),
		lessons:   newLifecycle[models.Lesson](lessons, "lesson", now),
		members:   members,
		activity:  activity,
		validator: validate,
		logger:    logger.With().Str("component", "course_service").Logger(),
		now:       now,
	}
}

func (s *courseService) CreateCourse(ctx context.Context, actor Actor, req dto.CourseCreateRequest) (models.Course, error) {
	if err := Authorize(actor, models.PermissionCourseManage); err != nil {
		return models.Course{}, err
	}
	if err := validatePayload(s.validator, req); err != nil {
		return models.Course{}, err
	}

	course := models.Course{
		Code:          strings.ToUpper(strings.TrimSpace(req.Code)),
		Title:         strings.TrimSpace(req.Title),
		Description:   req.Description,
		Level:         req.Level,
		TeacherID:     req.TeacherID,
		Credits:       req.Credits,
		MaxStudents:   req.MaxStudents,
		Price:         req.Price,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		ImageURL:      req.ImageURL,
		Syllabus:      req.Syllabus,
		Prerequisites: req.Prerequisites,
		Location:      req.Location,
		Status:        models.CourseStatusDraft,
	}
	if err := course.ValidateSchedule(); err != nil {
		return models.Course{}, err
	}

	if err := s.courses.create(ctx, actor, &course); err != nil {
		return models.Course{}, err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     "course.created",
		EntityType: "course",
		EntityID:   &course.ID,
		Metadata:   map[string]interface{}{"code": course.Code},
	})
	return course, nil
}

func (s *courseService) GetCourse(ctx context.Context, actor Actor, id uint, includeDeleted bool) (models.Course, error) {
	if err := Authorize(actor); err != nil {
		return models.Course{}, err
	}
	course, err := s.courses.getVisible(ctx, actor, id, includeDeleted)
	if err != nil {
		return models.Course{}, err
	}
	if !course.IsPublished && !actor.Can(models.PermissionCourseManage) && !isCourseTeacher(actor, course) {
		return models.Course{}, apperror.NotFound("course")
	}
	return course, nil
}

func (s *courseService) ListCourses(ctx context.Context, actor Actor, req dto.CourseListRequest) (dto.ListResponse[models.Course], error) {
	if err := Authorize(actor); err != nil {
		return dto.ListResponse[models.Course]{}, err
	}

	scopes := []repository.Scope{repository.Search(req.Search, "code", "title")}
	if req.Status != "" {
		scopes = append(scopes, repository.FieldEquals("status", req.Status))
	}
	if req.TeacherID > 0 {
		scopes = append(scopes, repository.FieldEquals("teacher_id", req.TeacherID))
	}
	if !actor.Can(models.PermissionCourseManage) {
		scopes = append(scopes, repository.FieldEquals("is_published", true))
	}

	return s.courses.list(ctx, actor, req.ListQuery, scopes...)
}

func (s *courseService) UpdateCourse(ctx context.Context, actor Actor, id uint, patch dto.CoursePatch) (models.Course, error) {
	if err := Authorize(actor, models.PermissionCourseManage); err != nil {
		return models.Course{}, err
	}
	if err := validatePayload(s.validator, patch); err != nil {
		return models.Course{}, err
	}

	course, err := s.courses.get(ctx, id)
	if err != nil {
		return models.Course{}, err
	}

	applyCoursePatch(&course, patch)
	if err := course.ValidateSchedule(); err != nil {
		return models.Course{}, err
	}

	if err := s.courses.update(ctx, actor, &course); err != nil {
		return models.Course{}, err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     "course.updated",
		EntityType: "course",
		EntityID:   &course.ID,
		Metadata:   map[string]interface{}{"status": course.Status},
	})
	return course, nil
}

func applyCoursePatch(course *models.Course, patch dto.CoursePatch) {
	if patch.Title != nil {
		course.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		course.Description = *patch.Description
	}
	if patch.Level != nil {
		course.Level = *patch.Level
	}
	if patch.TeacherID != nil {
		course.TeacherID = patch.TeacherID
	}
	if patch.Credits != nil {
		course.Credits = *patch.Credits
	}
	if patch.MaxStudents != nil {
		course.MaxStudents = *patch.MaxStudents
	}
	if patch.Price != nil {
		course.Price = *patch.Price
	}
	if patch.StartDate != nil {
		course.StartDate = patch.StartDate
	}
	if patch.EndDate != nil {
		course.EndDate = patch.EndDate
	}
	if patch.ImageURL != nil {
		course.ImageURL = *patch.ImageURL
	}
	if patch.Syllabus != nil {
		course.Syllabus = *patch.Syllabus
	}
	if patch.Prerequisites != nil {
		course.Prerequisites = *patch.Prerequisites
	}
	if patch.Location != nil {
		course.Location = *patch.Location
	}
	if patch.Status != nil {
		course.Status = *patch.Status
		course.IsPublished = course.Status == models.CourseStatusPublished
	}
}

func (s *courseService) DeleteCourse(ctx context.Context, actor Actor, id uint) error {
	if err := Authorize(actor, models.PermissionCourseManage); err != nil {
		return err
	}
	course, err := s.courses.softDelete(ctx, actor, id)
	if err != nil {
		return err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     "course.deleted",
		EntityType: "course",
		EntityID:   &course.ID,
	})
	return nil
}

func (s *courseService) CreateLesson(ctx context.Context, actor Actor, courseID uint, req dto.LessonCreateRequest) (models.Lesson, error) {
	if err := Authorize(actor, models.PermissionLessonManage); err != nil {
		return models.Lesson{}, err
	}
	if err := validatePayload(s.validator, req); err != nil {
		return models.Lesson{}, err
	}
	if _, err := s.courses.get(ctx, courseID); err != nil {
		return models.Lesson{}, err
	}

	lessonType := req.Type
	if lessonType == "" {
		lessonType = "lecture"
	}
	lesson := models.Lesson{
		CourseID:      courseID,
		Title:         strings.TrimSpace(req.Title),
		Content:       req.Content,
		Order:         req.Order,
		Type:          lessonType,
		Status:        models.LessonStatusDraft,
		EstimatedTime: req.EstimatedTime,
	}
	if err := s.lessons.create(ctx, actor, &lesson); err != nil {
		return models.Lesson{}, err
	}
	return lesson, nil
}

func (s *courseService) GetLesson(ctx context.Context, actor Actor, id uint, includeDeleted bool) (models.Lesson, error) {
	if err := Authorize(actor); err != nil {
		return models.Lesson{}, err
	}
	return s.lessons.getVisible(ctx, actor, id, includeDeleted)
}

func (s *courseService) ListLessons(ctx context.Context, actor Actor, courseID uint, query dto.ListQuery) (dto.ListResponse[models.Lesson], error) {
	if err := Authorize(actor); err != nil {
		return dto.ListResponse[models.Lesson]{}, err
	}
	if _, err := s.courses.get(ctx, courseID); err != nil {
		return dto.ListResponse[models.Lesson]{}, err
	}

	scopes := []repository.Scope{repository.FieldEquals("course_id", courseID)}
	if !actor.Can(models.PermissionLessonManage) {
		scopes = append(scopes, repository.FieldEquals("status", models.LessonStatusPublished))
	}
	return s.lessons.listOrdered(ctx, actor, query, lessonOrder, scopes...)
}

func (s *courseService) UpdateLesson(ctx context.Context, actor Actor, id uint, patch dto.LessonPatch) (models.Lesson, error) {
	if err := Authorize(actor, models.PermissionLessonManage); err != nil {
		return models.Lesson{}, err
	}
	if err := validatePayload(s.validator, patch); err != nil {
		return models.Lesson{}, err
	}

	lesson, err := s.lessons.get(ctx, id)
	if err != nil {
		return models.Lesson{}, err
	}

	if patch.Title != nil {
		lesson.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Content != nil {
		lesson.Content = *patch.Content
	}
	if patch.Order != nil {
		lesson.Order = *patch.Order
	}
	if patch.Type != nil {
		lesson.Type = *patch.Type
	}
	if patch.Status != nil {
		lesson.Status = *patch.Status
	}
	if patch.EstimatedTime != nil {
		lesson.EstimatedTime = *patch.EstimatedTime
	}

	if err := s.lessons.update(ctx, actor, &lesson); err != nil {
		return models.Lesson{}, err
	}
	return lesson, nil
}

func (s *courseService) DeleteLesson(ctx context.Context, actor Actor, id uint) error {
	if err := Authorize(actor, models.PermissionLessonManage); err != nil {
		return err
	}
	_, err := s.lessons.softDelete(ctx, actor, id)
	return err
}

func (s *courseService) ListMembers(ctx context.Context, actor Actor, courseID uint, query dto.ListQuery) (dto.ListResponse[models.CourseMember], error) {
	if err := Authorize(actor); err != nil {
		return dto.ListResponse[models.CourseMember]{}, err
	}
	if _, err := s.rosterCourse(ctx, actor, courseID); err != nil {
		return dto.ListResponse[models.CourseMember]{}, err
	}

	offset, limit := query.Window()
	opts := repository.ListOptions{Offset: offset, Limit: limit}.Normalize()
	members, total, err := s.members.ListByCourse(ctx, courseID, opts)
	if err != nil {
		return dto.ListResponse[models.CourseMember]{}, apperror.Internal(err)
	}
	return dto.NewListResponse(members, opts.Offset, opts.Limit, total), nil
}

// rosterCourse loads a live course the actor may manage the roster of.
func (s *courseService) rosterCourse(ctx context.Context, actor Actor, courseID uint) (models.Course, error) {
	course, err := s.courses.get(ctx, courseID)
	if err != nil {
		return models.Course{}, err
	}
	if !isCourseTeacher(actor, course) {
		if err := Authorize(actor, models.PermissionCourseManage, models.PermissionEnrollmentDecide); err != nil {
			return models.Course{}, err
		}
	}
	return course, nil
}

// UpdateMember changes a member's role or active flag. A change that turns
// the row into an active student seat must fit the course capacity.
func (s *courseService) UpdateMember(ctx context.Context, actor Actor, courseID, userID uint, patch dto.CourseMemberPatch) (models.CourseMember, error) {
	if err := Authorize(actor); err != nil {
		return models.CourseMember{}, err
	}
	if err := validatePayload(s.validator, patch); err != nil {
		return models.CourseMember{}, err
	}
	course, err := s.rosterCourse(ctx, actor, courseID)
	if err != nil {
		return models.CourseMember{}, err
	}

	member, err := s.members.Get(ctx, courseID, userID)
	if err != nil {
		return models.CourseMember{}, apperror.FromStorage(err, "course member")
	}
	heldSeat := member.IsActive && member.Role == models.MemberRoleStudent
	if patch.Role != nil {
		member.Role = *patch.Role
	}
	if patch.IsActive != nil {
		member.IsActive = *patch.IsActive
	}

	if !heldSeat && member.IsActive && member.Role == models.MemberRoleStudent {
		seats, err := s.members.CountActive(ctx, courseID)
		if err != nil {
			return models.CourseMember{}, apperror.Internal(err)
		}
		if !course.HasCapacity(seats) {
			return models.CourseMember{}, apperror.Conflict("course is full")
		}
	}

	member.UpdatedAt = s.now().UTC()
	if err := s.members.Update(ctx, &member); err != nil {
		return models.CourseMember{}, apperror.FromStorage(err, "course member")
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     "course.member_updated",
		EntityType: "course",
		EntityID:   &course.ID,
		Metadata:   map[string]interface{}{"user_id": userID, "role": member.Role, "is_active": member.IsActive},
	})
	return member, nil
}

// RemoveMember drops the membership row. The user can be admitted again later.
func (s *courseService) RemoveMember(ctx context.Context, actor Actor, courseID, userID uint) error {
	if err := Authorize(actor); err != nil {
		return err
	}
	course, err := s.rosterCourse(ctx, actor, courseID)
	if err != nil {
		return err
	}

	removed, err := s.members.Delete(ctx, courseID, userID)
	if err != nil {
		return apperror.Internal(err)
	}
	if !removed {
		return apperror.NotFound("course member")
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     "course.member_removed",
		EntityType: "course",
		EntityID:   &course.ID,
		Metadata:   map[string]interface{}{"user_id": userID},
	})
	return nil
}

// ListUserCourses lists the memberships of a user, newest first. Users see
// their own; managers may look up anyone.
func (s *courseService) ListUserCourses(ctx context.Context, actor Actor, userID uint, query dto.ListQuery) (dto.ListResponse[models.CourseMember], error) {
	if userID == 0 {
		userID = actor.ID
	}
	if err := authorizeOwnerOr(actor, userID, models.PermissionUserManage, models.PermissionCourseManage); err != nil {
		return dto.ListResponse[models.CourseMember]{}, err
	}

	offset, limit := query.Window()
	opts := repository.ListOptions{Offset: offset, Limit: limit}.Normalize()
	members, total, err := s.members.ListByUser(ctx, userID, opts)
	if err != nil {
		return dto.ListResponse[models.CourseMember]{}, apperror.Internal(err)
	}
	return dto.NewListResponse(members, opts.Offset, opts.Limit, total), nil
}

func isCourseTeacher(actor Actor, course models.Course) bool {
	return actor.ID != 0 && course.TeacherID != nil && *course.TeacherID == actor.ID
}
