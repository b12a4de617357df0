package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-center-api/internal/apperror"
	"github.com/noah-isme/edu-center-api/internal/dto"
	"github.com/noah-isme/edu-center-api/internal/models"
	"github.com/noah-isme/edu-center-api/internal/repository"
)

func newCourseServiceForTest(t *testing.T, now func() time.Time) (*fixture, *courseService) {
	t.Helper()
	f := newFixture(t)
	svc := newCourseService(
		repository.NewAuditedRepository[models.Course](f.db),
		repository.NewAuditedRepository[models.Lesson](f.db),
		repository.NewCourseMemberRepository(f.db),
		nil,
		testValidator(),
		testLogger(),
		now,
	)
	return f, svc
}

func TestCourseLifecycleStampsAndSoftDeletes(t *testing.T) {
	current := testEpoch
	f, svc := newCourseServiceForTest(t, func() time.Time { return current })
	ctx := context.Background()
	staff := f.actorFor(t, "staff@edu.test", models.RoleStaff)
	admin := f.actorFor(t, "admin@edu.test", models.RoleAdmin)

	course, err := svc.CreateCourse(ctx, staff, dto.CourseCreateRequest{Code: "math-101", Title: "Algebra I", MaxStudents: 2})
	require.NoError(t, err)
	require.Equal(t, "MATH-101", course.Code)
	require.Equal(t, testEpoch, course.CreatedAt)
	require.Equal(t, staff.ID, *course.CreatedBy)

	current = testEpoch.Add(-time.Hour)
	updated, err := svc.UpdateCourse(ctx, admin, course.ID, dto.CoursePatch{Title: ptrString("Algebra One")})
	require.NoError(t, err)
	require.Equal(t, "Algebra One", updated.Title)
	require.False(t, updated.UpdatedAt.Before(updated.CreatedAt))
	require.Equal(t, admin.ID, *updated.UpdatedBy)

	current = testEpoch.Add(2 * time.Hour)
	require.NoError(t, svc.DeleteCourse(ctx, staff, course.ID))
	err = svc.DeleteCourse(ctx, staff, course.ID)
	require.True(t, errors.Is(err, apperror.ErrInvalidState))

	_, err = svc.GetCourse(ctx, staff, course.ID, false)
	require.True(t, errors.Is(err, apperror.ErrNotFound))

	_, err = svc.GetCourse(ctx, staff, course.ID, true)
	require.True(t, errors.Is(err, apperror.ErrForbidden))

	deleted, err := svc.GetCourse(ctx, admin, course.ID, true)
	require.NoError(t, err)
	require.True(t, deleted.IsDeleted)
	require.Equal(t, testEpoch.Add(2*time.Hour), deleted.UpdatedAt)
}

func TestCourseRejectsInvalidScheduleAndDuplicateCode(t *testing.T) {
	f, svc := newCourseServiceForTest(t, fixedClock(testEpoch))
	ctx := context.Background()
	staff := f.actorFor(t, "staff@edu.test", models.RoleStaff)

	start := testEpoch.Add(48 * time.Hour)
	end := testEpoch
	_, err := svc.CreateCourse(ctx, staff, dto.CourseCreateRequest{Code: "BIO-1", Title: "Biology", StartDate: &start, EndDate: &end})
	require.True(t, errors.Is(err, apperror.ErrValidation))

	_, err = svc.CreateCourse(ctx, staff, dto.CourseCreateRequest{Code: "BIO-1", Title: "Biology"})
	require.NoError(t, err)
	_, err = svc.CreateCourse(ctx, staff, dto.CourseCreateRequest{Code: "bio-1", Title: "Biology again"})
	require.True(t, errors.Is(err, apperror.ErrConflict))

	student := f.actorFor(t, "student@edu.test", models.RoleStudent)
	_, err = svc.CreateCourse(ctx, student, dto.CourseCreateRequest{Code: "X-1", Title: "Nope"})
	require.True(t, errors.Is(err, apperror.ErrForbidden))
}

func TestCourseMemberUpdatesRespectCapacity(t *testing.T) {
	f, svc := newCourseServiceForTest(t, fixedClock(testEpoch))
	ctx := context.Background()
	staff := f.actorFor(t, "staff@edu.test", models.RoleStaff)
	first := f.actorFor(t, "first@edu.test", models.RoleStudent)
	second := f.actorFor(t, "second@edu.test", models.RoleStudent)

	course, err := svc.CreateCourse(ctx, staff, dto.CourseCreateRequest{Code: "ART-100", Title: "Drawing", MaxStudents: 1})
	require.NoError(t, err)
	require.NoError(t, svc.members.Create(ctx, &models.CourseMember{CourseID: course.ID, UserID: first.ID, Role: models.MemberRoleStudent, IsActive: true, JoinedAt: testEpoch}))
	require.NoError(t, svc.members.Create(ctx, &models.CourseMember{CourseID: course.ID, UserID: second.ID, Role: models.MemberRoleAuditor, IsActive: true, JoinedAt: testEpoch}))

	_, err = svc.UpdateMember(ctx, first, course.ID, second.ID, dto.CourseMemberPatch{Role: ptrString(models.MemberRoleStudent)})
	require.True(t, errors.Is(err, apperror.ErrForbidden))

	_, err = svc.UpdateMember(ctx, staff, course.ID, second.ID, dto.CourseMemberPatch{Role: ptrString(models.MemberRoleStudent)})
	require.True(t, errors.Is(err, apperror.ErrConflict))

	inactive := false
	suspended, err := svc.UpdateMember(ctx, staff, course.ID, first.ID, dto.CourseMemberPatch{IsActive: &inactive})
	require.NoError(t, err)
	require.False(t, suspended.IsActive)

	promoted, err := svc.UpdateMember(ctx, staff, course.ID, second.ID, dto.CourseMemberPatch{Role: ptrString(models.MemberRoleStudent)})
	require.NoError(t, err)
	require.Equal(t, models.MemberRoleStudent, promoted.Role)

	active := true
	_, err = svc.UpdateMember(ctx, staff, course.ID, first.ID, dto.CourseMemberPatch{IsActive: &active})
	require.True(t, errors.Is(err, apperror.ErrConflict))

	_, err = svc.UpdateMember(ctx, staff, course.ID, second.ID, dto.CourseMemberPatch{Role: ptrString("teacher")})
	require.True(t, errors.Is(err, apperror.ErrValidation))

	require.NoError(t, svc.RemoveMember(ctx, staff, course.ID, first.ID))
	require.True(t, errors.Is(svc.RemoveMember(ctx, staff, course.ID, first.ID), apperror.ErrNotFound))

	own, err := svc.ListUserCourses(ctx, second, 0, dto.ListQuery{})
	require.NoError(t, err)
	require.Len(t, own.Items, 1)
	require.Equal(t, course.ID, own.Items[0].CourseID)

	_, err = svc.ListUserCourses(ctx, first, second.ID, dto.ListQuery{})
	require.True(t, errors.Is(err, apperror.ErrForbidden))

	removed, err := svc.ListUserCourses(ctx, staff, first.ID, dto.ListQuery{})
	require.NoError(t, err)
	require.Empty(t, removed.Items)
}

func TestStudentsSeeOnlyPublishedCoursesAndLessons(t *testing.T) {
	f, svc := newCourseServiceForTest(t, fixedClock(testEpoch))
	ctx := context.Background()
	staff := f.actorFor(t, "staff@edu.test", models.RoleStaff)
	teacher := f.actorFor(t, "teacher@edu.test", models.RoleTeacher)
	student := f.actorFor(t, "student@edu.test", models.RoleStudent)

	draft, err := svc.CreateCourse(ctx, staff, dto.CourseCreateRequest{Code: "DRAFT-1", Title: "Draft course"})
	require.NoError(t, err)
	live, err := svc.CreateCourse(ctx, staff, dto.CourseCreateRequest{Code: "LIVE-1", Title: "Live course"})
	require.NoError(t, err)
	_, err = svc.UpdateCourse(ctx, staff, live.ID, dto.CoursePatch{Status: ptrString(models.CourseStatusPublished)})
	require.NoError(t, err)

	page, err := svc.ListCourses(ctx, student, dto.CourseListRequest{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, "LIVE-1", page.Items[0].Code)

	_, err = svc.GetCourse(ctx, student, draft.ID, false)
	require.True(t, errors.Is(err, apperror.ErrNotFound))

	second, err := svc.CreateLesson(ctx, teacher, live.ID, dto.LessonCreateRequest{Title: "Second lesson", Order: 2})
	require.NoError(t, err)
	first, err := svc.CreateLesson(ctx, teacher, live.ID, dto.LessonCreateRequest{Title: "First lesson", Order: 1})
	require.NoError(t, err)
	_, err = svc.UpdateLesson(ctx, teacher, first.ID, dto.LessonPatch{Status: ptrString(models.LessonStatusPublished)})
	require.NoError(t, err)

	lessons, err := svc.ListLessons(ctx, teacher, live.ID, dto.ListQuery{})
	require.NoError(t, err)
	require.Equal(t, []uint{first.ID, second.ID}, []uint{lessons.Items[0].ID, lessons.Items[1].ID})

	visible, err := svc.ListLessons(ctx, student, live.ID, dto.ListQuery{})
	require.NoError(t, err)
	require.Len(t, visible.Items, 1)

	_, err = svc.CreateLesson(ctx, teacher, 9999, dto.LessonCreateRequest{Title: "Orphan lesson"})
	require.True(t, errors.Is(err, apperror.ErrNotFound))
}

type memoryStorage struct {
	folder string
	name   string
	body   []byte
	err    error
}

func (m *memoryStorage) Upload(ctx context.Context, folder, name string, reader io.Reader) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.folder = folder
	m.name = name
	body, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	m.body = body
	return "https://cdn.test/" + folder + "/" + name, nil
}

func multipartFile(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	return req.MultipartForm.File["file"][0]
}

func TestMaterialUploadDetectsTypeAndRejectsExecutables(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	staff := f.actorFor(t, "staff@edu.test", models.RoleStaff)
	courses := repository.NewAuditedRepository[models.Course](f.db)
	storage := &memoryStorage{}
	svc := NewMaterialService(
		repository.NewAuditedRepository[models.TeachingMaterial](f.db),
		courses,
		repository.NewAuditedRepository[models.Lesson](f.db),
		storage,
		1,
		testValidator(),
		testLogger(),
	)

	course := models.Course{Code: "ART-1", Title: "Art", Status: models.CourseStatusDraft}
	course.StampCreated(staff.ID, testEpoch)
	require.NoError(t, courses.Create(ctx, &course))

	pdf := []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF")
	material, err := svc.Upload(ctx, staff, course.ID, dto.MaterialCreateRequest{Title: "Syllabus"}, multipartFile(t, "Week 1 Syllabus.PDF", pdf))
	require.NoError(t, err)
	require.Equal(t, models.MaterialTypeDocument, material.MaterialType)
	require.Equal(t, "application/pdf", material.MimeType)
	require.Equal(t, "course-1", storage.folder)
	require.Equal(t, "week-1-syllabus.pdf", storage.name)
	require.Equal(t, pdf, storage.body)

	elf := append([]byte{0x7f, 'E', 'L', 'F', 2, 1, 1}, make([]byte, 64)...)
	_, err = svc.Upload(ctx, staff, course.ID, dto.MaterialCreateRequest{Title: "Binary"}, multipartFile(t, "tool.pdf", elf))
	require.True(t, errors.Is(err, apperror.ErrValidation))

	_, err = svc.CreateLink(ctx, staff, course.ID, dto.MaterialCreateRequest{Title: "Reading"})
	require.True(t, errors.Is(err, apperror.ErrValidation))

	link, err := svc.CreateLink(ctx, staff, course.ID, dto.MaterialCreateRequest{Title: "Reading", URL: "https://example.org/reading"})
	require.NoError(t, err)
	require.Equal(t, models.MaterialTypeLink, link.MaterialType)

	page, err := svc.List(ctx, staff, course.ID, dto.ListQuery{})
	require.NoError(t, err)
	require.EqualValues(t, 2, page.Pagination.TotalItems)
}

func TestStaffAssignmentProgressesForward(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	staff := f.actorFor(t, "staff@edu.test", models.RoleStaff)
	teacher := f.actorFor(t, "teacher@edu.test", models.RoleTeacher)
	student := f.createUser(t, "student@edu.test", models.RoleStudent)
	courses := repository.NewAuditedRepository[models.Course](f.db)
	svc := NewStaffService(repository.NewAuditedRepository[models.StaffAssignment](f.db), courses, f.users, nil, testValidator(), testLogger())

	course := models.Course{Code: "CHEM-1", Title: "Chemistry", Status: models.CourseStatusDraft}
	course.StampCreated(staff.ID, testEpoch)
	require.NoError(t, courses.Create(ctx, &course))

	_, err := svc.Assign(ctx, staff, course.ID, dto.StaffAssignmentCreateRequest{StaffID: student.ID, Role: models.StaffRoleGrader})
	require.True(t, errors.Is(err, apperror.ErrValidation))

	assignment, err := svc.Assign(ctx, staff, course.ID, dto.StaffAssignmentCreateRequest{StaffID: teacher.ID, Role: models.StaffRoleInstructor, IsPrimary: true})
	require.NoError(t, err)
	require.Equal(t, models.StaffStatusAssigned, assignment.Status)

	started, err := svc.Update(ctx, teacher, assignment.ID, dto.StaffAssignmentPatch{Status: ptrString(models.StaffStatusInProgress)})
	require.NoError(t, err)
	require.Equal(t, models.StaffStatusInProgress, started.Status)

	_, err = svc.Update(ctx, teacher, assignment.ID, dto.StaffAssignmentPatch{Status: ptrString(models.StaffStatusAssigned)})
	require.True(t, errors.Is(err, apperror.ErrInvalidState))

	_, err = svc.Update(ctx, teacher, assignment.ID, dto.StaffAssignmentPatch{Role: ptrString(models.StaffRoleMentor)})
	require.True(t, errors.Is(err, apperror.ErrForbidden))
}
