package service

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/edu-center-api/internal/apperror"
	"github.com/noah-isme/edu-center-api/internal/dto"
	"github.com/noah-isme/edu-center-api/internal/models"
	"github.com/noah-isme/edu-center-api/internal/observability"
	"github.com/noah-isme/edu-center-api/internal/repository"
)

// FileStorage abstracts the upload destination for material files.
type FileStorage interface {
	Upload(ctx context.Context, folder, name string, reader io.Reader) (string, error)
}

// MaterialService attaches links and uploaded files to courses.
type MaterialService interface {
	CreateLink(ctx context.Context, actor Actor, courseID uint, req dto.MaterialCreateRequest) (models.TeachingMaterial, error)
	Upload(ctx context.Context, actor Actor, courseID uint, req dto.MaterialCreateRequest, file *multipart.FileHeader) (models.TeachingMaterial, error)
	Get(ctx context.Context, actor Actor, id uint, includeDeleted bool) (models.TeachingMaterial, error)
	List(ctx context.Context, actor Actor, courseID uint, query dto.ListQuery) (dto.ListResponse[models.TeachingMaterial], error)
	Delete(ctx context.Context, actor Actor, id uint) error
}

type materialService struct {
	materials *lifecycle[models.TeachingMaterial, *models.TeachingMaterial]
	courses   *lifecycle[models.Course, *models.Course]
	lessons   *lifecycle[models.Lesson, *models.Lesson]
	storage   FileStorage
	maxSize   int64
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewMaterialService constructs the material service. A nil storage disables uploads.
func NewMaterialService(materials repository.AuditedRepository[models.TeachingMaterial], courses repository.AuditedRepository[models.Course], lessons repository.AuditedRepository[models.Lesson], storage FileStorage, maxSizeMB int, validate *validator.Validate, logger zerolog.Logger) MaterialService {
	if maxSizeMB <= 0 {
		maxSizeMB = 20
	}
	return &materialService{
		materials: newLifecycle[models.TeachingMaterial](materials, "material", time.Now),
		courses:   newLifecycle[models.Course](courses, "course", time.Now),
		lessons:   newLifecycle[models.Lesson](lessons, "lesson", time.Now),
		storage:   storage,
		maxSize:   int64(maxSizeMB) * 1024 * 1024,
		validator: validate,
		logger:    logger.With().Str("component", "material_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/edu-center-api/internal/service/material"),
	}
}

func (s *materialService) CreateLink(ctx context.Context, actor Actor, courseID uint, req dto.MaterialCreateRequest) (models.TeachingMaterial, error) {
	if err := s.authorizeTarget(ctx, actor, courseID, req); err != nil {
		return models.TeachingMaterial{}, err
	}
	if strings.TrimSpace(req.URL) == "" {
		return models.TeachingMaterial{}, apperror.Validation("url is required for link materials")
	}

	materialType := req.MaterialType
	if materialType == "" {
		materialType = models.MaterialTypeLink
	}

	material := models.TeachingMaterial{
		CourseID:     courseID,
		LessonID:     req.LessonID,
		Title:        strings.TrimSpace(req.Title),
		Description:  req.Description,
		MaterialType: materialType,
		URL:          strings.TrimSpace(req.URL),
	}
	if err := s.materials.create(ctx, actor, &material); err != nil {
		return models.TeachingMaterial{}, err
	}
	return material, nil
}

func (s *materialService) Upload(ctx context.Context, actor Actor, courseID uint, req dto.MaterialCreateRequest, file *multipart.FileHeader) (models.TeachingMaterial, error) {
	ctx, span := s.tracer.Start(ctx, "materials.upload", trace.WithAttributes(
		attribute.Int64("material.course_id", int64(courseID)),
		attribute.Int64("upload.max_bytes", s.maxSize),
	))
	defer span.End()

	if err := s.authorizeTarget(ctx, actor, courseID, req); err != nil {
		return models.TeachingMaterial{}, err
	}
	if s.storage == nil {
		return models.TeachingMaterial{}, apperror.New(apperror.KindUnavailable, "file storage is not configured")
	}
	if file == nil {
		return models.TeachingMaterial{}, apperror.Validation("file is required")
	}

	span.SetAttributes(
		attribute.String("upload.original_name", strings.TrimSpace(file.Filename)),
		attribute.Int64("upload.request_size", file.Size),
	)

	if file.Size > s.maxSize {
		return models.TeachingMaterial{}, s.reject(span, "size", apperror.Validation("file exceeds maximum allowed size"))
	}

	handle, err := file.Open()
	if err != nil {
		span.RecordError(err)
		return models.TeachingMaterial{}, apperror.Internal(err)
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, s.maxSize+1)); err != nil {
		span.RecordError(err)
		return models.TeachingMaterial{}, apperror.Internal(err)
	}
	if int64(buf.Len()) > s.maxSize {
		return models.TeachingMaterial{}, s.reject(span, "size", apperror.Validation("file exceeds maximum allowed size"))
	}

	detected := mimetype.Detect(buf.Bytes())
	materialType, allowed := classifyMaterial(detected)
	span.SetAttributes(attribute.String("upload.detected_mime", detected.String()))
	if !allowed {
		return models.TeachingMaterial{}, s.reject(span, "type", apperror.Newf(apperror.KindValidation, "file type %s is not allowed", detected.String()))
	}
	if err := s.scan(buf.Bytes(), detected); err != nil {
		return models.TeachingMaterial{}, s.reject(span, "scan", err)
	}

	name := sanitizeFileName(file.Filename, detected.Extension())
	url, err := s.storage.Upload(ctx, fmt.Sprintf("course-%d", courseID), name, bytes.NewReader(buf.Bytes()))
	if err != nil {
		s.logger.Error().Err(err).Uint("course_id", courseID).Msg("material upload failed")
		return models.TeachingMaterial{}, s.reject(span, "storage", apperror.Wrap(apperror.KindUnavailable, err, "file storage unavailable"))
	}

	if req.MaterialType != "" {
		materialType = req.MaterialType
	}
	material := models.TeachingMaterial{
		CourseID:     courseID,
		LessonID:     req.LessonID,
		Title:        strings.TrimSpace(req.Title),
		Description:  req.Description,
		MaterialType: materialType,
		URL:          url,
		MimeType:     detected.String(),
		SizeBytes:    int64(buf.Len()),
	}
	if err := s.materials.create(ctx, actor, &material); err != nil {
		span.RecordError(err)
		return models.TeachingMaterial{}, err
	}

	span.SetStatus(codes.Ok, "stored")
	return material, nil
}

func (s *materialService) Get(ctx context.Context, actor Actor, id uint, includeDeleted bool) (models.TeachingMaterial, error) {
	if err := Authorize(actor); err != nil {
		return models.TeachingMaterial{}, err
	}
	return s.materials.getVisible(ctx, actor, id, includeDeleted)
}

func (s *materialService) List(ctx context.Context, actor Actor, courseID uint, query dto.ListQuery) (dto.ListResponse[models.TeachingMaterial], error) {
	if err := Authorize(actor); err != nil {
		return dto.ListResponse[models.TeachingMaterial]{}, err
	}
	return s.materials.list(ctx, actor, query, repository.FieldEquals("course_id", courseID))
}

func (s *materialService) Delete(ctx context.Context, actor Actor, id uint) error {
	if err := Authorize(actor, models.PermissionMaterialManage); err != nil {
		return err
	}
	_, err := s.materials.softDelete(ctx, actor, id)
	return err
}

func (s *materialService) authorizeTarget(ctx context.Context, actor Actor, courseID uint, req dto.MaterialCreateRequest) error {
	if err := Authorize(actor, models.PermissionMaterialManage); err != nil {
		return err
	}
	if err := validatePayload(s.validator, req); err != nil {
		return err
	}
	if _, err := s.courses.get(ctx, courseID); err != nil {
		return err
	}
	if req.LessonID != nil {
		lesson, err := s.lessons.get(ctx, *req.LessonID)
		if err != nil {
			return err
		}
		if lesson.CourseID != courseID {
			return apperror.Validation("lesson does not belong to course")
		}
	}
	return nil
}

func (s *materialService) reject(span trace.Span, reason string, err error) error {
	observability.UploadRejections().WithLabelValues(reason).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, reason)
	return err
}

// scan rejects archives whose expanded size is disproportionate to the upload limit.
func (s *materialService) scan(payload []byte, detected *mimetype.MIME) error {
	if !isZipContainer(detected) {
		return nil
	}
	reader, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return apperror.Validation("archive could not be read")
	}
	var totalUncompressed uint64
	for _, f := range reader.File {
		totalUncompressed += f.UncompressedSize64
		if totalUncompressed > uint64(s.maxSize*20) {
			return apperror.Validation("archive expands beyond the allowed size")
		}
	}
	return nil
}

func isZipContainer(detected *mimetype.MIME) bool {
	for m := detected; m != nil; m = m.Parent() {
		if m.Is("application/zip") {
			return true
		}
	}
	return false
}

// classifyMaterial maps a detected MIME type to a material type.
func classifyMaterial(detected *mimetype.MIME) (string, bool) {
	mime := detected.String()
	switch {
	case strings.HasPrefix(mime, "image/"):
		return models.MaterialTypeImage, true
	case strings.HasPrefix(mime, "video/"):
		return models.MaterialTypeVideo, true
	case strings.HasPrefix(mime, "text/plain"):
		return models.MaterialTypeDocument, true
	}

	for m := detected; m != nil; m = m.Parent() {
		switch m.String() {
		case "application/pdf",
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			"application/vnd.openxmlformats-officedocument.presentationml.presentation",
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			"application/vnd.oasis.opendocument.text":
			return models.MaterialTypeDocument, true
		case "application/zip":
			return models.MaterialTypeOther, true
		}
	}
	return "", false
}

func sanitizeFileName(name, extension string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	base = strings.ToLower(base)
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, base)
	base = strings.Trim(base, "-")
	if base == "" {
		base = "material"
	}
	if extension == "" {
		extension = strings.ToLower(filepath.Ext(name))
	}
	if extension == "" {
		extension = ".bin"
	}
	return base + extension
}
