package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/edu-center-api/internal/apperror"
	"github.com/noah-isme/edu-center-api/internal/database"
	"github.com/noah-isme/edu-center-api/internal/dto"
	"github.com/noah-isme/edu-center-api/internal/models"
	"github.com/noah-isme/edu-center-api/internal/observability"
	"github.com/noah-isme/edu-center-api/internal/repository"
)

// PaymentService records charges and moves them through their one-way lifecycle.
type PaymentService interface {
	Create(ctx context.Context, actor Actor, req dto.PaymentCreateRequest) (models.Payment, error)
	Complete(ctx context.Context, actor Actor, id uint, req dto.PaymentTransitionRequest) (models.Payment, error)
	Fail(ctx context.Context, actor Actor, id uint, req dto.PaymentTransitionRequest) (models.Payment, error)
	Cancel(ctx context.Context, actor Actor, id uint, req dto.PaymentTransitionRequest) (models.Payment, error)
	Refund(ctx context.Context, actor Actor, id uint, req dto.PaymentTransitionRequest) (models.Payment, error)
	Get(ctx context.Context, actor Actor, id uint, includeDeleted bool) (models.Payment, error)
	List(ctx context.Context, actor Actor, req dto.PaymentListRequest) (dto.ListResponse[models.Payment], error)
	Delete(ctx context.Context, actor Actor, id uint) error
}

type paymentService struct {
	payments   *lifecycle[models.Payment, *models.Payment]
	users      repository.UserRepository
	transactor database.Transactor
	notifier   Notifier
	activity   ActivityRecorder
	validator  *validator.Validate
	logger     zerolog.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

// NewPaymentService constructs the payment service.
func NewPaymentService(payments repository.AuditedRepository[models.Payment], users repository.UserRepository, transactor database.Transactor, notifier Notifier, activity ActivityRecorder, validate *validator.Validate, logger zerolog.Logger) PaymentService {
	return newPaymentService(payments, users, transactor, notifier, activity, validate, logger, time.Now)
}

func newPaymentService(payments repository.AuditedRepository[models.Payment], users repository.UserRepository, transactor database.Transactor, notifier Notifier, activity ActivityRecorder, validate *validator.Validate, logger zerolog.Logger, now func() time.Time) *paymentService {
	return &paymentService{
		payments:   newLifecycle[models.Payment](payments, "payment", now),
		users:      users,
		transactor: transactor,
		notifier:   notifier,
		activity:   activity,
		validator:  validate,
		logger:     logger.With().Str("component", "payment_service").Logger(),
		tracer:     otel.Tracer("github.com/noah-isme/edu-center-api/internal/service/payment"),
		now:        now,
	}
}

// Create records a pending payment. Users without payment.manage may only bill themselves.
func (s *paymentService) Create(ctx context.Context, actor Actor, req dto.PaymentCreateRequest) (models.Payment, error) {
	if err := Authorize(actor); err != nil {
		return models.Payment{}, err
	}
	if err := validatePayload(s.validator, req); err != nil {
		return models.Payment{}, err
	}
	if err := authorizeOwnerOr(actor, req.UserID, models.PermissionPaymentManage); err != nil {
		return models.Payment{}, err
	}
	if req.DiscountAmount > req.Amount+req.TaxAmount {
		return models.Payment{}, apperror.Validation("discount must not exceed amount plus tax")
	}

	if _, err := s.users.GetByID(ctx, req.UserID, false); err != nil {
		return models.Payment{}, apperror.FromStorage(err, "user")
	}

	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = "USD"
	}

	payment := models.Payment{
		UserID:            req.UserID,
		CourseID:          req.CourseID,
		Amount:            req.Amount,
		Currency:          currency,
		Method:            req.Method,
		Status:            models.PaymentStatusPending,
		Type:              req.Type,
		Reference:         newPaymentReference(),
		Description:       req.Description,
		TaxAmount:         req.TaxAmount,
		DiscountAmount:    req.DiscountAmount,
		InvoiceNumber:     req.InvoiceNumber,
		BillingName:       req.BillingName,
		BillingAddress:    req.BillingAddress,
		BillingCity:       req.BillingCity,
		BillingCountry:    req.BillingCountry,
		BillingPostalCode: req.BillingPostalCode,
		Metadata:          sanitizeMetadata(req.Metadata),
	}
	if err := s.payments.create(ctx, actor, &payment); err != nil {
		return models.Payment{}, err
	}

	observability.PaymentTransitions().WithLabelValues(string(payment.Status)).Inc()
	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     "payment.created",
		EntityType: "payment",
		EntityID:   &payment.ID,
		Metadata:   map[string]interface{}{"user_id": payment.UserID, "amount": payment.Amount, "currency": payment.Currency},
	})
	return payment, nil
}

func (s *paymentService) Complete(ctx context.Context, actor Actor, id uint, req dto.PaymentTransitionRequest) (models.Payment, error) {
	if err := Authorize(actor, models.PermissionPaymentManage); err != nil {
		return models.Payment{}, err
	}
	return s.transition(ctx, actor, id, models.PaymentStatusCompleted, req, nil)
}

func (s *paymentService) Fail(ctx context.Context, actor Actor, id uint, req dto.PaymentTransitionRequest) (models.Payment, error) {
	if err := Authorize(actor, models.PermissionPaymentManage); err != nil {
		return models.Payment{}, err
	}
	return s.transition(ctx, actor, id, models.PaymentStatusFailed, req, nil)
}

// Cancel is open to the payer as well as payment managers.
func (s *paymentService) Cancel(ctx context.Context, actor Actor, id uint, req dto.PaymentTransitionRequest) (models.Payment, error) {
	if err := Authorize(actor); err != nil {
		return models.Payment{}, err
	}
	return s.transition(ctx, actor, id, models.PaymentStatusCanceled, req, func(payment models.Payment) error {
		return authorizeOwnerOr(actor, payment.UserID, models.PermissionPaymentManage)
	})
}

func (s *paymentService) Refund(ctx context.Context, actor Actor, id uint, req dto.PaymentTransitionRequest) (models.Payment, error) {
	if err := Authorize(actor, models.PermissionPaymentManage); err != nil {
		return models.Payment{}, err
	}
	return s.transition(ctx, actor, id, models.PaymentStatusRefunded, req, nil)
}

func (s *paymentService) transition(ctx context.Context, actor Actor, id uint, next models.PaymentStatus, req dto.PaymentTransitionRequest, check func(models.Payment) error) (models.Payment, error) {
	if err := validatePayload(s.validator, req); err != nil {
		return models.Payment{}, err
	}

	ctx, span := s.tracer.Start(ctx, "payment.transition", trace.WithAttributes(
		attribute.Int64("payment.id", int64(id)),
		attribute.String("payment.next_status", string(next)),
	))
	defer span.End()

	var payment models.Payment
	err := s.transactor.WithinTransaction(ctx, func(tx *gorm.DB) error {
		payments := s.payments.withRepo(s.payments.repo.WithTx(tx))
		loaded, err := payments.get(ctx, id)
		if err != nil {
			return err
		}
		if check != nil {
			if err := check(loaded); err != nil {
				return err
			}
		}
		payment = loaded

		previous := payment.Status
		if err := payment.TransitionTo(next, s.now().UTC()); err != nil {
			return err
		}
		if ref := strings.TrimSpace(req.TransactionReference); ref != "" {
			payment.TransactionReference = ref
		}
		if next == models.PaymentStatusFailed {
			payment.FailureReason = strings.TrimSpace(req.Reason)
		}
		return payments.updateIfStatus(ctx, actor, &payment, string(previous))
	})
	if err != nil {
		span.RecordError(err)
		return models.Payment{}, err
	}

	observability.PaymentTransitions().WithLabelValues(string(payment.Status)).Inc()
	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     "payment." + string(payment.Status),
		EntityType: "payment",
		EntityID:   &payment.ID,
		Metadata:   map[string]interface{}{"reason": strings.TrimSpace(req.Reason)},
	})
	if payment.UserID != actor.ID {
		notify(ctx, s.notifier, s.logger, payment.UserID, NotificationPaymentUpdated,
			fmt.Sprintf("Payment %s is now %s.", payment.Reference, payment.Status))
	}
	return payment, nil
}

func (s *paymentService) Get(ctx context.Context, actor Actor, id uint, includeDeleted bool) (models.Payment, error) {
	if err := Authorize(actor); err != nil {
		return models.Payment{}, err
	}
	payment, err := s.payments.getVisible(ctx, actor, id, includeDeleted)
	if err != nil {
		return models.Payment{}, err
	}
	if err := authorizeOwnerOr(actor, payment.UserID, models.PermissionPaymentManage); err != nil {
		return models.Payment{}, err
	}
	return payment, nil
}

func (s *paymentService) List(ctx context.Context, actor Actor, req dto.PaymentListRequest) (dto.ListResponse[models.Payment], error) {
	if err := Authorize(actor); err != nil {
		return dto.ListResponse[models.Payment]{}, err
	}
	if err := validatePayload(s.validator, req); err != nil {
		return dto.ListResponse[models.Payment]{}, err
	}

	userID := req.UserID
	if !actor.Can(models.PermissionPaymentManage) {
		userID = actor.ID
	}

	var scopes []repository.Scope
	if userID > 0 {
		scopes = append(scopes, repository.FieldEquals("user_id", userID))
	}
	if req.CourseID > 0 {
		scopes = append(scopes, repository.FieldEquals("course_id", req.CourseID))
	}
	if req.Status != "" {
		scopes = append(scopes, repository.FieldEquals("status", req.Status))
	}
	if req.Type != "" {
		scopes = append(scopes, repository.FieldEquals("type", req.Type))
	}
	return s.payments.list(ctx, actor, req.ListQuery, scopes...)
}

func (s *paymentService) Delete(ctx context.Context, actor Actor, id uint) error {
	if err := Authorize(actor, models.PermissionPaymentManage); err != nil {
		return err
	}
	payment, err := s.payments.softDelete(ctx, actor, id)
	if err != nil {
		return err
	}
	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     "payment.deleted",
		EntityType: "payment",
		EntityID:   &payment.ID,
	})
	return nil
}

func newPaymentReference() string {
	return "PAY-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:16])
}
