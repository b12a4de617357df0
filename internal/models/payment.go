package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/noah-isme/edu-center-api/internal/apperror"
)

// PaymentStatus is the lifecycle of a payment.
type PaymentStatus string

// Payment statuses.
const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
	PaymentStatusCanceled  PaymentStatus = "canceled"
)

// Payment types.
const (
	PaymentTypeTuition      = "tuition"
	PaymentTypeRegistration = "registration"
	PaymentTypeMaterial     = "material"
	PaymentTypeExam         = "exam"
	PaymentTypeOther        = "other"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:   {PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusCanceled},
	PaymentStatusCompleted: {PaymentStatusRefunded},
}

// Payment is a charge owed or paid by a user.
type Payment struct {
	ID                   uint              `gorm:"primaryKey" json:"id"`
	UserID               uint              `gorm:"not null;index" json:"user_id"`
	CourseID             *uint             `gorm:"index" json:"course_id"`
	Amount               float64           `gorm:"not null" json:"amount"`
	Currency             string            `gorm:"size:3;not null;default:USD" json:"currency"`
	Method               string            `gorm:"size:32;not null" json:"method"`
	Status               PaymentStatus     `gorm:"size:16;not null;index" json:"status"`
	Type                 string            `gorm:"size:32;not null" json:"type"`
	Reference            string            `gorm:"size:64;uniqueIndex" json:"reference"`
	TransactionReference string            `gorm:"size:128" json:"transaction_reference"`
	Description          string            `gorm:"type:text" json:"description"`
	TaxAmount            float64           `gorm:"not null;default:0" json:"tax_amount"`
	DiscountAmount       float64           `gorm:"not null;default:0" json:"discount_amount"`
	InvoiceNumber        string            `gorm:"size:64" json:"invoice_number"`
	PaymentDate          *time.Time        `json:"payment_date"`
	BillingName          string            `gorm:"size:255" json:"billing_name"`
	BillingAddress       string            `gorm:"size:255" json:"billing_address"`
	BillingCity          string            `gorm:"size:128" json:"billing_city"`
	BillingCountry       string            `gorm:"size:64" json:"billing_country"`
	BillingPostalCode    string            `gorm:"size:32" json:"billing_postal_code"`
	FailureReason        string            `gorm:"type:text" json:"failure_reason"`
	Metadata             datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	Audit
}

// Total is amount plus tax minus discount.
func (p Payment) Total() float64 {
	return p.Amount + p.TaxAmount - p.DiscountAmount
}

// TransitionTo applies a one-directional status change.
func (p *Payment) TransitionTo(next PaymentStatus, now time.Time) error {
	for _, allowed := range paymentTransitions[p.Status] {
		if allowed == next {
			p.Status = next
			if next == PaymentStatusCompleted {
				paidAt := now
				p.PaymentDate = &paidAt
			}
			return nil
		}
	}
	return apperror.Newf(apperror.KindInvalidState, "cannot move payment from %q to %q", p.Status, next)
}
