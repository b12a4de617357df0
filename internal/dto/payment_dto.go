package dto

// PaymentCreateRequest records a pending payment.
type PaymentCreateRequest struct {
	UserID            uint                   `json:"user_id" validate:"required,gt=0"`
	CourseID          *uint                  `json:"course_id" validate:"omitempty,gt=0"`
	Amount            float64                `json:"amount" validate:"gte=0"`
	Currency          string                 `json:"currency" validate:"omitempty,len=3,uppercase"`
	Method            string                 `json:"method" validate:"required,oneof=cash card bank_transfer e_wallet other"`
	Type              string                 `json:"type" validate:"required,oneof=tuition registration material exam other"`
	Description       string                 `json:"description" validate:"omitempty,max=2000"`
	TaxAmount         float64                `json:"tax_amount" validate:"gte=0"`
	DiscountAmount    float64                `json:"discount_amount" validate:"gte=0"`
	InvoiceNumber     string                 `json:"invoice_number" validate:"omitempty,max=64"`
	BillingName       string                 `json:"billing_name" validate:"omitempty,max=255"`
	BillingAddress    string                 `json:"billing_address" validate:"omitempty,max=255"`
	BillingCity       string                 `json:"billing_city" validate:"omitempty,max=128"`
	BillingCountry    string                 `json:"billing_country" validate:"omitempty,max=64"`
	BillingPostalCode string                 `json:"billing_postal_code" validate:"omitempty,max=32"`
	Metadata          map[string]interface{} `json:"metadata"`
}

// PaymentTransitionRequest carries optional details for a status change.
type PaymentTransitionRequest struct {
	TransactionReference string `json:"transaction_reference" validate:"omitempty,max=128"`
	Reason               string `json:"reason" validate:"omitempty,max=2000"`
}

// PaymentListRequest filters payments.
type PaymentListRequest struct {
	ListQuery
	UserID   uint   `query:"user_id"`
	CourseID uint   `query:"course_id"`
	Status   string `query:"status" validate:"omitempty,oneof=pending completed failed refunded canceled"`
	Type     string `query:"type"`
}
