package service

import (
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/edu-center-api/internal/apperror"
)

// validatePayload runs struct validation and reports failures as validation errors.
// The validator error stays wrapped so handlers can render field details.
func validatePayload(validate *validator.Validate, payload interface{}) error {
	if validate == nil {
		return nil
	}
	if err := validate.Struct(payload); err != nil {
		return apperror.Wrap(apperror.KindValidation, err, "invalid payload")
	}
	return nil
}
