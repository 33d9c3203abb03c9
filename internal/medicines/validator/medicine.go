package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"medbook/pkg/logger"
	"medbook/pkg/model"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	messages := make([]string, 0, len(v))
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

type MedicineValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewMedicineValidator(log *logger.Logger) *MedicineValidator {
	log.Info("Medicine validator initialized successfully")
	return &MedicineValidator{
		validate: validator.New(),
		logger:   log,
	}
}

func (v *MedicineValidator) ValidatePrescription(p *model.Prescription) error {
	return v.check(p)
}

func (v *MedicineValidator) ValidateOrder(o *model.MedicineOrder) error {
	return v.check(o)
}

// ValidateEmail checks a bare patient email for the read-only lookups.
func (v *MedicineValidator) ValidateEmail(email string) error {
	if err := v.validate.Var(email, "required,email"); err != nil {
		return ValidationErrors{{Field: "PatientEmail", Message: "PatientEmail must be a valid email address"}}
	}
	return nil
}

func (v *MedicineValidator) check(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	var out ValidationErrors
	for _, fe := range validationErrs {
		message := fe.Error()
		switch fe.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", fe.Field())
		case "email":
			message = fmt.Sprintf("%s must be a valid email address", fe.Field())
		case "max":
			if fe.Kind() == reflect.Int {
				message = fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
			} else {
				message = fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
			}
		case "min":
			message = fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
		}
		out = append(out, ValidationError{Field: fe.Field(), Message: message})
	}
	return out
}
