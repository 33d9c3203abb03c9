package validator

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"medbook/pkg/logger"
	"medbook/pkg/model"
	"medbook/pkg/slot"

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
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

type DoctorValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewDoctorValidator(log *logger.Logger) *DoctorValidator {
	v := validator.New()

	customValidations := map[string]validator.Func{
		"slot_date":   validateSlotDate,
		"slot_clock":  validateSlotClock,
		"system_slot": validateSystemSlot,
	}
	for tag, fn := range customValidations {
		if err := v.RegisterValidation(tag, fn); err != nil {
			log.Fatal("Failed to register custom validator", "tag", tag, "error", err)
		}
	}

	log.Info("Doctor validator initialized successfully")

	return &DoctorValidator{
		validate: v,
		logger:   log,
	}
}

func validateSlotDate(fl validator.FieldLevel) bool {
	date := fl.Field().String()
	if len(date) != len(slot.DateLayout) {
		return false
	}
	_, err := time.Parse(slot.DateLayout, date)
	return err == nil
}

func validateSlotClock(fl validator.FieldLevel) bool {
	clock := fl.Field().String()
	if len(clock) != len(slot.ClockLayout) {
		return false
	}
	_, err := time.Parse(slot.ClockLayout, clock)
	return err == nil
}

// validateSystemSlot accepts "YYYY-MM-DD-HH:MM"; at least four dash
// segments are required.
func validateSystemSlot(fl validator.FieldLevel) bool {
	return slot.Parse(fl.Field().String()).Kind() == slot.System
}

func (v *DoctorValidator) ValidateDoctor(doctor *model.Doctor) error {
	return v.check(doctor)
}

func (v *DoctorValidator) ValidateAvailabilityAdd(add *model.AvailabilityAdd) error {
	return v.check(add)
}

func (v *DoctorValidator) ValidateBookingRemoval(removal *model.BookingRemoval) error {
	return v.check(removal)
}

func (v *DoctorValidator) ValidateSystemSlot(value string) error {
	if err := v.validate.Var(value, "required,system_slot"); err != nil {
		return ValidationErrors{{Field: "slot", Message: "slot must have the form YYYY-MM-DD-HH:MM"}}
	}
	return nil
}

func (v *DoctorValidator) check(s any) error {
	if err := v.validate.Struct(s); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func (v *DoctorValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "email":
			message = fmt.Sprintf("%s must be a valid email address", err.Field())
		case "slot_date":
			message = fmt.Sprintf("%s must be a date in YYYY-MM-DD format", err.Field())
		case "slot_clock":
			message = fmt.Sprintf("%s must be a time in HH:MM format", err.Field())
		case "system_slot":
			message = fmt.Sprintf("%s must have the form YYYY-MM-DD-HH:MM", err.Field())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
