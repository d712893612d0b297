package api

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(validateProposition, CreatePropositionRequest{})
	return v
}

// validateProposition enforces the offer-type dependent fields.
func validateProposition(sl validator.StructLevel) {
	req := sl.Current().Interface().(CreatePropositionRequest)
	switch req.OfferType {
	case OfferBuy:
		if req.OfferPrice == nil {
			sl.ReportError(req.OfferPrice, "OfferPrice", "offer_price", "required_for_buy", "")
		}
	case OfferTrade, OfferSwap:
		if req.OfferSneakerID == "" {
			sl.ReportError(req.OfferSneakerID, "OfferSneakerID", "offer_sneaker_id", "required_for_trade", "")
		}
		if req.OfferSneakerID != "" && req.OfferSneakerID == req.SneakerID {
			sl.ReportError(req.OfferSneakerID, "OfferSneakerID", "offer_sneaker_id", "distinct_listing", "")
		}
	}
}

// ValidationError lists every field that failed validation.
type ValidationError struct {
	Fields []string
	msgs   []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.msgs, "; ")
}

// IsValidationError reports whether err is or wraps a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Validate checks a request struct against its validation tags.
func Validate(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	ve := &ValidationError{}
	for _, fe := range fieldErrs {
		ve.Fields = append(ve.Fields, fe.Field())
		ve.msgs = append(ve.msgs, formatFieldError(fe))
	}
	return ve
}

// formatFieldError formats a single field validation error
func formatFieldError(e validator.FieldError) string {
	field := strings.ToLower(e.Field())

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, e.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email", field)
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "required_for_buy":
		return "offer_price is required for buy offers"
	case "required_for_trade":
		return "offer_sneaker_id is required for trade and swap offers"
	case "distinct_listing":
		return "offer_sneaker_id must differ from sneaker_id"
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
