package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	ErrValidationFailed       = errors.New("validation failed")
	ErrFieldRequired          = errors.New("field is required")
	ErrFieldMinLength         = errors.New("field below minimum length")
	ErrFieldMaxLength         = errors.New("field exceeds maximum length")
	ErrFieldEmail             = errors.New("field must be a valid email")
	ErrFieldPositiveAmount    = errors.New("field must be a positive amount")
	ErrBodyParseFailed        = errors.New("failed to parse request body")
	ErrUnsupportedContentType = errors.New("Content-Type must be application/json")
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
	errValidate  error
)

func initValidator() (*validator.Validate, error) {
	vld := validator.New(validator.WithRequiredStructEnabled())

	// decimal.Decimal is read directly; registering a custom type func that
	// returns the same type would loop forever.
	if err := vld.RegisterValidation("positive_decimal", func(fl validator.FieldLevel) bool {
		value, ok := fl.Field().Interface().(decimal.Decimal)
		if !ok {
			return false
		}
		return value.IsPositive()
	}); err != nil {
		return nil, fmt.Errorf("failed to register 'positive_decimal': %w", err)
	}

	return vld, nil
}

func getValidator() (*validator.Validate, error) {
	validateOnce.Do(func() {
		validate, errValidate = initValidator()
	})
	return validate, errValidate
}

// ValidateStruct checks payload against its validate tags and reports the
// first failing field by its snake_case name.
func ValidateStruct(payload any) error {
	vld, err := getValidator()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}

	if err := vld.Struct(payload); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			return formatValidationError(validationErrors[0])
		}
		return fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}
	return nil
}

var validationErrorFormatters = map[string]func(field, param string) error{
	"required": func(field, _ string) error {
		return fmt.Errorf("%w: '%s'", ErrFieldRequired, field)
	},
	"min": func(field, param string) error {
		return fmt.Errorf("%w: '%s' must be at least %s characters", ErrFieldMinLength, field, param)
	},
	"max": func(field, param string) error {
		return fmt.Errorf("%w: '%s' must be at most %s characters", ErrFieldMaxLength, field, param)
	},
	"email": func(field, _ string) error {
		return fmt.Errorf("%w: '%s'", ErrFieldEmail, field)
	},
	"positive_decimal": func(field, _ string) error {
		return fmt.Errorf("%w: '%s'", ErrFieldPositiveAmount, field)
	},
}

func formatValidationError(fe validator.FieldError) error {
	field := toSnakeCase(fe.Field())
	if formatter, ok := validationErrorFormatters[fe.Tag()]; ok {
		return formatter(field, fe.Param())
	}
	return fmt.Errorf("%w: '%s' failed '%s' check", ErrValidationFailed, field, fe.Tag())
}

func toSnakeCase(s string) string {
	var result strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' && !(s[i-1] >= 'A' && s[i-1] <= 'Z') {
			result.WriteByte('_')
		}
		result.WriteRune(r)
	}
	return strings.ToLower(result.String())
}

// DecodeAndValidate reads a JSON body into payload and validates it. Unknown
// fields are rejected.
func DecodeAndValidate(r *http.Request, payload any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || mediaType != "application/json" {
			return ErrUnsupportedContentType
		}
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(payload); err != nil {
		return fmt.Errorf("%w: %w", ErrBodyParseFailed, err)
	}
	return ValidateStruct(payload)
}
