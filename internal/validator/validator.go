// internal/validator/validator.go
package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"finance-tracker/internal/domain"

	"github.com/go-playground/validator/v10"
)

var Validate *validator.Validate

var (
	nonBlank = regexp.MustCompile(`\S`)
	ticker   = regexp.MustCompile(`^[A-Z0-9-]{2,10}$`)
)

func init() {
	Validate = validator.New()

	// "2025-01"
	_ = Validate.RegisterValidation("yearmonth", func(fl validator.FieldLevel) bool {
		_, err := time.Parse("2006-01", fl.Field().String())
		return err == nil
	})

	_ = Validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return nonBlank.MatchString(fl.Field().String())
	})

	// upper-cased asset code, e.g. PETR4, BTC, NTN-B
	_ = Validate.RegisterValidation("ticker", func(fl validator.FieldLevel) bool {
		return ticker.MatchString(fl.Field().String())
	})

	_ = Validate.RegisterValidation("kind", func(fl validator.FieldLevel) bool {
		return domain.Kind(fl.Field().String()).Valid()
	})

	_ = Validate.RegisterValidation("assettype", func(fl validator.FieldLevel) bool {
		return domain.AssetType(fl.Field().String()).Valid()
	})
}

// Check validates v and folds field errors into one ErrInvalidInput.
func Check(v any) error {
	err := Validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, describe(e))
	}
	return fmt.Errorf("%w: %s", domain.ErrInvalidInput, strings.Join(msgs, "; "))
}

func describe(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", e.Field())
	case "yearmonth":
		return fmt.Sprintf("%s must be in YYYY-MM format", e.Field())
	case "notblank":
		return fmt.Sprintf("%s must not be blank", e.Field())
	case "ticker":
		return fmt.Sprintf("%s must be 2-10 letters, digits or '-'", e.Field())
	case "kind":
		return fmt.Sprintf("%s must be income or expense", e.Field())
	case "assettype":
		return fmt.Sprintf("%s must be one of equity, fund, crypto, fixed-income, etf", e.Field())
	case "max":
		return fmt.Sprintf("%s is too long (max %s)", e.Field(), e.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", e.Field(), e.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", e.Field(), e.Param())
	default:
		return fmt.Sprintf("%s is invalid", e.Field())
	}
}
