package checkout

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/angelmondragon/stockledger-backend/pkg/config"
	"github.com/angelmondragon/stockledger-backend/pkg/types"
	"github.com/go-playground/validator/v10"
)

// AddressValidator checks shipping addresses field by field and reports every
// failure at once, keyed by the JSON field name.
type AddressValidator struct {
	validate       *validator.Validate
	phoneMinDigits int
}

// NewAddressValidator wires the struct-tag validator plus the phone digit
// rule, which tag syntax cannot express.
func NewAddressValidator(cfg config.CheckoutConfig) *AddressValidator {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	minDigits := cfg.PhoneMinDigits
	if minDigits <= 0 {
		minDigits = 7
	}

	return &AddressValidator{validate: validate, phoneMinDigits: minDigits}
}

// Validate returns field-keyed error messages; an empty map means the address
// is acceptable.
func (v *AddressValidator) Validate(address *types.ShippingAddress) map[string][]string {
	fieldErrors := make(map[string][]string)

	if address == nil {
		fieldErrors["shipping_address"] = []string{"shipping address is required"}
		return fieldErrors
	}

	if err := v.validate.Struct(address); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			for _, fieldError := range validationErrors {
				field := fieldError.Field()
				fieldErrors[field] = append(fieldErrors[field], messageFor(fieldError))
			}
		} else {
			fieldErrors["shipping_address"] = []string{err.Error()}
		}
	}

	if address.Phone != "" && countDigits(address.Phone) < v.phoneMinDigits {
		fieldErrors["phone"] = append(fieldErrors["phone"],
			fmt.Sprintf("must contain at least %d digits", v.phoneMinDigits))
	}

	return fieldErrors
}

func messageFor(fieldError validator.FieldError) string {
	switch fieldError.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fieldError.Param())
	default:
		return fmt.Sprintf("failed %q validation", fieldError.Tag())
	}
}

func countDigits(value string) int {
	count := 0
	for _, r := range value {
		if unicode.IsDigit(r) {
			count++
		}
	}
	return count
}
