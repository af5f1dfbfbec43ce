package checkout

import (
	"testing"

	"github.com/angelmondragon/stockledger-backend/pkg/config"
	"github.com/angelmondragon/stockledger-backend/pkg/types"
	"github.com/stretchr/testify/require"
)

func validAddress() *types.ShippingAddress {
	return &types.ShippingAddress{
		FirstName:    "Ada",
		LastName:     "Lovelace",
		Email:        "ada@example.com",
		Street:       "Analytical Way",
		StreetNumber: "12",
		City:         "London",
		Zipcode:      "E1 6AN",
		CountryID:    44,
		Phone:        "+44 20 7946 0958",
	}
}

func TestAddressValidatorAcceptsCompleteAddress(t *testing.T) {
	t.Parallel()

	validator := NewAddressValidator(config.CheckoutConfig{PhoneMinDigits: 7})
	require.Empty(t, validator.Validate(validAddress()))
}

func TestAddressValidatorAggregatesAllFields(t *testing.T) {
	t.Parallel()

	validator := NewAddressValidator(config.CheckoutConfig{PhoneMinDigits: 7})

	fieldErrors := validator.Validate(&types.ShippingAddress{
		Email: "not-an-email",
		Phone: "12",
	})

	require.Contains(t, fieldErrors, "first_name")
	require.Contains(t, fieldErrors, "last_name")
	require.Contains(t, fieldErrors, "street")
	require.Contains(t, fieldErrors, "street_number")
	require.Contains(t, fieldErrors, "city")
	require.Contains(t, fieldErrors, "zipcode")
	require.Contains(t, fieldErrors, "country_id")
	require.Contains(t, fieldErrors, "email")
	require.Equal(t, []string{"must be a valid email address"}, fieldErrors["email"])
	require.Contains(t, fieldErrors, "phone")
	require.Contains(t, fieldErrors["phone"][0], "at least 7 digits")
}

func TestAddressValidatorPhoneDigits(t *testing.T) {
	t.Parallel()

	validator := NewAddressValidator(config.CheckoutConfig{PhoneMinDigits: 7})

	address := validAddress()
	address.Phone = "(020) 79-46"
	require.Empty(t, validator.Validate(address))

	address.Phone = "phone: 12345"
	fieldErrors := validator.Validate(address)
	require.Contains(t, fieldErrors, "phone")
}

func TestAddressValidatorNilAddress(t *testing.T) {
	t.Parallel()

	validator := NewAddressValidator(config.CheckoutConfig{})
	fieldErrors := validator.Validate(nil)
	require.Contains(t, fieldErrors, "shipping_address")
}

func TestAddressValidatorCountryID(t *testing.T) {
	t.Parallel()

	validator := NewAddressValidator(config.CheckoutConfig{PhoneMinDigits: 7})

	address := validAddress()
	address.CountryID = 0
	fieldErrors := validator.Validate(address)
	require.Contains(t, fieldErrors, "country_id")
}
