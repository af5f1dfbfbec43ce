package types

import (
	"database/sql/driver"
	"encoding/json"
)

// ShippingAddress is the destination snapshot stored on an order. Validation
// rules live in the checkout package; this type only carries the data.
type ShippingAddress struct {
	FirstName    string `json:"first_name" validate:"required"`
	LastName     string `json:"last_name" validate:"required"`
	Email        string `json:"email" validate:"required,email"`
	Street       string `json:"street" validate:"required"`
	StreetNumber string `json:"street_number" validate:"required"`
	City         string `json:"city" validate:"required"`
	Zipcode      string `json:"zipcode" validate:"required"`
	CountryID    int64  `json:"country_id" validate:"required,gt=0"`
	Phone        string `json:"phone" validate:"required"`
}

// Value serializes the address to JSON.
func (a *ShippingAddress) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	return json.Marshal(a)
}

// Scan decodes JSONB into the address struct.
func (a *ShippingAddress) Scan(value interface{}) error {
	if value == nil {
		*a = ShippingAddress{}
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, a)
}
