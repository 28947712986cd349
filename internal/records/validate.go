package records

import (
	"fmt"
	"math"
	"strings"

	"github.com/go-openapi/strfmt"

	"flakeload/pkg/errors"
)

// ValidateCustomer checks required fields, formats and the locale's
// postal code / state consistency.
func ValidateCustomer(c Customer) error {
	required := map[string]string{
		"customerId":         c.CustomerID,
		"firstName":          c.FirstName,
		"lastName":           c.LastName,
		"email":              c.Email,
		"phone":              c.Phone,
		"address.street":     c.Address.Street,
		"address.city":       c.Address.City,
		"address.state":      c.Address.State,
		"address.postalCode": c.Address.PostalCode,
		"address.country":    c.Address.Country,
	}
	for field, v := range required {
		if strings.TrimSpace(v) == "" {
			return invalid("customer", c.CustomerID, fmt.Sprintf("%s is empty", field))
		}
	}

	if !strfmt.Default.Validates("uuid", c.CustomerID) {
		return invalid("customer", c.CustomerID, "customerId is not a UUID")
	}
	if !strfmt.Default.Validates("email", c.Email) {
		return invalid("customer", c.CustomerID, fmt.Sprintf("email %q is not valid", c.Email))
	}
	if !phonePattern.MatchString(c.Phone) {
		return invalid("customer", c.CustomerID, fmt.Sprintf("phone %q is not valid", c.Phone))
	}

	s, err := strategyForCountry(c.Address.Country)
	if err != nil {
		return err
	}
	if err := s.checkAddress(c.Address); err != nil {
		return invalid("customer", c.CustomerID, err.Error()).WithContext("locale", string(s.locale()))
	}
	return nil
}

// ValidateOrder checks identifiers, item quantities and that the total
// matches the items.
func ValidateOrder(o Order) error {
	if !strfmt.Default.Validates("uuid", o.OrderID) {
		return invalid("order", o.OrderID, "orderId is not a UUID")
	}
	if !strfmt.Default.Validates("uuid", o.CustomerID) {
		return invalid("order", o.OrderID, "customerId is not a UUID")
	}
	if o.OrderDate.IsZero() || !strfmt.Default.Validates("date-time", strfmt.DateTime(o.OrderDate).String()) {
		return invalid("order", o.OrderID, "orderDate is not set")
	}
	if len(o.Items) == 0 {
		return invalid("order", o.OrderID, "order has no items")
	}

	var total float64
	for i, item := range o.Items {
		switch {
		case item.ProductID == "" || item.ProductName == "":
			return invalid("order", o.OrderID, fmt.Sprintf("item %d has no product", i))
		case item.Quantity <= 0:
			return invalid("order", o.OrderID, fmt.Sprintf("item %d has quantity %d", i, item.Quantity))
		case item.Price < 0:
			return invalid("order", o.OrderID, fmt.Sprintf("item %d has negative price", i))
		}
		total += float64(item.Quantity) * item.Price
	}
	if math.Abs(roundCents(total)-o.TotalAmount) > 0.005 {
		return invalid("order", o.OrderID, fmt.Sprintf("totalAmount %.2f does not match items %.2f", o.TotalAmount, total))
	}
	return nil
}

func invalid(kind, id, reason string) *errors.AppError {
	return errors.Newf(errors.ErrCodeInvalidRecord, "invalid %s: %s", kind, reason).
		WithContext("id", id)
}
