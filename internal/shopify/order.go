package shopify

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Order is the subset of the orders/create webhook payload we persist.
type Order struct {
	ID                FlexString `json:"id"`
	OrderNumber       FlexString `json:"order_number"`
	Name              string     `json:"name"`
	FinancialStatus   string     `json:"financial_status"`
	FulfillmentStatus string     `json:"fulfillment_status"`
	Currency          string     `json:"currency"`
	ShopDomain        string     `json:"shop_domain"`
	Customer          *Customer  `json:"customer"`
	LineItems         []LineItem `json:"line_items"`
}

type Customer struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type LineItem struct {
	ID           FlexString `json:"id"`
	Title        string     `json:"title"`
	Price        FlexString `json:"price"`
	Quantity     int        `json:"quantity"`
	Properties   []Property `json:"properties"`
	VariantImage *Image     `json:"variant_image"`
	Image        *Image     `json:"image"`
}

type Property struct {
	Name  string     `json:"name"`
	Value PropertyValue `json:"value"`
}

type Image struct {
	Src string `json:"src"`
}

// FlexString accepts a JSON string, number or null. Shopify ids and prices
// arrive as either depending on API version and app. Anything else is an error.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	switch {
	case raw == "null":
		*f = ""
	case strings.HasPrefix(raw, `"`):
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("expected string or number, got %s", raw)
		}
		*f = FlexString(n)
	}
	return nil
}

func (f FlexString) String() string { return string(f) }

// PropertyValue holds a line item property set by storefront apps. Scalars
// keep their text; objects and arrays are dropped instead of failing the order.
type PropertyValue string

func (v *PropertyValue) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	switch {
	case raw == "true" || raw == "false":
		*v = PropertyValue(raw)
	case strings.HasPrefix(raw, "{") || strings.HasPrefix(raw, "["):
		*v = ""
	default:
		var f FlexString
		if err := f.UnmarshalJSON(b); err != nil {
			return err
		}
		*v = PropertyValue(f)
	}
	return nil
}

func (v PropertyValue) String() string { return string(v) }

// ParseOrder decodes a webhook body.
func ParseOrder(body []byte) (*Order, error) {
	var o Order
	if err := json.Unmarshal(body, &o); err != nil {
		return nil, err
	}
	return &o, nil
}
