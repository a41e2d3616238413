package sales

import (
	"errors"
	"time"
)

// Record is one persisted sale row (table "vendas"), one per order line item.
// Column names follow the dashboard's existing schema.
type Record struct {
	ID                int64      `json:"id,omitempty" db:"id"`
	OrderID           string     `json:"order_id" db:"order_id"`
	LineItemID        string     `json:"line_item_id" db:"line_item_id"`
	Produto           string     `json:"produto" db:"produto"`
	Preco             float64    `json:"preco" db:"preco"`
	Quantidade        int        `json:"quantidade" db:"quantidade"`
	CustomerEmail     string     `json:"customer_email" db:"customer_email"`
	CustomerName      *string    `json:"customer_name" db:"customer_name"`
	OrderNumber       string     `json:"order_number" db:"order_number"`
	FinancialStatus   string     `json:"financial_status" db:"financial_status"`
	FulfillmentStatus string     `json:"fulfillment_status" db:"fulfillment_status"`
	Currency          string     `json:"currency" db:"currency"`
	ShopDomain        string     `json:"shop_domain" db:"shop_domain"`
	ProductImageURL   string     `json:"product_image_url" db:"product_image_url"`
	UserID            *string    `json:"user_id" db:"user_id"`
	CreatedAt         *time.Time `json:"created_at,omitempty" db:"created_at"`
}

var (
	// ErrConfiguration means a required secret or credential is missing.
	ErrConfiguration = errors.New("configuration error")
	// ErrUnauthorized means the webhook signature did not match.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrValidation means the payload could not be parsed or mapped.
	ErrValidation = errors.New("validation error")
	// ErrDuplicate means the store already holds these rows (unique violation).
	ErrDuplicate = errors.New("duplicate sale")
	// ErrDependency means the store or another backing service failed.
	ErrDependency = errors.New("dependency error")
)

// Attribute sets the same owner on every record.
func Attribute(records []Record, userID *string) {
	for i := range records {
		if userID == nil {
			records[i].UserID = nil
			continue
		}
		id := *userID
		records[i].UserID = &id
	}
}

// Total sums price * quantity over records.
func Total(records []Record) float64 {
	var t float64
	for _, r := range records {
		t += r.Preco * float64(r.Quantidade)
	}
	return t
}
