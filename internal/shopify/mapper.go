package shopify

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"sheettools/internal/sales"

	"golang.org/x/text/unicode/norm"
)

const (
	PlaceholderImageBase = "https://placehold.co/300x300?text="
	placeholderTitleLen  = 20
)

// MapOrder turns an order into one sale record per line item. shopHeader is
// the x-shopify-shop-domain value, used when the payload has no shop_domain.
// Errors wrap sales.ErrValidation.
func MapOrder(o *Order, shopHeader string) ([]sales.Record, error) {
	if o == nil {
		return nil, fmt.Errorf("empty order: %w", sales.ErrValidation)
	}
	orderID := strings.TrimSpace(o.ID.String())
	if orderID == "" {
		return nil, fmt.Errorf("missing order id: %w", sales.ErrValidation)
	}
	if len(o.LineItems) == 0 {
		return nil, fmt.Errorf("order %s has no line items: %w", orderID, sales.ErrValidation)
	}

	orderNumber := o.OrderNumber.String()
	if orderNumber == "" {
		orderNumber = o.Name
	}
	shopDomain := strings.TrimSpace(o.ShopDomain)
	if shopDomain == "" {
		shopDomain = strings.TrimSpace(shopHeader)
	}

	var email string
	var customerName *string
	if o.Customer != nil {
		email = o.Customer.Email
		name := strings.TrimSpace(o.Customer.FirstName + " " + o.Customer.LastName)
		if name != "" {
			customerName = &name
		}
	}

	records := make([]sales.Record, 0, len(o.LineItems))
	for i, li := range o.LineItems {
		price, err := ParsePrice(li.Price.String())
		if err != nil {
			return nil, fmt.Errorf("line item %d of order %s: %w", i, orderID, err)
		}
		lineID := li.ID.String()
		if lineID == "" {
			lineID = fmt.Sprintf("%s-%d", orderID, i)
		}
		records = append(records, sales.Record{
			OrderID:           orderID,
			LineItemID:        lineID,
			Produto:           li.Title,
			Preco:             price,
			Quantidade:        li.Quantity,
			CustomerEmail:     email,
			CustomerName:      customerName,
			OrderNumber:       orderNumber,
			FinancialStatus:   o.FinancialStatus,
			FulfillmentStatus: o.FulfillmentStatus,
			Currency:          o.Currency,
			ShopDomain:        shopDomain,
			ProductImageURL:   ResolveImage(li),
		})
	}
	return records, nil
}

// ParsePrice parses the vendor's decimal string as-is (no cents conversion).
func ParsePrice(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("missing price: %w", sales.ErrValidation)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid price %q: %w", s, sales.ErrValidation)
	}
	return f, nil
}

// ResolveImage picks the first of: an "image"/"product_image" property, the
// variant image, the line item image, a generated placeholder.
func ResolveImage(li LineItem) string {
	for _, p := range li.Properties {
		if p.Name != "image" && p.Name != "product_image" {
			continue
		}
		if v := strings.TrimSpace(p.Value.String()); v != "" {
			return v
		}
	}
	if li.VariantImage != nil && li.VariantImage.Src != "" {
		return li.VariantImage.Src
	}
	if li.Image != nil && li.Image.Src != "" {
		return li.Image.Src
	}
	return PlaceholderImage(li.Title)
}

// PlaceholderImage encodes the first runes of the title into a placeholder URL.
func PlaceholderImage(title string) string {
	t := []rune(norm.NFC.String(strings.TrimSpace(title)))
	if len(t) > placeholderTitleLen {
		t = t[:placeholderTitleLen]
	}
	return PlaceholderImageBase + url.QueryEscape(string(t))
}
