package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a product in the catalog
type Product struct {
	ID          int64           `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Description *string         `db:"description" json:"description"`
	Price       decimal.Decimal `db:"price" json:"price"`
	AssetRef    *string         `db:"image_path" json:"-"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// HasAsset reports whether the product references a stored image
func (p *Product) HasAsset() bool {
	return p.AssetRef != nil && *p.AssetRef != ""
}

// ProductView is a product as returned to the request layer
type ProductView struct {
	Product
	ImageURL *string `json:"image_url"`
}

// ProductPatch carries the scalar fields of a partial product update
type ProductPatch struct {
	Name        Optional[string]
	Description Optional[*string]
	Price       Optional[decimal.Decimal]
}

// IsEmpty reports whether no field was provided
func (p ProductPatch) IsEmpty() bool {
	return !p.Name.Set && !p.Description.Set && !p.Price.Set
}

// Product field limits
const (
	ProductNameMaxLen = 50
)

// ValidateProduct checks the product invariants the store does not enforce on its own
func ValidateProduct(p *Product) error {
	if p.Name == "" {
		return NewValidationError("name", "must not be empty")
	}
	if len([]rune(p.Name)) > ProductNameMaxLen {
		return NewValidationError("name", "must be at most %d characters", ProductNameMaxLen)
	}
	if p.Price.IsNegative() {
		return NewValidationError("price", "must be non-negative")
	}
	return nil
}

// OrderItem is a single line of an order
type OrderItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// OrderItems is persisted as a JSON document
type OrderItems []OrderItem

// Value implements driver.Valuer
func (it OrderItems) Value() (driver.Value, error) {
	if it == nil {
		return "[]", nil
	}
	b, err := json.Marshal(it)
	if err != nil {
		return nil, err
	}
	// lib/pq sends []byte as bytea, jsonb needs text
	return string(b), nil
}

// Scan implements sql.Scanner
func (it *OrderItems) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*it = OrderItems{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into OrderItems", src)
	}
	var items []OrderItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return fmt.Errorf("failed to decode order items: %w", err)
	}
	*it = items
	return nil
}

// ProductIDs returns the distinct product ids in item order
func (it OrderItems) ProductIDs() []int64 {
	seen := make(map[int64]struct{}, len(it))
	ids := make([]int64, 0, len(it))
	for _, item := range it {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}

// Order item limits
const (
	MinItemQuantity = 1
	MaxItemQuantity = 100
)

// ValidateItems checks the item list of a new order
func ValidateItems(items []OrderItem) error {
	if len(items) == 0 {
		return NewValidationError("items", "at least one item is required")
	}
	for i, item := range items {
		if item.ProductID <= 0 {
			return NewValidationError(fmt.Sprintf("items[%d].product_id", i), "must be positive")
		}
		if item.Quantity < MinItemQuantity || item.Quantity > MaxItemQuantity {
			return NewValidationError(fmt.Sprintf("items[%d].quantity", i),
				"must be between %d and %d", MinItemQuantity, MaxItemQuantity)
		}
	}
	return nil
}

// CustomerInfo identifies who placed an order
type CustomerInfo struct {
	Name    string `json:"customer_name"`
	Surname string `json:"customer_surname"`
	Email   string `json:"customer_email"`
	Phone   string `json:"customer_phone"`
}

// DeliveryInfo is the shipping address of an order
type DeliveryInfo struct {
	Country  string `json:"delivery_country"`
	City     string `json:"delivery_city"`
	Street   string `json:"delivery_street"`
	Building string `json:"delivery_building"`
}

// Order represents a customer order
type Order struct {
	ID               int64       `db:"id" json:"order_id"`
	CustomerName     string      `db:"customer_name" json:"customer_name"`
	CustomerSurname  string      `db:"customer_surname" json:"customer_surname"`
	CustomerEmail    string      `db:"customer_email" json:"customer_email"`
	CustomerPhone    string      `db:"customer_phone" json:"customer_phone"`
	DeliveryCountry  string      `db:"delivery_country" json:"delivery_country"`
	DeliveryCity     string      `db:"delivery_city" json:"delivery_city"`
	DeliveryStreet   string      `db:"delivery_street" json:"delivery_street"`
	DeliveryBuilding string      `db:"delivery_building" json:"delivery_building"`
	Items            OrderItems  `db:"items" json:"items"`
	Status           OrderStatus `db:"status" json:"status"`
	SessionID        *string     `db:"session_id" json:"session_id,omitempty"`
	CreatedAt        time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time   `db:"updated_at" json:"updated_at"`
}

// OrderView is an order with its derived totals
type OrderView struct {
	Order
	TotalItems  int             `json:"total_items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// OrderFilter narrows order listings
type OrderFilter struct {
	Offset int
	Limit  int
	Status *OrderStatus
}

// ComputeTotals derives the item count and amount of an order.
// Products missing from prices count at zero.
func ComputeTotals(items []OrderItem, prices map[int64]decimal.Decimal) (int, decimal.Decimal) {
	totalItems := 0
	totalAmount := decimal.Zero
	for _, item := range items {
		totalItems += item.Quantity
		price, ok := prices[item.ProductID]
		if !ok {
			continue
		}
		totalAmount = totalAmount.Add(price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return totalItems, totalAmount
}
