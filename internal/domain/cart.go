package domain

import "time"

// Cart holds at most one line per product, in insertion order.
type Cart struct {
	ID        string     `json:"id" bson:"_id"`
	Lines     []LineItem `json:"lines" bson:"lines"`
	CreatedAt time.Time  `json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time  `json:"updatedAt" bson:"updated_at"`
}

type LineItem struct {
	ProductID string `json:"productId" bson:"product_id"`
	Quantity  int    `json:"quantity" bson:"quantity"`
}

// Line returns the line for productID, if present.
func (c *Cart) Line(productID string) (LineItem, bool) {
	for _, l := range c.Lines {
		if l.ProductID == productID {
			return l, true
		}
	}
	return LineItem{}, false
}

// MergeLines collapses duplicate product lines by summing quantities. The
// position of the first occurrence wins.
func MergeLines(lines []LineItem) []LineItem {
	merged := make([]LineItem, 0, len(lines))
	index := make(map[string]int, len(lines))
	for _, l := range lines {
		if i, ok := index[l.ProductID]; ok {
			merged[i].Quantity += l.Quantity
			continue
		}
		index[l.ProductID] = len(merged)
		merged = append(merged, l)
	}
	return merged
}

// MaxLineQuantity bounds the quantity of a single cart line.
const MaxLineQuantity = 10_000

// ValidQuantity reports whether qty may be stored on a cart line.
func ValidQuantity(qty int) bool {
	return qty > 0 && qty <= MaxLineQuantity
}

// ValidateLines checks that every line names a product and has a quantity in
// (0, MaxLineQuantity].
func ValidateLines(lines []LineItem) error {
	for _, l := range lines {
		if l.ProductID == "" {
			return Invalid("productId required")
		}
		if !ValidQuantity(l.Quantity) {
			return ErrInvalidQuantity
		}
	}
	return nil
}
