package domain

import "time"

// Product is a sellable item with a single stock counter. Prices are stored in
// minor units.
type Product struct {
	ID          string    `json:"id" bson:"_id"`
	Title       string    `json:"title" bson:"title"`
	Description string    `json:"description,omitempty" bson:"description"`
	Code        string    `json:"code" bson:"code"`
	Category    string    `json:"category,omitempty" bson:"category"`
	PriceCents  int64     `json:"priceCents" bson:"price_cents"`
	Stock       int       `json:"stock" bson:"stock"`
	CreatedAt   time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updated_at"`
}

// ProductPatch is a partial update. Nil fields are left untouched.
type ProductPatch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Code        *string `json:"code,omitempty"`
	Category    *string `json:"category,omitempty"`
	PriceCents  *int64  `json:"priceCents,omitempty"`
	Stock       *int    `json:"stock,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p ProductPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Code == nil &&
		p.Category == nil && p.PriceCents == nil && p.Stock == nil
}

// Apply copies the set fields of the patch onto product.
func (p ProductPatch) Apply(product *Product) {
	if p.Title != nil {
		product.Title = *p.Title
	}
	if p.Description != nil {
		product.Description = *p.Description
	}
	if p.Code != nil {
		product.Code = *p.Code
	}
	if p.Category != nil {
		product.Category = *p.Category
	}
	if p.PriceCents != nil {
		product.PriceCents = *p.PriceCents
	}
	if p.Stock != nil {
		product.Stock = *p.Stock
	}
}
