package domain

import "time"

// Ticket is the immutable receipt of a purchase. AmountCents covers only the
// lines that were fulfilled.
type Ticket struct {
	ID          string    `json:"id" bson:"_id"`
	Code        string    `json:"code" bson:"code"`
	Purchaser   string    `json:"purchaser" bson:"purchaser"`
	AmountCents int64     `json:"amountCents" bson:"amount_cents"`
	PurchasedAt time.Time `json:"purchasedAt" bson:"purchased_at"`
}
