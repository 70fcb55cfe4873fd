package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	ImageURL    string
	Stock       int
	CreatedAt   time.Time
}

type Review struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	UserID    string    `json:"user_id"`
	Rating    int       `json:"rating"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

func (r Review) Validate() error {
	v := &ValidationError{}
	if r.ProductID == "" {
		v.Add("product_id", "is required")
	}
	if r.UserID == "" {
		v.Add("user_id", "is required")
	}
	if r.Rating < 1 || r.Rating > 5 {
		v.Add("rating", "must be between 1 and 5")
	}
	if len(r.Body) > 2000 {
		v.Add("body", "must be at most 2000 characters")
	}
	return v.OrNil()
}
