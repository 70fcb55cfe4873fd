package http

import (
	"time"

	"github.com/fjod/go_storefront/internal/domain"
)

// Money leaves the API as fixed two-place strings.

type ProductResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       string `json:"price"`
	ImageURL    string `json:"image_url"`
	Stock       int    `json:"stock"`
	InStock     bool   `json:"in_stock"`
}

type ProductsResponse struct {
	Products []ProductResponse `json:"products"`
}

type ReviewsResponse struct {
	Reviews []domain.Review `json:"reviews"`
}

type CartItemResponse struct {
	ProductID     string `json:"product_id"`
	Name          string `json:"name"`
	UnitPrice     string `json:"unit_price"`
	Quantity      int    `json:"quantity"`
	StockSnapshot int    `json:"stock_snapshot"`
	LineTotal     string `json:"line_total"`
}

type CartResponse struct {
	Items     []CartItemResponse `json:"items"`
	Count     int                `json:"count"`
	Total     string             `json:"total"`
	UpdatedAt time.Time          `json:"updated_at"`
}

type ValidateCartResponse struct {
	Cart  CartResponse       `json:"cart"`
	Stock domain.StockReport `json:"stock"`
	OK    bool               `json:"ok"`
}

type WishlistResponse struct {
	ProductIDs []string `json:"product_ids"`
	Count      int      `json:"count"`
}

type ToggleWishlistResponse struct {
	Wishlist WishlistResponse `json:"wishlist"`
	Added    bool             `json:"added"`
}

type SignInResponse struct {
	Cart     CartResponse     `json:"cart"`
	Wishlist WishlistResponse `json:"wishlist"`
}

type OrderResponse struct {
	ID              string                 `json:"id"`
	Status          string                 `json:"status"`
	Items           []CartItemResponse     `json:"items"`
	Shipping        domain.ShippingDetails `json:"shipping"`
	Subtotal        string                 `json:"subtotal"`
	Tax             string                 `json:"tax"`
	Total           string                 `json:"total"`
	Currency        string                 `json:"currency"`
	PaymentIntentID string                 `json:"payment_intent_id,omitempty"`
	TransactionID   string                 `json:"transaction_id,omitempty"`
	FailureReason   string                 `json:"failure_reason,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

type OrdersResponse struct {
	Orders []OrderResponse `json:"orders"`
}

type CheckoutResponse struct {
	Order        OrderResponse `json:"order"`
	ClientSecret string        `json:"client_secret,omitempty"`
	Reused       bool          `json:"reused"`
}

type ConfirmResponse struct {
	Order OrderResponse `json:"order"`
	State string        `json:"state"`
}

func toProductResponse(p *domain.Product) ProductResponse {
	return ProductResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price.StringFixed(2),
		ImageURL:    p.ImageURL,
		Stock:       p.Stock,
		InStock:     p.Stock > 0,
	}
}

func toItemResponses(items []domain.CartLineItem) []CartItemResponse {
	out := make([]CartItemResponse, len(items))
	for i, item := range items {
		out[i] = CartItemResponse{
			ProductID:     item.ProductID,
			Name:          item.Name,
			UnitPrice:     item.UnitPrice.StringFixed(2),
			Quantity:      item.Quantity,
			StockSnapshot: item.StockSnapshot,
			LineTotal:     item.LineTotal().StringFixed(2),
		}
	}
	return out
}

func toCartResponse(c *domain.Cart) CartResponse {
	return CartResponse{
		Items:     toItemResponses(c.Items),
		Count:     c.Count(),
		Total:     c.Total().StringFixed(2),
		UpdatedAt: c.UpdatedAt,
	}
}

func toWishlistResponse(w *domain.Wishlist) WishlistResponse {
	ids := w.ProductIDs
	if ids == nil {
		ids = []string{}
	}
	return WishlistResponse{ProductIDs: ids, Count: len(ids)}
}

func toOrderResponse(o *domain.Order) OrderResponse {
	resp := OrderResponse{
		ID:              o.ID,
		Status:          o.Status.String(),
		Items:           toItemResponses(o.Items),
		Shipping:        o.Shipping,
		Subtotal:        o.Subtotal.StringFixed(2),
		Tax:             o.Tax.StringFixed(2),
		Total:           o.Total.StringFixed(2),
		Currency:        o.Currency,
		PaymentIntentID: o.PaymentIntentID,
		FailureReason:   o.FailureReason,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	if o.Payment != nil {
		resp.TransactionID = o.Payment.TransactionID
	}
	return resp
}
