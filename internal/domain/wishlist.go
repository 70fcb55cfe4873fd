package domain

import "time"

type Wishlist struct {
	Owner      Owner     `json:"-"`
	ProductIDs []string  `json:"product_ids"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func NewWishlist(owner Owner) *Wishlist {
	return &Wishlist{Owner: owner, ProductIDs: []string{}, UpdatedAt: time.Now().UTC()}
}

func (w *Wishlist) Contains(productID string) bool {
	for _, id := range w.ProductIDs {
		if id == productID {
			return true
		}
	}
	return false
}

// Toggle adds the product if absent and removes it otherwise. Returns true when added.
func (w *Wishlist) Toggle(productID string) bool {
	if w.Contains(productID) {
		w.Remove(productID)
		return false
	}
	w.ProductIDs = append(w.ProductIDs, productID)
	w.UpdatedAt = time.Now().UTC()
	return true
}

func (w *Wishlist) Remove(productID string) {
	for i, id := range w.ProductIDs {
		if id == productID {
			w.ProductIDs = append(w.ProductIDs[:i], w.ProductIDs[i+1:]...)
			w.UpdatedAt = time.Now().UTC()
			return
		}
	}
}

// MergeWishlists is a set union keeping the server order first.
func MergeWishlists(server, guest *Wishlist) *Wishlist {
	merged := &Wishlist{Owner: server.Owner, ProductIDs: append([]string{}, server.ProductIDs...)}
	for _, id := range guest.ProductIDs {
		if !merged.Contains(id) {
			merged.ProductIDs = append(merged.ProductIDs, id)
		}
	}
	merged.UpdatedAt = time.Now().UTC()
	return merged
}
