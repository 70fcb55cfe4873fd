package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrWishlistNotFound = errors.New("wishlist not found")

type WishlistRepository struct {
	collection *mongo.Collection
}

func NewWishlistRepository(db *mongo.Database) *WishlistRepository {
	return &WishlistRepository{collection: db.Collection(wishlistsCollection)}
}

func (r *WishlistRepository) GetWishlist(ctx context.Context, userID string) (*domain.Wishlist, error) {
	var doc wishlistDocument
	err := r.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrWishlistNotFound
		}
		return nil, fmt.Errorf("failed to get wishlist: %w", err)
	}
	return doc.toDomain()
}

func (r *WishlistRepository) UpsertWishlist(ctx context.Context, w *domain.Wishlist) error {
	if w.Owner.UserID == "" {
		return fmt.Errorf("upsert wishlist: %w", domain.NewValidationError("user_id", "required"))
	}
	w.UpdatedAt = time.Now().UTC()

	ids := w.ProductIDs
	if ids == nil {
		ids = []string{}
	}
	update := bson.M{"$set": bson.M{"product_ids": ids, "updated_at": w.UpdatedAt}}
	opts := options.Update().SetUpsert(true)

	if _, err := r.collection.UpdateOne(ctx, bson.M{"user_id": w.Owner.UserID}, update, opts); err != nil {
		return fmt.Errorf("failed to upsert wishlist: %w", err)
	}
	return nil
}
