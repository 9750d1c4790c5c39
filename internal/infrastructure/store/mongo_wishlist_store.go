package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/example/plant-store/internal/apperr"
	"github.com/example/plant-store/internal/domain/wishlist"
)

type wishlistItemDoc struct {
	PlantID primitive.ObjectID `bson:"plantId"`
	Notes   string             `bson:"notes,omitempty"`
	AddedAt time.Time          `bson:"addedAt"`
}

type wishlistDoc struct {
	UserID    string            `bson:"userId"`
	Plants    []wishlistItemDoc `bson:"plants"`
	Version   int64             `bson:"version"`
	CreatedAt time.Time         `bson:"createdAt"`
	UpdatedAt time.Time         `bson:"updatedAt"`
}

// MongoWishlistStore keeps one wishlist document per user
type MongoWishlistStore struct {
	coll    *mongo.Collection
	timeout time.Duration
}

func NewMongoWishlistStore(db *mongo.Database, timeout time.Duration) *MongoWishlistStore {
	return &MongoWishlistStore{coll: db.Collection(WishlistsCollection), timeout: timeout}
}

func (s *MongoWishlistStore) Load(ctx context.Context, userID string) (*wishlist.Wishlist, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var doc wishlistDoc
	opts := options.FindOne().SetProjection(bson.M{"_id": 0})
	err := s.coll.FindOne(ctx, bson.M{"userId": userID}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("load wishlist", err)
	}
	return wishlistFromDoc(&doc), nil
}

func (s *MongoWishlistStore) Save(ctx context.Context, w *wishlist.Wishlist) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	doc, err := wishlistToDoc(w)
	if err != nil {
		return apperr.Internal("", fmt.Errorf("encode wishlist %s: %w", w.UserID, err))
	}
	doc.Version = w.Version + 1

	ok, err := saveVersioned(ctx, s.coll, w.UserID, w.Version, doc)
	if err != nil {
		return classify("save wishlist", err)
	}
	if !ok {
		return apperr.Conflict("Wishlist was modified concurrently, please retry")
	}
	w.Version = doc.Version
	return nil
}

func wishlistToDoc(w *wishlist.Wishlist) (*wishlistDoc, error) {
	plants := make([]wishlistItemDoc, 0, len(w.Plants))
	for _, item := range w.Plants {
		oid, err := primitive.ObjectIDFromHex(item.PlantID)
		if err != nil {
			return nil, err
		}
		plants = append(plants, wishlistItemDoc{PlantID: oid, Notes: item.Notes, AddedAt: item.AddedAt})
	}
	return &wishlistDoc{
		UserID:    w.UserID,
		Plants:    plants,
		Version:   w.Version,
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}, nil
}

func wishlistFromDoc(doc *wishlistDoc) *wishlist.Wishlist {
	plants := make([]wishlist.WishlistItem, 0, len(doc.Plants))
	for _, item := range doc.Plants {
		plants = append(plants, wishlist.WishlistItem{
			PlantID: item.PlantID.Hex(),
			Notes:   item.Notes,
			AddedAt: item.AddedAt,
		})
	}
	return &wishlist.Wishlist{
		UserID:    doc.UserID,
		Plants:    plants,
		Version:   doc.Version,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}
