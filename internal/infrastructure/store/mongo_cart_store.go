package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/example/plant-store/internal/apperr"
	"github.com/example/plant-store/internal/domain/cart"
)

type cartItemDoc struct {
	PlantID  primitive.ObjectID   `bson:"plantId"`
	Quantity int                  `bson:"quantity"`
	Price    primitive.Decimal128 `bson:"price"`
	AddedAt  time.Time            `bson:"addedAt"`
}

type cartDoc struct {
	UserID      string               `bson:"userId"`
	Items       []cartItemDoc        `bson:"items"`
	TotalItems  int                  `bson:"totalItems"`
	TotalAmount primitive.Decimal128 `bson:"totalAmount"`
	Version     int64                `bson:"version"`
	CreatedAt   time.Time            `bson:"createdAt"`
	UpdatedAt   time.Time            `bson:"updatedAt"`
}

// MongoCartStore keeps one cart document per user in the carts collection
type MongoCartStore struct {
	coll    *mongo.Collection
	timeout time.Duration
}

func NewMongoCartStore(db *mongo.Database, timeout time.Duration) *MongoCartStore {
	return &MongoCartStore{coll: db.Collection(CartsCollection), timeout: timeout}
}

func (s *MongoCartStore) Load(ctx context.Context, userID string) (*cart.Cart, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var doc cartDoc
	opts := options.FindOne().SetProjection(bson.M{"_id": 0})
	err := s.coll.FindOne(ctx, bson.M{"userId": userID}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("load cart", err)
	}
	c, err := cartFromDoc(&doc)
	if err != nil {
		return nil, apperr.Internal("", fmt.Errorf("decode cart %s: %w", userID, err))
	}
	return c, nil
}

func (s *MongoCartStore) Save(ctx context.Context, c *cart.Cart) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	doc, err := cartToDoc(c)
	if err != nil {
		return apperr.Internal("", fmt.Errorf("encode cart %s: %w", c.UserID, err))
	}
	doc.Version = c.Version + 1

	ok, err := saveVersioned(ctx, s.coll, c.UserID, c.Version, doc)
	if err != nil {
		return classify("save cart", err)
	}
	if !ok {
		return apperr.Conflict("Cart was modified concurrently, please retry")
	}
	c.Version = doc.Version
	return nil
}

func cartToDoc(c *cart.Cart) (*cartDoc, error) {
	items := make([]cartItemDoc, 0, len(c.Items))
	for _, item := range c.Items {
		oid, err := primitive.ObjectIDFromHex(item.PlantID)
		if err != nil {
			return nil, err
		}
		price, err := toDecimal128(item.Price)
		if err != nil {
			return nil, err
		}
		items = append(items, cartItemDoc{
			PlantID:  oid,
			Quantity: item.Quantity,
			Price:    price,
			AddedAt:  item.AddedAt,
		})
	}
	total, err := toDecimal128(c.TotalAmount)
	if err != nil {
		return nil, err
	}
	return &cartDoc{
		UserID:      c.UserID,
		Items:       items,
		TotalItems:  c.TotalItems,
		TotalAmount: total,
		Version:     c.Version,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}, nil
}

func cartFromDoc(doc *cartDoc) (*cart.Cart, error) {
	items := make([]cart.CartItem, 0, len(doc.Items))
	for _, item := range doc.Items {
		price, err := fromDecimal128(item.Price)
		if err != nil {
			return nil, err
		}
		items = append(items, cart.CartItem{
			PlantID:  item.PlantID.Hex(),
			Quantity: item.Quantity,
			Price:    price,
			AddedAt:  item.AddedAt,
		})
	}
	total, err := fromDecimal128(doc.TotalAmount)
	if err != nil {
		return nil, err
	}
	return &cart.Cart{
		UserID:      doc.UserID,
		Items:       items,
		TotalItems:  doc.TotalItems,
		TotalAmount: total,
		Version:     doc.Version,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}, nil
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	return primitive.ParseDecimal128(d.String())
}

// fromDecimal128 treats a missing value as zero.
func fromDecimal128(d primitive.Decimal128) (decimal.Decimal, error) {
	if d.IsZero() {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(d.String())
}
