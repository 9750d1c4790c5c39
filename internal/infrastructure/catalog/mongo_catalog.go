package catalog

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/example/plant-store/internal/apperr"
	"github.com/example/plant-store/internal/domain/plant"
)

const PlantsCollection = "plants"

type plantDoc struct {
	ID                primitive.ObjectID `bson:"_id,omitempty"`
	Name              string             `bson:"name"`
	Description       string             `bson:"description,omitempty"`
	Price             float64            `bson:"price"`
	Categories        []string           `bson:"categories"`
	IsAvailable       bool               `bson:"isAvailable"`
	Image             string             `bson:"image,omitempty"`
	ScientificName    string             `bson:"scientificName,omitempty"`
	LightRequirement  string             `bson:"lightRequirement,omitempty"`
	WateringFrequency string             `bson:"wateringFrequency,omitempty"`
	PotSize           string             `bson:"potSize,omitempty"`
	CareInstructions  string             `bson:"careInstructions,omitempty"`
	Popularity        int                `bson:"popularity"`
	CreatedAt         time.Time          `bson:"createdAt"`
	UpdatedAt         time.Time          `bson:"updatedAt"`
}

// MongoCatalog reads plants from the plants collection.
type MongoCatalog struct {
	coll    *mongo.Collection
	timeout time.Duration
}

func NewMongoCatalog(db *mongo.Database, timeout time.Duration) *MongoCatalog {
	return &MongoCatalog{coll: db.Collection(PlantsCollection), timeout: timeout}
}

func (c *MongoCatalog) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *MongoCatalog) Resolve(ctx context.Context, id string) (*plant.Plant, error) {
	if err := plant.ValidateID(id); err != nil {
		return nil, err
	}
	oid, _ := primitive.ObjectIDFromHex(id)

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var doc plantDoc
	err := c.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, plant.ErrPlantNotFound
	}
	if err != nil {
		return nil, classify("resolve plant", err)
	}
	return plantFromDoc(&doc), nil
}

// ResolveMany looks up all ids in one query. Malformed ids are skipped.
func (c *MongoCatalog) ResolveMany(ctx context.Context, ids []string) (map[string]*plant.Plant, error) {
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}
	out := make(map[string]*plant.Plant, len(oids))
	if len(oids) == 0 {
		return out, nil
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	cur, err := c.coll.Find(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return nil, classify("resolve plants", err)
	}
	var docs []plantDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, classify("resolve plants", err)
	}
	for i := range docs {
		p := plantFromDoc(&docs[i])
		out[p.ID] = p
	}
	return out, nil
}

// Search returns one page of plants matching params and the total match count.
func (c *MongoCatalog) Search(ctx context.Context, params plant.SearchParams) ([]*plant.Plant, int64, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	filter := searchFilter(params)
	opts := options.Find().
		SetSort(searchSort(params)).
		SetSkip(int64(params.Skip())).
		SetLimit(int64(params.Limit))

	cur, err := c.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, classify("search plants", err)
	}
	var docs []plantDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, classify("search plants", err)
	}
	total, err := c.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, classify("count plants", err)
	}

	plants := make([]*plant.Plant, 0, len(docs))
	for i := range docs {
		plants = append(plants, plantFromDoc(&docs[i]))
	}
	return plants, total, nil
}

// Categories returns the distinct categories in use, sorted.
func (c *MongoCatalog) Categories(ctx context.Context) ([]string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	values, err := c.coll.Distinct(ctx, "categories", bson.M{})
	if err != nil {
		return nil, classify("list categories", err)
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Reset drops the plants collection.
func (c *MongoCatalog) Reset(ctx context.Context) error {
	return c.coll.Drop(ctx)
}

// InsertMany validates and stores plants, assigning ids and timestamps.
func (c *MongoCatalog) InsertMany(ctx context.Context, plants []*plant.Plant) (int, error) {
	now := time.Now().UTC()
	docs := make([]interface{}, 0, len(plants))
	for _, p := range plants {
		p.Normalize()
		if err := p.Validate(); err != nil {
			return 0, fmt.Errorf("plant %q: %w", p.Name, err)
		}
		if p.ID == "" {
			p.ID = plant.NewID()
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		p.UpdatedAt = now
		doc, err := plantToDoc(p)
		if err != nil {
			return 0, err
		}
		docs = append(docs, doc)
	}
	if len(docs) == 0 {
		return 0, nil
	}
	res, err := c.coll.InsertMany(ctx, docs)
	if err != nil {
		return 0, classify("insert plants", err)
	}
	return len(res.InsertedIDs), nil
}

// EnsureIndexes creates the listing, filter and text search indexes.
func (c *MongoCatalog) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "name", Value: 1}}},
		{Keys: bson.D{{Key: "categories", Value: 1}}},
		{Keys: bson.D{{Key: "price", Value: 1}}},
		{Keys: bson.D{{Key: "isAvailable", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "isAvailable", Value: 1}, {Key: "categories", Value: 1}}},
		{Keys: bson.D{{Key: "price", Value: 1}, {Key: "isAvailable", Value: 1}}},
		{
			Keys: bson.D{
				{Key: "name", Value: "text"},
				{Key: "categories", Value: "text"},
				{Key: "description", Value: "text"},
				{Key: "scientificName", Value: "text"},
			},
			Options: options.Index().
				SetName("plant_search_index").
				SetWeights(bson.D{
					{Key: "name", Value: 10},
					{Key: "scientificName", Value: 8},
					{Key: "categories", Value: 5},
					{Key: "description", Value: 1},
				}),
		},
	}
	if _, err := c.coll.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("create plant indexes: %w", err)
	}
	return nil
}

func searchFilter(params plant.SearchParams) bson.M {
	filter := bson.M{}
	if params.Search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(params.Search), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"name": pattern},
			bson.M{"categories": pattern},
			bson.M{"description": pattern},
			bson.M{"scientificName": pattern},
		}
	}
	if params.Category != "" {
		filter["categories"] = bson.M{"$in": bson.A{params.Category}}
	}
	if params.OnlyAvailable {
		filter["isAvailable"] = true
	}
	return filter
}

func searchSort(params plant.SearchParams) bson.D {
	field := params.SortBy
	if field == "" {
		field = plant.SortByCreatedAt
	}
	dir := -1
	if params.Ascending {
		dir = 1
	}
	// _id breaks ties so pages are stable
	return bson.D{{Key: field, Value: dir}, {Key: "_id", Value: dir}}
}

func plantFromDoc(doc *plantDoc) *plant.Plant {
	categories := make([]plant.Category, 0, len(doc.Categories))
	for _, c := range doc.Categories {
		categories = append(categories, plant.Category(c))
	}
	return &plant.Plant{
		ID:                doc.ID.Hex(),
		Name:              doc.Name,
		Price:             decimal.NewFromFloat(doc.Price),
		Categories:        categories,
		IsAvailable:       doc.IsAvailable,
		Description:       doc.Description,
		ScientificName:    doc.ScientificName,
		Image:             doc.Image,
		LightRequirement:  plant.LightRequirement(doc.LightRequirement),
		WateringFrequency: doc.WateringFrequency,
		PotSize:           doc.PotSize,
		CareInstructions:  doc.CareInstructions,
		Popularity:        doc.Popularity,
		CreatedAt:         doc.CreatedAt,
		UpdatedAt:         doc.UpdatedAt,
	}
}

func plantToDoc(p *plant.Plant) (*plantDoc, error) {
	oid, err := primitive.ObjectIDFromHex(p.ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidArgument, "Invalid plant ID format", err)
	}
	categories := make([]string, 0, len(p.Categories))
	for _, c := range p.Categories {
		categories = append(categories, string(c))
	}
	return &plantDoc{
		ID:                oid,
		Name:              p.Name,
		Description:       p.Description,
		Price:             p.Price.InexactFloat64(),
		Categories:        categories,
		IsAvailable:       p.IsAvailable,
		Image:             p.Image,
		ScientificName:    p.ScientificName,
		LightRequirement:  string(p.LightRequirement),
		WateringFrequency: p.WateringFrequency,
		PotSize:           p.PotSize,
		CareInstructions:  p.CareInstructions,
		Popularity:        p.Popularity,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}, nil
}

func classify(op string, err error) error {
	wrapped := fmt.Errorf("%s: %w", op, err)
	if errors.Is(err, context.DeadlineExceeded) || mongo.IsTimeout(err) || mongo.IsNetworkError(err) {
		return apperr.Transient("Catalog temporarily unavailable, please retry", wrapped)
	}
	return apperr.Internal("", wrapped)
}
