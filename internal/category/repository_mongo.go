package category

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoRepository struct {
	coll *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{coll: db.Collection("categories")}
}

// EnsureIndexes makes slugs unique and names unique regardless of case.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "slug", Value: 1}}, Options: options.Index().SetUnique(true)},
		{
			Keys: bson.D{{Key: "name", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetCollation(&options.Collation{Locale: "en", Strength: 2}),
		},
	})
	return err
}

func (r *MongoRepository) List(ctx context.Context, activeOnly bool) ([]Category, error) {
	filter := bson.M{}
	if activeOnly {
		filter["isActive"] = true
	}
	cur, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find categories: %w", err)
	}
	out := make([]Category, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode categories: %w", err)
	}
	return out, nil
}

func (r *MongoRepository) findOne(ctx context.Context, filter bson.M) (Category, error) {
	var c Category
	if err := r.coll.FindOne(ctx, filter).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Category{}, ErrNotFound
		}
		return Category{}, fmt.Errorf("find category: %w", err)
	}
	return c, nil
}

func (r *MongoRepository) GetByID(ctx context.Context, id string) (Category, error) {
	oid, err := parseID(id)
	if err != nil {
		return Category{}, err
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *MongoRepository) GetBySlug(ctx context.Context, slug string) (Category, error) {
	return r.findOne(ctx, bson.M{"slug": slug})
}

func (r *MongoRepository) NameTaken(ctx context.Context, name string, excludeID primitive.ObjectID) (bool, error) {
	filter := bson.M{"name": primitive.Regex{Pattern: "^" + regexp.QuoteMeta(name) + "$", Options: "i"}}
	if !excludeID.IsZero() {
		filter["_id"] = bson.M{"$ne": excludeID}
	}
	n, err := r.coll.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("check category name: %w", err)
	}
	return n > 0, nil
}

func (r *MongoRepository) Create(ctx context.Context, c Category) (Category, error) {
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	if _, err := r.coll.InsertOne(ctx, c); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return Category{}, ErrDuplicate
		}
		return Category{}, fmt.Errorf("insert category: %w", err)
	}
	return c, nil
}

func (r *MongoRepository) Update(ctx context.Context, c Category) (Category, error) {
	c.UpdatedAt = time.Now().UTC()
	res, err := r.coll.UpdateByID(ctx, c.ID, bson.M{"$set": bson.M{
		"name":        c.Name,
		"slug":        c.Slug,
		"description": c.Description,
		"icon":        c.Icon,
		"color":       c.Color,
		"isActive":    c.Active,
		"updatedAt":   c.UpdatedAt,
	}})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return Category{}, ErrDuplicate
		}
		return Category{}, fmt.Errorf("update category: %w", err)
	}
	if res.MatchedCount == 0 {
		return Category{}, ErrNotFound
	}
	return c, nil
}

func (r *MongoRepository) SetProductCount(ctx context.Context, id primitive.ObjectID, n int64) error {
	_, err := r.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{"productCount": n}})
	return err
}
