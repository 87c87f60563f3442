package review

import (
	"context"
	"errors"
	"fmt"
	"strconv"
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
	return &MongoRepository{coll: db.Collection("reviews")}
}

// EnsureIndexes creates the unique (productId, userId) index that makes a
// second review an atomic insert rejection.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "productId", Value: 1}, {Key: "userId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "productId", Value: 1}, {Key: "createdAt", Value: -1}}},
	})
	return err
}

func (r *MongoRepository) ListByProduct(ctx context.Context, productID string) ([]Review, error) {
	cur, err := r.coll.Find(ctx, bson.M{"productId": productID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("find reviews: %w", err)
	}
	out := make([]Review, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode reviews: %w", err)
	}
	return out, nil
}

func (r *MongoRepository) findOne(ctx context.Context, filter bson.M) (Review, error) {
	var rv Review
	if err := r.coll.FindOne(ctx, filter).Decode(&rv); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Review{}, ErrNotFound
		}
		return Review{}, fmt.Errorf("find review: %w", err)
	}
	return rv, nil
}

func (r *MongoRepository) GetByID(ctx context.Context, id string) (Review, error) {
	oid, err := parseID(id)
	if err != nil {
		return Review{}, err
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *MongoRepository) FindByProductAndUser(ctx context.Context, productID, userID string) (Review, error) {
	return r.findOne(ctx, bson.M{"productId": productID, "userId": userID})
}

func (r *MongoRepository) Create(ctx context.Context, rv Review) (Review, error) {
	if rv.ID.IsZero() {
		rv.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	rv.CreatedAt, rv.UpdatedAt = now, now
	if _, err := r.coll.InsertOne(ctx, rv); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return Review{}, ErrDuplicate
		}
		return Review{}, fmt.Errorf("insert review: %w", err)
	}
	return rv, nil
}

func (r *MongoRepository) Update(ctx context.Context, rv Review) (Review, error) {
	rv.UpdatedAt = time.Now().UTC()
	res, err := r.coll.UpdateByID(ctx, rv.ID, bson.M{"$set": bson.M{
		"rating":    rv.Rating,
		"title":     rv.Title,
		"comment":   rv.Comment,
		"updatedAt": rv.UpdatedAt,
	}})
	if err != nil {
		return Review{}, fmt.Errorf("update review: %w", err)
	}
	if res.MatchedCount == 0 {
		return Review{}, ErrNotFound
	}
	return rv, nil
}

func (r *MongoRepository) Delete(ctx context.Context, id string) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepository) Stats(ctx context.Context, productID string) (Stats, error) {
	cur, err := r.coll.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"productId": productID}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$rating"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	})
	if err != nil {
		return Stats{}, fmt.Errorf("aggregate review stats: %w", err)
	}
	var groups []struct {
		Rating int   `bson:"_id"`
		Count  int64 `bson:"count"`
	}
	if err := cur.All(ctx, &groups); err != nil {
		return Stats{}, fmt.Errorf("decode review stats: %w", err)
	}

	st := Stats{RatingDistribution: emptyDistribution()}
	var sum int64
	for _, g := range groups {
		st.TotalReviews += int(g.Count)
		sum += int64(g.Rating) * g.Count
		st.RatingDistribution[strconv.Itoa(g.Rating)] = g.Count
	}
	if st.TotalReviews > 0 {
		st.AverageRating = roundRating(float64(sum) / float64(st.TotalReviews))
	}
	return st, nil
}
