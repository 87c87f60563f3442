package product

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wichananm65/secondhand-market/internal/search"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionName = "products"

type MongoRepository struct {
	coll *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{coll: db.Collection(collectionName)}
}

// EnsureIndexes creates the indexes backing category filters, default sort
// order and seller lookups.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: search.FieldCategory, Value: 1}}},
		{Keys: bson.D{{Key: search.FieldCreatedAt, Value: -1}}},
		{Keys: bson.D{{Key: search.FieldPrice, Value: 1}}},
		{Keys: bson.D{{Key: "sellerId", Value: 1}}},
	})
	return err
}

func (r *MongoRepository) Search(ctx context.Context, q search.Query) (Page, error) {
	filter := q.Filter()
	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return Page{}, fmt.Errorf("count products: %w", err)
	}

	opts := options.Find().SetSort(q.Sort())
	if q.PageSize > 0 {
		opts.SetSkip(q.Offset()).SetLimit(int64(q.PageSize))
	}
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return Page{}, fmt.Errorf("find products: %w", err)
	}
	items := make([]Product, 0)
	if err := cur.All(ctx, &items); err != nil {
		return Page{}, fmt.Errorf("decode products: %w", err)
	}
	return Page{Items: items, Total: total}, nil
}

type analyticsFacet struct {
	Categories []struct {
		Name  string `bson:"_id"`
		Count int64  `bson:"count"`
	} `bson:"categories"`
	Prices []struct {
		Min float64 `bson:"min"`
		Max float64 `bson:"max"`
		Avg float64 `bson:"avg"`
	} `bson:"prices"`
}

func (r *MongoRepository) Analytics(ctx context.Context, q search.Query) (search.Analytics, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: q.Filter()}},
		{{Key: "$facet", Value: bson.D{
			{Key: "categories", Value: bson.A{
				bson.D{{Key: "$group", Value: bson.D{
					{Key: "_id", Value: "$category"},
					{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
				}}},
			}},
			{Key: "prices", Value: bson.A{
				bson.D{{Key: "$group", Value: bson.D{
					{Key: "_id", Value: nil},
					{Key: "min", Value: bson.D{{Key: "$min", Value: "$price"}}},
					{Key: "max", Value: bson.D{{Key: "$max", Value: "$price"}}},
					{Key: "avg", Value: bson.D{{Key: "$avg", Value: "$price"}}},
				}}},
			}},
		}}},
	}
	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return search.Analytics{}, fmt.Errorf("aggregate analytics: %w", err)
	}
	var facets []analyticsFacet
	if err := cur.All(ctx, &facets); err != nil {
		return search.Analytics{}, fmt.Errorf("decode analytics: %w", err)
	}

	out := search.Analytics{ResultCountsByCategory: map[string]int64{}}
	if len(facets) == 0 {
		return out, nil
	}
	for _, c := range facets[0].Categories {
		out.ResultCountsByCategory[c.Name] = c.Count
	}
	if len(facets[0].Prices) > 0 {
		p := facets[0].Prices[0]
		out.PriceRangeStats = search.PriceRangeStats{Min: p.Min, Max: p.Max, Average: p.Avg}
	}
	return out, nil
}

func (r *MongoRepository) Suggest(ctx context.Context, text string, limit int) (search.Suggestions, error) {
	out := search.EmptySuggestions()
	rx := search.TextPattern(text)
	newest := bson.D{{Key: search.FieldCreatedAt, Value: -1}}

	cur, err := r.coll.Find(ctx,
		bson.M{"$or": bson.A{bson.M{search.FieldTitle: rx}, bson.M{search.FieldDescription: rx}}},
		options.Find().
			SetSort(newest).
			SetLimit(int64(limit)).
			SetProjection(bson.M{search.FieldTitle: 1, search.FieldCategory: 1, search.FieldPrice: 1}),
	)
	if err != nil {
		return out, fmt.Errorf("suggest products: %w", err)
	}
	var hits []Product
	if err := cur.All(ctx, &hits); err != nil {
		return out, fmt.Errorf("decode suggestions: %w", err)
	}
	for _, p := range hits {
		out.Products = append(out.Products, search.Suggestion{ID: p.ID.Hex(), Title: p.Title, Category: p.Category, Price: p.Price})
	}

	cats, err := r.coll.Distinct(ctx, search.FieldCategory, bson.M{search.FieldCategory: rx})
	if err != nil {
		return out, fmt.Errorf("suggest categories: %w", err)
	}
	for _, c := range cats {
		if name, ok := c.(string); ok && len(out.Categories) < search.MaxSuggestCategories {
			out.Categories = append(out.Categories, name)
		}
	}

	cur, err = r.coll.Find(ctx, bson.M{search.FieldTitle: rx},
		options.Find().
			SetSort(newest).
			SetLimit(search.MaxKeywordTitles).
			SetProjection(bson.M{search.FieldTitle: 1}),
	)
	if err != nil {
		return out, fmt.Errorf("suggest keywords: %w", err)
	}
	var titled []Product
	if err := cur.All(ctx, &titled); err != nil {
		return out, fmt.Errorf("decode keyword titles: %w", err)
	}
	titles := make([]string, 0, len(titled))
	for _, p := range titled {
		titles = append(titles, p.Title)
	}
	out.Keywords = search.Keywords(titles, search.MaxSuggestKeywords)
	return out, nil
}

func (r *MongoRepository) GetByID(ctx context.Context, id string) (Product, error) {
	oid, err := parseID(id)
	if err != nil {
		return Product{}, err
	}
	var p Product
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Product{}, ErrNotFound
		}
		return Product{}, fmt.Errorf("find product: %w", err)
	}
	return p, nil
}

func (r *MongoRepository) Create(ctx context.Context, p Product) (Product, error) {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	p.Normalize()
	if _, err := r.coll.InsertOne(ctx, p); err != nil {
		return Product{}, fmt.Errorf("insert product: %w", err)
	}
	return p, nil
}

func (r *MongoRepository) Delete(ctx context.Context, id string) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepository) CountByCategory(ctx context.Context, category string) (int64, error) {
	return r.coll.CountDocuments(ctx, bson.M{search.FieldCategory: category})
}

func (r *MongoRepository) RenameCategory(ctx context.Context, from, to string) (int64, error) {
	res, err := r.coll.UpdateMany(ctx,
		bson.M{search.FieldCategory: from},
		bson.M{"$set": bson.M{search.FieldCategory: to}},
	)
	if err != nil {
		return 0, fmt.Errorf("relabel products: %w", err)
	}
	return res.ModifiedCount, nil
}
