package product

import (
	"context"
	"errors"
	"fmt"
	"time"

	"analogue-shop/internal/domain"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const collectionName = "products"

type mongoRepo struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

func NewMongo(db *mongo.Database, logger *zap.Logger) Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &mongoRepo{collection: db.Collection(collectionName), logger: logger.Named("product_repo")}
}

// CreateMongoIndexes makes product codes unique and supports category listings.
func CreateMongoIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(collectionName).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "code", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "category", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create product indexes: %w", err)
	}
	return nil
}

func (r *mongoRepo) Get(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		r.logger.Warn("get failed", zap.String("id", id), zap.Error(err))
		return nil, domain.StoreFailure("product get", err)
	}
	return &p, nil
}

func (r *mongoRepo) Create(ctx context.Context, p domain.Product) (*domain.Product, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	if _, err := r.collection.InsertOne(ctx, p); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrAlreadyExists
		}
		r.logger.Warn("create failed", zap.String("code", p.Code), zap.Error(err))
		return nil, domain.StoreFailure("product create", err)
	}
	return &p, nil
}

func (r *mongoRepo) Update(ctx context.Context, id string, patch domain.ProductPatch) (*domain.Product, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if patch.Title != nil {
		set["title"] = *patch.Title
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.Code != nil {
		set["code"] = *patch.Code
	}
	if patch.Category != nil {
		set["category"] = *patch.Category
	}
	if patch.PriceCents != nil {
		set["price_cents"] = *patch.PriceCents
	}
	if patch.Stock != nil {
		set["stock"] = *patch.Stock
	}

	var p domain.Product
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrAlreadyExists
		}
		r.logger.Warn("update failed", zap.String("id", id), zap.Error(err))
		return nil, domain.StoreFailure("product update", err)
	}
	return &p, nil
}

func (r *mongoRepo) Delete(ctx context.Context, id string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return domain.StoreFailure("product delete", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *mongoRepo) List(ctx context.Context, q ListQuery) (*ListResult, error) {
	filter := bson.M{}
	if q.Category != "" {
		filter["category"] = q.Category
	}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, domain.StoreFailure("product count", err)
	}

	opts := options.Find().SetSort(mongoSort(q.Sort)).SetSkip(int64(q.Offset()))
	if q.PageSize > 0 {
		opts.SetLimit(int64(q.PageSize))
	}
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Warn("list failed", zap.String("category", q.Category), zap.Error(err))
		return nil, domain.StoreFailure("product list", err)
	}
	items := []domain.Product{}
	if err := cursor.All(ctx, &items); err != nil {
		return nil, domain.StoreFailure("product list", err)
	}
	return &ListResult{Items: items, Total: int(total)}, nil
}

func (r *mongoRepo) Upsert(ctx context.Context, p domain.Product) (*domain.Product, error) {
	now := time.Now().UTC()
	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}
	update := bson.M{
		"$set": bson.M{
			"title":       p.Title,
			"description": p.Description,
			"category":    p.Category,
			"price_cents": p.PriceCents,
			"stock":       p.Stock,
			"updated_at":  now,
		},
		"$setOnInsert": bson.M{"_id": id, "created_at": now},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var out domain.Product
	if err := r.collection.FindOneAndUpdate(ctx, bson.M{"code": p.Code}, update, opts).Decode(&out); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrAlreadyExists
		}
		r.logger.Warn("upsert failed", zap.String("code", p.Code), zap.Error(err))
		return nil, domain.StoreFailure("product upsert", err)
	}
	return &out, nil
}

func (r *mongoRepo) DecrementStock(ctx context.Context, id string, qty int) (*domain.Product, bool, error) {
	if qty <= 0 {
		return nil, false, domain.ErrInvalidQuantity
	}
	filter := bson.M{"_id": id, "stock": bson.M{"$gte": qty}}
	update := bson.M{
		"$inc": bson.M{"stock": -qty},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}
	var p domain.Product
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&p)
	if err == nil {
		return &p, true, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		r.logger.Warn("decrement failed", zap.String("id", id), zap.Error(err))
		return nil, false, domain.StoreFailure("product decrement", err)
	}

	n, err := r.collection.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return nil, false, domain.StoreFailure("product decrement", err)
	}
	if n == 0 {
		return nil, false, domain.ErrNotFound
	}
	return nil, false, nil
}

func (r *mongoRepo) IncrementStock(ctx context.Context, id string, qty int) (*domain.Product, error) {
	if qty <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	update := bson.M{
		"$inc": bson.M{"stock": qty},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}
	var p domain.Product
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.StoreFailure("product increment", err)
	}
	return &p, nil
}

func mongoSort(sort string) bson.D {
	switch sort {
	case SortPriceAsc:
		return bson.D{{Key: "price_cents", Value: 1}, {Key: "created_at", Value: -1}}
	case SortPriceDesc:
		return bson.D{{Key: "price_cents", Value: -1}, {Key: "created_at", Value: -1}}
	default:
		return bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}
	}
}
