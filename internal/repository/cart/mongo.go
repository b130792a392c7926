package cart

import (
	"context"
	"errors"
	"time"

	"analogue-shop/internal/domain"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// addItemAttempts bounds the inc-or-push loop when two writers race to add
// the same product.
const addItemAttempts = 3

type mongoRepo struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

func NewMongo(db *mongo.Database, logger *zap.Logger) Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &mongoRepo{collection: db.Collection("carts"), logger: logger.Named("cart_repo")}
}

func (r *mongoRepo) Create(ctx context.Context, lines []domain.LineItem) (*domain.Cart, error) {
	now := time.Now().UTC()
	c := domain.Cart{
		ID:        uuid.NewString(),
		Lines:     append([]domain.LineItem{}, lines...),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := r.collection.InsertOne(ctx, c); err != nil {
		r.logger.Warn("create failed", zap.Error(err))
		return nil, domain.StoreFailure("cart create", err)
	}
	return &c, nil
}

func (r *mongoRepo) Get(ctx context.Context, id string) (*domain.Cart, error) {
	var c domain.Cart
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		r.logger.Warn("get failed", zap.String("cart_id", id), zap.Error(err))
		return nil, domain.StoreFailure("cart get", err)
	}
	return normalize(&c), nil
}

func (r *mongoRepo) AddItem(ctx context.Context, id, productID string, qty int) (*domain.Cart, error) {
	if !domain.ValidQuantity(qty) {
		return nil, domain.ErrInvalidQuantity
	}
	for attempt := 0; attempt < addItemAttempts; attempt++ {
		// existing line with room left: bump its quantity in place
		c, err := r.findAndUpdate(ctx, "cart add item",
			bson.M{"_id": id, "lines": bson.M{"$elemMatch": bson.M{
				"product_id": productID,
				"quantity":   bson.M{"$lte": domain.MaxLineQuantity - qty},
			}}},
			bson.M{"$inc": bson.M{"lines.$.quantity": qty}},
		)
		if !errors.Is(err, domain.ErrNotFound) {
			return c, err
		}

		// no line yet: append, guarded against a concurrent append of the same product
		c, err = r.findAndUpdate(ctx, "cart add item",
			bson.M{"_id": id, "lines.product_id": bson.M{"$ne": productID}},
			bson.M{"$push": bson.M{"lines": domain.LineItem{ProductID: productID, Quantity: qty}}},
		)
		if !errors.Is(err, domain.ErrNotFound) {
			return c, err
		}

		exists, err := r.exists(ctx, id)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, domain.ErrNotFound
		}
		full, err := r.lineFull(ctx, id, productID, qty)
		if err != nil {
			return nil, err
		}
		if full {
			return nil, domain.ErrInvalidQuantity
		}
	}
	return nil, domain.StoreFailure("cart add item", errors.New("concurrent updates, retry"))
}

func (r *mongoRepo) RemoveItem(ctx context.Context, id, productID string) (*domain.Cart, error) {
	return r.findAndUpdate(ctx, "cart remove item",
		bson.M{"_id": id},
		bson.M{"$pull": bson.M{"lines": bson.M{"product_id": productID}}},
	)
}

func (r *mongoRepo) SetItems(ctx context.Context, id string, lines []domain.LineItem) (*domain.Cart, error) {
	return r.findAndUpdate(ctx, "cart set items",
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"lines": append([]domain.LineItem{}, lines...)}},
	)
}

func (r *mongoRepo) UpdateQuantity(ctx context.Context, id, productID string, qty int) (*domain.Cart, error) {
	return r.findAndUpdate(ctx, "cart update quantity",
		bson.M{"_id": id, "lines.product_id": productID},
		bson.M{"$set": bson.M{"lines.$.quantity": qty}},
	)
}

func (r *mongoRepo) Clear(ctx context.Context, id string) (*domain.Cart, error) {
	return r.findAndUpdate(ctx, "cart clear",
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"lines": []domain.LineItem{}}},
	)
}

// findAndUpdate applies update to the document matching filter, stamps
// updated_at and returns the document after the change.
func (r *mongoRepo) findAndUpdate(ctx context.Context, op string, filter, update bson.M) (*domain.Cart, error) {
	now := time.Now().UTC()
	if set, ok := update["$set"].(bson.M); ok {
		set["updated_at"] = now
	} else {
		update["$set"] = bson.M{"updated_at": now}
	}

	var c domain.Cart
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		r.logger.Warn("update failed", zap.String("op", op), zap.Any("filter", filter), zap.Error(err))
		return nil, domain.StoreFailure(op, err)
	}
	return normalize(&c), nil
}

func (r *mongoRepo) exists(ctx context.Context, id string) (bool, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return false, domain.StoreFailure("cart exists", err)
	}
	return n > 0, nil
}

// lineFull reports whether the product's line cannot take qty more units.
func (r *mongoRepo) lineFull(ctx context.Context, id, productID string, qty int) (bool, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{"_id": id, "lines": bson.M{"$elemMatch": bson.M{
		"product_id": productID,
		"quantity":   bson.M{"$gt": domain.MaxLineQuantity - qty},
	}}}, options.Count().SetLimit(1))
	if err != nil {
		return false, domain.StoreFailure("cart add item", err)
	}
	return n > 0, nil
}

func normalize(c *domain.Cart) *domain.Cart {
	if c.Lines == nil {
		c.Lines = []domain.LineItem{}
	}
	return c
}
