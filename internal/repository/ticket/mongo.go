package ticket

import (
	"context"
	"errors"
	"fmt"

	"analogue-shop/internal/domain"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

type mongoRepo struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

func NewMongo(db *mongo.Database, logger *zap.Logger) Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &mongoRepo{collection: db.Collection("tickets"), logger: logger.Named("ticket_repo")}
}

// CreateMongoIndexes enforces unique ticket codes and indexes purchaser lookups.
func CreateMongoIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("tickets").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "code", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "purchaser", Value: 1}, {Key: "purchased_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create ticket indexes: %w", err)
	}
	return nil
}

func (r *mongoRepo) Create(ctx context.Context, t domain.Ticket) (*domain.Ticket, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if _, err := r.collection.InsertOne(ctx, t); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrAlreadyExists
		}
		r.logger.Warn("create failed", zap.String("code", t.Code), zap.Error(err))
		return nil, domain.StoreFailure("ticket create", err)
	}
	return &t, nil
}

func (r *mongoRepo) Get(ctx context.Context, id string) (*domain.Ticket, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *mongoRepo) GetByCode(ctx context.Context, code string) (*domain.Ticket, error) {
	return r.findOne(ctx, bson.M{"code": code})
}

func (r *mongoRepo) ListByPurchaser(ctx context.Context, purchaser string) ([]domain.Ticket, error) {
	filter := bson.M{}
	if purchaser != "" {
		filter["purchaser"] = purchaser
	}
	opts := options.Find().SetSort(bson.D{{Key: "purchased_at", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, domain.StoreFailure("ticket list", err)
	}
	out := []domain.Ticket{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, domain.StoreFailure("ticket list", err)
	}
	return out, nil
}

func (r *mongoRepo) findOne(ctx context.Context, filter bson.M) (*domain.Ticket, error) {
	var t domain.Ticket
	if err := r.collection.FindOne(ctx, filter).Decode(&t); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.StoreFailure("ticket get", err)
	}
	return &t, nil
}
