package credits

import (
	"context"
	"fmt"
	"time"

	model "github.com/glkeru/credits/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Журнал попыток погашения (MongoDB)
type AuditDB struct {
	mgo  *mongo.Client
	coll *mongo.Collection
}

func NewAuditDB(ctx context.Context, uri string, base string) (*AuditDB, error) {
	if uri == "" {
		return nil, fmt.Errorf("env CREDITS_MONGO_URI is not set")
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	err = client.Ping(ctx, nil)
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return &AuditDB{client, client.Database(base).Collection("attempts")}, nil
}

func (a *AuditDB) Close(ctx context.Context) error {
	if a.mgo == nil {
		return nil
	}
	return a.mgo.Disconnect(ctx)
}

func (a *AuditDB) SaveAttempt(ctx context.Context, attempt model.RedemptionAttempt) error {
	_, err := a.coll.InsertOne(ctx, attempt)
	if err != nil {
		return fmt.Errorf("save attempt %s: %w", attempt.ID, err)
	}
	return nil
}

// Попытки по счету за период, новые первыми
func (a *AuditDB) GetAttempts(ctx context.Context, accountRef string, from time.Time, to time.Time) ([]model.RedemptionAttempt, error) {
	filter := bson.M{
		"accountRef": accountRef,
		"at":         bson.M{"$gte": from, "$lte": to},
	}
	result, err := a.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer result.Close(ctx)

	var attempts []model.RedemptionAttempt
	for result.Next(ctx) {
		var attempt model.RedemptionAttempt
		err := result.Decode(&attempt)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, attempt)
	}
	return attempts, result.Err()
}
