package history

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	DefaultDatabase   = "connectfour"
	DefaultCollection = "games"

	connectTimeout = 10 * time.Second
)

// MongoArchive stores records in a MongoDB collection
type MongoArchive struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoArchive connects to uri and verifies the connection with a ping
func NewMongoArchive(ctx context.Context, uri, database string) (*MongoArchive, error) {
	if database == "" {
		database = DefaultDatabase
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	collection := client.Database(database).Collection(DefaultCollection)
	index := mongo.IndexModel{Keys: bson.D{{Key: "finished_at", Value: -1}}}
	if _, err := collection.Indexes().CreateOne(ctx, index); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	return &MongoArchive{client: client, collection: collection}, nil
}

func (a *MongoArchive) Save(ctx context.Context, rec Record) error {
	if _, err := a.collection.InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("failed to insert game %s/%d: %w", rec.MatchID, rec.Game, err)
	}
	return nil
}

func (a *MongoArchive) Recent(ctx context.Context, limit int) ([]Record, error) {
	return a.find(ctx, bson.M{}, limit)
}

func (a *MongoArchive) ByPlayer(ctx context.Context, username string, limit int) ([]Record, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"player_a": username},
		bson.M{"player_b": username},
	}}
	return a.find(ctx, filter, limit)
}

func (a *MongoArchive) Close(ctx context.Context) error {
	return a.client.Disconnect(ctx)
}

func (a *MongoArchive) find(ctx context.Context, filter bson.M, limit int) ([]Record, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "finished_at", Value: -1}}).
		SetLimit(int64(normalizeLimit(limit)))

	cursor, err := a.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query games: %w", err)
	}
	defer cursor.Close(ctx)

	records := []Record{}
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode games: %w", err)
	}
	return records, nil
}
