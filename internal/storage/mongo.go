package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// caseInsensitiveCollation gives stable, locale-aware lexical ordering that
// ignores case (strength 2 compares base characters and diacritics only).
var caseInsensitiveCollation = &options.Collation{Locale: "en", Strength: 2}

// MongoStore implements Store on a MongoDB client.
type MongoStore struct {
	client *mongo.Client
	logger zerolog.Logger
}

// NewMongoStore wraps an already-connected client.
func NewMongoStore(client *mongo.Client, logger zerolog.Logger) *MongoStore {
	return &MongoStore{
		client: client,
		logger: logger.With().Str("component", "mongo-store").Logger(),
	}
}

// ConnectMongo dials uri and verifies the connection with a ping.
func ConnectMongo(ctx context.Context, uri string, logger zerolog.Logger) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	logger.Info().Msg("connected to mongodb")
	return NewMongoStore(client, logger), nil
}

// Close disconnects the underlying client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) collection(database, collection string) *mongo.Collection {
	return s.client.Database(database).Collection(collection)
}

func (s *MongoStore) FindOne(ctx context.Context, database, collection string, filter bson.M) (Document, error) {
	var doc Document
	err := s.collection(database, collection).FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *MongoStore) Find(ctx context.Context, database, collection string, filter bson.M, opts FindOptions) ([]Document, error) {
	findOpts := options.Find()
	if len(opts.Sort) > 0 {
		findOpts.SetSort(opts.Sort)
	}
	if opts.Offset > 0 {
		findOpts.SetSkip(opts.Offset)
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(opts.Limit)
	}
	if opts.CaseInsensitive {
		findOpts.SetCollation(caseInsensitiveCollation)
	}

	cursor, err := s.collection(database, collection).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	docs := make([]Document, 0)
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (s *MongoStore) Count(ctx context.Context, database, collection string, filter bson.M) (int64, error) {
	return s.collection(database, collection).CountDocuments(ctx, filter)
}

func (s *MongoStore) InsertOne(ctx context.Context, database, collection string, doc Document) (interface{}, error) {
	result, err := s.collection(database, collection).InsertOne(ctx, doc)
	if err != nil {
		return nil, err
	}
	return result.InsertedID, nil
}

func (s *MongoStore) UpdateOne(ctx context.Context, database, collection string, filter bson.M, update bson.M) (int64, error) {
	result, err := s.collection(database, collection).UpdateOne(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	return result.MatchedCount, nil
}

func (s *MongoStore) DeleteOne(ctx context.Context, database, collection string, filter bson.M) (int64, error) {
	result, err := s.collection(database, collection).DeleteOne(ctx, filter)
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}
