// Package storage abstracts the document store the generated resolvers read
// and write. The interface mirrors the small ad-hoc surface the resolvers
// need (find, count, insert, update, delete); implementations back it with
// MongoDB or, for tests and local development, an in-memory map.
package storage

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
)

// Document is one stored record.
type Document = map[string]interface{}

// FindOptions controls sorting and paging for Find.
type FindOptions struct {
	// Sort is an ordered list of (field, direction) pairs; direction is
	// 1 for ascending, -1 for descending.
	Sort bson.D

	Limit  int64
	Offset int64

	// CaseInsensitive requests locale-aware, case-insensitive lexical
	// ordering at the storage level.
	CaseInsensitive bool
}

// Store is the document-store surface consumed by generated resolvers.
type Store interface {
	FindOne(ctx context.Context, database, collection string, filter bson.M) (Document, error)
	Find(ctx context.Context, database, collection string, filter bson.M, opts FindOptions) ([]Document, error)
	Count(ctx context.Context, database, collection string, filter bson.M) (int64, error)
	InsertOne(ctx context.Context, database, collection string, doc Document) (interface{}, error)
	UpdateOne(ctx context.Context, database, collection string, filter bson.M, update bson.M) (int64, error)
	DeleteOne(ctx context.Context, database, collection string, filter bson.M) (int64, error)
}
