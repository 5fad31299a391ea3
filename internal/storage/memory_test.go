package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func seedStore(t *testing.T) *MemoryStore {
	t.Helper()
	s := NewMemoryStore()
	ctx := context.Background()
	docs := []Document{
		{"name": "Ada", "age": 30, "tenantId": "t1", "address": map[string]interface{}{"city": "London"}},
		{"name": "Grace", "age": 45, "tenantId": "t1"},
		{"name": "linus", "age": 30, "tenantId": "t2"},
	}
	for _, doc := range docs {
		_, err := s.InsertOne(ctx, "db", "users", doc)
		require.NoError(t, err)
	}
	return s
}

func TestMemoryStore_InsertAssignsID(t *testing.T) {
	s := NewMemoryStore()
	id, err := s.InsertOne(context.Background(), "db", "users", Document{"name": "Ada"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	doc, err := s.FindOne(context.Background(), "db", "users", bson.M{"_id": id})
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "Ada", doc["name"])
}

func TestMemoryStore_FindOperators(t *testing.T) {
	// Test plan:
	// - Plain equality, $gte, $ne, $in and case-insensitive $regex behave
	//   like the translated filter expects
	// - Dotted paths reach nested documents

	s := seedStore(t)
	ctx := context.Background()

	docs, err := s.Find(ctx, "db", "users", bson.M{"age": bson.M{"$gte": 40}}, FindOptions{})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Grace", docs[0]["name"])

	docs, err = s.Find(ctx, "db", "users", bson.M{"tenantId": bson.M{"$ne": "t2"}}, FindOptions{})
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	docs, err = s.Find(ctx, "db", "users", bson.M{"name": bson.M{"$in": []interface{}{"Ada", "Grace"}}}, FindOptions{})
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	docs, err = s.Find(ctx, "db", "users", bson.M{"name": bson.M{"$regex": "^LIN", "$options": "i"}}, FindOptions{})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "linus", docs[0]["name"])

	docs, err = s.Find(ctx, "db", "users", bson.M{"address.city": "London"}, FindOptions{})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Ada", docs[0]["name"])
}

func TestMemoryStore_SortLimitOffset(t *testing.T) {
	// Test plan:
	// - Multi-key sort with ascending and descending directions
	// - Offset and limit slice the sorted result

	s := seedStore(t)
	ctx := context.Background()

	docs, err := s.Find(ctx, "db", "users", bson.M{}, FindOptions{
		Sort: bson.D{{Key: "age", Value: 1}, {Key: "name", Value: -1}},
	})
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "linus", docs[0]["name"])
	assert.Equal(t, "Ada", docs[1]["name"])
	assert.Equal(t, "Grace", docs[2]["name"])

	// Test: case-insensitive name sort interleaves cases
	docs, err = s.Find(ctx, "db", "users", bson.M{}, FindOptions{
		Sort:            bson.D{{Key: "name", Value: 1}},
		CaseInsensitive: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada", docs[0]["name"])
	assert.Equal(t, "Grace", docs[1]["name"])
	assert.Equal(t, "linus", docs[2]["name"])

	docs, err = s.Find(ctx, "db", "users", bson.M{}, FindOptions{
		Sort:   bson.D{{Key: "age", Value: 1}},
		Offset: 1,
		Limit:  1,
	})
	require.NoError(t, err)
	require.Len(t, docs, 1)

	// Test: offset past the end
	docs, err = s.Find(ctx, "db", "users", bson.M{}, FindOptions{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestMemoryStore_UpdateOne(t *testing.T) {
	// Test plan:
	// - $set mutates the first matching document and reports one match
	// - No match reports zero without error

	s := seedStore(t)
	ctx := context.Background()

	matched, err := s.UpdateOne(ctx, "db", "users",
		bson.M{"name": "Ada"}, bson.M{"$set": bson.M{"age": 31}})
	require.NoError(t, err)
	assert.EqualValues(t, 1, matched)

	doc, err := s.FindOne(ctx, "db", "users", bson.M{"name": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, 31, doc["age"])

	matched, err = s.UpdateOne(ctx, "db", "users",
		bson.M{"name": "Nobody"}, bson.M{"$set": bson.M{"age": 1}})
	require.NoError(t, err)
	assert.Zero(t, matched)
}

func TestMemoryStore_DeleteOne(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()

	deleted, err := s.DeleteOne(ctx, "db", "users", bson.M{"name": "Ada"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	count, err := s.Count(ctx, "db", "users", bson.M{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	deleted, err = s.DeleteOne(ctx, "db", "users", bson.M{"name": "Ada"})
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestMemoryStore_CloneOnRead(t *testing.T) {
	// Mutating a returned document must not leak into the store.

	s := seedStore(t)
	ctx := context.Background()

	doc, err := s.FindOne(ctx, "db", "users", bson.M{"name": "Ada"})
	require.NoError(t, err)
	doc["age"] = 999

	again, err := s.FindOne(ctx, "db", "users", bson.M{"name": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, 30, again["age"])
}
