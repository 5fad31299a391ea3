package graphql

import (
	"context"
	"fmt"
	"testing"

	"github.com/graphql-go/graphql"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/wize-platform/wizegraph/internal/auth"
	"github.com/wize-platform/wizegraph/internal/metadata"
	"github.com/wize-platform/wizegraph/internal/pubsub"
	"github.com/wize-platform/wizegraph/internal/storage"
)

func authContext(store storage.Store, tenant string, scopes ...string) context.Context {
	return auth.NewContext(context.Background(), &auth.Context{
		Store:     store,
		TenantID:  tenant,
		ClientApp: "crm",
		Database:  "wize-data",
		User:      auth.User{ID: "user-1"},
		Scopes:    scopes,
	})
}

func execute(t *testing.T, schema graphql.Schema, ctx context.Context, query string, vars map[string]interface{}) *graphql.Result {
	t.Helper()
	return graphql.Do(graphql.Params{
		Schema:         schema,
		RequestString:  query,
		VariableValues: vars,
		Context:        ctx,
	})
}

func setupUserSchema(t *testing.T) (graphql.Schema, *storage.MemoryStore) {
	t.Helper()
	f := newTestFactory()
	schema, err := f.CreateSchema(context.Background(), testKey("user"), userMetadata())
	require.NoError(t, err)
	return schema, storage.NewMemoryStore()
}

func TestCreateMutation_StampsTenantAndAudit(t *testing.T) {
	// Test plan:
	// - createUser writes the document with tenantId, createdAt and
	//   createdBy stamped from the request context
	// - the response is read back from storage, not echoed input

	schema, store := setupUserSchema(t)
	ctx := authContext(store, "t1", "user:create", "user:read")

	result := execute(t, schema, ctx, `mutation {
		createUser(input: {name: "Ada", age: 30}) { id name age tenantId createdBy }
	}`, nil)
	require.Empty(t, result.Errors)

	created := result.Data.(map[string]interface{})["createUser"].(map[string]interface{})
	assert.Equal(t, "Ada", created["name"])
	assert.Equal(t, 30, created["age"])
	assert.Equal(t, "t1", created["tenantId"])
	assert.Equal(t, "user-1", created["createdBy"])
	assert.NotEmpty(t, created["id"])

	// Test: document persisted with audit stamps
	doc, err := store.FindOne(context.Background(), "wize-data", "users", map[string]interface{}{"name": "Ada"})
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "t1", doc["tenantId"])
	assert.NotNil(t, doc["createdAt"])
}

func TestCreateMutation_MissingScope(t *testing.T) {
	// A caller without user:create must not write anything.

	schema, store := setupUserSchema(t)
	ctx := authContext(store, "t1", "user:read")

	result := execute(t, schema, ctx, `mutation {
		createUser(input: {name: "Ada"}) { id }
	}`, nil)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0].Message, "user:create")

	count, err := store.Count(context.Background(), "wize-data", "users", map[string]interface{}{})
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestFindById_TenantIsolation(t *testing.T) {
	// Test plan:
	// - A record created under one tenant resolves for that tenant
	// - The same id resolves to null for another tenant
	// - An unknown id resolves to null, not an error

	schema, store := setupUserSchema(t)

	id, err := store.InsertOne(context.Background(), "wize-data", "users",
		storage.Document{"name": "Ada", "tenantId": "t1"})
	require.NoError(t, err)

	query := fmt.Sprintf(`{ findUserById(id: %q) { name } }`, id)

	result := execute(t, schema, authContext(store, "t1", "user:read"), query, nil)
	require.Empty(t, result.Errors)
	found := result.Data.(map[string]interface{})["findUserById"].(map[string]interface{})
	assert.Equal(t, "Ada", found["name"])

	// Test: other tenant sees nothing
	result = execute(t, schema, authContext(store, "t2", "user:read"), query, nil)
	require.Empty(t, result.Errors)
	assert.Nil(t, result.Data.(map[string]interface{})["findUserById"])

	// Test: unknown id
	result = execute(t, schema, authContext(store, "t1", "user:read"),
		`{ findUserById(id: "nope") { name } }`, nil)
	require.Empty(t, result.Errors)
	assert.Nil(t, result.Data.(map[string]interface{})["findUserById"])
}

func TestFindList_FilterSortPaging(t *testing.T) {
	// Test plan:
	// - Filter arguments with operator suffixes narrow the result
	// - count reports the unpaged total while data honors paging
	// - Results from other tenants never appear

	schema, store := setupUserSchema(t)
	ctx := context.Background()

	for i, name := range []string{"Ada", "Grace", "Linus", "Barbara"} {
		_, err := store.InsertOne(ctx, "wize-data", "users",
			storage.Document{"name": name, "age": 20 + i*10, "tenantId": "t1"})
		require.NoError(t, err)
	}
	_, err := store.InsertOne(ctx, "wize-data", "users",
		storage.Document{"name": "Mallory", "age": 99, "tenantId": "t2"})
	require.NoError(t, err)

	result := execute(t, schema, authContext(store, "t1", "user:read"), `{
		findUsers(filter: {age_gte: 30}, sort: {age: ASC}, paging: {limit: 2, offset: 0}) {
			count
			data { name age }
		}
	}`, nil)
	require.Empty(t, result.Errors)

	list := result.Data.(map[string]interface{})["findUsers"].(map[string]interface{})
	assert.EqualValues(t, 3, list["count"])

	data := list["data"].([]interface{})
	require.Len(t, data, 2)
	assert.Equal(t, "Grace", data[0].(map[string]interface{})["name"])
	assert.Equal(t, "Linus", data[1].(map[string]interface{})["name"])
}

func TestSortSpec_NestedObjectPaths(t *testing.T) {
	// Test plan:
	// - Nested sort maps flatten into dotted field paths
	// - Directions survive at every depth; order is alphabetical per level

	spec := sortSpec(map[string]interface{}{
		"age": "DESC",
		"address": map[string]interface{}{
			"city": "ASC",
			"geo":  map[string]interface{}{"lat": "DESC"},
		},
	})

	assert.Equal(t, bson.D{
		{Key: "address.city", Value: 1},
		{Key: "address.geo.lat", Value: -1},
		{Key: "age", Value: -1},
	}, spec)
}

func TestFindList_NestedSort(t *testing.T) {
	// Sorting on an object subfield must order by the nested value, not by
	// the parent field.

	f := newTestFactory()
	md := metadata.Metadata{Fields: map[string]metadata.FieldDefinition{
		"name": {Type: "string"},
		"address": {Type: "object", Fields: map[string]metadata.FieldDefinition{
			"city": {Type: "string"},
		}},
	}}
	schema, err := f.CreateSchema(context.Background(), testKey("user"), md)
	require.NoError(t, err)

	store := storage.NewMemoryStore()
	ctx := context.Background()
	for _, doc := range []storage.Document{
		{"name": "Ada", "tenantId": "t1", "address": map[string]interface{}{"city": "Zurich"}},
		{"name": "Grace", "tenantId": "t1", "address": map[string]interface{}{"city": "Amsterdam"}},
	} {
		_, err := store.InsertOne(ctx, "wize-data", "users", doc)
		require.NoError(t, err)
	}

	result := execute(t, schema, authContext(store, "t1", "user:read"), `{
		findUsers(sort: {address: {city: ASC}}) { data { name } }
	}`, nil)
	require.Empty(t, result.Errors)

	data := result.Data.(map[string]interface{})["findUsers"].(map[string]interface{})["data"].([]interface{})
	require.Len(t, data, 2)
	assert.Equal(t, "Grace", data[0].(map[string]interface{})["name"])
	assert.Equal(t, "Ada", data[1].(map[string]interface{})["name"])
}

func TestFindList_ZeroLimitKeepsDefaultPage(t *testing.T) {
	// An explicit zero limit must not disable paging; the default page
	// size still applies while count stays unpaged.

	schema, store := setupUserSchema(t)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		_, err := store.InsertOne(ctx, "wize-data", "users",
			storage.Document{"name": fmt.Sprintf("user-%02d", i), "tenantId": "t1"})
		require.NoError(t, err)
	}

	result := execute(t, schema, authContext(store, "t1", "user:read"), `{
		findUsers(paging: {limit: 0}) { count data { name } }
	}`, nil)
	require.Empty(t, result.Errors)

	list := result.Data.(map[string]interface{})["findUsers"].(map[string]interface{})
	assert.EqualValues(t, 25, list["count"])
	assert.Len(t, list["data"], 20)
}

func TestUpdateMutation(t *testing.T) {
	// Test plan:
	// - updateUser applies the input and stamps updatedAt/updatedBy
	// - a missing or cross-tenant id yields a not-found error

	schema, store := setupUserSchema(t)
	ctx := context.Background()

	id, err := store.InsertOne(ctx, "wize-data", "users",
		storage.Document{"name": "Ada", "age": 30, "tenantId": "t1"})
	require.NoError(t, err)

	query := fmt.Sprintf(`mutation {
		updateUser(id: %q, input: {age: 31}) { name age updatedBy }
	}`, id)

	result := execute(t, schema, authContext(store, "t1", "user:update", "user:read"), query, nil)
	require.Empty(t, result.Errors)
	updated := result.Data.(map[string]interface{})["updateUser"].(map[string]interface{})
	assert.Equal(t, "Ada", updated["name"])
	assert.Equal(t, 31, updated["age"])
	assert.Equal(t, "user-1", updated["updatedBy"])

	// Test: cross-tenant update is not found
	result = execute(t, schema, authContext(store, "t2", "user:update"), query, nil)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0].Message, "not found")
}

func TestDeleteMutation(t *testing.T) {
	// Test plan:
	// - deleteUser removes the record and returns its last snapshot
	// - deleting again reports not found

	schema, store := setupUserSchema(t)
	ctx := context.Background()

	id, err := store.InsertOne(ctx, "wize-data", "users",
		storage.Document{"name": "Ada", "tenantId": "t1"})
	require.NoError(t, err)

	query := fmt.Sprintf(`mutation { deleteUser(id: %q) { name } }`, id)
	authCtx := authContext(store, "t1", "user:delete")

	result := execute(t, schema, authCtx, query, nil)
	require.Empty(t, result.Errors)
	snapshot := result.Data.(map[string]interface{})["deleteUser"].(map[string]interface{})
	assert.Equal(t, "Ada", snapshot["name"])

	count, err := store.Count(ctx, "wize-data", "users", map[string]interface{}{})
	require.NoError(t, err)
	assert.Zero(t, count)

	result = execute(t, schema, authCtx, query, nil)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0].Message, "not found")
}

func TestMutations_PublishEvents(t *testing.T) {
	// Test plan:
	// - create publishes to the <Table>_CREATED topic when a broker is
	//   configured

	broker := pubsub.NewMemoryBroker(zerolog.Nop())
	f := NewFactory(FactoryOptions{Broker: broker, Logger: zerolog.Nop()})

	schema, err := f.CreateSchema(context.Background(), testKey("user"), userMetadata())
	require.NoError(t, err)

	events, cancel, err := broker.Subscribe(context.Background(), "User_CREATED")
	require.NoError(t, err)
	defer cancel()

	store := storage.NewMemoryStore()
	result := execute(t, schema, authContext(store, "t1", "user:create"),
		`mutation { createUser(input: {name: "Ada"}) { id } }`, nil)
	require.Empty(t, result.Errors)

	select {
	case evt := <-events:
		doc, ok := evt.(storage.Document)
		require.True(t, ok)
		assert.Equal(t, "Ada", doc["name"])
	default:
		t.Fatal("expected a CREATED event")
	}
}

func TestCoerceInput(t *testing.T) {
	// Test plan:
	// - identifier and unknown fields are dropped
	// - empty strings become null for optional and numeric fields
	// - numeric strings are parsed per the declared type

	md := metadata.Metadata{Fields: map[string]metadata.FieldDefinition{
		"name":   {Type: "string", Required: true},
		"bio":    {Type: "string"},
		"age":    {Type: "number"},
		"score":  {Type: "float"},
		"secret": {Type: "string", SystemReserved: true},
	}}

	doc := coerceInput(md, map[string]interface{}{
		"id":       "x",
		"_id":      "x",
		"tenantId": "evil",
		"unknown":  "y",
		"secret":   "z",
		"name":     "Ada",
		"bio":      "",
		"age":      "42",
		"score":    "9.5",
	})

	assert.Equal(t, map[string]interface{}{
		"name":  "Ada",
		"bio":   nil,
		"age":   int64(42),
		"score": 9.5,
	}, doc)

	// Test: empty string on a required numeric field still nulls out
	doc = coerceInput(md, map[string]interface{}{"age": ""})
	assert.Equal(t, map[string]interface{}{"age": nil}, doc)
}
