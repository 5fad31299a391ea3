package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wize-platform/wizegraph/internal/auth"
	wizegraphql "github.com/wize-platform/wizegraph/internal/graphql"
	"github.com/wize-platform/wizegraph/internal/storage"
)

type testServer struct {
	store   *storage.MemoryStore
	gateway *Gateway
	http    *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := storage.NewMemoryStore()
	factory := wizegraphql.NewFactory(wizegraphql.FactoryOptions{Logger: zerolog.Nop()})
	authenticator := auth.NewAuthenticator(store, zerolog.Nop())
	gateway := NewGateway(store, factory, authenticator, "wize-data", zerolog.Nop())
	admin := NewAdmin(store, factory, authenticator, gateway, "wize-data", zerolog.Nop())

	ts := httptest.NewServer(NewRouter(gateway, admin, zerolog.Nop()))
	t.Cleanup(ts.Close)

	return &testServer{store: store, gateway: gateway, http: ts}
}

func (s *testServer) seedAPIKey(t *testing.T, key string, scopes ...string) {
	t.Helper()
	scopeList := make([]interface{}, len(scopes))
	for i, scope := range scopes {
		scopeList[i] = scope
	}
	_, err := s.store.InsertOne(context.Background(), "wize-identity", "api_keys", storage.Document{
		"key":       key,
		"isActive":  true,
		"tenantId":  "t1",
		"clientApp": "crm",
		"scopes":    scopeList,
	})
	require.NoError(t, err)
}

func (s *testServer) post(t *testing.T, path, apiKey string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, s.http.URL+path, bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set(APIKeyHeader, apiKey)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func userSchemaRequest() map[string]interface{} {
	return map[string]interface{}{
		"table": "user",
		"metadata": map[string]interface{}{
			"fields": map[string]interface{}{
				"name": map[string]interface{}{"type": "string", "required": true},
				"age":  map[string]interface{}{"type": "number"},
			},
		},
	}
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)

	resp, err := http.Get(s.http.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRegisterSchema_RequiresAPIKey(t *testing.T) {
	// Test plan:
	// - A missing key and an unknown key are rejected with 401

	s := newTestServer(t)

	resp, body := s.post(t, "/admin/schema", "", userSchemaRequest())
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.NotEmpty(t, body["error"])

	resp, _ = s.post(t, "/admin/schema", "bogus", userSchemaRequest())
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRegisterSchema_Validation(t *testing.T) {
	// Test plan:
	// - Missing table or empty metadata is a 400
	// - Metadata with an unknown field type is a 400 naming the field

	s := newTestServer(t)
	s.seedAPIKey(t, "admin-key")

	resp, _ := s.post(t, "/admin/schema", "admin-key", map[string]interface{}{
		"metadata": map[string]interface{}{
			"fields": map[string]interface{}{"name": map[string]interface{}{"type": "string"}},
		},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := s.post(t, "/admin/schema", "admin-key", map[string]interface{}{
		"table": "user",
		"metadata": map[string]interface{}{
			"fields": map[string]interface{}{"blob": map[string]interface{}{"type": "varchar"}},
		},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "blob")
}

func TestRegisterSchema_PersistsRecord(t *testing.T) {
	// Test plan:
	// - Registration stores one configuration record per table
	// - Re-registering the same table updates in place, not duplicates

	s := newTestServer(t)
	s.seedAPIKey(t, "admin-key")

	resp, _ := s.post(t, "/admin/schema", "admin-key", userSchemaRequest())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = s.post(t, "/admin/schema", "admin-key", userSchemaRequest())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	count, err := s.store.Count(context.Background(), "wize-configuration", "schemas",
		map[string]interface{}{"table": "user", "tenantId": "t1"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestGraphQL_EndToEnd(t *testing.T) {
	// Test plan:
	// - Register a schema, then create and query records through the
	//   /graphql endpoint
	// - The gateway builds the merged schema from persisted records

	s := newTestServer(t)
	s.seedAPIKey(t, "admin-key", "user:read", "user:create")

	resp, _ := s.post(t, "/admin/schema", "admin-key", userSchemaRequest())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := s.post(t, "/graphql", "admin-key", map[string]interface{}{
		"query": `mutation { createUser(input: {name: "Ada", age: 30}) { id name tenantId } }`,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Nil(t, body["errors"], "unexpected errors: %v", body["errors"])

	created := body["data"].(map[string]interface{})["createUser"].(map[string]interface{})
	assert.Equal(t, "Ada", created["name"])
	assert.Equal(t, "t1", created["tenantId"])

	resp, body = s.post(t, "/graphql", "admin-key", map[string]interface{}{
		"query": `{ findUsers(filter: {age_gte: 18}) { count data { name } } }`,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Nil(t, body["errors"])

	list := body["data"].(map[string]interface{})["findUsers"].(map[string]interface{})
	assert.EqualValues(t, 1, list["count"])
}

func TestGraphQL_ScopeErrorsInResponseBody(t *testing.T) {
	// Resolver authorization failures travel as GraphQL errors in a 200
	// response, not transport errors.

	s := newTestServer(t)
	s.seedAPIKey(t, "reader-key", "user:read")

	resp, _ := s.post(t, "/admin/schema", "reader-key", userSchemaRequest())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := s.post(t, "/graphql", "reader-key", map[string]interface{}{
		"query": `mutation { createUser(input: {name: "Ada"}) { id } }`,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, body["errors"])
}

func TestGraphQL_NoRegisteredSchemas(t *testing.T) {
	// A tenant with no registered schemas still gets an executable schema
	// exposing the placeholder query.

	s := newTestServer(t)
	s.seedAPIKey(t, "empty-key")

	resp, body := s.post(t, "/graphql", "empty-key", map[string]interface{}{
		"query": `{ _empty }`,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Nil(t, body["errors"])
	assert.Equal(t, "No schemas available for this key.", body["data"].(map[string]interface{})["_empty"])
}

func TestRefreshSchemas(t *testing.T) {
	// Test plan:
	// - A schema registered after the merged schema was first built is
	//   visible once refreshed

	s := newTestServer(t)
	s.seedAPIKey(t, "admin-key", "user:read")

	// Build (and cache) the empty merged schema first.
	resp, _ := s.post(t, "/graphql", "admin-key", map[string]interface{}{"query": `{ _empty }`})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = s.post(t, "/admin/schemas/refresh", "admin-key", map[string]interface{}{})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Registration invalidates; refresh after registering also rebuilds.
	resp, _ = s.post(t, "/admin/schema", "admin-key", userSchemaRequest())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := s.post(t, "/graphql", "admin-key", map[string]interface{}{
		"query": `{ findUsers { count } }`,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Nil(t, body["errors"])
	assert.NotNil(t, body["data"].(map[string]interface{})["findUsers"])
}

func TestGraphQL_InvalidBody(t *testing.T) {
	s := newTestServer(t)
	s.seedAPIKey(t, "admin-key")

	req, err := http.NewRequest(http.MethodPost, s.http.URL+"/graphql", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	req.Header.Set(APIKeyHeader, "admin-key")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
