// Package server exposes the schema factory over HTTP: a tenant-scoped
// GraphQL endpoint, admin routes for metadata registration, and health.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/graphql-go/graphql"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"golang.org/x/sync/singleflight"

	"github.com/wize-platform/wizegraph/internal/apierror"
	"github.com/wize-platform/wizegraph/internal/auth"
	wizegraphql "github.com/wize-platform/wizegraph/internal/graphql"
	"github.com/wize-platform/wizegraph/internal/metadata"
	"github.com/wize-platform/wizegraph/internal/storage"
)

// Persisted configuration records live in a fixed document-store location,
// unique per {table, tenantId, clientApp, database}.
const (
	configDatabase    = "wize-configuration"
	schemasCollection = "schemas"
)

// APIKeyHeader carries the tenant API key on every request.
const APIKeyHeader = "wize-api-key"

// graphqlRequest is the standard GraphQL HTTP request envelope.
type graphqlRequest struct {
	Query         string                 `json:"query"`
	Variables     map[string]interface{} `json:"variables,omitempty"`
	OperationName string                 `json:"operationName,omitempty"`
}

// errorResponse is the envelope for non-GraphQL errors.
type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Gateway serves tenant-scoped GraphQL requests against merged per-entity
// schemas, rebuilding a tenant's merged schema on first use and caching it
// until invalidated.
type Gateway struct {
	store         storage.Store
	factory       *wizegraphql.Factory
	authenticator *auth.Authenticator
	database      string
	logger        zerolog.Logger

	mu      sync.RWMutex
	schemas map[string]*graphql.Schema
	group   singleflight.Group
}

// NewGateway creates a gateway serving the given default database.
func NewGateway(store storage.Store, factory *wizegraphql.Factory, authenticator *auth.Authenticator, database string, logger zerolog.Logger) *Gateway {
	return &Gateway{
		store:         store,
		factory:       factory,
		authenticator: authenticator,
		database:      database,
		logger:        logger.With().Str("component", "gateway").Logger(),
		schemas:       make(map[string]*graphql.Schema),
	}
}

// HandleGraphQL executes one GraphQL request for the authenticated tenant.
func (g *Gateway) HandleGraphQL(w http.ResponseWriter, r *http.Request) {
	ac, err := g.authenticator.Authenticate(r.Context(), r.Header.Get(APIKeyHeader), r.Header.Get("Authorization"), g.database)
	if err != nil {
		writeError(w, err)
		return
	}

	var req graphqlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apierror.NewValidation("invalid request body: %v", err))
		return
	}

	schema, err := g.schemaFor(r.Context(), ac)
	if err != nil {
		g.logger.Error().Err(err).Str("tenant", ac.TenantID).Msg("failed to build merged schema")
		writeError(w, apierror.NewInternal("failed to build schema: %v", err))
		return
	}

	result := graphql.Do(graphql.Params{
		Schema:         *schema,
		RequestString:  req.Query,
		VariableValues: req.Variables,
		OperationName:  req.OperationName,
		Context:        auth.NewContext(r.Context(), ac),
	})

	w.Header().Set("Content-Type", "application/json")
	// GraphQL execution errors still travel in a 200 response body.
	if err := json.NewEncoder(w).Encode(result); err != nil {
		g.logger.Error().Err(err).Msg("failed to encode graphql response")
	}
}

// Invalidate drops the cached merged schema for a tenant/app pair.
func (g *Gateway) Invalidate(tenantID, clientApp string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.schemas, tenantID+"/"+clientApp)
}

// schemaFor returns the merged schema for the caller's tenant, building it
// at most once concurrently per tenant/app pair.
func (g *Gateway) schemaFor(ctx context.Context, ac *auth.Context) (*graphql.Schema, error) {
	cacheKey := ac.TenantID + "/" + ac.ClientApp

	g.mu.RLock()
	cached, ok := g.schemas[cacheKey]
	g.mu.RUnlock()
	if ok {
		return cached, nil
	}

	result, err, _ := g.group.Do(cacheKey, func() (interface{}, error) {
		g.mu.RLock()
		cached, ok := g.schemas[cacheKey]
		g.mu.RUnlock()
		if ok {
			return cached, nil
		}

		entries, err := g.loadEntries(ctx, ac)
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			g.logger.Warn().Str("tenant", ac.TenantID).Str("clientApp", ac.ClientApp).Msg("no schemas registered for tenant")
		}

		schema, err := g.factory.BuildMergedSchema(ctx, entries)
		if err != nil {
			return nil, err
		}

		g.mu.Lock()
		g.schemas[cacheKey] = &schema
		g.mu.Unlock()
		return &schema, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*graphql.Schema), nil
}

// loadEntries reads the tenant's persisted schema records, newest first, and
// keeps one per table.
func (g *Gateway) loadEntries(ctx context.Context, ac *auth.Context) ([]wizegraphql.Entry, error) {
	docs, err := g.store.Find(ctx, configDatabase, schemasCollection,
		bson.M{"tenantId": ac.TenantID, "clientApp": ac.ClientApp},
		storage.FindOptions{Sort: bson.D{{Key: "updatedAt", Value: -1}}},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema records: %w", err)
	}

	entries := make([]wizegraphql.Entry, 0, len(docs))
	seen := make(map[string]bool)
	for _, doc := range docs {
		table, _ := doc["table"].(string)
		if table == "" || seen[table] {
			continue
		}

		md, err := decodeMetadata(doc["metadata"])
		if err != nil {
			g.logger.Warn().Err(err).Str("table", table).Msg("skipping undecodable schema record")
			continue
		}

		seen[table] = true
		entries = append(entries, wizegraphql.Entry{
			Key: metadata.SchemaKey{
				TenantID:  ac.TenantID,
				ClientApp: ac.ClientApp,
				Database:  ac.Database,
				Table:     table,
			},
			Metadata: md,
		})
	}
	return entries, nil
}

// decodeMetadata converts a stored metadata document into its typed form.
func decodeMetadata(raw interface{}) (metadata.Metadata, error) {
	var md metadata.Metadata
	data, err := json.Marshal(raw)
	if err != nil {
		return md, err
	}
	if err := json.Unmarshal(data, &md); err != nil {
		return md, err
	}
	return md, nil
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apierror.StatusOf(err))
	_ = json.NewEncoder(w).Encode(errorResponse{Error: err.Error()})
}
