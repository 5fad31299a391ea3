package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/wize-platform/wizegraph/internal/apierror"
	"github.com/wize-platform/wizegraph/internal/auth"
	wizegraphql "github.com/wize-platform/wizegraph/internal/graphql"
	"github.com/wize-platform/wizegraph/internal/metadata"
	"github.com/wize-platform/wizegraph/internal/storage"
)

// registerSchemaRequest is the metadata submission body.
type registerSchemaRequest struct {
	Table     string            `json:"table"`
	Metadata  metadata.Metadata `json:"metadata"`
	ClientApp string            `json:"clientApp"`
}

// Admin handles metadata registration and schema refresh.
type Admin struct {
	store         storage.Store
	factory       *wizegraphql.Factory
	authenticator *auth.Authenticator
	gateway       *Gateway
	database      string
	logger        zerolog.Logger
}

// NewAdmin creates the admin handler set.
func NewAdmin(store storage.Store, factory *wizegraphql.Factory, authenticator *auth.Authenticator, gateway *Gateway, database string, logger zerolog.Logger) *Admin {
	return &Admin{
		store:         store,
		factory:       factory,
		authenticator: authenticator,
		gateway:       gateway,
		database:      database,
		logger:        logger.With().Str("component", "admin").Logger(),
	}
}

// HandleRegisterSchema validates submitted metadata, persists it to the
// configuration store and eagerly builds the entity schema.
func (a *Admin) HandleRegisterSchema(w http.ResponseWriter, r *http.Request) {
	ac, err := a.authenticator.Authenticate(r.Context(), r.Header.Get(APIKeyHeader), r.Header.Get("Authorization"), a.database)
	if err != nil {
		writeError(w, err)
		return
	}

	var req registerSchemaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apierror.NewValidation("invalid request body: %v", err))
		return
	}

	clientApp := req.ClientApp
	if clientApp == "" {
		clientApp = ac.ClientApp
	}
	if req.Table == "" || len(req.Metadata.Fields) == 0 || clientApp == "" {
		writeError(w, apierror.NewValidation("missing required fields: table, metadata, clientApp"))
		return
	}

	if err := metadata.Validate(req.Table, req.Metadata); err != nil {
		writeError(w, err)
		return
	}

	key := metadata.SchemaKey{
		TenantID:  ac.TenantID,
		ClientApp: clientApp,
		Database:  a.database,
		Table:     req.Table,
	}

	if err := a.persistSchemaRecord(r, key, req.Metadata); err != nil {
		a.logger.Error().Err(err).Str("table", req.Table).Msg("failed to persist schema record")
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "Failed to register schema",
			Details: err.Error(),
		})
		return
	}

	if _, err := a.factory.CreateSchema(r.Context(), key, req.Metadata); err != nil {
		a.logger.Error().Err(err).Str("table", req.Table).Msg("failed to build schema")
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "Failed to register schema",
			Details: err.Error(),
		})
		return
	}

	a.gateway.Invalidate(ac.TenantID, clientApp)

	a.logger.Info().
		Str("table", req.Table).
		Str("tenant", ac.TenantID).
		Str("clientApp", clientApp).
		Msg("schema registered")
	writeJSON(w, http.StatusOK, map[string]string{"message": "Schema registered successfully"})
}

// persistSchemaRecord upserts the configuration record keyed by
// {table, tenantId, clientApp, database}.
func (a *Admin) persistSchemaRecord(r *http.Request, key metadata.SchemaKey, md metadata.Metadata) error {
	filter := bson.M{
		"table":     key.Table,
		"tenantId":  key.TenantID,
		"clientApp": key.ClientApp,
		"database":  key.Database,
	}
	record := storage.Document{
		"table":     key.Table,
		"tenantId":  key.TenantID,
		"clientApp": key.ClientApp,
		"database":  key.Database,
		"metadata":  md,
		"updatedAt": time.Now().UTC(),
	}

	matched, err := a.store.UpdateOne(r.Context(), configDatabase, schemasCollection, filter, bson.M{"$set": record})
	if err != nil {
		return err
	}
	if matched == 0 {
		if _, err := a.store.InsertOne(r.Context(), configDatabase, schemasCollection, record); err != nil {
			return err
		}
	}
	return nil
}

// HandleRefreshSchemas drops the caller's cached merged schema so the next
// request rebuilds from persisted records.
func (a *Admin) HandleRefreshSchemas(w http.ResponseWriter, r *http.Request) {
	ac, err := a.authenticator.Authenticate(r.Context(), r.Header.Get(APIKeyHeader), r.Header.Get("Authorization"), a.database)
	if err != nil {
		writeError(w, err)
		return
	}

	a.gateway.Invalidate(ac.TenantID, ac.ClientApp)

	if _, err := a.gateway.schemaFor(r.Context(), ac); err != nil {
		a.logger.Error().Err(err).Str("tenant", ac.TenantID).Msg("failed to refresh schemas")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	a.logger.Info().Str("tenant", ac.TenantID).Str("clientApp", ac.ClientApp).Msg("schemas refreshed")
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
