// Package auth resolves API keys to tenant identities and carries the
// request-scoped context every generated resolver reads.
package auth

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/wize-platform/wizegraph/internal/apierror"
	"github.com/wize-platform/wizegraph/internal/storage"
)

// Identity database and collection holding API key records.
const (
	identityDatabase  = "wize-identity"
	apiKeysCollection = "api_keys"
)

// User identifies the authenticated principal.
type User struct {
	ID string
}

// Context is the request-scoped identity and capability set passed to every
// resolver. It is constructed once per request; resolvers never reach for
// ambient globals.
type Context struct {
	Store     storage.Store
	TenantID  string
	ClientApp string
	Database  string
	User      User
	Scopes    []string
}

type contextKey struct{}

// NewContext attaches ac to ctx.
func NewContext(ctx context.Context, ac *Context) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

// FromContext extracts the auth context attached by NewContext.
func FromContext(ctx context.Context) (*Context, bool) {
	ac, ok := ctx.Value(contextKey{}).(*Context)
	return ac, ok
}

// RequireScope fails with an unauthorized error unless scope is present in
// the request's scope list.
func RequireScope(ctx context.Context, scope string) error {
	ac, ok := FromContext(ctx)
	if !ok {
		return apierror.NewUnauthorized("missing auth context")
	}
	for _, s := range ac.Scopes {
		if s == scope {
			return nil
		}
	}
	return apierror.NewUnauthorized("missing required scope '%s'", scope)
}

// Authenticator resolves wize-api-key headers against the identity store.
type Authenticator struct {
	store  storage.Store
	logger zerolog.Logger
}

// NewAuthenticator creates an authenticator backed by store.
func NewAuthenticator(store storage.Store, logger zerolog.Logger) *Authenticator {
	return &Authenticator{
		store:  store,
		logger: logger.With().Str("component", "auth").Logger(),
	}
}

// Authenticate looks up an active API key record and builds the request
// context. bearerToken, when present, contributes the user id via its
// unverified sub claim; verification belongs to the identity service that
// issued it.
func (a *Authenticator) Authenticate(ctx context.Context, apiKey, bearerToken, database string) (*Context, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, apierror.NewUnauthorized("missing wize-api-key header")
	}

	record, err := a.store.FindOne(ctx, identityDatabase, apiKeysCollection, bson.M{"key": apiKey, "isActive": true})
	if err != nil {
		return nil, apierror.NewInternal("failed to look up API key: %v", err)
	}
	if record == nil {
		a.logger.Warn().Msg("invalid or disabled API key")
		return nil, apierror.NewUnauthorized("invalid or disabled API key")
	}

	if _, err := a.store.UpdateOne(ctx, identityDatabase, apiKeysCollection,
		bson.M{"key": apiKey},
		bson.M{"$set": bson.M{"lastUsedAt": nowUTC()}},
	); err != nil {
		// Usage stamping is best effort.
		a.logger.Warn().Err(err).Msg("failed to update lastUsedAt")
	}

	return &Context{
		Store:     a.store,
		TenantID:  stringField(record, "tenantId"),
		ClientApp: stringField(record, "clientApp"),
		Database:  database,
		User:      User{ID: userIDFromToken(bearerToken)},
		Scopes:    stringSliceField(record, "scopes"),
	}, nil
}

func nowUTC() time.Time { return time.Now().UTC() }

// userIDFromToken decodes the sub claim of a bearer token without verifying
// the signature, defaulting to the zero UUID system user.
func userIDFromToken(bearerToken string) string {
	systemUser := uuid.Nil.String()

	raw := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(bearerToken), "Bearer"))
	if raw == "" {
		return systemUser
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return systemUser
	}
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		return sub
	}
	return systemUser
}

func stringField(doc storage.Document, key string) string {
	s, _ := doc[key].(string)
	return s
}

func stringSliceField(doc storage.Document, key string) []string {
	switch v := doc[key].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case bson.A:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
