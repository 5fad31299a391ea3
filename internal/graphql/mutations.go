package graphql

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/graphql-go/graphql"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/wize-platform/wizegraph/internal/apierror"
	"github.com/wize-platform/wizegraph/internal/auth"
	"github.com/wize-platform/wizegraph/internal/metadata"
)

// Event names used for pub/sub topics.
const (
	eventCreated = "CREATED"
	eventUpdated = "UPDATED"
	eventDeleted = "DELETED"
)

// identifierFields are never trusted from client input.
var identifierFields = []string{"id", "_id", "tenantId"}

// generateMutations emits create/update/delete root fields for one entity.
// The tenant id is stamped from the request context, never taken from input;
// update and delete targets are resolved by identifier AND tenant so a
// cross-tenant write is impossible by construction.
func (f *Factory) generateMutations(key metadata.SchemaKey, md metadata.Metadata) (graphql.Fields, error) {
	objectType, err := f.cachedObjectType(key, md)
	if err != nil {
		return nil, err
	}
	inputType, err := f.cachedInputType(key, md)
	if err != nil {
		return nil, err
	}

	table := key.Table
	collection := collectionName(table)
	logger := f.logger.With().Str("table", table).Logger()

	fields := graphql.Fields{}

	fields["create"+capitalize(table)] = &graphql.Field{
		Type: objectType,
		Args: graphql.FieldConfigArgument{
			"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(inputType)},
		},
		Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			ac, err := requireAuth(p, scopeName(table, "create"))
			if err != nil {
				return nil, err
			}

			ctx, end := f.tracer.StartSpan(p.Context, "mutation."+table+".create")
			defer end()

			input, _ := p.Args["input"].(map[string]interface{})
			doc := coerceInput(md, input)

			doc["tenantId"] = ac.TenantID
			doc["createdAt"] = time.Now().UTC()
			doc["createdBy"] = userOrSystem(ac)

			id, err := ac.Store.InsertOne(ctx, ac.Database, collection, doc)
			if err != nil {
				logger.Error().Err(err).Msg("create failed")
				return nil, fmt.Errorf("Failed to create %s: %v", table, err)
			}

			// Read back rather than echoing the insert, so storage-applied
			// defaults appear in the response.
			created, err := ac.Store.FindOne(ctx, ac.Database, collection, bson.M{"_id": id, "tenantId": ac.TenantID})
			if err != nil {
				logger.Error().Err(err).Msg("create read-back failed")
				return nil, fmt.Errorf("Failed to create %s: %v", table, err)
			}

			logger.Info().Interface("id", id).Msg("created record")
			f.publish(ctx, topicName(table, eventCreated), created)
			return created, nil
		},
	}

	fields["update"+capitalize(table)] = &graphql.Field{
		Type: objectType,
		Args: graphql.FieldConfigArgument{
			"id":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
			"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(inputType)},
		},
		Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			ac, err := requireAuth(p, scopeName(table, "update"))
			if err != nil {
				return nil, err
			}

			ctx, end := f.tracer.StartSpan(p.Context, "mutation."+table+".update")
			defer end()

			filter := bson.M{
				"_id":      normalizeID(p.Args["id"]),
				"tenantId": ac.TenantID,
			}

			set := coerceInput(md, asMap(p.Args["input"]))
			set["updatedAt"] = time.Now().UTC()
			set["updatedBy"] = userOrSystem(ac)

			matched, err := ac.Store.UpdateOne(ctx, ac.Database, collection, filter, bson.M{"$set": set})
			if err != nil {
				logger.Error().Err(err).Msg("update failed")
				return nil, fmt.Errorf("Failed to update %s: %v", table, err)
			}
			if matched == 0 {
				return nil, apierror.NewNotFound("%s with id '%v' not found", table, p.Args["id"])
			}

			updated, err := ac.Store.FindOne(ctx, ac.Database, collection, filter)
			if err != nil {
				logger.Error().Err(err).Msg("update read-back failed")
				return nil, fmt.Errorf("Failed to update %s: %v", table, err)
			}

			logger.Info().Interface("id", p.Args["id"]).Msg("updated record")
			f.publish(ctx, topicName(table, eventUpdated), updated)
			return updated, nil
		},
	}

	fields["delete"+capitalize(table)] = &graphql.Field{
		Type: objectType,
		Args: graphql.FieldConfigArgument{
			"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
		},
		Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			ac, err := requireAuth(p, scopeName(table, "delete"))
			if err != nil {
				return nil, err
			}

			ctx, end := f.tracer.StartSpan(p.Context, "mutation."+table+".delete")
			defer end()

			filter := bson.M{
				"_id":      normalizeID(p.Args["id"]),
				"tenantId": ac.TenantID,
			}

			snapshot, err := ac.Store.FindOne(ctx, ac.Database, collection, filter)
			if err != nil {
				logger.Error().Err(err).Msg("delete lookup failed")
				return nil, fmt.Errorf("Failed to delete %s: %v", table, err)
			}
			if snapshot == nil {
				return nil, apierror.NewNotFound("%s with id '%v' not found", table, p.Args["id"])
			}

			if _, err := ac.Store.DeleteOne(ctx, ac.Database, collection, filter); err != nil {
				logger.Error().Err(err).Msg("delete failed")
				return nil, fmt.Errorf("Failed to delete %s: %v", table, err)
			}

			logger.Info().Interface("id", p.Args["id"]).Msg("deleted record")
			f.publish(ctx, topicName(table, eventDeleted), snapshot)
			return snapshot, nil
		},
	}

	return fields, nil
}

// publish forwards an entity event to the broker when one is configured.
// Event publication is an extension point; a factory without a broker
// publishes nothing.
func (f *Factory) publish(ctx context.Context, topic string, payload interface{}) {
	if f.broker == nil || payload == nil {
		return
	}
	if err := f.broker.Publish(ctx, topic, payload); err != nil {
		f.logger.Warn().Err(err).Str("topic", topic).Msg("failed to publish event")
	}
}

func userOrSystem(ac *auth.Context) string {
	if ac.User.ID != "" {
		return ac.User.ID
	}
	return "system"
}

func asMap(raw interface{}) map[string]interface{} {
	m, _ := raw.(map[string]interface{})
	return m
}

// coerceInput copies input, dropping identifier/tenant and unknown fields,
// coercing empty strings to null for optional and numeric fields, and
// parsing numeric values supplied as strings.
func coerceInput(md metadata.Metadata, input map[string]interface{}) map[string]interface{} {
	doc := make(map[string]interface{}, len(input))

	for name, value := range input {
		if isIdentifierField(name) {
			continue
		}
		def, ok := md.Fields[name]
		if !ok || def.SystemReserved {
			continue
		}

		if s, isString := value.(string); isString {
			if s == "" && (!def.Required || def.Type.IsNumeric()) {
				doc[name] = nil
				continue
			}
			if def.Type.IsNumeric() {
				if coerced, ok := parseNumeric(def.Type, s); ok {
					doc[name] = coerced
					continue
				}
			}
		}

		doc[name] = value
	}

	return doc
}

func isIdentifierField(name string) bool {
	for _, reserved := range identifierFields {
		if strings.EqualFold(name, reserved) {
			return true
		}
	}
	return false
}

func parseNumeric(t metadata.FieldType, s string) (interface{}, bool) {
	canonical, _ := t.Canonical()
	if canonical == metadata.TypeNumber {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, true
		}
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return n, true
	}
	return nil, false
}
