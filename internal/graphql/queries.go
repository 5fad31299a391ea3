package graphql

import (
	"fmt"
	"sort"

	"github.com/graphql-go/graphql"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/wize-platform/wizegraph/internal/apierror"
	"github.com/wize-platform/wizegraph/internal/auth"
	"github.com/wize-platform/wizegraph/internal/metadata"
	"github.com/wize-platform/wizegraph/internal/storage"
)

const (
	defaultPageLimit  = 20
	defaultPageOffset = 0
)

// generateQueries emits the two root query fields for one entity: a lookup
// by primary identifier and a filtered/sorted/paged list with total count.
// Every storage filter is constrained by the caller's tenant; tenant
// isolation is enforced purely through this injection.
func (f *Factory) generateQueries(key metadata.SchemaKey, md metadata.Metadata) (graphql.Fields, error) {
	objectType, err := f.cachedObjectType(key, md)
	if err != nil {
		return nil, err
	}
	filterType, err := f.cachedFilterType(key, md)
	if err != nil {
		return nil, err
	}
	sortType, err := f.cachedSortType(key, md)
	if err != nil {
		return nil, err
	}
	listResultType, err := f.cachedListResultType(key, md)
	if err != nil {
		return nil, err
	}

	table := key.Table
	collection := collectionName(table)
	logger := f.logger.With().Str("table", table).Logger()

	fields := graphql.Fields{}

	fields["find"+capitalize(table)+"ById"] = &graphql.Field{
		Type: objectType,
		Args: graphql.FieldConfigArgument{
			"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
		},
		Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			ac, err := requireAuth(p, scopeName(table, "read"))
			if err != nil {
				return nil, err
			}

			ctx, end := f.tracer.StartSpan(p.Context, "query."+table+".findById")
			defer end()

			filter := bson.M{
				"_id":      normalizeID(p.Args["id"]),
				"tenantId": ac.TenantID,
			}

			doc, err := ac.Store.FindOne(ctx, ac.Database, collection, filter)
			if err != nil {
				logger.Error().Err(err).Msg("findById failed")
				return nil, fmt.Errorf("Failed to find %s: %v", table, err)
			}

			// Absent records resolve to null, not an error.
			logger.Debug().Interface("id", p.Args["id"]).Msg("fetched record by id")
			return doc, nil
		},
	}

	fields["find"+pluralize(capitalize(table))] = &graphql.Field{
		Type: listResultType,
		Args: graphql.FieldConfigArgument{
			"filter": &graphql.ArgumentConfig{Type: filterType},
			"sort":   &graphql.ArgumentConfig{Type: sortType},
			"paging": &graphql.ArgumentConfig{Type: pagingInputType},
		},
		Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			ac, err := requireAuth(p, scopeName(table, "read"))
			if err != nil {
				return nil, err
			}

			ctx, end := f.tracer.StartSpan(p.Context, "query."+table+".findAll")
			defer end()

			filterArg, _ := p.Args["filter"].(map[string]interface{})
			storageFilter := TranslateFilter(filterArg, md)
			storageFilter["tenantId"] = ac.TenantID

			opts := storage.FindOptions{
				Sort:            sortSpec(p.Args["sort"]),
				Limit:           defaultPageLimit,
				Offset:          defaultPageOffset,
				CaseInsensitive: true,
			}
			// Non-positive limits keep the default page size; a zero limit
			// must never disable paging entirely.
			if paging, ok := p.Args["paging"].(map[string]interface{}); ok {
				if limit, ok := intArg(paging["limit"]); ok && limit > 0 {
					opts.Limit = limit
				}
				if offset, ok := intArg(paging["offset"]); ok && offset > 0 {
					opts.Offset = offset
				}
			}

			data, err := ac.Store.Find(ctx, ac.Database, collection, storageFilter, opts)
			if err != nil {
				logger.Error().Err(err).Msg("find failed")
				return nil, fmt.Errorf("Failed to find %s: %v", table, err)
			}

			// Total count of all matching records, unpaged.
			count, err := ac.Store.Count(ctx, ac.Database, collection, storageFilter)
			if err != nil {
				logger.Error().Err(err).Msg("count failed")
				return nil, fmt.Errorf("Failed to count %s: %v", table, err)
			}

			logger.Debug().Int("fetched", len(data)).Int64("count", count).Msg("fetched records")
			return map[string]interface{}{"count": count, "data": data}, nil
		},
	}

	return fields, nil
}

// requireAuth extracts the auth context and checks the required scope.
func requireAuth(p graphql.ResolveParams, scope string) (*auth.Context, error) {
	ac, ok := auth.FromContext(p.Context)
	if !ok {
		return nil, apierror.NewUnauthorized("missing auth context")
	}
	if err := auth.RequireScope(p.Context, scope); err != nil {
		return nil, err
	}
	return ac, nil
}

// normalizeID maps a GraphQL ID argument to the storage identifier. Hex
// object ids are converted; anything else is matched literally.
func normalizeID(raw interface{}) interface{} {
	s, ok := raw.(string)
	if !ok {
		return raw
	}
	if oid, err := primitive.ObjectIDFromHex(s); err == nil {
		return oid
	}
	return s
}

// sortSpec converts the sort argument map into an ordered storage sort
// specification. Nested object sorts flatten into dotted field paths; field
// order is alphabetical per level for determinism.
func sortSpec(raw interface{}) bson.D {
	sortArg, ok := raw.(map[string]interface{})
	if !ok || len(sortArg) == 0 {
		return nil
	}

	spec := make(bson.D, 0, len(sortArg))
	appendSortFields(&spec, "", sortArg)
	return spec
}

func appendSortFields(spec *bson.D, prefix string, sortArg map[string]interface{}) {
	names := make([]string, 0, len(sortArg))
	for name := range sortArg {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		path := prefix + name
		if nested, ok := sortArg[name].(map[string]interface{}); ok {
			appendSortFields(spec, path+".", nested)
			continue
		}

		direction := 1
		if dir, ok := sortArg[name].(string); ok && dir == "DESC" {
			direction = -1
		}
		*spec = append(*spec, bson.E{Key: path, Value: direction})
	}
}

func intArg(raw interface{}) (int64, bool) {
	switch n := raw.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	}
	return 0, false
}
