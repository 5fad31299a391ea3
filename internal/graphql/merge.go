package graphql

import (
	"context"

	"github.com/graphql-go/graphql"
	"github.com/rs/zerolog"

	"github.com/wize-platform/wizegraph/internal/metadata"
)

// Entry pairs a schema key with its entity metadata for merging.
type Entry struct {
	Key      metadata.SchemaKey
	Metadata metadata.Metadata
}

// BuildMergedSchema validates, registers and generates resolver bundles for
// every entry, then merges them into one executable schema. A broken entity
// is isolated: its bundle is logged and skipped so it cannot take down the
// merged schema for the others.
func (f *Factory) BuildMergedSchema(ctx context.Context, entries []Entry) (graphql.Schema, error) {
	_, end := f.tracer.StartSpan(ctx, "schema.merge")
	defer end()

	bundles := make([]*resolverBundle, 0, len(entries))
	for _, entry := range entries {
		enforced, err := f.register(entry.Key, entry.Metadata)
		if err != nil {
			f.logger.Warn().Err(err).Str("key", entry.Key.String()).Msg("skipping entity with invalid metadata")
			continue
		}
		bundle, err := f.createResolverBundle(entry.Key, enforced)
		if err != nil {
			f.logger.Warn().Err(err).Str("key", entry.Key.String()).Msg("skipping entity that failed to generate")
			continue
		}
		bundles = append(bundles, bundle)
	}

	queries := graphql.Fields{}
	mutations := graphql.Fields{}
	subscriptions := graphql.Fields{}
	for _, bundle := range bundles {
		unionFields(queries, bundle.queries, f.logger)
		unionFields(mutations, bundle.mutations, f.logger)
		unionFields(subscriptions, bundle.subscriptions, f.logger)
	}

	return assembleSchema(queries, mutations, subscriptions)
}

// MergeSchemas combines per-entity schemas (each with its own root types)
// into one executable schema by field-map union. Field definitions extracted
// from built schemas carry arguments as lists; they are normalized back into
// argument maps, preserving type, default value and description.
func MergeSchemas(logger zerolog.Logger, schemas []graphql.Schema) (graphql.Schema, error) {
	queries := graphql.Fields{}
	mutations := graphql.Fields{}
	subscriptions := graphql.Fields{}

	for _, s := range schemas {
		unionObjectFields(queries, s.QueryType(), logger)
		unionObjectFields(mutations, s.MutationType(), logger)
		unionObjectFields(subscriptions, s.SubscriptionType(), logger)
	}

	return assembleSchema(queries, mutations, subscriptions)
}

func assembleSchema(queries, mutations, subscriptions graphql.Fields) (graphql.Schema, error) {
	if len(queries) == 0 {
		queries["_empty"] = &graphql.Field{
			Type: graphql.String,
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return "No schemas available for this key.", nil
			},
		}
	}

	config := graphql.SchemaConfig{
		Query: graphql.NewObject(graphql.ObjectConfig{Name: "Query", Fields: queries}),
	}
	if len(mutations) > 0 {
		config.Mutation = graphql.NewObject(graphql.ObjectConfig{Name: "Mutation", Fields: mutations})
	}
	if len(subscriptions) > 0 {
		config.Subscription = graphql.NewObject(graphql.ObjectConfig{Name: "Subscription", Fields: subscriptions})
	}

	return graphql.NewSchema(config)
}

// unionFields merges src into dst. Collisions cannot happen for disjoint
// tables because generated field names are table-prefixed; when they do
// happen the later entry wins, loudly.
func unionFields(dst, src graphql.Fields, logger zerolog.Logger) {
	for name, field := range src {
		if _, exists := dst[name]; exists {
			logger.Warn().Str("field", name).Msg("duplicate root field overwritten during merge")
		}
		dst[name] = field
	}
}

func unionObjectFields(dst graphql.Fields, obj *graphql.Object, logger zerolog.Logger) {
	if obj == nil {
		return
	}
	for name, def := range obj.Fields() {
		if _, exists := dst[name]; exists {
			logger.Warn().Str("field", name).Msg("duplicate root field overwritten during merge")
		}
		dst[name] = normalizeFieldDefinition(def)
	}
}

// normalizeFieldDefinition converts a built field definition back into a
// field config, turning the argument list into an argument map.
func normalizeFieldDefinition(def *graphql.FieldDefinition) *graphql.Field {
	args := graphql.FieldConfigArgument{}
	for _, arg := range def.Args {
		args[arg.Name()] = &graphql.ArgumentConfig{
			Type:         arg.Type,
			DefaultValue: arg.DefaultValue,
			Description:  arg.Description(),
		}
	}

	return &graphql.Field{
		Type:              def.Type,
		Args:              args,
		Resolve:           def.Resolve,
		Subscribe:         def.Subscribe,
		Description:       def.Description,
		DeprecationReason: def.DeprecationReason,
	}
}
