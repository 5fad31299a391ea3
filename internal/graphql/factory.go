package graphql

import (
	"context"
	"reflect"

	"github.com/graphql-go/graphql"
	"github.com/rs/zerolog"

	"github.com/wize-platform/wizegraph/internal/metadata"
	"github.com/wize-platform/wizegraph/internal/pubsub"
	"github.com/wize-platform/wizegraph/internal/trace"
)

// Factory orchestrates validation, registration and type/resolver generation
// for entities. Its registries are explicitly constructed and injected, so
// independent factories (one per test, for example) never share state.
type Factory struct {
	metadata *metadata.Registry
	types    *TypeCache
	broker   pubsub.Broker
	tracer   trace.Tracer
	logger   zerolog.Logger
}

// FactoryOptions configures a Factory. Broker is optional: when nil,
// mutations do not publish events and subscription streams report an error
// on subscribe.
type FactoryOptions struct {
	Metadata *metadata.Registry
	Types    *TypeCache
	Broker   pubsub.Broker
	Tracer   trace.Tracer
	Logger   zerolog.Logger
}

// NewFactory creates a schema factory. Nil registries are replaced with
// fresh ones.
func NewFactory(opts FactoryOptions) *Factory {
	if opts.Metadata == nil {
		opts.Metadata = metadata.NewRegistry(opts.Logger)
	}
	if opts.Types == nil {
		opts.Types = NewTypeCache()
	}
	if opts.Tracer == nil {
		opts.Tracer = trace.Noop()
	}
	return &Factory{
		metadata: opts.Metadata,
		types:    opts.Types,
		broker:   opts.Broker,
		tracer:   opts.Tracer,
		logger:   opts.Logger.With().Str("component", "schema-factory").Logger(),
	}
}

// Metadata exposes the factory's metadata registry.
func (f *Factory) Metadata() *metadata.Registry { return f.metadata }

// register validates md, enforces system fields and stores the result under
// key. Replacing existing metadata with a different shape invalidates every
// cached type for the key.
func (f *Factory) register(key metadata.SchemaKey, md metadata.Metadata) (metadata.Metadata, error) {
	if err := metadata.Validate(key.Table, md); err != nil {
		return metadata.Metadata{}, err
	}

	enforced := metadata.EnforceSystemFields(md)

	if existing, ok := f.metadata.Get(key); ok && !reflect.DeepEqual(existing, enforced) {
		f.logger.Info().Str("key", key.String()).Msg("metadata replaced, clearing cached types")
		f.types.Clear(key)
	}

	f.metadata.Register(key, enforced)
	return enforced, nil
}

// CreateSchema validates and registers metadata under key, generates the
// query/mutation/subscription resolver sets and returns one executable
// schema for the entity. Re-invocation with the same key and metadata reuses
// every cached type.
func (f *Factory) CreateSchema(ctx context.Context, key metadata.SchemaKey, md metadata.Metadata) (graphql.Schema, error) {
	_, end := f.tracer.StartSpan(ctx, "schema.create."+key.Table)
	defer end()

	enforced, err := f.register(key, md)
	if err != nil {
		return graphql.Schema{}, err
	}

	bundle, err := f.createResolverBundle(key, enforced)
	if err != nil {
		return graphql.Schema{}, err
	}

	config := graphql.SchemaConfig{
		Query: graphql.NewObject(graphql.ObjectConfig{
			Name:   capitalize(key.Table) + "_Query",
			Fields: bundle.queries,
		}),
		Mutation: graphql.NewObject(graphql.ObjectConfig{
			Name:   capitalize(key.Table) + "_Mutation",
			Fields: bundle.mutations,
		}),
	}

	// graphql-go rejects object types without fields, so the subscription
	// root exists only when metadata enables at least one event.
	if len(bundle.subscriptions) > 0 {
		config.Subscription = graphql.NewObject(graphql.ObjectConfig{
			Name:   capitalize(key.Table) + "_Subscription",
			Fields: bundle.subscriptions,
		})
	}

	schema, err := graphql.NewSchema(config)
	if err != nil {
		return graphql.Schema{}, err
	}

	f.logger.Info().Str("key", key.String()).Msg("graphql schema created")
	return schema, nil
}

// resolverBundle is the per-entity set of generated root fields.
type resolverBundle struct {
	queries       graphql.Fields
	mutations     graphql.Fields
	subscriptions graphql.Fields
}

func (f *Factory) createResolverBundle(key metadata.SchemaKey, md metadata.Metadata) (*resolverBundle, error) {
	queries, err := f.generateQueries(key, md)
	if err != nil {
		return nil, err
	}
	mutations, err := f.generateMutations(key, md)
	if err != nil {
		return nil, err
	}
	subscriptions, err := f.generateSubscriptions(key, md)
	if err != nil {
		return nil, err
	}
	return &resolverBundle{queries: queries, mutations: mutations, subscriptions: subscriptions}, nil
}

// cachedObjectType returns the memoized output object type for key.
func (f *Factory) cachedObjectType(key metadata.SchemaKey, md metadata.Metadata) (*graphql.Object, error) {
	t, err := f.types.GetOrCreate(key, KindObject, func() (graphql.Type, error) {
		return buildObjectType(key, md)
	})
	if err != nil {
		return nil, err
	}
	return t.(*graphql.Object), nil
}

func (f *Factory) cachedInputType(key metadata.SchemaKey, md metadata.Metadata) (*graphql.InputObject, error) {
	t, err := f.types.GetOrCreate(key, KindInput, func() (graphql.Type, error) {
		return buildInputType(key, md)
	})
	if err != nil {
		return nil, err
	}
	return t.(*graphql.InputObject), nil
}

func (f *Factory) cachedFilterType(key metadata.SchemaKey, md metadata.Metadata) (*graphql.InputObject, error) {
	t, err := f.types.GetOrCreate(key, KindFilter, func() (graphql.Type, error) {
		return buildFilterType(key, md)
	})
	if err != nil {
		return nil, err
	}
	return t.(*graphql.InputObject), nil
}

func (f *Factory) cachedSortType(key metadata.SchemaKey, md metadata.Metadata) (*graphql.InputObject, error) {
	t, err := f.types.GetOrCreate(key, KindSort, func() (graphql.Type, error) {
		return buildSortType(key, md)
	})
	if err != nil {
		return nil, err
	}
	return t.(*graphql.InputObject), nil
}

func (f *Factory) cachedListResultType(key metadata.SchemaKey, md metadata.Metadata) (*graphql.Object, error) {
	t, err := f.types.GetOrCreate(key, KindListResult, func() (graphql.Type, error) {
		objectType, err := f.cachedObjectType(key, md)
		if err != nil {
			return nil, err
		}
		return graphql.NewObject(graphql.ObjectConfig{
			Name: capitalize(key.Table) + "ListResult",
			Fields: graphql.Fields{
				"count": &graphql.Field{Type: graphql.Int},
				"data":  &graphql.Field{Type: graphql.NewList(objectType)},
			},
		}), nil
	})
	if err != nil {
		return nil, err
	}
	return t.(*graphql.Object), nil
}
