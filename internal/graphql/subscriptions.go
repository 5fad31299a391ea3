package graphql

import (
	"github.com/graphql-go/graphql"

	"github.com/wize-platform/wizegraph/internal/apierror"
	"github.com/wize-platform/wizegraph/internal/metadata"
)

// generateSubscriptions emits one subscription field per event stream the
// metadata enables, each backed by a pub/sub topic named <Table>_<EVENT>.
// The generators do not publish; see Factory.publish for the mutation-side
// extension point.
func (f *Factory) generateSubscriptions(key metadata.SchemaKey, md metadata.Metadata) (graphql.Fields, error) {
	fields := graphql.Fields{}
	if md.Subscriptions == nil {
		return fields, nil
	}

	objectType, err := f.cachedObjectType(key, md)
	if err != nil {
		return nil, err
	}

	table := key.Table

	events := []struct {
		enabled bool
		suffix  string
		event   string
	}{
		{md.Subscriptions.OnCreated, "Created", eventCreated},
		{md.Subscriptions.OnUpdated, "Updated", eventUpdated},
		{md.Subscriptions.OnDeleted, "Deleted", eventDeleted},
	}

	for _, e := range events {
		if !e.enabled {
			continue
		}

		topic := topicName(table, e.event)
		fieldName := "on" + capitalize(table) + e.suffix
		logger := f.logger.With().Str("table", table).Str("topic", topic).Logger()

		fields[fieldName] = &graphql.Field{
			Type: objectType,
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return p.Source, nil
			},
			Subscribe: func(p graphql.ResolveParams) (interface{}, error) {
				if _, err := requireAuth(p, scopeName(table, "subscribe")); err != nil {
					return nil, err
				}
				if f.broker == nil {
					return nil, apierror.NewInternal("no event broker configured")
				}

				events, cancel, err := f.broker.Subscribe(p.Context, topic)
				if err != nil {
					return nil, err
				}
				logger.Info().Str("field", fieldName).Msg("subscribed")

				out := make(chan interface{})
				go func() {
					defer close(out)
					defer cancel()
					for {
						select {
						case <-p.Context.Done():
							return
						case evt, ok := <-events:
							if !ok {
								return
							}
							select {
							case out <- evt:
							case <-p.Context.Done():
								return
							}
						}
					}
				}()
				return out, nil
			},
		}
	}

	return fields, nil
}
