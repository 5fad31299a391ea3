// Package pubsub provides the publish/subscribe bus behind generated
// subscription fields. Mutation-side publication is an explicit extension
// point: the factory publishes only when constructed with a Broker.
package pubsub

import "context"

// Broker delivers entity event payloads by topic. Topics are named
// <Table>_<EVENT>, e.g. Order_CREATED.
type Broker interface {
	// Publish delivers payload to all current subscribers of topic.
	Publish(ctx context.Context, topic string, payload interface{}) error

	// Subscribe returns a channel of payloads for topic and a cancel
	// function that releases the subscription.
	Subscribe(ctx context.Context, topic string) (<-chan interface{}, func(), error)
}
