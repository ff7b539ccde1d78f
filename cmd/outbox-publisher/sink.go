package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

var errUnroutable = errors.New("no publisher for topic")

type topicSource interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

// pubsubSink keeps one ordered publisher per topic for the life of the
// process. Send is safe for concurrent use.
type pubsubSink struct {
	source topicSource

	mu         sync.Mutex
	publishers map[string]*gcppubsub.Publisher
}

func newPubSubSink(source topicSource) *pubsubSink {
	return &pubsubSink{source: source, publishers: map[string]*gcppubsub.Publisher{}}
}

func (s *pubsubSink) Ping(ctx context.Context) error {
	return s.source.Ping(ctx)
}

// Send waits for the server ack. A failed ordered publish pauses its key, so
// the key is resumed before the next attempt can use it.
func (s *pubsubSink) Send(ctx context.Context, topic string, msg *gcppubsub.Message) error {
	pub := s.publisher(topic)
	if pub == nil {
		return fmt.Errorf("%w %q", errUnroutable, topic)
	}
	if _, err := pub.Publish(ctx, msg).Get(ctx); err != nil {
		if msg.OrderingKey != "" {
			pub.ResumePublish(msg.OrderingKey)
		}
		return err
	}
	return nil
}

func (s *pubsubSink) publisher(topic string) *gcppubsub.Publisher {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pub, ok := s.publishers[topic]; ok {
		return pub
	}
	pub := s.source.Publisher(topic)
	if pub == nil {
		return nil
	}
	pub.EnableMessageOrdering = true
	s.publishers[topic] = pub
	return pub
}

// Stop flushes buffered messages and releases every publisher.
func (s *pubsubSink) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for topic, pub := range s.publishers {
		pub.Stop()
		delete(s.publishers, topic)
	}
}
