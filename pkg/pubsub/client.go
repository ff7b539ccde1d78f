// Package pubsub wraps the Pub/Sub v2 client for the outbox relay: it resolves
// short topic ids against the project and refuses to start on missing topics.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/partsdirect-backend/pkg/config"
	"github.com/angelmondragon/partsdirect-backend/pkg/logger"
)

var (
	ErrNoProject    = errors.New("gcp project id is required")
	ErrNoTopics     = errors.New("at least one topic is required")
	ErrTopicMissing = errors.New("topic does not exist")
)

type Client struct {
	client  *gcppubsub.Client
	project string
	topics  []string
}

// NewClient connects and verifies every topic in topics exists. Topic ids may
// be short ("orders") or full resource names.
func NewClient(ctx context.Context, gcp config.GCPConfig, topics []string, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, ErrNoProject
	}
	c := &Client{project: project, topics: cleanTopics(topics)}
	if len(c.topics) == 0 {
		return nil, ErrNoTopics
	}

	raw, err := gcppubsub.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("pubsub connect: %w", err)
	}
	c.client = raw
	if err := c.Ping(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "topics", c.topics), "pubsub.ready")
	}
	return c, nil
}

// Ping checks all configured topics concurrently.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errors.New("pubsub client not initialized")
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, topic := range c.topics {
		g.Go(func() error {
			_, err := c.client.TopicAdminClient.GetTopic(gctx, &pubsubpb.GetTopicRequest{Topic: c.resourceName(topic)})
			switch {
			case err == nil:
				return nil
			case status.Code(err) == codes.NotFound:
				return fmt.Errorf("%w: %s", ErrTopicMissing, topic)
			default:
				return fmt.Errorf("pubsub get topic %s: %w", topic, err)
			}
		})
	}
	return g.Wait()
}

// Publisher returns a handle for topic, or nil when topic is blank.
func (c *Client) Publisher(topic string) *gcppubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	name := c.resourceName(topic)
	if name == "" {
		return nil
	}
	return c.client.Publisher(name)
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Client) resourceName(topic string) string {
	topic = strings.TrimSpace(topic)
	switch {
	case topic == "":
		return ""
	case strings.HasPrefix(topic, "projects/") && strings.Contains(topic, "/topics/"):
		return topic
	case c.project == "":
		return ""
	}
	return "projects/" + c.project + "/topics/" + topic
}

func cleanTopics(topics []string) []string {
	var out []string
	for _, t := range topics {
		if t = strings.TrimSpace(t); t != "" && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}
