package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/partsdirect-backend/pkg/config"
)

func TestResourceName(t *testing.T) {
	c := &Client{project: "partsdirect-dev"}
	assert.Equal(t, "projects/partsdirect-dev/topics/partsdirect-orders", c.resourceName(" partsdirect-orders "))
	assert.Equal(t, "projects/other/topics/events", c.resourceName("projects/other/topics/events"))
	assert.Empty(t, c.resourceName("  "))
	assert.Empty(t, (&Client{}).resourceName("orders"))
}

func TestCleanTopicsDropsBlanksAndDuplicates(t *testing.T) {
	assert.Equal(t, []string{"orders", "domain"}, cleanTopics([]string{"orders", " ", "domain", "orders "}))
	assert.Empty(t, cleanTopics(nil))
}

func TestNewClientValidatesInputBeforeConnecting(t *testing.T) {
	ctx := context.Background()
	_, err := NewClient(ctx, config.GCPConfig{}, []string{"orders"}, nil)
	require.ErrorIs(t, err, ErrNoProject)

	_, err = NewClient(ctx, config.GCPConfig{ProjectID: "partsdirect-dev"}, []string{" "}, nil)
	require.ErrorIs(t, err, ErrNoTopics)
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	assert.Nil(t, c.Publisher("orders"))
	assert.NoError(t, c.Close())
	assert.Error(t, c.Ping(context.Background()))
}
