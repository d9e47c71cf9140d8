//go:build integration

package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kadm"

	"tokenhold/internal/platform/config"
	"tokenhold/pkg/testutil/containers"
)

func TestEnsureTopic(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	broker := containers.NewRedpandaContainer(t)
	t.Cleanup(func() { _ = broker.Container.Terminate(context.Background()) })

	client, err := NewClient(config.KafkaConfig{Brokers: broker.Brokers, Topic: "tokenhold.events"})
	require.NoError(t, err)
	require.NotNil(t, client)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	require.NoError(t, EnsureTopic(ctx, client, "tokenhold.events", 2))
	require.NoError(t, EnsureTopic(ctx, client, "tokenhold.events", 2), "existing topic is not an error")

	details, err := kadm.NewClient(client).ListTopics(ctx, "tokenhold.events")
	require.NoError(t, err)
	detail, ok := details["tokenhold.events"]
	require.True(t, ok)
	assert.Len(t, detail.Partitions, 2)
}
