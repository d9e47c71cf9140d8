package publisher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokenhold/pkg/domain"
	audit "tokenhold/pkg/platform/audit"
	"tokenhold/pkg/platform/audit/store/memory"
)

var (
	tokenA = domain.MustParseAddress("0x00000000000000000000000000000000000000a1")
	tokenB = domain.MustParseAddress("0x00000000000000000000000000000000000000b2")
)

func TestPublisher_SyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	err := pub.Emit(context.Background(), audit.Event{
		Token:  tokenA,
		Action: string(audit.EventHoldCreated),
	})
	require.NoError(t, err)

	events, err := pub.List(context.Background(), tokenA)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventHoldCreated), events[0].Action)
	assert.Equal(t, audit.CategoryLedger, events[0].Category)
	assert.NotEqual(t, uuid.Nil, events[0].ID)
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(100))

	for range 10 {
		err := pub.Emit(context.Background(), audit.Event{
			Token:  tokenA,
			Action: string(audit.EventHoldReleased),
		})
		require.NoError(t, err)
	}

	pub.Close()
	pub.Close()

	events, err := store.ListByToken(context.Background(), tokenA)
	require.NoError(t, err)
	assert.Len(t, events, 10, "all events should be drained on close")
}

func TestPublisher_BufferFull_DoesNotBlock(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(1))
	defer pub.Close()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := pub.Emit(context.Background(), audit.Event{Token: tokenA, Action: string(audit.EventHoldCreated)})
			if err != nil {
				assert.ErrorIs(t, err, ErrBufferFull)
			}
		}()
	}
	wg.Wait()
}

func TestPublisher_Timestamp(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	before := time.Now()
	require.NoError(t, pub.Emit(context.Background(), audit.Event{Token: tokenA, Action: string(audit.EventHoldRenewed)}))
	after := time.Now()

	custom := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, pub.Emit(context.Background(), audit.Event{Token: tokenA, Action: string(audit.EventHoldRenewed), Timestamp: custom}))

	events, err := pub.List(context.Background(), tokenA)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.False(t, events[0].Timestamp.Before(before))
	assert.False(t, events[0].Timestamp.After(after))
	assert.Equal(t, custom, events[1].Timestamp)
}

func TestPublisher_SeparatesTokens(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	require.NoError(t, pub.Emit(context.Background(), audit.Event{Token: tokenA, Action: string(audit.EventHoldCreated)}))
	require.NoError(t, pub.Emit(context.Background(), audit.Event{Token: tokenB, Action: string(audit.EventControllerAdded)}))

	eventsA, err := pub.List(context.Background(), tokenA)
	require.NoError(t, err)
	require.Len(t, eventsA, 1)

	eventsB, err := pub.List(context.Background(), tokenB)
	require.NoError(t, err)
	require.Len(t, eventsB, 1)
	assert.Equal(t, audit.CategoryAdmin, eventsB[0].Category)
}

type failingStore struct{ err error }

func (f failingStore) Append(context.Context, audit.Event) error { return f.err }

func TestFanout(t *testing.T) {
	store := memory.NewInMemoryStore()
	boom := assert.AnError
	fan := audit.Fanout{failingStore{err: boom}, store}

	err := fan.Append(context.Background(), audit.Event{Token: tokenA, Action: string(audit.EventTransferExecuted)})
	require.ErrorIs(t, err, boom)

	events, listErr := store.ListByToken(context.Background(), tokenA)
	require.NoError(t, listErr)
	assert.Len(t, events, 1, "a failing sink does not starve later sinks")
}
