package probe

import (
	"context"
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelDropsWhenFull(t *testing.T) {
	ch, err := NewChannel(DefaultChannelBytes)
	require.NoError(t, err)

	kept := 0
	for i := 0; i < 5000; i++ {
		if ch.Push(TrafficEvent{Ino: uint64(i)}) {
			kept++
		}
	}

	assert.LessOrEqual(t, kept, DefaultChannelBytes/128)
	assert.Equal(t, DefaultChannelBytes/EventSize, kept)
	assert.Equal(t, kept, ch.Len())
	assert.EqualValues(t, 5000-kept, ch.Dropped())

	// FIFO: the retained events are the first ones pushed
	ctx := context.Background()
	for i := 0; i < kept; i++ {
		ev, err := ch.Read(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, i, ev.Ino)
	}
}

func TestChannelTooSmall(t *testing.T) {
	_, err := NewChannel(EventSize - 1)
	assert.Error(t, err)
}

func TestChannelCloseDrains(t *testing.T) {
	ch, err := NewChannel(4 * EventSize)
	require.NoError(t, err)
	require.True(t, ch.Push(TrafficEvent{Ino: 1}))

	ch.Close()
	ch.Close()
	assert.False(t, ch.Push(TrafficEvent{Ino: 2}))

	ctx := context.Background()
	ev, err := ch.Read(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, ev.Ino)

	_, err = ch.Read(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestChannelReadHonorsContext(t *testing.T) {
	ch, err := NewChannel(DefaultChannelBytes)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = ch.Read(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestChannelConcurrentProducers(t *testing.T) {
	ch, err := NewChannel(DefaultChannelBytes)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				ch.Push(TrafficEvent{})
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 8000, uint64(ch.Len())+ch.Dropped())
}

func TestTrafficEventWireLayout(t *testing.T) {
	raw := make([]byte, EventSize)
	binary.LittleEndian.PutUint64(raw, 77)
	copy(raw[8:], "report.csv")
	copy(raw[8+NameLen:], "finance")

	var ev TrafficEvent
	require.NoError(t, ev.UnmarshalBinary(raw))
	assert.EqualValues(t, 77, ev.Ino)
	assert.Equal(t, "finance/report.csv", ev.Path())

	assert.Error(t, ev.UnmarshalBinary(raw[:EventSize-1]))

	ev.ParentName = [NameLen]byte{}
	assert.Equal(t, "report.csv", ev.Path())
}
