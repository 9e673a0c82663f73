package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelCoalescesSameKind(t *testing.T) {
	c := NewChannel()
	for i := 0; i < 100; i++ {
		require.NoError(t, c.Send(Filter))
	}
	require.NoError(t, c.Send(Log))

	k, ok := c.Recv()
	require.True(t, ok)
	assert.Equal(t, Filter, k)

	k, ok = c.Recv()
	require.True(t, ok)
	assert.Equal(t, Log, k)

	select {
	case extra := <-c.ch:
		t.Fatalf("unexpected extra signal %v", extra)
	default:
	}
}

func TestChannelRequeueAfterReceive(t *testing.T) {
	c := NewChannel()
	require.NoError(t, c.Send(Tags))
	_, _ = c.Recv()
	require.NoError(t, c.Send(Tags))

	k, ok := c.Recv()
	require.True(t, ok)
	assert.Equal(t, Tags, k)
}

func TestChannelSendAfterClose(t *testing.T) {
	c := NewChannel()
	c.Close()
	c.Close()

	assert.ErrorIs(t, c.Send(Log), ErrClosed)
	_, ok := c.Recv()
	assert.False(t, ok)
}

func TestDiscard(t *testing.T) {
	assert.NoError(t, Discard.Send(Filter))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "log", Log.String())
	assert.Equal(t, "tags", Tags.String())
	assert.Equal(t, "filter", Filter.String())
	assert.Equal(t, "unknown", Kind(0).String())
}
