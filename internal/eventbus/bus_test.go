package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishFiltersByType(t *testing.T) {
	b := New()
	all, unsubAll := b.Subscribe(4)
	defer unsubAll()
	only, unsubOnly := b.Subscribe(4, "prompt.close")
	defer unsubOnly()

	b.Publish(Event{Type: "prompt.warning", Data: 1})
	b.Publish(Event{Type: "prompt.close", Data: 2})

	require.Len(t, all, 2)
	require.Len(t, only, 1)
	e := <-only
	assert.Equal(t, "prompt.close", e.Type)
	assert.False(t, e.Time.IsZero())
}

func TestPublishNeverBlocks(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(1)
	defer unsub()

	for i := 0; i < 10; i++ {
		b.Publish(Event{Type: "x", Data: i})
	}
	assert.Len(t, ch, 1)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(1)
	assert.Equal(t, 1, b.Subscribers())

	unsub()
	unsub()
	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, b.Subscribers())

	b.Publish(Event{Type: "x"})
}
