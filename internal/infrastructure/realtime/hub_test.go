package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_PublishSignalsOwnerOnly(t *testing.T) {
	hub := NewHub()
	alice, unsubA := hub.Subscribe("alice")
	defer unsubA()
	bob, unsubB := hub.Subscribe("bob")
	defer unsubB()

	hub.Publish("alice")

	select {
	case <-alice:
	default:
		t.Fatal("expected signal for alice")
	}
	select {
	case <-bob:
		t.Fatal("bob must not be signalled")
	default:
	}
}

func TestHub_SignalsCoalesce(t *testing.T) {
	hub := NewHub()
	ch, unsub := hub.Subscribe("alice")
	defer unsub()

	for range 5 {
		hub.Publish("alice")
	}

	require.Len(t, ch, 1)
	<-ch
	assert.Len(t, ch, 0)
}

func TestHub_Unsubscribe(t *testing.T) {
	hub := NewHub()
	ch, unsub := hub.Subscribe("alice")
	require.Equal(t, 1, hub.Subscribers("alice"))

	unsub()
	unsub()

	assert.Equal(t, 0, hub.Subscribers("alice"))
	_, open := <-ch
	assert.False(t, open)

	// Publishing with no subscribers is a no-op.
	hub.Publish("alice")
}
