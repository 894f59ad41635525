package notifier

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_Subscribe_Unsubscribe(t *testing.T) {
	n := New()

	ch := n.Subscribe()
	require.NotNil(t, ch)
	assert.Equal(t, 1, n.Len())

	n.Unsubscribe(ch)
	assert.Equal(t, 0, n.Len())

	_, open := <-ch
	assert.False(t, open)

	// second unsubscribe is a no-op
	n.Unsubscribe(ch)
}

func TestNotifier_Broadcast(t *testing.T) {
	n := New()

	ch1 := n.Subscribe()
	ch2 := n.Subscribe()
	defer n.Unsubscribe(ch1)
	defer n.Unsubscribe(ch2)

	n.Broadcast("run-1")

	for _, ch := range []chan string{ch1, ch2} {
		select {
		case got := <-ch:
			assert.Equal(t, "run-1", got)
		case <-time.After(100 * time.Millisecond):
			t.Error("listener did not receive broadcast")
		}
	}
}

func TestNotifier_Broadcast_KeepsLatest(t *testing.T) {
	n := New()
	ch := n.Subscribe()
	defer n.Unsubscribe(ch)

	done := make(chan struct{})
	go func() {
		n.Broadcast("run-1")
		n.Broadcast("run-2")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Broadcast blocked on full channel")
	}
	assert.Equal(t, "run-2", <-ch)
}

func TestNotifier_Concurrent(t *testing.T) {
	n := New()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch := n.Subscribe()
			n.Broadcast("r")
			n.Unsubscribe(ch)
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, n.Len())
}
