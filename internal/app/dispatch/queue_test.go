package dispatch

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueuePreservesOrderPerKey(t *testing.T) {
	q := NewQueue[string]()
	var mu sync.Mutex
	var got []int
	for i := 0; i < 100; i++ {
		i := i
		require.True(t, q.Submit("bob", func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}))
	}
	q.Close()

	require.Len(t, got, 100)
	for i, v := range got {
		require.Equal(t, i, v)
	}
}

func TestQueueStuckKeyDoesNotBlockOthers(t *testing.T) {
	q := NewQueue[string]()
	release := make(chan struct{})
	done := make(chan struct{})

	q.Submit("bob", func() { <-release })
	q.Submit("carol", func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task for carol was blocked by bob")
	}
	require.Eventually(t, func() bool { return q.Active() == 1 }, 2*time.Second, 10*time.Millisecond)

	close(release)
	q.Close()
	require.Equal(t, 0, q.Active())
}

func TestQueueRejectsAfterClose(t *testing.T) {
	q := NewQueue[string]()
	q.Close()
	require.False(t, q.Submit("bob", func() {}))
}

func TestQueueSurvivesPanic(t *testing.T) {
	q := NewQueue[string]()
	ran := make(chan struct{})
	q.Submit("bob", func() { panic("boom") })
	q.Submit("bob", func() { close(ran) })

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("queue stopped after panic")
	}
	q.Close()
}
