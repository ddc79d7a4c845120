package eventloop

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoop_RunsTasksInOrder(t *testing.T) {
	l := New("test").Start()
	defer l.Stop()

	var mu sync.Mutex
	var got []int
	done := make(chan struct{})

	for i := 0; i < 100; i++ {
		i := i
		require.True(t, l.Post(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			if i == 99 {
				close(done)
			}
		}))
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tasks did not run")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestLoop_PostFromTaskDoesNotBlock(t *testing.T) {
	l := New("test").Start()
	defer l.Stop()

	done := make(chan struct{})
	l.Post(func() {
		l.Post(func() { close(done) })
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("nested post did not run")
	}
}

func TestLoop_StopDropsPendingAndRejectsPosts(t *testing.T) {
	l := New("test").Start()

	release := make(chan struct{})
	ran := make(chan struct{}, 1)
	l.Post(func() { <-release })
	l.Post(func() { ran <- struct{}{} })

	l.Stop()
	close(release)

	select {
	case <-l.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not exit")
	}

	assert.False(t, l.Post(func() {}))
	assert.True(t, l.Stopped())
	assert.Len(t, ran, 0)
}

func TestLoop_RecoversFromPanics(t *testing.T) {
	l := New("test").Start()
	defer l.Stop()

	done := make(chan struct{})
	l.Post(func() { panic("boom") })
	l.Post(func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop died after panic")
	}
}
