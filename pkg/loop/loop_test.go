package loop

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoop_RunsInOrder(t *testing.T) {
	l := New(8, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	var got []int
	for i := 0; i < 5; i++ {
		i := i
		l.Post(func() { got = append(got, i) })
	}
	require.NoError(t, l.Do(ctx, func() {}))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestLoop_GoPostsBack(t *testing.T) {
	l := New(8, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	result := make(chan int, 1)
	l.Go(func() {
		v := 41
		l.Post(func() { result <- v + 1 })
	})
	select {
	case v := <-result:
		assert.Equal(t, 42, v)
	case <-time.After(2 * time.Second):
		t.Fatal("result never posted")
	}
	l.Wait()
}

func TestLoop_SurvivesPanic(t *testing.T) {
	l := New(8, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	var ran atomic.Bool
	l.Post(func() { panic("boom") })
	require.NoError(t, l.Do(ctx, func() { ran.Store(true) }))
	assert.True(t, ran.Load())
}

func TestLoop_DoAfterStop(t *testing.T) {
	l := New(8, nil)
	l.Stop()
	err := l.Do(context.Background(), func() {})
	assert.ErrorIs(t, err, ErrStopped)
}
