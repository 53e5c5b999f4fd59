package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDispatchNeverExceedsMaxConcurrentPooledPlusInlineCaller(t *testing.T) {
	p := New(context.Background(), 2)

	var active int32
	var maxSeen int32
	for i := 0; i < 10; i++ {
		p.Dispatch(func(ctx context.Context) error {
			n := atomic.AddInt32(&active, 1)
			for {
				cur := atomic.LoadInt32(&maxSeen)
				if n <= cur || atomic.CompareAndSwapInt32(&maxSeen, cur, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&active, -1)
			return nil
		})
	}
	require := assert.New(t)
	require.NoError(p.Wait())
	// Two pooled goroutines, plus this goroutine running an overflow task
	// inline while both slots are held.
	require.LessOrEqual(int(atomic.LoadInt32(&maxSeen)), 2+1)
}

func TestWaitPropagatesDispatchedError(t *testing.T) {
	p := New(context.Background(), 4)
	boom := errors.New("boom")
	p.Dispatch(func(ctx context.Context) error { return boom })
	assert.ErrorIs(t, p.Wait(), boom)
}

func TestDispatchRunsInlineWhenPoolSaturated(t *testing.T) {
	p := New(context.Background(), 1)

	block := make(chan struct{})
	var outcomes []Outcome

	o1 := p.Dispatch(func(ctx context.Context) error {
		<-block
		return nil
	})
	outcomes = append(outcomes, o1)

	// The single slot is held by the blocked task above, so this one must
	// run inline (synchronously, on this goroutine).
	ran := false
	o2 := p.Dispatch(func(ctx context.Context) error {
		ran = true
		return nil
	})
	outcomes = append(outcomes, o2)

	assert.True(t, ran, "inline task must have executed before Dispatch returned")
	assert.Equal(t, Dispatched, outcomes[0])
	assert.Equal(t, Inline, outcomes[1])

	close(block)
	assert.NoError(t, p.Wait())
}

func TestInlineErrorIsAlsoPropagated(t *testing.T) {
	p := New(context.Background(), 1)
	boom := errors.New("inline boom")

	block := make(chan struct{})
	p.Dispatch(func(ctx context.Context) error {
		<-block
		return nil
	})
	p.Dispatch(func(ctx context.Context) error { return boom })
	close(block)

	assert.ErrorIs(t, p.Wait(), boom)
}
