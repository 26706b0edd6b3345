package suspend

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tbxark/dgui/envelope"
)

func TestInterrupt_ResolveOnce(t *testing.T) {
	in := NewInterrupt("payload")
	_, ok := in.Result()
	assert.False(t, ok)

	var wg sync.WaitGroup
	wins := make(chan string, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if in.Resolve(string(rune('a' + n))) {
				wins <- string(rune('a' + n))
			}
		}(i)
	}
	wg.Wait()
	close(wins)

	var winners []string
	for w := range wins {
		winners = append(winners, w)
	}
	require.Len(t, winners, 1)
	res, ok := in.Result()
	assert.True(t, ok)
	assert.Equal(t, winners[0], res)
}

func TestBroker_SuspendAndResolve(t *testing.T) {
	b := NewBroker()
	go func() {
		in := <-b.Interrupts()
		assert.Equal(t, "form", in.Payload())
		in.Resolve(`{"type":"dgui_response","data":{}}`)
	}()

	res, err := b.Suspend(context.Background(), "form")
	require.NoError(t, err)
	assert.Equal(t, `{"type":"dgui_response","data":{}}`, res)

	_, pending := b.Pending()
	assert.False(t, pending)
}

func TestBroker_RejectsSecondInterrupt(t *testing.T) {
	b := NewBroker()
	first := make(chan string, 1)
	go func() {
		res, _ := b.Suspend(context.Background(), "first")
		first <- res
	}()

	in := <-b.Interrupts()
	_, err := b.Suspend(context.Background(), "second")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInterruptPending))

	in.Resolve("done")
	assert.Equal(t, "done", <-first)
}

func TestBroker_Timeout(t *testing.T) {
	b := NewBroker(WithTimeout(20 * time.Millisecond))
	res, err := b.Suspend(context.Background(), "form")
	require.NoError(t, err)

	got, err := envelope.DecodeResolution(res)
	require.NoError(t, err)
	assert.True(t, got.IsError())
	assert.Equal(t, envelope.TimeoutMessage, got.Message)

	in := <-b.Interrupts()
	assert.True(t, in.Resolved())
	assert.False(t, in.Resolve("late submit"))
}

func TestBroker_Cancelled(t *testing.T) {
	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-b.Interrupts()
		cancel()
	}()

	res, err := b.Suspend(ctx, "form")
	assert.ErrorIs(t, err, context.Canceled)
	got, decErr := envelope.DecodeResolution(res)
	require.NoError(t, decErr)
	assert.Equal(t, envelope.CancelledMessage, got.Message)
}

func TestBroker_OperatorWinsRace(t *testing.T) {
	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		in := <-b.Interrupts()
		in.Resolve("operator")
		cancel()
	}()

	res, err := b.Suspend(ctx, "form")
	require.NoError(t, err)
	assert.Equal(t, "operator", res)
}

func TestBroker_TimeoutWaitsForOperatorResult(t *testing.T) {
	b := NewBroker()
	in := NewInterrupt("form")
	// the operator has claimed the interrupt but not yet published its result
	require.True(t, in.resolved.CompareAndSwap(false, true))
	go func() {
		time.Sleep(20 * time.Millisecond)
		in.result = "operator"
		close(in.done)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	<-ctx.Done()

	res, err := b.abandon(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "operator", res)
}
