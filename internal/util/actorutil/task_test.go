package actorutil

import (
	"errors"
	"testing"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type taskResult struct {
	value string
}

// taskActor starts fn as a background task on start and reports every
// message it gets back.
type taskActor struct {
	start    func(ctx actor.Context)
	received chan any
}

func (a *taskActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		a.start(ctx)
	case taskResult:
		a.received <- msg
	}
}

func runTask(t *testing.T, start func(ctx actor.Context)) chan any {
	as := actor.NewActorSystem()
	t.Cleanup(as.Shutdown)
	received := make(chan any, 4)
	as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return &taskActor{start: start, received: received}
	}))
	return received
}

func receive(t *testing.T, ch chan any) any {
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		require.FailNow(t, "timeout waiting for task result")
	}
	return nil
}

func TestPipeToKeepsOnSuccess(t *testing.T) {

	called := make(chan string, 1)
	received := runTask(t, func(ctx actor.Context) {
		NewBackgroundTask(ctx, func() (*taskResult, error) {
			return &taskResult{value: "loaded"}, nil
		}).OnSuccess(func(r taskResult) {
			called <- r.value
		}).PipeTo(ctx.Self())
	})

	assert.Equal(t, taskResult{value: "loaded"}, receive(t, received))
	assert.Equal(t, "loaded", <-called)
}

func TestPipeToRecover(t *testing.T) {

	received := runTask(t, func(ctx actor.Context) {
		NewBackgroundTask(ctx, func() (*taskResult, error) {
			return nil, errors.New("boom")
		}).Recover(func(err error) taskResult {
			return taskResult{value: err.Error()}
		}).PipeTo(ctx.Self())
	})

	assert.Equal(t, taskResult{value: "boom"}, receive(t, received))
}

func TestPipeToOnErrorAndTimeout(t *testing.T) {

	failed := make(chan error, 2)
	runTask(t, func(ctx actor.Context) {
		NewBackgroundTask(ctx, func() (*taskResult, error) {
			return nil, nil
		}).OnError(func(err error) {
			failed <- err
		}).PipeTo(ctx.Self())
		NewBackgroundTask(ctx, func() (*taskResult, error) {
			time.Sleep(time.Second)
			return &taskResult{}, nil
		}).WithTimeout(50 * time.Millisecond).OnError(func(err error) {
			failed <- err
		}).PipeTo(ctx.Self())
	})

	for i := 0; i < 2; i++ {
		select {
		case err := <-failed:
			assert.Error(t, err)
		case <-time.After(2 * time.Second):
			require.FailNow(t, "timeout waiting for task error")
		}
	}
}
