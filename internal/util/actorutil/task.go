package actorutil

import (
	"errors"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/primetalk/goio/io"
)

var ErrNilResult = errors.New("result is nil")

// SafeBackgroundTask runs a blocking function off the actor goroutine and
// delivers its outcome back as a message. Panics and timeouts become errors.
type SafeBackgroundTask[T any] struct {
	ctx       actor.Context
	fn        func() (*T, error)
	timeout   *time.Duration
	onError   func(error)
	recover   func(error) T
	onSuccess func(T)
}

func NewBackgroundTask[T any](ctx actor.Context, fn func() (*T, error)) *SafeBackgroundTask[T] {
	return &SafeBackgroundTask[T]{
		ctx: ctx,
		fn:  fn,
	}
}

func (t *SafeBackgroundTask[T]) WithTimeout(timeout time.Duration) *SafeBackgroundTask[T] {
	t.timeout = &timeout
	return t
}

func (t *SafeBackgroundTask[T]) OnError(fn func(error)) *SafeBackgroundTask[T] {
	t.onError = fn
	return t
}

func (t *SafeBackgroundTask[T]) Recover(fn func(error) T) *SafeBackgroundTask[T] {
	t.recover = fn
	return t
}

func (t *SafeBackgroundTask[T]) OnSuccess(fn func(T)) *SafeBackgroundTask[T] {
	t.onSuccess = fn
	return t
}

// PipeTo sends the result (or the recovered value) to pid after any OnSuccess
// callback. Errors without a Recover function go to OnError.
func (t *SafeBackgroundTask[T]) PipeTo(pid *actor.PID) {
	root := t.ctx.ActorSystem().Root
	then := t.onSuccess
	t.onSuccess = func(value T) {
		if then != nil {
			then(value)
		}
		root.Send(pid, value)
	}
	go t.Run()
}

// Run blocks until the task completes.
func (t *SafeBackgroundTask[T]) Run() {
	bgFn := io.Eval(t.fn)
	bg := io.Map(bgFn, func(a *T) T {
		if a != nil {
			return *a
		}
		panic(ErrNilResult)
	})
	if t.timeout != nil {
		bg = io.WithTimeout[T](*t.timeout)(bg)
	}
	result := io.RunSync(bg)
	value := result.Value
	if result.Error != nil {
		if t.recover != nil {
			value = t.recover(result.Error)
		} else {
			if t.onError != nil {
				t.onError(result.Error)
			}
			return
		}
	}
	if t.onSuccess != nil {
		t.onSuccess(value)
	}
}
