package broker

import (
	"context"
	"time"

	mqttLib "github.com/eclipse/paho.mqtt.golang"
	"github.com/jonboulle/clockwork"
)

// Result is the outcome of an asynchronous publish.
type Result interface {
	// Done is closed once the outcome is known.
	Done() <-chan struct{}
	// Wait blocks until the broker acknowledges the publish, the transport's
	// publish timeout elapses, or ctx is done.
	Wait(ctx context.Context) error
}

type tokenResult struct {
	token   mqttLib.Token
	topic   string
	timeout time.Duration
	clock   clockwork.Clock
}

func (r *tokenResult) Done() <-chan struct{} {
	return r.token.Done()
}

func (r *tokenResult) Wait(ctx context.Context) error {
	var timeout <-chan time.Time
	if r.timeout > 0 {
		timeout = r.clock.After(r.timeout)
	}

	select {
	case <-r.token.Done():
		if err := r.token.Error(); err != nil {
			return &PublishError{Topic: r.topic, Err: err}
		}
		return nil
	case <-timeout:
		return &PublishError{Topic: r.topic, Err: ErrPublishTimeout}
	case <-ctx.Done():
		return &PublishError{Topic: r.topic, Err: ctx.Err()}
	}
}

type completedResult struct {
	err  error
	done chan struct{}
}

// CompletedResult returns a Result that is already resolved with err.
func CompletedResult(err error) Result {
	done := make(chan struct{})
	close(done)
	return &completedResult{err: err, done: done}
}

func (r *completedResult) Done() <-chan struct{} {
	return r.done
}

func (r *completedResult) Wait(_ context.Context) error {
	return r.err
}
