package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/oshokin/pingbot/internal/logger"
	"github.com/oshokin/pingbot/internal/messaging/line"
)

// DefaultConcurrency bounds how many pushes are in flight at once.
const DefaultConcurrency = 8

// Sender delivers messages to a single recipient.
type Sender interface {
	Push(ctx context.Context, to string, messages ...line.Message) error
}

// errSenderPanicked is recorded for a recipient whose push panicked.
var errSenderPanicked = errors.New("sender panicked")

// Outcome is the delivery result for one recipient.
type Outcome struct {
	Recipient string
	Err       error
}

// OK reports whether the push succeeded.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Dispatcher is the Notification Dispatcher.
type Dispatcher struct {
	sender      Sender
	concurrency int
	callTimeout time.Duration
}

// Option configures the dispatcher.
type Option func(*Dispatcher)

// WithConcurrency overrides DefaultConcurrency.
func WithConcurrency(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// WithCallTimeout bounds each push.
func WithCallTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.callTimeout = timeout
		}
	}
}

// NewDispatcher creates a dispatcher pushing through sender.
func NewDispatcher(sender Sender, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		sender:      sender,
		concurrency: DefaultConcurrency,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Broadcast pushes messages to every recipient and returns one outcome per
// recipient, in recipient order.
func (d *Dispatcher) Broadcast(ctx context.Context, recipients []string, messages ...line.Message) []Outcome {
	outcomes := make([]Outcome, len(recipients))

	var group errgroup.Group

	group.SetLimit(d.concurrency)

	for i, recipient := range recipients {
		group.Go(func() error {
			outcomes[i] = Outcome{Recipient: recipient, Err: d.push(ctx, recipient, messages)}

			return nil
		})
	}

	// Goroutines never return errors; Wait only joins them.
	_ = group.Wait()

	var failed int

	for _, o := range outcomes {
		if o.OK() {
			continue
		}

		failed++

		logger.ErrorKV(ctx, "Push failed", "recipient", o.Recipient, "error", o.Err)
	}

	logger.InfoKV(ctx, "Broadcast finished", "recipients", len(recipients), "failed", failed)

	return outcomes
}

// push sends to one recipient within the call timeout. A panicking sender
// fails only this recipient.
func (d *Dispatcher) push(ctx context.Context, recipient string, messages []line.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errSenderPanicked, r)
		}
	}()

	if d.callTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, d.callTimeout)
		defer cancel()
	}

	return d.sender.Push(ctx, recipient, messages...)
}
