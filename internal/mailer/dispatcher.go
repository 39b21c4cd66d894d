package mailer

import (
	"sync"

	"github.com/rs/zerolog"
)

// Dispatcher queues emails for background delivery. Enqueue never blocks the
// caller: when the queue is full the message is dropped and logged. Delivery
// failures are logged and not surfaced to request handlers.
type Dispatcher struct {
	sender Sender
	logger *zerolog.Logger
	queue  chan Email

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewDispatcher starts workers goroutines draining a queue of the given size.
func NewDispatcher(sender Sender, logger *zerolog.Logger, queueSize, workers int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 64
	}
	if workers <= 0 {
		workers = 2
	}

	d := &Dispatcher{
		sender: sender,
		logger: logger,
		queue:  make(chan Email, queueSize),
		done:   make(chan struct{}),
	}

	d.wg.Add(workers)
	for range workers {
		go d.worker()
	}

	return d
}

// Enqueue submits an email for delivery without blocking.
func (d *Dispatcher) Enqueue(email Email) {
	select {
	case d.queue <- email:
	default:
		d.logger.Warn().
			Str("to", email.To).
			Str("subject", email.Subject).
			Msg("mail queue full, dropping email")
	}
}

// Close stops accepting work and waits for in-flight deliveries to finish.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.done)
		d.wg.Wait()
	})
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for {
		select {
		case email := <-d.queue:
			if err := d.sender.Send(email); err != nil {
				d.logger.Error().Err(err).
					Str("to", email.To).
					Str("subject", email.Subject).
					Msg("failed to send email")
			}
		case <-d.done:
			// Drain what is already queued before exiting.
			for {
				select {
				case email := <-d.queue:
					if err := d.sender.Send(email); err != nil {
						d.logger.Error().Err(err).Str("to", email.To).Msg("failed to send email")
					}
				default:
					return
				}
			}
		}
	}
}
