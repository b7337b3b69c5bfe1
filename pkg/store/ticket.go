package store

import (
	"context"
	"sync"

	"github.com/visionassist/scene-cache/pkg/fingerprint"
)

// Ticket represents one in-flight call cycle for a fingerprint. The leader
// resolves it through Store.Complete or Store.Fail; every waiter blocked in
// Wait observes the same terminal outcome exactly once.
type Ticket struct {
	fp   fingerprint.Value
	done chan struct{}
	once sync.Once

	// result and err are written once, before done is closed.
	result string
	err    error
}

func newTicket(fp fingerprint.Value) *Ticket {
	return &Ticket{
		fp:   fp,
		done: make(chan struct{}),
	}
}

// Fingerprint returns the fingerprint this ticket's call cycle is for.
func (t *Ticket) Fingerprint() fingerprint.Value {
	return t.fp
}

// Wait blocks until the leader completes or fails, or ctx is cancelled.
// An abandoned wait does not disturb the leader's call; other waiters and
// future lookups still benefit from the eventual result.
func (t *Ticket) Wait(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-t.done:
		return t.result, t.err
	}
}

// resolve records the terminal outcome and releases all waiters. Later
// calls are no-ops, so a cycle can never broadcast twice.
func (t *Ticket) resolve(result string, err error) {
	t.once.Do(func() {
		t.result = result
		t.err = err
		close(t.done)
	})
}
