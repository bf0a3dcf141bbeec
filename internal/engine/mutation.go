package engine

import "context"

// Mutation is the handle returned by every engine mutation. The optimistic
// local change is visible through GetSnapshot immediately; the handle
// resolves once the backend confirms or the change is rolled back.
type Mutation struct {
	done chan struct{}
	err  error
}

func newMutation() *Mutation {
	return &Mutation{done: make(chan struct{})}
}

// completedMutation returns an already-resolved handle, used when a
// mutation fails validation before anything is applied.
func completedMutation(err error) *Mutation {
	m := newMutation()
	m.complete(err)
	return m
}

func (m *Mutation) complete(err error) {
	m.err = err
	close(m.done)
}

// Done is closed when the mutation has been confirmed, rolled back, or
// discarded.
func (m *Mutation) Done() <-chan struct{} {
	return m.done
}

// Err returns the outcome. Only valid after Done is closed.
func (m *Mutation) Err() error {
	return m.err
}

// Wait blocks until the mutation resolves or ctx is cancelled.
func (m *Mutation) Wait(ctx context.Context) error {
	select {
	case <-m.done:
		return m.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
