package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompletedMutationResolvesImmediately(t *testing.T) {
	m := completedMutation(fmt.Errorf("invalid"))

	select {
	case <-m.Done():
	default:
		t.Fatal("expected Done to be closed")
	}
	assert.Error(t, m.Err())
	assert.Error(t, m.Wait(context.Background()))
}

func TestWaitRespectsContextCancellation(t *testing.T) {
	m := newMutation()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := m.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// The mutation itself is still unresolved; a later complete settles it.
	m.complete(nil)
	assert.NoError(t, m.Wait(context.Background()))
}
