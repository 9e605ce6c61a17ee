package tx

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "conforma/pkg/domain-errors"
)

func TestFromWithoutTx(t *testing.T) {
	_, ok := From(context.Background())
	assert.False(t, ok)
}

func TestWithTxNilIsNoop(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, ctx, WithTx(ctx, nil))
}

func TestMemoryRunnerSerializesCallbacks(t *testing.T) {
	r := NewMemoryRunner()

	var wg sync.WaitGroup
	var inside, maxInside int
	var mu sync.Mutex

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.RunInTx(context.Background(), func(context.Context) error {
				mu.Lock()
				inside++
				if inside > maxInside {
					maxInside = inside
				}
				mu.Unlock()

				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxInside, "callbacks must never overlap")
}

func TestMemoryRunnerCancelledContext(t *testing.T) {
	r := NewMemoryRunner()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.RunInTx(ctx, func(context.Context) error {
		t.Fatal("callback must not run after cancellation")
		return nil
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
}

func TestMemoryRunnerPropagatesCallbackError(t *testing.T) {
	r := NewMemoryRunner()
	want := dErrors.New(dErrors.CodeConflict, "version changed")

	err := r.RunInTx(context.Background(), func(context.Context) error {
		return want
	})
	assert.ErrorIs(t, err, want)
}
