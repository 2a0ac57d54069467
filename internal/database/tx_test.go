package database

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSerializationFailure(t *testing.T) {
	assert.True(t, IsSerializationFailure(&pq.Error{Code: "40001"}))
	assert.True(t, IsSerializationFailure(fmt.Errorf("insert order: %w", &pq.Error{Code: "40P01"})))
	assert.False(t, IsSerializationFailure(&pq.Error{Code: "23505"}))
	assert.False(t, IsSerializationFailure(errors.New("boom")))
	assert.False(t, IsSerializationFailure(nil))
}

func TestRetrySerializable(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds after transient conflicts", func(t *testing.T) {
		calls := 0
		var retries []int
		err := RetrySerializable(ctx, 3, func(context.Context) error {
			calls++
			if calls < 3 {
				return &pq.Error{Code: "40001"}
			}
			return nil
		}, func(n int, _ error) { retries = append(retries, n) })

		require.NoError(t, err)
		assert.Equal(t, 3, calls)
		assert.Equal(t, []int{1, 2}, retries)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		calls := 0
		err := RetrySerializable(ctx, 2, func(context.Context) error {
			calls++
			return &pq.Error{Code: "40001"}
		}, nil)

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrRetriesExhausted)
		assert.Equal(t, 3, calls)
	})

	t.Run("does not retry other errors", func(t *testing.T) {
		boom := errors.New("boom")
		calls := 0
		err := RetrySerializable(ctx, 5, func(context.Context) error {
			calls++
			return boom
		}, nil)

		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, calls)
	})

	t.Run("stops when context is done", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		err := RetrySerializable(cancelled, 5, func(context.Context) error {
			t.Fatal("attempt should not run")
			return nil
		}, nil)

		assert.ErrorIs(t, err, context.Canceled)
	})
}
