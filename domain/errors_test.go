package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStoreError(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		assert.NoError(t, StoreError("load", nil))
	})

	t.Run("domain errors pass through", func(t *testing.T) {
		assert.Same(t, ErrConcurrencyConflict, StoreError("append", ErrConcurrencyConflict))
	})

	t.Run("timeout is distinct", func(t *testing.T) {
		err := StoreError("append events", fmt.Errorf("query: %w", context.DeadlineExceeded))
		assert.True(t, IsDomainError(err, ErrCodeStoreUnavailable))
		assert.True(t, IsTimeout(err))
		assert.Contains(t, err.Error(), "store timeout during append events")
	})

	t.Run("outage", func(t *testing.T) {
		err := StoreError("load events", errors.New("connection refused"))
		assert.True(t, IsDomainError(err, ErrCodeStoreUnavailable))
		assert.False(t, IsTimeout(err))
		assert.Contains(t, err.Error(), "load events failed")
	})

	t.Run("cancelled", func(t *testing.T) {
		err := StoreError("load events", context.Canceled)
		assert.False(t, IsTimeout(err))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestCode(t *testing.T) {
	assert.Equal(t, ErrCodeAggregateState, Code(ErrAggregateNotInitialized))
	assert.Equal(t, ErrCodeValidationRejected, Code(Rejected("no")))
	assert.Equal(t, ErrCodeInternal, Code(errors.New("boom")))
	assert.Equal(t, ErrCodeNotFound, Code(fmt.Errorf("wrapped: %w", ErrAccountNotFound)))
}
