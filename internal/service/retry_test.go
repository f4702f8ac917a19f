package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"storefront/internal/apperr"
)

func TestRunnerRetriesOnlyRetryableKinds(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCalls int
	}{
		{"conflict", apperr.ErrConflict, 3},
		{"unavailable", apperr.ErrUnavailable, 3},
		{"not found", apperr.ErrProductNotFound, 1},
		{"duplicate", apperr.ErrAlreadyInList, 1},
		{"unclassified", errors.New("boom"), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := testRunner().Do(context.Background(), "test", func(ctx context.Context) error {
				calls++
				return tt.err
			})

			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.wantCalls, calls)
		})
	}
}

func TestRunnerAppliesAttemptTimeout(t *testing.T) {
	r := testRunner()
	r.timeout = 10 * time.Millisecond

	err := r.Do(context.Background(), "test", func(ctx context.Context) error {
		deadline, ok := ctx.Deadline()
		assert.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(10*time.Millisecond), deadline, 10*time.Millisecond)
		return nil
	})

	assert.NoError(t, err)
}

func TestRunnerMapsCancellationToUnavailable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := testRunner().Do(ctx, "test", func(ctx context.Context) error {
		return ctx.Err()
	})

	assert.Equal(t, apperr.KindUnavailable, apperr.KindOf(err))
}
