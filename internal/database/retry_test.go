package database

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestRetry(t *testing.T) {
	errDown := errors.New("connection refused")

	t.Run("succeeds on first attempt", func(t *testing.T) {
		calls := 0
		err := retry(context.Background(), zerolog.Nop(), "db", func(context.Context) error {
			calls++
			return nil
		})
		if err != nil || calls != 1 {
			t.Errorf("err = %v, calls = %d", err, calls)
		}
	})

	t.Run("stops when the context is cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		err := retry(ctx, zerolog.Nop(), "db", func(context.Context) error {
			calls++
			cancel()
			return errDown
		})
		if !errors.Is(err, context.Canceled) || calls != 1 {
			t.Errorf("err = %v, calls = %d", err, calls)
		}
	})
}
