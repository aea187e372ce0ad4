package repositories

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestRetryOnDuplicate(t *testing.T) {
	t.Run("retries until the conflict clears", func(t *testing.T) {
		calls := 0
		err := retryOnDuplicate(5, func() error {
			calls++
			if calls < 3 {
				return fmt.Errorf("insert task: %w", gorm.ErrDuplicatedKey)
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after the attempt budget", func(t *testing.T) {
		calls := 0
		err := retryOnDuplicate(4, func() error {
			calls++
			return gorm.ErrDuplicatedKey
		})
		assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
		assert.Equal(t, 4, calls)
	})

	t.Run("other errors are returned at once", func(t *testing.T) {
		boom := errors.New("disk full")
		calls := 0
		err := retryOnDuplicate(5, func() error {
			calls++
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, calls)
	})
}
