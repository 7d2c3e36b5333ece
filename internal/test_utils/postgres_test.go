package test_utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

func TestRunGuarded(t *testing.T) {
	t.Run("should turn a panic into an error", func(t *testing.T) {
		container, err := runGuarded(func() (*postgres.PostgresContainer, error) {
			panic("rootless Docker not found")
		})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "rootless Docker not found")
		assert.Nil(t, container)
	})

	t.Run("should pass errors through", func(t *testing.T) {
		failure := errors.New("pull failed")

		_, err := runGuarded(func() (*postgres.PostgresContainer, error) {
			return nil, failure
		})

		assert.ErrorIs(t, err, failure)
	})
}
