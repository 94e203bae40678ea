package service

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionalTimeUnmarshal(t *testing.T) {
	type payload struct {
		ExpiresAt OptionalTime `json:"expiresAt"`
	}

	t.Run("absent field stays unset", func(t *testing.T) {
		var p payload
		require.NoError(t, json.Unmarshal([]byte(`{}`), &p))
		assert.False(t, p.ExpiresAt.Set)
		assert.Nil(t, p.ExpiresAt.Value)
	})

	t.Run("explicit null sets with nil value", func(t *testing.T) {
		var p payload
		require.NoError(t, json.Unmarshal([]byte(`{"expiresAt":null}`), &p))
		assert.True(t, p.ExpiresAt.Set)
		assert.Nil(t, p.ExpiresAt.Value)
	})

	t.Run("timestamp sets with value", func(t *testing.T) {
		var p payload
		require.NoError(t, json.Unmarshal([]byte(`{"expiresAt":"2026-01-02T15:04:05Z"}`), &p))
		assert.True(t, p.ExpiresAt.Set)
		require.NotNil(t, p.ExpiresAt.Value)
		assert.Equal(t, time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC), p.ExpiresAt.Value.UTC())
	})

	t.Run("garbage is an error", func(t *testing.T) {
		var p payload
		assert.Error(t, json.Unmarshal([]byte(`{"expiresAt":"not-a-time"}`), &p))
	})
}
