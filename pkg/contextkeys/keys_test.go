package contextkeys

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithDecision(t *testing.T) {
	ctx := WithDecision(context.Background(), "allowed")
	assert.Equal(t, "allowed", ctx.Value(DecisionKey))
	assert.Nil(t, ctx.Value(RequestIDKey))
}

func TestKeysAreDistinct(t *testing.T) {
	keys := []Key{DecisionKey, RequestIDKey, UserIDKey, LoggerKey}
	seen := map[Key]bool{}
	for _, k := range keys {
		assert.False(t, seen[k], "duplicate key %s", k)
		seen[k] = true
	}
}
