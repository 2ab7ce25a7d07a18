package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

// A nil client must behave as "no cache": reads miss, writes vanish.
func TestNilClientIsNoCache(t *testing.T) {
	ctx := context.Background()

	var dest struct{ ID int }
	assert.False(t, Get(ctx, nil, TaskKey(1), &dest))

	assert.NotPanics(t, func() {
		Set(ctx, nil, TaskKey(1), map[string]int{"id": 1})
		Invalidate(ctx, nil, TaskKey(1), UserKey(2))
		Invalidate(ctx, nil)
	})
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "task:42", TaskKey(42))
	assert.Equal(t, "user:7", UserKey(7))
}
