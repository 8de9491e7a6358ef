package apperr

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelMatching(t *testing.T) {
	err := NotFound("get task", "task %s not found", "abc")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrStorageUnavailable))
	assert.Equal(t, "get task: task abc not found", err.Error())

	wrapped := fmt.Errorf("transition: %w", err)
	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.Equal(t, KindNotFound, KindOf(wrapped))
}

func TestStorageKeepsCause(t *testing.T) {
	err := Storage("query task", sql.ErrConnDone)
	assert.True(t, errors.Is(err, ErrStorageUnavailable))
	assert.True(t, errors.Is(err, sql.ErrConnDone))
	assert.Nil(t, Storage("noop", nil))

	// Already-typed errors pass through untouched.
	nf := NotFound("get", "missing")
	assert.Same(t, nf, Storage("outer", nf))
}

func TestKindOfUnknown(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, "unknown", KindUnknown.String())
	assert.Equal(t, "relay_unavailable", KindOf(Relay("send", errors.New("boom"))).String())
}
