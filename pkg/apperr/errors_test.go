package apperr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRetryable(t *testing.T) {
	assert.True(t, New(KindTransient, "graph", errors.New("boom")).Retryable())
	assert.True(t, New(KindRateLimited, "llm.analyst", errors.New("boom")).Retryable())
	assert.False(t, New(KindAuth, "graph", errors.New("boom")).Retryable())
	assert.False(t, New(KindValidation, "tools", errors.New("boom")).Retryable())
	assert.False(t, New(KindHardDependency, "relational", errors.New("boom")).Retryable())
}

func TestIsHardDependency(t *testing.T) {
	assert.True(t, IsHardDependency(New(KindHardDependency, "queue", errors.New("down"))))
	assert.False(t, IsHardDependency(New(KindSoftDependency, "fetch", errors.New("down"))))
	assert.False(t, IsHardDependency(errors.New("plain error")))
}

func TestIsSoftDependency(t *testing.T) {
	assert.True(t, IsSoftDependency(New(KindSoftDependency, "geo", errors.New("down"))))
	assert.True(t, IsSoftDependency(New(KindValidation, "tools", errors.New("bad args"))))
	assert.False(t, IsSoftDependency(New(KindHardDependency, "graph", errors.New("down"))))
}

func TestTargetOf(t *testing.T) {
	assert.Equal(t, "scribe", TargetOf(New(KindSoftDependency, "scribe", errors.New("timeout"))))
	assert.Equal(t, "", TargetOf(errors.New("plain error")))
}

func TestErrorUnwrap(t *testing.T) {
	inner := errors.New("connection refused")
	wrapped := New(KindHardDependency, "graph", inner)
	assert.ErrorIs(t, wrapped, inner)
	assert.Contains(t, wrapped.Error(), "graph")
	assert.Contains(t, wrapped.Error(), "connection refused")
}
