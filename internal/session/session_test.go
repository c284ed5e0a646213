package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/kimhsiao/lifetrack/backend/internal/errors"
)

func TestStatic(t *testing.T) {
	id, err := Static("user-1").UserID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "user-1", id)

	_, err = Static("").UserID(context.Background())
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthenticated))
}

func TestFromContext(t *testing.T) {
	p := FromContext{Fallback: Static("fallback")}

	id, err := p.UserID(WithUser(context.Background(), "ctx-user"))
	require.NoError(t, err)
	assert.Equal(t, "ctx-user", id)

	id, err = p.UserID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fallback", id)

	_, err = FromContext{}.UserID(context.Background())
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthenticated))
}
