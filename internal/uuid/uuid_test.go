// Package uuid provides unit tests for identifier generation and validation.
package uuid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	id := New()
	require.NotEmpty(t, id)
	assert.True(t, IsValid(id), "generated id %q should be a v4 UUID", id)
}

func TestNewUniqueness(t *testing.T) {
	ids := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := New()
		require.False(t, ids[id], "duplicate UUID generated: %s", id)
		ids[id] = true
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		name string
		uuid string
		want bool
	}{
		{"valid v4", "f47ac10b-58cc-4372-a567-0e02b2c3d479", true},
		{"valid v4 uppercase", "6BA7B810-9DAD-41D1-80B4-00C04FD430C8", true},
		{"empty", "", false},
		{"v1", "6ba7b810-9dad-11d1-80b4-00c04fd430c8", false},
		{"bad variant", "f47ac10b-58cc-4372-c567-0e02b2c3d479", false},
		{"no dashes", "f47ac10b58cc4372a5670e02b2c3d479", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValid(tt.uuid))
		})
	}
}

func TestIsReference(t *testing.T) {
	assert.True(t, IsReference("6ba7b810-9dad-11d1-80b4-00c04fd430c8"))
	assert.True(t, IsReference(New()))
	assert.False(t, IsReference("rec-1"))
	assert.False(t, IsReference("{6ba7b810-9dad-11d1-80b4-00c04fd430c8}"))
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(New()))
	require.Error(t, Validate("not-a-uuid"))
}

func TestParse(t *testing.T) {
	id, err := Parse("f47ac10b-58cc-4372-a567-0e02b2c3d479")
	require.NoError(t, err)
	assert.Equal(t, 4, int(id.Version()))

	_, err = Parse("zzz")
	require.Error(t, err)
}
