package ptt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackendFunc(t *testing.T) {
	var last bool
	b := BackendFunc(func(on bool) error {
		last = on
		return nil
	})

	require.NoError(t, b.Assert(true))
	assert.True(t, last)
	require.NoError(t, b.Assert(false))
	assert.False(t, last)
}
