package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateDisplayName(t *testing.T) {
	for i := 0; i < 50; i++ {
		name, err := GenerateDisplayName()
		require.NoError(t, err)
		assert.Regexp(t, DisplayNamePattern, name)
	}
}
