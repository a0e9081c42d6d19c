package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMustParseUint(t *testing.T) {
	assert.Equal(t, uint(15), MustParseUint("15"))
	assert.Zero(t, MustParseUint("abc"))
	assert.Zero(t, MustParseUint("-3"))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("")
	require.NoError(t, err)
	assert.Nil(t, d)

	d, err = ParseDate("2025-03-09")
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, 2025, d.Year())
	assert.Equal(t, 9, d.Day())

	_, err = ParseDate("09/03/2025")
	assert.Error(t, err)
}
