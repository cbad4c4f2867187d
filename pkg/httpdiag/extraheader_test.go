package httpdiag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExtraHeader_Empty(t *testing.T) {
	_, err := ParseExtraHeader("")
	require.Error(t, err)
	var headerErr *ExtraHeaderError
	require.ErrorAs(t, err, &headerErr)
	assert.Equal(t, MissingColon, headerErr.Kind)
}

func TestParseExtraHeader_OnlyColon(t *testing.T) {
	_, err := ParseExtraHeader(":")
	require.Error(t, err)
	var headerErr *ExtraHeaderError
	require.ErrorAs(t, err, &headerErr)
	assert.Equal(t, InvalidName, headerErr.Kind)
}

func TestParseExtraHeader_Simple(t *testing.T) {
	h, err := ParseExtraHeader("a: b")
	require.NoError(t, err)
	assert.Equal(t, ExtraHeader{Name: "a", Value: "b"}, h)
}

func TestParseExtraHeader_InvalidValue(t *testing.T) {
	_, err := ParseExtraHeader("X-Test: bad\x7fvalue")
	require.Error(t, err)
	var headerErr *ExtraHeaderError
	require.ErrorAs(t, err, &headerErr)
	assert.Equal(t, InvalidValue, headerErr.Kind)
}
