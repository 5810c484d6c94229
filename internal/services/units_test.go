package services

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatUnits(t *testing.T) {
	assert.Equal(t, "1.5", formatUnits(big.NewInt(1_500_000_000), 9))
	assert.Equal(t, "0.000000001", formatUnits(big.NewInt(1), 9))
	assert.Equal(t, "0", formatUnits(nil, 18))
	assert.Equal(t, "0", formatUnits(big.NewInt(0), 18))
}

func TestParseUnits(t *testing.T) {
	v, err := parseUnits("1.5", 9)
	require.NoError(t, err)
	assert.Equal(t, int64(1_500_000_000), v.Int64())

	v, err = parseUnits("0.000000000000000001", 18)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.Int64())

	for _, bad := range []string{"", "abc", "0", "-1", "0.0000000001"} {
		_, err := parseUnits(bad, 9)
		var ve *ValidationError
		assert.ErrorAs(t, err, &ve, bad)
	}
}
