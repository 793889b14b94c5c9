package scale

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsBadInput(t *testing.T) {
	_, err := New("abc", "0.001")
	assert.Error(t, err)

	_, err = New("0.01", "0")
	assert.Error(t, err)

	_, err = New("-0.01", "0.001")
	assert.Error(t, err)
}

func TestRoundTrip(t *testing.T) {
	sc, err := New("0.01", "0.00000001")
	require.NoError(t, err)

	assert.Equal(t, "105.25", sc.Price(10525).String())
	assert.Equal(t, "1.5", sc.Size(150000000).String())

	ticks, err := sc.PriceTicks(decimal.RequireFromString("105.25"))
	require.NoError(t, err)
	assert.Equal(t, int64(10525), ticks)

	lots, err := sc.SizeLots(decimal.RequireFromString("1.5"))
	require.NoError(t, err)
	assert.Equal(t, int64(150000000), lots)
}

func TestOffGridRejected(t *testing.T) {
	sc, err := New("0.01", "0.001")
	require.NoError(t, err)

	_, err = sc.PriceTicks(decimal.RequireFromString("100.005"))
	assert.Error(t, err)

	_, err = sc.SizeLots(decimal.RequireFromString("0.0005"))
	assert.Error(t, err)
}

func TestNoFloatDrift(t *testing.T) {
	sc, err := New("0.1", "0.1")
	require.NoError(t, err)

	// 0.3 is not representable in binary floating point; decimal math
	// must still land it exactly on the 0.1 grid.
	ticks, err := sc.PriceTicks(decimal.RequireFromString("0.3"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), ticks)
}
