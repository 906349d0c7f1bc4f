package utils

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestSDKIntToFloat64(t *testing.T) {
	v, err := SDKIntToFloat64(sdkmath.NewInt(1_500_000), 6)
	require.NoError(t, err)
	require.InDelta(t, 1.5, v, 1e-12)

	v, err = SDKIntToFloat64(sdkmath.NewInt(42), 0)
	require.NoError(t, err)
	require.InDelta(t, 42.0, v, 1e-12)

	_, err = SDKIntToFloat64(sdkmath.NewInt(1), 19)
	require.ErrorIs(t, err, ErrInvalidPrecision)

	_, err = SDKIntToFloat64(sdkmath.Int{}, 6)
	require.ErrorIs(t, err, ErrAmountNil)

	_, err = SDKIntToFloat64(sdkmath.NewInt(-1), 6)
	require.ErrorIs(t, err, ErrAmountNegative)
}

func TestDecimalRoundTrip(t *testing.T) {
	dec, err := SDKIntToDecimal(sdkmath.NewInt(123_456_789), 6)
	require.NoError(t, err)
	require.Equal(t, "123.456789", dec.String())

	back, err := DecimalToSDKInt(dec, 6)
	require.NoError(t, err)
	require.Equal(t, "123456789", back.String())
}

func TestDecimalToSDKIntTruncates(t *testing.T) {
	// Sub-base-unit dust is truncated, never rounded up.
	dec := decimal.RequireFromString("1.2345678")
	v, err := DecimalToSDKInt(dec, 6)
	require.NoError(t, err)
	require.Equal(t, "1234567", v.String())

	_, err = DecimalToSDKInt(decimal.RequireFromString("-1"), 6)
	require.ErrorIs(t, err, ErrAmountNegative)
}

func TestParseSDKInt(t *testing.T) {
	v, err := ParseSDKInt("123456789012345678901234567890")
	require.NoError(t, err)
	require.Equal(t, "123456789012345678901234567890", v.String())

	_, err = ParseSDKInt("not-a-number")
	require.ErrorIs(t, err, ErrConversionFailed)

	_, err = ParseSDKInt("1.5")
	require.ErrorIs(t, err, ErrConversionFailed)

	_, err = ParseSDKInt("-10")
	require.ErrorIs(t, err, ErrAmountNegative)
}
