/*
This file contains common utility functions for converting between different types,
particularly for SDK math operations and precision handling.
*/

package utils

import (
	"errors"
	"fmt"
	"math"

	sdkmath "cosmossdk.io/math"
	"github.com/shopspring/decimal"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidPrecision = errors.New("precision is invalid")
	ErrAmountNil        = errors.New("amount is nil")
	ErrAmountNegative   = errors.New("amount is negative")
	ErrNotFinite        = errors.New("value is not finite")
	ErrConversionFailed = errors.New("conversion failed")
)

// SDKIntToFloat64 converts an SDK Int to float64 with proper precision handling.
// Display use only; accounting code never leaves sdkmath.Int.
func SDKIntToFloat64(amount sdkmath.Int, precision int) (float64, error) {
	if precision < 0 || precision > 18 {
		return 0, fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidPrecision, precision)
	}
	if amount.IsNil() {
		return 0, ErrAmountNil
	}
	if amount.IsNegative() {
		return 0, ErrAmountNegative
	}

	result, err := SDKIntToDecimal(amount, precision)
	if err != nil {
		return 0, err
	}

	resultFloat, _ := result.Float64()
	if math.IsNaN(resultFloat) || math.IsInf(resultFloat, 0) {
		return 0, fmt.Errorf("%w: result is %f", ErrNotFinite, resultFloat)
	}

	return resultFloat, nil
}

// SDKIntToDecimal converts an SDK Int in base units to a decimal in display units.
func SDKIntToDecimal(amount sdkmath.Int, precision int) (decimal.Decimal, error) {
	if precision < 0 || precision > 18 {
		return decimal.Zero, fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidPrecision, precision)
	}
	if amount.IsNil() {
		return decimal.Zero, ErrAmountNil
	}
	return decimal.NewFromBigInt(amount.BigInt(), int32(-precision)), nil
}

// DecimalToSDKInt converts a decimal in display units to an SDK Int in base units,
// truncating anything below base-unit resolution.
func DecimalToSDKInt(amount decimal.Decimal, precision int) (sdkmath.Int, error) {
	if precision < 0 || precision > 18 {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidPrecision, precision)
	}
	if amount.IsNegative() {
		return sdkmath.ZeroInt(), ErrAmountNegative
	}
	scaled := amount.Shift(int32(precision)).Truncate(0)
	result, ok := sdkmath.NewIntFromString(scaled.String())
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %s is not an integer amount", ErrConversionFailed, scaled.String())
	}
	return result, nil
}

// ParseSDKInt parses a non-negative base-unit amount from its string form.
func ParseSDKInt(s string) (sdkmath.Int, error) {
	value, ok := sdkmath.NewIntFromString(s)
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %q is not a valid integer", ErrConversionFailed, s)
	}
	if value.IsNegative() {
		return sdkmath.ZeroInt(), ErrAmountNegative
	}
	return value, nil
}
