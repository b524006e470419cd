// Package indicators wraps the technical analysis primitives the engine
// consumes, keeping decimal types at the boundary.
package indicators

import (
	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// ErrInsufficientData is returned when a series is shorter than the
// indicator period.
var ErrInsufficientData = errors.New("insufficient data points")

// CalculateEMA computes the Exponential Moving Average over the closing
// prices. The first value is the arithmetic mean of the first period inputs
// and subsequent values use the smoothing factor 2/(period+1). The returned
// slice is aligned so that index 0 corresponds to input index period-1; the
// earlier entries of the conceptual series are undefined and not returned.
func CalculateEMA(closes []decimal.Decimal, period int) ([]decimal.Decimal, error) {
	if period < 1 {
		return nil, errors.Errorf("period must be >= 1, got %d", period)
	}
	if len(closes) < period {
		return nil, errors.Wrapf(ErrInsufficientData, "need %d, got %d", period, len(closes))
	}

	closesFloat := decimalsToFloat64(closes)

	ema := trend.NewEmaWithPeriod[float64](period)
	inputChan := helper.SliceToChan(closesFloat)
	outputChan := ema.Compute(inputChan)
	emaFloat := helper.ChanToSlice(outputChan)

	return float64ToDecimals(emaFloat), nil
}

// LastEMA returns the most recent EMA value of the series.
func LastEMA(closes []decimal.Decimal, period int) (decimal.Decimal, error) {
	series, err := CalculateEMA(closes, period)
	if err != nil {
		return decimal.Zero, err
	}
	if len(series) == 0 {
		return decimal.Zero, errors.Wrapf(ErrInsufficientData, "empty EMA series for period %d", period)
	}
	return series[len(series)-1], nil
}

// decimalsToFloat64 converts a slice of decimal.Decimal to []float64.
func decimalsToFloat64(decimals []decimal.Decimal) []float64 {
	result := make([]float64, len(decimals))
	for i, d := range decimals {
		result[i], _ = d.Float64()
	}
	return result
}

// float64ToDecimals converts a slice of float64 to []decimal.Decimal.
func float64ToDecimals(floats []float64) []decimal.Decimal {
	result := make([]decimal.Decimal, len(floats))
	for i, f := range floats {
		result[i] = decimal.NewFromFloat(f)
	}
	return result
}
