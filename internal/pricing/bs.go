package pricing

import (
	"math"
)

// BlackScholesPrice calculates the price of a European option with a
// continuous dividend yield.
//
// Parameters:
//   - isCall: true for call option, false for put option
//   - S: spot price of the underlying asset
//   - K: strike price of the option
//   - T: time to expiry in years
//   - r: risk-free interest rate (annual)
//   - q: dividend yield (annual)
//   - sigma: volatility of the underlying asset (annual, as a decimal)
//
// Returns:
//
//	The theoretical price of the option. If time to expiry or volatility is
//	zero or negative, returns the discounted intrinsic value.
func BlackScholesPrice(
	isCall bool,
	S float64, // spot
	K float64, // strike
	T float64, // time to expiry in years
	r float64, // risk-free rate
	q float64, // dividend yield
	sigma float64, // volatility
) float64 {

	dfR := math.Exp(-r * T)
	dfQ := math.Exp(-q * T)

	if T <= 0 || sigma <= 0 {
		if isCall {
			return math.Max(0, S*dfQ-K*dfR)
		}
		return math.Max(0, K*dfR-S*dfQ)
	}

	sqrtT := math.Sqrt(T)
	d1 := (math.Log(S/K) + (r-q+0.5*sigma*sigma)*T) / (sigma * sqrtT)
	d2 := d1 - sigma*sqrtT

	if isCall {
		return S*dfQ*normCDF(d1) - K*dfR*normCDF(d2)
	}
	return K*dfR*normCDF(-d2) - S*dfQ*normCDF(-d1)
}

// normCDF computes the cumulative distribution function of the standard
// normal distribution via the error function.
func normCDF(x float64) float64 {
	return 0.5 * (1.0 + math.Erf(x/math.Sqrt2))
}
