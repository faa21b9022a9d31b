// Package fixedpoint converts on-chain fixed-point encodings into amounts
// the valuation engine can work with. All intermediate math stays on
// big.Int or decimal; floats appear only in the final derived USD values.
package fixedpoint

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Ray is the 1e27 precision used by Aave-family interest indices.
var Ray = new(big.Int).Exp(big.NewInt(10), big.NewInt(27), nil)

// Wad is the 1e18 precision used for lltv and per-second rate encodings.
var Wad = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// usdScale applies the 4-decimal-place rounding: amounts are scaled by
// 10000 as integers before the one float division.
var usdScale = big.NewInt(10000)

// ScaledToActual realizes a scaled on-chain balance through the protocol's
// current interest index: actual = scaled * index / 1e27.
func ScaledToActual(scaled, index *big.Int) *big.Int {
	if scaled == nil || scaled.Sign() == 0 {
		return new(big.Int)
	}
	out := new(big.Int).Mul(scaled, index)
	return out.Quo(out, Ray)
}

// RayToFloat converts a ray-encoded rate to a fraction.
func RayToFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := decimal.NewFromBigInt(v, -27).Float64()
	return f
}

// WadToFloat converts a wad-encoded fraction (e.g. an lltv) to a float.
func WadToFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := decimal.NewFromBigInt(v, -18).Float64()
	return f
}

// BaseToUSD converts a base-currency (oracle) amount to a USD value with
// four decimal places: the amount is scaled by 10000 in integer space
// before the single division by the base currency unit, avoiding
// floating-point drift.
func BaseToUSD(amount, baseCurrencyUnit *big.Int) float64 {
	if amount == nil || baseCurrencyUnit == nil || baseCurrencyUnit.Sign() == 0 {
		return 0
	}
	scaled := new(big.Int).Mul(amount, usdScale)
	scaled.Quo(scaled, baseCurrencyUnit)
	f, _ := decimal.NewFromBigInt(scaled, -4).Float64()
	return f
}

// TokenToUSD values an integer token amount at a USD price per whole
// token, rounding to four decimal places.
func TokenToUSD(amount *big.Int, decimals uint8, priceUSD float64) float64 {
	if amount == nil || amount.Sign() == 0 {
		return 0
	}
	units := decimal.NewFromBigInt(amount, -int32(decimals))
	usd := units.Mul(decimal.NewFromFloat(priceUSD)).Round(4)
	f, _ := usd.Float64()
	return f
}

// USDToToken converts a USD value back into integer token units at the
// given price, truncating toward zero so a capped debt amount never
// rounds above its cap.
func USDToToken(usd float64, decimals uint8, priceUSD float64) *big.Int {
	if priceUSD <= 0 || usd <= 0 {
		return new(big.Int)
	}
	units := decimal.NewFromFloat(usd).Div(decimal.NewFromFloat(priceUSD))
	scaled := units.Shift(int32(decimals)).Truncate(0)
	return scaled.BigInt()
}

// PriceFromBase derives a per-whole-token USD price from an oracle price
// quoted in base-currency units.
func PriceFromBase(price, baseCurrencyUnit *big.Int) float64 {
	return BaseToUSD(price, baseCurrencyUnit)
}

// PerSecondToAPR annualizes a per-second wad-encoded rate. Compound V3
// reports supply/borrow rates this way.
func PerSecondToAPR(ratePerSecond *big.Int) float64 {
	const secondsPerYear = 31536000
	if ratePerSecond == nil {
		return 0
	}
	annual := new(big.Int).Mul(ratePerSecond, big.NewInt(secondsPerYear))
	return WadToFloat(annual)
}
