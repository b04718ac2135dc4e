package exchange

import (
	"math/big"

	"github.com/shopspring/decimal"
	"github.com/tolelom/qorachain/core"
)

// CalculateAmountGranularity returns the step a matched amount (in our want
// asset, their have asset) must be a multiple of so that both sides of the
// trade stay representable: integral for an indivisible asset, a whole number
// of 1e-8 units for a divisible one. theirPrice is the target order's price.
func CalculateAmountGranularity(haveAsset, wantAsset *core.AssetData, theirPrice decimal.Decimal) decimal.Decimal {
	multiplier := big.NewInt(1e8)

	// Smallest increment at which we can buy, before divisibility.
	haveAmount := new(big.Int).Set(multiplier)
	priceAmount := theirPrice.Mul(core.Unit).BigInt()
	gcd := new(big.Int).GCD(nil, nil, haveAmount, priceAmount)
	haveAmount.Div(haveAmount, gcd)
	priceAmount.Div(priceAmount, gcd)

	if wantAsset.IsDivisible {
		haveAmount.Mul(haveAmount, multiplier)
	}
	if haveAsset.IsDivisible {
		priceAmount.Mul(priceAmount, multiplier)
	}
	gcd.GCD(nil, nil, haveAmount, priceAmount)

	increment := decimal.NewFromBigInt(new(big.Int).Div(haveAmount, gcd), 0)
	if wantAsset.IsDivisible {
		increment = increment.Shift(-core.AmountScale)
	}
	return increment
}
