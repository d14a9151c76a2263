package types

import (
	"math/big"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// PriceDecimals is the number of fractional digits of on-chain prices.
const PriceDecimals = 8

// maxPriceBits is the width of the contract's uint256 price argument.
const maxPriceBits = 256

var priceScale = decimal.New(1, PriceDecimals)

// ToFixedPoint converts a decimal price into the on-chain integer representation,
// round(price * 10^8), rounding half away from zero.
func ToFixedPoint(price decimal.Decimal) (*big.Int, error) {
	if price.IsNegative() {
		return nil, errors.Errorf("negative price %s", price.String())
	}

	scaled := price.Mul(priceScale).Round(0).BigInt()
	if scaled.BitLen() > maxPriceBits {
		return nil, errors.Errorf("price %s overflows uint%d after scaling", price.String(), maxPriceBits)
	}

	return scaled, nil
}

// FromFixedPoint is the inverse of ToFixedPoint, used for display.
func FromFixedPoint(price *big.Int) decimal.Decimal {
	if price == nil {
		return decimal.Zero
	}

	return decimal.NewFromBigInt(price, -PriceDecimals)
}
