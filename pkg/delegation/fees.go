package delegation

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
	"github.com/sigweihq/smartwallet/pkg/constants"
	"github.com/sigweihq/smartwallet/pkg/types"
)

// TokenFees is a fee in the smallest unit of each accepted token
type TokenFees struct {
	VET  *big.Int
	VTHO *big.Int
	B3TR *big.Int
}

// For returns the fee for token
func (f TokenFees) For(token string) (*big.Int, error) {
	switch token {
	case constants.TokenVET:
		return f.VET, nil
	case constants.TokenVTHO:
		return f.VTHO, nil
	case constants.TokenB3TR:
		return f.B3TR, nil
	default:
		return nil, fmt.Errorf("unsupported delegation token: %s", token)
	}
}

// EstimateFees prices gasUsed at each speed. VTHO cost is gas * gasPrice, converted with
// the delegator's rate and increased by its service fee.
// Speeds without a gas price fall back to BaseGasPrice; legacy always uses it.
func EstimateFees(gasUsed uint64, prices types.GasPrices, rates types.RatesResponse) map[string]TokenFees {
	base := big.NewInt(constants.BaseGasPrice)
	orBase := func(p *big.Int) *big.Int {
		if p == nil || p.Sign() <= 0 {
			return base
		}
		return p
	}

	return map[string]TokenFees{
		constants.SpeedRegular: feesAt(gasUsed, orBase(prices.Regular), rates),
		constants.SpeedMedium:  feesAt(gasUsed, orBase(prices.Medium), rates),
		constants.SpeedHigh:    feesAt(gasUsed, orBase(prices.High), rates),
		constants.SpeedLegacy:  feesAt(gasUsed, base, rates),
	}
}

func feesAt(gasUsed uint64, gasPrice *big.Int, rates types.RatesResponse) TokenFees {
	vthoWei := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(gasUsed))
	multiplier := decimal.NewFromInt(1).Add(rates.ServiceFee)
	convert := func(rate decimal.Decimal) *big.Int {
		return decimal.NewFromBigInt(vthoWei, 0).Mul(rate).Mul(multiplier).Round(0).BigInt()
	}
	return TokenFees{
		VET:  convert(rates.Rate.VET),
		VTHO: convert(rates.Rate.VTHO),
		B3TR: convert(rates.Rate.B3TR),
	}
}

// ToEther formats a wei amount with 18 decimals
func ToEther(wei *big.Int) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei, -18)
}
