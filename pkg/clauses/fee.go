package clauses

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sigweihq/smartwallet/pkg/chains/evm"
	"github.com/sigweihq/smartwallet/pkg/types"
)

// FeeClause builds the payment to a generic delegator's deposit account.
// VET fees are a plain transfer; token fees call transfer on the token contract.
func FeeClause(details *types.GenericDelegationDetails) (types.Clause, error) {
	if details == nil {
		return types.Clause{}, fmt.Errorf("missing delegation fee details")
	}
	if !common.IsHexAddress(details.DepositAccount) {
		return types.Clause{}, fmt.Errorf("invalid deposit account: %q", details.DepositAccount)
	}
	if details.Fee == nil || details.Fee.Sign() < 0 {
		return types.Clause{}, fmt.Errorf("invalid delegation fee")
	}

	if details.IsVET() {
		return types.NewClause(common.HexToAddress(details.DepositAccount).Hex(), details.Fee.String(), "0x"), nil
	}

	if !common.IsHexAddress(details.TokenAddress) {
		return types.Clause{}, fmt.Errorf("invalid fee token address: %q", details.TokenAddress)
	}
	data, err := evm.PackERC20Transfer(common.HexToAddress(details.DepositAccount), details.Fee)
	if err != nil {
		return types.Clause{}, err
	}
	return types.NewClause(common.HexToAddress(details.TokenAddress).Hex(), "0", hexutil.Encode(data)), nil
}

// WithFeeClause returns a copy of userClauses with the delegator fee appended,
// so the fee is covered by the same authorization as the user's calls
func WithFeeClause(userClauses []types.Clause, details *types.GenericDelegationDetails) ([]types.Clause, error) {
	fee, err := FeeClause(details)
	if err != nil {
		return nil, err
	}
	out := make([]types.Clause, 0, len(userClauses)+1)
	out = append(out, userClauses...)
	return append(out, fee), nil
}
