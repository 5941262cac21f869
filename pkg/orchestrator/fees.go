package orchestrator

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sigweihq/smartwallet/pkg/clauses"
	"github.com/sigweihq/smartwallet/pkg/constants"
	"github.com/sigweihq/smartwallet/pkg/delegation"
	"github.com/sigweihq/smartwallet/pkg/network"
	"github.com/sigweihq/smartwallet/pkg/transaction"
	"github.com/sigweihq/smartwallet/pkg/types"
)

const gasCacheSize = 256

// mockFee sizes the placeholder fee transfer used for gas estimation (1 VTHO)
var mockFee = big.NewInt(1_000_000_000_000_000_000)

// EstimateGenericFees prices the clauses for every generic delegation token and speed
// without contacting the delegator. Gas is estimated once on the clauses as they would be
// sent, including a placeholder VTHO fee transfer, and memoized per clause set.
func (o *Orchestrator) EstimateGenericFees(
	ctx context.Context,
	userClauses []types.Clause,
	rates types.RatesResponse,
	prices types.GasPrices,
) (map[string]delegation.TokenFees, error) {
	if len(userClauses) == 0 {
		return nil, types.NewWalletError(types.ErrorTypeBuildingTransaction, "no clauses to estimate", nil)
	}
	if o.estimator == nil {
		return nil, types.NewWalletError(types.ErrorTypeBuildingTransaction, "gas estimator is not configured", nil)
	}

	chainID, err := network.ChainID(o.networkType, o.chainIDOverride)
	if err != nil {
		return nil, err
	}
	sender := o.sender.Address()
	cfg, err := o.resolveAccount(ctx, sender)
	if err != nil {
		return nil, err
	}

	key, err := estimateKey(o.networkType, sender, cfg, userClauses)
	if err != nil {
		return nil, types.NewWalletError(types.ErrorTypeBuildingTransaction, "invalid clauses", err)
	}
	gas, ok := o.gasCache.Get(key)
	if !ok {
		placeholder := &types.GenericDelegationDetails{
			Token:          constants.TokenVTHO,
			TokenAddress:   constants.VTHOAddress,
			DepositAccount: sender.Hex(),
			Fee:            mockFee,
		}

		var toSend []types.Clause
		if cfg.HasAccount() {
			toSend, _, err = o.prepareClauses(ctx, userClauses, cfg, chainID, placeholder)
		} else {
			toSend, err = clauses.WithFeeClause(userClauses, placeholder)
		}
		if err != nil {
			return nil, err
		}

		gas, err = o.estimator.EstimateGas(ctx, toSend, sender)
		if err != nil {
			return nil, types.NewWalletError(types.ErrorTypeNetwork, "gas estimation failed", err)
		}
		o.gasCache.Add(key, gas)
	}

	o.logger.Debug("estimated generic delegation gas", "sender", sender.Hex(), "gas", gas, "cached", ok)
	return delegation.EstimateFees(gas, prices, rates), nil
}

// estimateKey identifies a clause set sent by one sender on one network.
// Authorization nonces and timestamps are excluded so repeated estimates hit the cache.
func estimateKey(networkType string, sender common.Address, cfg *types.SmartAccountConfig, userClauses []types.Clause) (common.Hash, error) {
	bodyClauses, err := transaction.ClausesFrom(userClauses)
	if err != nil {
		return common.Hash{}, err
	}
	encoded, err := (&transaction.Body{Clauses: bodyClauses}).Encode()
	if err != nil {
		return common.Hash{}, err
	}

	state := []byte{0, 0}
	if cfg.HasAccount() {
		state[0] = 1
	}
	if cfg.IsDeployed {
		state[1] = 1
	}
	return crypto.Keccak256Hash([]byte(networkType), sender.Bytes(), state, encoded), nil
}
