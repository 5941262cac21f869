package network

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sigweihq/smartwallet/pkg/constants"
	"github.com/sigweihq/smartwallet/pkg/types"
)

// ChainID resolves the EIP-712 chain id for a network.
// Mainnet and testnet ids are fixed and any override is ignored.
// Solo and custom networks require an override that fits in 16 bits.
func ChainID(networkType string, override *int64) (int64, error) {
	if id, ok := constants.NetworkToChainID[networkType]; ok {
		return id, nil
	}

	switch networkType {
	case constants.NetworkSolo, constants.NetworkCustom:
		if override == nil {
			return 0, types.NewWalletError(types.ErrorTypeInvalidChainID,
				fmt.Sprintf("chain id is required for %s networks", networkType), nil)
		}
		if *override < 0 || *override > constants.MaxChainID {
			return 0, types.NewWalletError(types.ErrorTypeInvalidChainID,
				fmt.Sprintf("chain id %d must fit 16 bits", *override), nil)
		}
		return *override, nil
	default:
		return 0, types.NewWalletError(types.ErrorTypeUnknownNetwork,
			fmt.Sprintf("unsupported network: %s", networkType), nil)
	}
}

// ChainIDFromGenesis derives a chain id from the last 16 bits of a genesis block id
func ChainIDFromGenesis(genesisID common.Hash) int64 {
	return int64(genesisID[common.HashLength-2])<<8 | int64(genesisID[common.HashLength-1])
}

// IsKnown reports whether the network type is recognised
func IsKnown(networkType string) bool {
	switch networkType {
	case constants.NetworkMainnet, constants.NetworkTestnet, constants.NetworkSolo, constants.NetworkCustom:
		return true
	}
	return false
}
