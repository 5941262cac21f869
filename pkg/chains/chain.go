package chains

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/sigweihq/smartwallet/pkg/types"
)

// Backend is the node access used by the chain adapter.
// *ethclient.Client satisfies it.
type Backend interface {
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*ethtypes.Header, error)
}

// AccountReader reads smart account state from the account factory
type AccountReader interface {
	// GetAccountAddress returns the deterministic account address for an owner
	GetAccountAddress(ctx context.Context, factory, owner common.Address) (common.Address, error)

	// IsDeployed reports whether code exists at the account address
	IsDeployed(ctx context.Context, account common.Address) (bool, error)

	// HasLegacyAccount reports whether the owner holds a pre-batch account
	HasLegacyAccount(ctx context.Context, factory, owner common.Address) (bool, error)

	// FactoryVersion returns the account implementation version deployed by the factory
	FactoryVersion(ctx context.Context, factory common.Address) (int, error)
}

// GasEstimator estimates the total gas of a clause set sent by caller
type GasEstimator interface {
	EstimateGas(ctx context.Context, clauses []types.Clause, caller common.Address) (uint64, error)
}

// BlockRefReader returns the reference of the best block, used to anchor new transactions
type BlockRefReader interface {
	BestBlockRef(ctx context.Context) (uint64, error)
}

// TypedDataSigner signs EIP-712 typed data and returns a 0x-prefixed 65-byte signature
type TypedDataSigner interface {
	SignTypedData(ctx context.Context, data apitypes.TypedData) (string, error)
}

// TransactionSigner signs transaction hashes.
// When delegateFor is set the signer acts as fee delegator for that origin.
type TransactionSigner interface {
	Address() common.Address
	SignTransactionHash(ctx context.Context, hash common.Hash, delegateFor *common.Address) ([]byte, error)
}

// ExternalSigner is an optional interface for TransactionSigners that cannot sign inline
// Implemented by: hardware wallet adapters
type ExternalSigner interface {
	// RequiresExternalSigning reports whether the build must stop and hand off to the device
	RequiresExternalSigning() bool
}
