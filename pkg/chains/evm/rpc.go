package evm

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sigweihq/smartwallet/pkg/chains"
	"github.com/sigweihq/smartwallet/pkg/constants"
	"github.com/sigweihq/smartwallet/pkg/types"
)

// RPCClient implements chains.AccountReader, chains.GasEstimator and chains.BlockRefReader
// on top of a node backend. Every call is a single attempt; callers bound it with ctx.
type RPCClient struct {
	network string
	backend chains.Backend
}

// NewRPCClient creates a client for the network using an existing backend
func NewRPCClient(network string, backend chains.Backend) *RPCClient {
	return &RPCClient{
		network: network,
		backend: backend,
	}
}

// DialRPCClient connects to a node endpoint
func DialRPCClient(ctx context.Context, network, endpoint string) (*RPCClient, error) {
	client, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return nil, &RPCError{Method: "dial", Err: err}
	}
	return NewRPCClient(network, client), nil
}

// Verify RPCClient implements the chain interfaces
var _ chains.AccountReader = (*RPCClient)(nil)
var _ chains.GasEstimator = (*RPCClient)(nil)
var _ chains.BlockRefReader = (*RPCClient)(nil)

// Network returns the network name
func (r *RPCClient) Network() string {
	return r.network
}

// GetAccountAddress implements chains.AccountReader
func (r *RPCClient) GetAccountAddress(ctx context.Context, factory, owner common.Address) (common.Address, error) {
	var account common.Address
	if err := r.callFactory(ctx, factory, MethodGetAccountAddress, &account, owner); err != nil {
		return common.Address{}, err
	}
	return account, nil
}

// IsDeployed implements chains.AccountReader
func (r *RPCClient) IsDeployed(ctx context.Context, account common.Address) (bool, error) {
	code, err := r.backend.CodeAt(ctx, account, nil)
	if err != nil {
		return false, &RPCError{Method: "eth_getCode", Err: err}
	}
	return len(code) > 0, nil
}

// HasLegacyAccount implements chains.AccountReader
func (r *RPCClient) HasLegacyAccount(ctx context.Context, factory, owner common.Address) (bool, error) {
	var legacy bool
	if err := r.callFactory(ctx, factory, MethodHasLegacyAccount, &legacy, owner); err != nil {
		return false, err
	}
	return legacy, nil
}

// FactoryVersion implements chains.AccountReader
func (r *RPCClient) FactoryVersion(ctx context.Context, factory common.Address) (int, error) {
	var version *big.Int
	if err := r.callFactory(ctx, factory, MethodVersion, &version); err != nil {
		return 0, err
	}
	if version == nil || !version.IsInt64() || version.Int64() > int64(^uint32(0)) {
		return 0, fmt.Errorf("factory version out of range: %v", version)
	}
	return int(version.Int64()), nil
}

// EstimateGas implements chains.GasEstimator.
// The total is the intrinsic gas of the clause set plus the execution gas of every clause.
func (r *RPCClient) EstimateGas(ctx context.Context, clauses []types.Clause, caller common.Address) (uint64, error) {
	total, err := IntrinsicGas(clauses)
	if err != nil {
		return 0, err
	}

	for i, c := range clauses {
		data, err := c.EncodedData()
		if err != nil {
			return 0, fmt.Errorf("clause %d: %w", i, err)
		}
		value, err := c.ValueBig()
		if err != nil {
			return 0, fmt.Errorf("clause %d: %w", i, err)
		}
		msg := ethereum.CallMsg{From: caller, Value: value, Data: data}
		if c.To != nil {
			to := c.ToAddress()
			msg.To = &to
		}
		used, err := r.backend.EstimateGas(ctx, msg)
		if err != nil {
			return 0, &RPCError{Method: "eth_estimateGas", Err: fmt.Errorf("clause %d: %w", i, err)}
		}
		// Node estimates include the 21000 base transaction cost, which intrinsic gas already covers.
		if used > 21000 {
			total += used - 21000
		}
	}
	return total, nil
}

// BestBlockRef implements chains.BlockRefReader.
// The reference is the block number in the top 4 bytes followed by 4 bytes of the block hash.
func (r *RPCClient) BestBlockRef(ctx context.Context) (uint64, error) {
	header, err := r.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, &RPCError{Method: "eth_getBlockByNumber", Err: err}
	}
	var ref [8]byte
	binary.BigEndian.PutUint32(ref[:4], uint32(header.Number.Uint64()))
	copy(ref[4:], header.Hash().Bytes()[4:8])
	return binary.BigEndian.Uint64(ref[:]), nil
}

// GenesisID returns the id of block zero, from which solo and custom chain ids are derived
func (r *RPCClient) GenesisID(ctx context.Context) (common.Hash, error) {
	header, err := r.backend.HeaderByNumber(ctx, big.NewInt(0))
	if err != nil {
		return common.Hash{}, &RPCError{Method: "eth_getBlockByNumber", Err: err}
	}
	return header.Hash(), nil
}

// IntrinsicGas returns the base cost of a clause set before execution
func IntrinsicGas(clauses []types.Clause) (uint64, error) {
	if len(clauses) == 0 {
		return constants.TxGas + constants.ClauseGas, nil
	}
	total := uint64(constants.TxGas)
	for i, c := range clauses {
		if c.To == nil {
			total += constants.ClauseGasContractCreation
		} else {
			total += constants.ClauseGas
		}
		data, err := c.EncodedData()
		if err != nil {
			return 0, fmt.Errorf("clause %d: %w", i, err)
		}
		for _, b := range data {
			if b == 0 {
				total += constants.TxDataZeroGas
			} else {
				total += constants.TxDataNonZeroGas
			}
		}
	}
	return total, nil
}

// callFactory packs a factory call, executes it and unpacks the single return value into out
func (r *RPCClient) callFactory(ctx context.Context, factory common.Address, method string, out interface{}, args ...interface{}) error {
	parsed, err := FactoryABI()
	if err != nil {
		return err
	}

	data, err := parsed.Pack(method, args...)
	if err != nil {
		return fmt.Errorf("failed to pack function call: %w", err)
	}

	result, err := r.backend.CallContract(ctx, ethereum.CallMsg{To: &factory, Data: data}, nil)
	if err != nil {
		return &RPCError{Method: method, Err: err}
	}

	values, err := parsed.Unpack(method, result)
	if err != nil {
		return fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	if len(values) != 1 {
		return fmt.Errorf("unexpected %s result count: got %d, expected 1", method, len(values))
	}

	switch dst := out.(type) {
	case *common.Address:
		v, ok := values[0].(common.Address)
		if !ok {
			return fmt.Errorf("unexpected %s result type %T", method, values[0])
		}
		*dst = v
	case *bool:
		v, ok := values[0].(bool)
		if !ok {
			return fmt.Errorf("unexpected %s result type %T", method, values[0])
		}
		*dst = v
	case **big.Int:
		v, ok := values[0].(*big.Int)
		if !ok {
			return fmt.Errorf("unexpected %s result type %T", method, values[0])
		}
		*dst = v
	default:
		return fmt.Errorf("unsupported result destination %T", out)
	}
	return nil
}
