package evm

import (
	"context"

	"github.com/sigweihq/smartwallet/pkg/transaction"
)

// Adapter bundles the node-backed services for one network
type Adapter struct {
	network string
	rpc     *RPCClient
	builder *transaction.Builder
}

// NewAdapter creates an adapter from an existing RPC client
func NewAdapter(chainID int64, rpc *RPCClient) *Adapter {
	return &Adapter{
		network: rpc.Network(),
		rpc:     rpc,
		builder: transaction.NewBuilder(chainID, rpc),
	}
}

// DialAdapter connects to endpoint and creates an adapter for the network
func DialAdapter(ctx context.Context, network string, chainID int64, endpoint string) (*Adapter, error) {
	rpc, err := DialRPCClient(ctx, network, endpoint)
	if err != nil {
		return nil, err
	}
	return NewAdapter(chainID, rpc), nil
}

// Network returns the network name
func (a *Adapter) Network() string {
	return a.network
}

// RPC returns the node client
func (a *Adapter) RPC() *RPCClient {
	return a.rpc
}

// Builder returns a body builder anchored on this network
func (a *Adapter) Builder() *transaction.Builder {
	return a.builder
}
