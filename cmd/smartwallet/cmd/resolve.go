package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sigweihq/smartwallet/pkg/chains/evm"
	"github.com/sigweihq/smartwallet/pkg/smartaccount"
	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <owner>",
	Short: "Resolve the smart account of an owner address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !common.IsHexAddress(args[0]) {
			return fmt.Errorf("invalid owner address: %s", args[0])
		}
		rpc, err := dialNode(cmd.Context())
		if err != nil {
			return err
		}

		resolver := smartaccount.NewResolver(rpc, cfg.FactoryAddress(), logger)
		account, err := resolver.Resolve(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(account)
	},
}

func dialNode(ctx context.Context) (*evm.RPCClient, error) {
	urls := cfg.NodeURLs()
	if len(urls) == 0 {
		return nil, errors.New("network.node_url is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return evm.NewEndpointSelector(logger).
		WithHealthTimeout(cfg.Network.HealthTimeout).
		Select(ctx, cfg.Network.Type, urls)
}
