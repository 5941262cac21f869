package cmd

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sigweihq/smartwallet/pkg/constants"
	"github.com/sigweihq/smartwallet/pkg/network"
	"github.com/spf13/cobra"
)

var genesisID string

var chainIDCmd = &cobra.Command{
	Use:   "chain-id",
	Short: "Print the chain id used in authorization domains",
	Long: `Prints the chain id of the configured network. For solo and custom networks
without a configured chain id, the id is derived from --genesis or from the
genesis block of the configured node.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := chainID(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

func init() {
	chainIDCmd.Flags().StringVar(&genesisID, "genesis", "", "genesis block id to derive the chain id from")
}

func chainID(ctx context.Context) (int64, error) {
	if genesisID != "" {
		if len(common.FromHex(genesisID)) != common.HashLength {
			return 0, fmt.Errorf("invalid genesis id: %s", genesisID)
		}
		return network.ChainIDFromGenesis(common.HexToHash(genesisID)), nil
	}

	_, known := constants.NetworkToChainID[cfg.Network.Type]
	if known || cfg.ChainIDOverride() != nil || len(cfg.NodeURLs()) == 0 {
		return network.ChainID(cfg.Network.Type, cfg.ChainIDOverride())
	}

	rpc, err := dialNode(ctx)
	if err != nil {
		return 0, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, constants.HTTPTimeout)
	defer cancel()

	genesis, err := rpc.GenesisID(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read genesis block: %w", err)
	}
	logger.Debug("derived chain id from genesis", "genesis", genesis.Hex())
	return network.ChainIDFromGenesis(genesis), nil
}
