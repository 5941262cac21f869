package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sigweihq/smartwallet/pkg/chains/evm"
	"github.com/sigweihq/smartwallet/pkg/constants"
	"github.com/sigweihq/smartwallet/pkg/delegation"
	"github.com/sigweihq/smartwallet/pkg/orchestrator"
	"github.com/sigweihq/smartwallet/pkg/smartaccount"
	"github.com/sigweihq/smartwallet/pkg/types"
	"github.com/sigweihq/smartwallet/pkg/utils"
	"github.com/spf13/cobra"
)

var buildFlags struct {
	key               string
	keystore          string
	password          string
	clauses           []string
	gas               uint64
	noAccount         bool
	speed             string
	delegatorKey      string
	delegatorKeystore string
	delegatorAddress  string
	delegatorPassword string
}

type buildOutput struct {
	Status          orchestrator.Status `json:"status"`
	Strategy        string              `json:"strategy"`
	Raw             string              `json:"raw,omitempty"`
	Origin          string              `json:"origin,omitempty"`
	Delegator       string              `json:"delegator,omitempty"`
	Gas             uint64              `json:"gas,omitempty"`
	DelegationError string              `json:"delegationError,omitempty"`
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build and sign a transaction from clauses",
	Long: `Builds a transaction from one or more --clause to:value[:data] arguments,
authorizes it through the owner's smart account when one exists and signs it.
Fee delegation follows the delegation section of the config.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		userClauses, err := parseClauses(buildFlags.clauses)
		if err != nil {
			return err
		}
		signer, err := loadSigner(buildFlags.key, buildFlags.keystore, buildFlags.password)
		if err != nil {
			return err
		}

		id, err := chainID(ctx)
		if err != nil {
			return err
		}
		rpc, err := dialNode(ctx)
		if err != nil {
			return err
		}
		adapter := evm.NewAdapter(id, rpc)

		orchCfg := orchestrator.Config{
			TypedSigner:     signer,
			Sender:          signer,
			Estimator:       rpc,
			Builder:         adapter.Builder().WithExpiration(cfg.Network.Expiration),
			NetworkType:     cfg.Network.Type,
			ChainIDOverride: &id,
			Logger:          logger,
		}
		if !buildFlags.noAccount {
			orchCfg.Resolver = smartaccount.NewResolver(rpc, cfg.FactoryAddress(), logger)
		}
		orch, err := orchestrator.New(orchCfg)
		if err != nil {
			return err
		}

		delegationOpts, err := delegationOptions(ctx, userClauses, signer.Address())
		if err != nil {
			return err
		}

		res, err := orch.BuildAndSign(ctx, userClauses, orchestrator.BuildOptions{
			Delegation: delegationOpts,
			Gas:        buildFlags.gas,
			Password:   buildFlags.delegatorPassword,
		})
		if err != nil {
			return err
		}

		out, err := toOutput(res)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	f := buildCmd.Flags()
	f.StringVar(&buildFlags.key, "key", "", "owner private key in hex")
	f.StringVar(&buildFlags.keystore, "keystore", "", "owner keystore file")
	f.StringVar(&buildFlags.password, "password", "", "keystore password")
	f.StringArrayVar(&buildFlags.clauses, "clause", nil, "clause as to:value[:data], repeatable")
	f.Uint64Var(&buildFlags.gas, "gas", 0, "minimum gas for the transaction")
	f.BoolVar(&buildFlags.noAccount, "no-account", false, "send from the owner address without a smart account")
	f.StringVar(&buildFlags.speed, "speed", constants.SpeedRegular, "generic delegation fee speed")
	f.StringVar(&buildFlags.delegatorKey, "delegator-key", "", "fee delegator private key in hex, for ACCOUNT delegation")
	f.StringVar(&buildFlags.delegatorKeystore, "delegator-keystore", "", "fee delegator keystore file, for ACCOUNT delegation")
	f.StringVar(&buildFlags.delegatorAddress, "delegator-address", "", "address of the delegator keystore account")
	f.StringVar(&buildFlags.delegatorPassword, "delegator-password", "", "delegator keystore password")
	_ = buildCmd.MarkFlagRequired("clause")
	buildCmd.MarkFlagsMutuallyExclusive("key", "keystore")
	buildCmd.MarkFlagsOneRequired("key", "keystore")
}

func parseClauses(raw []string) ([]types.Clause, error) {
	out := make([]types.Clause, 0, len(raw))
	for _, s := range raw {
		parts := strings.Split(s, ":")
		if len(parts) < 2 || len(parts) > 3 {
			return nil, fmt.Errorf("invalid clause %q: expected to:value[:data]", s)
		}
		if !common.IsHexAddress(parts[0]) {
			return nil, fmt.Errorf("invalid clause %q: bad address", s)
		}
		data := "0x"
		if len(parts) == 3 {
			data = parts[2]
		}
		c := types.NewClause(parts[0], parts[1], data)
		if _, err := c.Normalize(); err != nil {
			return nil, fmt.Errorf("invalid clause %q: %w", s, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func loadSigner(key, keystorePath, password string) (*evm.LocalSigner, error) {
	if key != "" {
		return evm.NewLocalSignerFromHex(key)
	}
	keyJSON, err := os.ReadFile(keystorePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read keystore: %w", err)
	}
	return evm.NewLocalSignerFromKeystore(keyJSON, password)
}

func delegationOptions(ctx context.Context, userClauses []types.Clause, sender common.Address) (delegation.Options, error) {
	opts := cfg.DelegationOptions()
	switch opts.Type {
	case types.DelegationAccount:
		account, err := delegatorAccount()
		if err != nil {
			return opts, err
		}
		opts.Account = account
	case types.DelegationGeneric:
		if err := quoteGenericFee(ctx, opts.Generic, userClauses, sender); err != nil {
			return opts, err
		}
	}
	return opts, nil
}

func delegatorAccount() (*delegation.DelegatorAccount, error) {
	switch {
	case buildFlags.delegatorKey != "":
		signer, err := evm.NewLocalSignerFromHex(buildFlags.delegatorKey)
		if err != nil {
			return nil, err
		}
		return &delegation.DelegatorAccount{Address: signer.Address().Hex(), Device: delegation.DeviceLocal, Signer: signer}, nil
	case buildFlags.delegatorKeystore != "":
		if !common.IsHexAddress(buildFlags.delegatorAddress) {
			return nil, errors.New("--delegator-address is required with --delegator-keystore")
		}
		keyJSON, err := os.ReadFile(buildFlags.delegatorKeystore)
		if err != nil {
			return nil, fmt.Errorf("failed to read delegator keystore: %w", err)
		}
		return &delegation.DelegatorAccount{
			Address:      buildFlags.delegatorAddress,
			Device:       delegation.DeviceLocal,
			EncryptedKey: keyJSON,
		}, nil
	default:
		return nil, errors.New("ACCOUNT delegation needs --delegator-key or --delegator-keystore")
	}
}

// quoteGenericFee asks the delegator for its fee and deposit account at the selected speed
func quoteGenericFee(ctx context.Context, opts *delegation.GenericOptions, userClauses []types.Clause, sender common.Address) error {
	client, err := delegation.NewGenericClient(opts.BaseURL, nil)
	if err != nil {
		return err
	}
	estimateClauses, err := delegation.EstimateClauses(userClauses)
	if err != nil {
		return err
	}
	quote, err := client.Estimate(ctx, &types.GenericEstimateRequest{
		Clauses: estimateClauses,
		Signer:  utils.LowerAddress(sender),
		Token:   opts.Details.Token,
	})
	if err != nil {
		return err
	}
	cost, ok := quote.TransactionCost[buildFlags.speed]
	if !ok {
		return fmt.Errorf("delegator returned no %s fee", buildFlags.speed)
	}

	opts.Details.DepositAccount = quote.DepositAccount
	opts.Details.Fee = cost.Shift(18).Round(0).BigInt()
	logger.Info("generic delegation fee quoted",
		"token", opts.Details.Token,
		"fee", cost.String(),
		"speed", buildFlags.speed,
		"deposit", quote.DepositAccount)
	return nil
}

func toOutput(res *orchestrator.Result) (*buildOutput, error) {
	out := &buildOutput{Status: res.Status, Strategy: res.Strategy}
	switch res.Status {
	case orchestrator.StatusDelegationFailure:
		out.DelegationError = res.DelegationErr.Error()
	case orchestrator.StatusSigned:
		tx := res.Transaction
		raw, err := tx.RawHex()
		if err != nil {
			return nil, err
		}
		out.Raw = raw
		out.Gas = tx.Body.Gas
		origin, err := tx.Origin()
		if err != nil {
			return nil, err
		}
		out.Origin = origin.Hex()
		if tx.Body.Delegated {
			delegator, err := tx.Delegator()
			if err != nil {
				return nil, err
			}
			out.Delegator = delegator.Hex()
		}
	}
	return out, nil
}
