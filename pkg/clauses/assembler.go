package clauses

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/sigweihq/smartwallet/pkg/authorization"
	"github.com/sigweihq/smartwallet/pkg/chains"
	"github.com/sigweihq/smartwallet/pkg/chains/evm"
	"github.com/sigweihq/smartwallet/pkg/constants"
	"github.com/sigweihq/smartwallet/pkg/types"
)

// Strategy is how user clauses are authorized by the smart account
type Strategy string

const (
	StrategyBatch      Strategy = "batch"
	StrategyIndividual Strategy = "individual"
)

// UseBatch reports whether the account supports a single batched authorization.
// Legacy accounts lack the batch entry point unless they report a recent version.
func UseBatch(cfg *types.SmartAccountConfig) bool {
	return !cfg.HasLegacyAccount || (cfg.Version != nil && *cfg.Version >= constants.BatchMinVersion)
}

// SelectStrategy returns the execution strategy for the account
func SelectStrategy(cfg *types.SmartAccountConfig) Strategy {
	if UseBatch(cfg) {
		return StrategyBatch
	}
	return StrategyIndividual
}

// Assembler turns user clauses into the clauses sent on chain by the smart account owner
type Assembler struct {
	signer chains.TypedDataSigner
	auth   *authorization.Builder
	logger *slog.Logger
}

// NewAssembler creates an assembler that obtains authorization signatures from signer.
// If logger is nil, slog.Default() will be used.
func NewAssembler(signer chains.TypedDataSigner, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{
		signer: signer,
		auth:   authorization.NewBuilder(),
		logger: logger,
	}
}

// WithAuthorizationBuilder replaces the authorization builder
func (a *Assembler) WithAuthorizationBuilder(b *authorization.Builder) *Assembler {
	a.auth = b
	return a
}

// Assemble wraps user clauses in authorized smart account executions, prefixed by a
// deployment clause when the account is not yet deployed
func (a *Assembler) Assemble(ctx context.Context, userClauses []types.Clause, cfg *types.SmartAccountConfig, chainID int64) ([]types.Clause, error) {
	if !cfg.HasAccount() {
		return nil, types.NewWalletError(types.ErrorTypeWalletNotFound, "smart account address is not resolved", nil)
	}
	if len(userClauses) == 0 {
		return nil, types.NewWalletError(types.ErrorTypeBuildingTransaction, "no clauses to execute", nil)
	}

	var out []types.Clause
	if !cfg.IsDeployed {
		deploy, err := DeploymentClause(cfg)
		if err != nil {
			return nil, types.NewWalletError(types.ErrorTypeBuildingTransaction, "failed to build deployment clause", err)
		}
		out = append(out, deploy)
	}

	strategy := SelectStrategy(cfg)
	a.logger.Info("assembling smart account clauses",
		"account", cfg.Address,
		"strategy", strategy,
		"clauses", len(userClauses),
		"deployed", cfg.IsDeployed)

	var (
		executions []types.Clause
		err        error
	)
	switch strategy {
	case StrategyBatch:
		executions, err = a.batch(ctx, userClauses, cfg.Address, chainID)
	default:
		executions, err = a.individual(ctx, userClauses, cfg.Address, chainID)
	}
	if err != nil {
		return nil, err
	}

	return append(out, executions...), nil
}

// DeploymentClause calls factory.createAccount(owner)
func DeploymentClause(cfg *types.SmartAccountConfig) (types.Clause, error) {
	if cfg.FactoryAddress == "" || cfg.OwnerAddress == "" {
		return types.Clause{}, fmt.Errorf("factory and owner are required to deploy an account")
	}
	data, err := evm.PackCreateAccount(common.HexToAddress(cfg.OwnerAddress))
	if err != nil {
		return types.Clause{}, err
	}
	return types.NewClause(cfg.FactoryAddress, "0", hexutil.Encode(data)), nil
}

func (a *Assembler) batch(ctx context.Context, userClauses []types.Clause, account string, chainID int64) ([]types.Clause, error) {
	auth, err := a.auth.BuildBatch(userClauses, chainID, account)
	if err != nil {
		return nil, types.NewWalletError(types.ErrorTypeBuildingTransaction, "failed to build batch authorization", err)
	}

	signature, err := a.sign(ctx, auth.TypedData())
	if err != nil {
		return nil, err
	}

	data, err := evm.PackExecuteBatchWithAuthorization(auth.Calls, auth.ValidAfter, auth.ValidBefore, auth.Nonce, signature)
	if err != nil {
		return nil, types.NewWalletError(types.ErrorTypeBuildingTransaction, "failed to encode batch execution", err)
	}
	return []types.Clause{types.NewClause(account, "0", hexutil.Encode(data))}, nil
}

// individual signs one authorization per clause, strictly in order
func (a *Assembler) individual(ctx context.Context, userClauses []types.Clause, account string, chainID int64) ([]types.Clause, error) {
	out := make([]types.Clause, 0, len(userClauses))
	for i, c := range userClauses {
		auth, err := a.auth.BuildSingle(c, chainID, account)
		if err != nil {
			return nil, types.NewWalletError(types.ErrorTypeBuildingTransaction, fmt.Sprintf("failed to build authorization for clause %d", i), err)
		}

		signature, err := a.sign(ctx, auth.TypedData())
		if err != nil {
			return nil, err
		}

		data, err := evm.PackExecuteWithAuthorization(auth.Call, auth.ValidAfter, auth.ValidBefore, signature)
		if err != nil {
			return nil, types.NewWalletError(types.ErrorTypeBuildingTransaction, fmt.Sprintf("failed to encode execution for clause %d", i), err)
		}
		out = append(out, types.NewClause(account, "0", hexutil.Encode(data)))
	}
	return out, nil
}

func (a *Assembler) sign(ctx context.Context, typedData apitypes.TypedData) ([]byte, error) {
	sig, err := a.signer.SignTypedData(ctx, typedData)
	if err != nil {
		return nil, types.NewWalletError(types.ErrorTypeSignatureRejected, "typed data signing failed", err)
	}
	signature, err := hexutil.Decode(sig)
	if err != nil || len(signature) == 0 {
		return nil, types.NewWalletError(types.ErrorTypeSignatureRejected, "signer returned an invalid signature", err)
	}
	return signature, nil
}
