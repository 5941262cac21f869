package smartaccount

import (
	"context"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sigweihq/smartwallet/pkg/chains"
	"github.com/sigweihq/smartwallet/pkg/constants"
	"github.com/sigweihq/smartwallet/pkg/types"
)

// Resolver determines the smart account owned by an address and its on-chain state.
// Read failures degrade the result instead of failing so EOA-only flows can proceed.
type Resolver struct {
	reader         chains.AccountReader
	factoryAddress string
	logger         *slog.Logger
}

// NewResolver creates a resolver reading from the given factory.
// If logger is nil, slog.Default() will be used.
func NewResolver(reader chains.AccountReader, factoryAddress string, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		reader:         reader,
		factoryAddress: factoryAddress,
		logger:         logger,
	}
}

// DefaultFactoryAddress returns the known factory deployment for a network, or "" if it must be configured
func DefaultFactoryAddress(networkType string) string {
	return constants.NetworkToFactoryAddress[networkType]
}

// FactoryAddress returns the configured factory
func (r *Resolver) FactoryAddress() string {
	return r.factoryAddress
}

// Resolve reads the smart account configuration for owner
func (r *Resolver) Resolve(ctx context.Context, owner string) (*types.SmartAccountConfig, error) {
	if owner == "" {
		return nil, types.NewWalletError(types.ErrorTypeWalletNotFound, "owner address is empty", nil)
	}
	if r.factoryAddress == "" {
		return nil, types.NewWalletError(types.ErrorTypeWalletNotFound, "factory address is not configured", nil)
	}
	if !common.IsHexAddress(owner) {
		return nil, types.NewWalletError(types.ErrorTypeWalletNotFound, "invalid owner address: "+owner, nil)
	}

	ownerAddr := common.HexToAddress(owner)
	factory := common.HexToAddress(r.factoryAddress)
	cfg := &types.SmartAccountConfig{
		OwnerAddress:   ownerAddr.Hex(),
		FactoryAddress: factory.Hex(),
	}

	account, err := r.reader.GetAccountAddress(ctx, factory, ownerAddr)
	if err != nil {
		r.logger.Warn("failed to read smart account address", "owner", cfg.OwnerAddress, "factory", cfg.FactoryAddress, "error", err)
		return cfg, nil
	}

	deployed, err := r.reader.IsDeployed(ctx, account)
	if err != nil {
		r.logger.Warn("failed to read smart account code", "account", account.Hex(), "error", err)
		return cfg, nil
	}

	legacy, err := r.reader.HasLegacyAccount(ctx, factory, ownerAddr)
	if err != nil {
		r.logger.Warn("failed to read legacy account flag", "owner", cfg.OwnerAddress, "error", err)
		return cfg, nil
	}

	version, err := r.reader.FactoryVersion(ctx, factory)
	if err != nil {
		r.logger.Warn("failed to read factory version, assuming default",
			"factory", cfg.FactoryAddress, "default", constants.DefaultAccountVersion, "error", err)
		version = constants.DefaultAccountVersion
		cfg.VersionDefaulted = true
	}

	cfg.Address = account.Hex()
	cfg.IsDeployed = deployed
	cfg.HasLegacyAccount = legacy
	cfg.Version = &version

	r.logger.Debug("resolved smart account",
		"owner", cfg.OwnerAddress,
		"account", cfg.Address,
		"deployed", deployed,
		"legacy", legacy,
		"version", version)

	return cfg, nil
}
