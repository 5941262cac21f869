package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/lru"
	"github.com/sigweihq/smartwallet/pkg/chains"
	"github.com/sigweihq/smartwallet/pkg/clauses"
	"github.com/sigweihq/smartwallet/pkg/delegation"
	"github.com/sigweihq/smartwallet/pkg/metrics"
	"github.com/sigweihq/smartwallet/pkg/network"
	"github.com/sigweihq/smartwallet/pkg/transaction"
	"github.com/sigweihq/smartwallet/pkg/types"
)

// StrategyEOA labels builds sent directly by the owner without a smart account
const StrategyEOA = "eoa"

// Status is the final state of a build
type Status string

const (
	StatusSigned                   Status = "signed"
	StatusNavigateToHardwareSigner Status = "navigate_to_hardware_signer"
	StatusDelegationFailure        Status = "delegation_failure"
)

// metric labels for builds that return an error
const (
	statusError        = "error"
	strategyUnresolved = "unresolved"
)

// BodyBuilder creates unsigned transaction bodies. *transaction.Builder implements it.
type BodyBuilder interface {
	Build(ctx context.Context, clauses []types.Clause, gas uint64, opts transaction.BuildOptions) (*transaction.Body, error)
}

// AccountResolver returns the smart account of an owner. *smartaccount.Resolver implements it.
type AccountResolver interface {
	Resolve(ctx context.Context, owner string) (*types.SmartAccountConfig, error)
}

// Config wires the orchestrator's collaborators
type Config struct {
	// Resolver is optional; without it every build is sent from the owner account directly
	Resolver AccountResolver

	// TypedSigner signs smart account authorizations; required with a Resolver
	TypedSigner chains.TypedDataSigner

	// Sender signs the transaction body; may implement chains.ExternalSigner
	Sender chains.TransactionSigner

	// Estimator is optional; without it BuildOptions.Gas is used
	Estimator chains.GasEstimator

	Builder    BodyBuilder
	Negotiator *delegation.Negotiator

	NetworkType     string
	ChainIDOverride *int64

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// BuildOptions are per-build settings
type BuildOptions struct {
	Delegation   delegation.Options
	Gas          uint64 // lower bound for the body gas
	DependsOn    *common.Hash
	GasPriceCoef uint8
	Password     string // unlocks a local-key delegator
}

// Pending is a body waiting for an external device to produce the sender signature
type Pending struct {
	Body                *transaction.Body
	DelegationSignature []byte
}

// Result is the outcome of BuildAndSign. Delegation failures are results, not errors.
type Result struct {
	Status        Status
	Strategy      string
	Transaction   *transaction.SignedTransaction // set when Status is StatusSigned
	Pending       *Pending                       // set when Status is StatusNavigateToHardwareSigner
	DelegationErr error                          // set when Status is StatusDelegationFailure
}

// Orchestrator turns user clauses into a signed transaction ready for broadcast
type Orchestrator struct {
	resolver        AccountResolver
	assembler       *clauses.Assembler
	sender          chains.TransactionSigner
	estimator       chains.GasEstimator
	builder         BodyBuilder
	negotiator      *delegation.Negotiator
	networkType     string
	chainIDOverride *int64
	logger          *slog.Logger
	metrics         *metrics.Metrics
	gasCache        *lru.Cache[common.Hash, uint64]
}

// New validates cfg and creates an orchestrator.
// If cfg.Logger is nil, slog.Default() will be used.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Sender == nil {
		return nil, errors.New("orchestrator: sender signer is required")
	}
	if cfg.Builder == nil {
		return nil, errors.New("orchestrator: body builder is required")
	}
	if cfg.Resolver != nil && cfg.TypedSigner == nil {
		return nil, errors.New("orchestrator: typed data signer is required for smart accounts")
	}
	if !network.IsKnown(cfg.NetworkType) {
		return nil, types.NewWalletError(types.ErrorTypeUnknownNetwork, "unsupported network: "+cfg.NetworkType, nil)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	negotiator := cfg.Negotiator
	if negotiator == nil {
		negotiator = delegation.NewNegotiator(nil, logger)
	}
	if negotiator.Metrics() == nil {
		negotiator.WithMetrics(cfg.Metrics)
	}

	o := &Orchestrator{
		resolver:        cfg.Resolver,
		sender:          cfg.Sender,
		estimator:       cfg.Estimator,
		builder:         cfg.Builder,
		negotiator:      negotiator,
		networkType:     cfg.NetworkType,
		chainIDOverride: cfg.ChainIDOverride,
		logger:          logger,
		metrics:         cfg.Metrics,
		gasCache:        lru.NewCache[common.Hash, uint64](gasCacheSize),
	}
	if cfg.TypedSigner != nil {
		o.assembler = clauses.NewAssembler(cfg.TypedSigner, logger)
	}
	return o, nil
}

// BuildAndSign resolves the sender's smart account, assembles and authorizes the clauses,
// negotiates fee delegation and signs the body.
func (o *Orchestrator) BuildAndSign(ctx context.Context, userClauses []types.Clause, opts BuildOptions) (*Result, error) {
	started := time.Now()
	res, strategy, err := o.buildAndSign(ctx, userClauses, opts)
	status := statusError
	if err == nil {
		status = string(res.Status)
	}
	o.metrics.ObserveBuild(strategy, status, started)
	return res, err
}

// buildAndSign also returns the strategy label, strategyUnresolved before clauses are prepared
func (o *Orchestrator) buildAndSign(ctx context.Context, userClauses []types.Clause, opts BuildOptions) (*Result, string, error) {
	if len(userClauses) == 0 {
		return nil, strategyUnresolved, types.NewWalletError(types.ErrorTypeBuildingTransaction, "no clauses to send", nil)
	}

	chainID, err := network.ChainID(o.networkType, o.chainIDOverride)
	if err != nil {
		return nil, strategyUnresolved, err
	}

	sender := o.sender.Address()
	cfg, err := o.resolveAccount(ctx, sender)
	if err != nil {
		return nil, strategyUnresolved, err
	}

	toSend, strategy, err := o.prepareClauses(ctx, userClauses, cfg, chainID, genericDetails(opts.Delegation))
	if err != nil {
		return nil, strategyUnresolved, err
	}

	gas, err := o.gasFor(ctx, toSend, sender, opts.Gas)
	if err != nil {
		return nil, strategy, err
	}

	body, err := o.builder.Build(ctx, toSend, gas, transaction.BuildOptions{
		Delegated:    opts.Delegation.IsDelegated(),
		DependsOn:    opts.DependsOn,
		GasPriceCoef: opts.GasPriceCoef,
	})
	if err != nil {
		return nil, strategy, types.NewWalletError(types.ErrorTypeBuildingTransaction, "failed to build transaction body", err)
	}

	o.logger.Info("transaction body built",
		"sender", sender.Hex(),
		"strategy", strategy,
		"clauses", len(body.Clauses),
		"gas", body.Gas,
		"delegation", opts.Delegation.Type)

	req := delegation.Request{
		Body:           body,
		Sender:         sender,
		Owner:          sender,
		IsSmartAccount: cfg.HasAccount(),
		NetworkType:    o.networkType,
		Password:       opts.Password,
	}
	outcome := o.negotiator.Negotiate(ctx, opts.Delegation, req)
	if outcome.Kind == delegation.OutcomeFailure {
		return &Result{Status: StatusDelegationFailure, Strategy: strategy, DelegationErr: outcome.Err}, strategy, nil
	}

	final := body
	if outcome.Kind == delegation.OutcomeSigned && outcome.Body != nil {
		final = outcome.Body
	}

	if ext, ok := o.sender.(chains.ExternalSigner); ok && ext.RequiresExternalSigning() {
		o.logger.Info("handing transaction to external signer", "sender", sender.Hex())
		return &Result{
			Status:   StatusNavigateToHardwareSigner,
			Strategy: strategy,
			Pending:  &Pending{Body: final, DelegationSignature: outcome.Signature},
		}, strategy, nil
	}

	hash, err := final.SigningHash()
	if err != nil {
		return nil, strategy, types.NewWalletError(types.ErrorTypeBuildingTransaction, "failed to hash transaction", err)
	}
	senderSig, err := o.sender.SignTransactionHash(ctx, hash, nil)
	if err != nil {
		return nil, strategy, types.NewWalletError(types.ErrorTypeSignatureRejected, "transaction signing failed", err)
	}

	tx, err := transaction.NewSignedTransaction(final, senderSig, outcome.Signature)
	if err != nil {
		return nil, strategy, types.NewWalletError(types.ErrorTypeBuildingTransaction, "failed to assemble signed transaction", err)
	}

	return &Result{Status: StatusSigned, Strategy: strategy, Transaction: tx}, strategy, nil
}

// CompleteHardwareSigning attaches the sender signature produced by an external device
func (o *Orchestrator) CompleteHardwareSigning(pending *Pending, senderSig []byte) (*transaction.SignedTransaction, error) {
	if pending == nil {
		return nil, types.NewWalletError(types.ErrorTypeBuildingTransaction, "no pending transaction", nil)
	}
	tx, err := transaction.NewSignedTransaction(pending.Body, senderSig, pending.DelegationSignature)
	if err != nil {
		return nil, types.NewWalletError(types.ErrorTypeSignatureRejected, "invalid hardware signature", err)
	}
	return tx, nil
}

// resolveAccount returns the sender's smart account, or an empty config when the
// sender transacts directly
func (o *Orchestrator) resolveAccount(ctx context.Context, sender common.Address) (*types.SmartAccountConfig, error) {
	if o.resolver == nil {
		return &types.SmartAccountConfig{OwnerAddress: sender.Hex()}, nil
	}
	cfg, err := o.resolver.Resolve(ctx, sender.Hex())
	if err != nil {
		return nil, err
	}
	if !cfg.HasAccount() {
		o.logger.Warn("smart account unavailable, sending from owner account", "owner", sender.Hex())
	}
	return cfg, nil
}

// prepareClauses returns the clauses to put in the body and the strategy label
func (o *Orchestrator) prepareClauses(
	ctx context.Context,
	userClauses []types.Clause,
	cfg *types.SmartAccountConfig,
	chainID int64,
	fee *types.GenericDelegationDetails,
) ([]types.Clause, string, error) {
	if !cfg.HasAccount() {
		return userClauses, StrategyEOA, nil
	}

	toAuthorize := userClauses
	if fee != nil {
		var err error
		toAuthorize, err = clauses.WithFeeClause(userClauses, fee)
		if err != nil {
			return nil, "", types.NewWalletError(types.ErrorTypeBuildingTransaction, "failed to build delegation fee clause", err)
		}
	}

	assembled, err := o.assembler.Assemble(ctx, toAuthorize, cfg, chainID)
	if err != nil {
		return nil, "", err
	}
	return assembled, string(clauses.SelectStrategy(cfg)), nil
}

func (o *Orchestrator) gasFor(ctx context.Context, toSend []types.Clause, sender common.Address, floor uint64) (uint64, error) {
	gas := floor
	if o.estimator != nil {
		estimated, err := o.estimator.EstimateGas(ctx, toSend, sender)
		if err != nil {
			return 0, types.NewWalletError(types.ErrorTypeNetwork, "gas estimation failed", err)
		}
		gas = max(gas, estimated)
	}
	if gas == 0 {
		return 0, types.NewWalletError(types.ErrorTypeBuildingTransaction, "gas is required when no estimator is configured", nil)
	}
	return gas, nil
}

func genericDetails(opts delegation.Options) *types.GenericDelegationDetails {
	if opts.Type != types.DelegationGeneric || opts.Generic == nil {
		return nil
	}
	return &opts.Generic.Details
}
