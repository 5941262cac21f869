package delegation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sigweihq/smartwallet/pkg/chains"
	"github.com/sigweihq/smartwallet/pkg/chains/evm"
	"github.com/sigweihq/smartwallet/pkg/metrics"
	"github.com/sigweihq/smartwallet/pkg/transaction"
	"github.com/sigweihq/smartwallet/pkg/types"
	"github.com/sigweihq/smartwallet/pkg/utils"
)

var (
	ErrMissingURL          = errors.New("delegation URL is not configured")
	ErrMissingAccount      = errors.New("delegator account is not configured")
	ErrMissingGeneric      = errors.New("generic delegation is not configured")
	ErrHardwareDelegator   = errors.New("hardware accounts cannot act as fee delegator")
	ErrMissingSigner       = errors.New("delegator account has no signer")
	ErrUnsupportedDelegate = errors.New("unsupported delegation type")
)

// Negotiator obtains a fee delegator signature for a transaction body
type Negotiator struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewNegotiator creates a negotiator.
// If httpClient is nil, a client with default timeouts will be used.
// If logger is nil, slog.Default() will be used.
func NewNegotiator(httpClient *http.Client, logger *slog.Logger) *Negotiator {
	if httpClient == nil {
		httpClient = utils.CreateHTTPClientWithTimeouts()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Negotiator{
		httpClient: httpClient,
		logger:     logger,
	}
}

// WithMetrics records delegation outcomes on m
func (n *Negotiator) WithMetrics(m *metrics.Metrics) *Negotiator {
	n.metrics = m
	return n
}

// Metrics returns the collectors outcomes are recorded on, nil when none are set
func (n *Negotiator) Metrics() *metrics.Metrics {
	return n.metrics
}

// Negotiate runs the delegation method selected by opts. It never returns an error:
// every failure is reported as an Outcome of kind OutcomeFailure.
func (n *Negotiator) Negotiate(ctx context.Context, opts Options, req Request) Outcome {
	if !opts.IsDelegated() {
		return none()
	}

	var out Outcome
	if req.Body == nil {
		out = failed(fmt.Errorf("no transaction body to delegate"))
	} else {
		switch opts.Type {
		case types.DelegationURL:
			out = n.viaURL(ctx, opts.URL, req)
		case types.DelegationAccount:
			out = n.viaAccount(ctx, opts.Account, req)
		case types.DelegationGeneric:
			out = n.viaGeneric(ctx, opts.Generic, req)
		default:
			out = failed(fmt.Errorf("%w: %s", ErrUnsupportedDelegate, opts.Type))
		}
	}

	if out.Kind == OutcomeFailure {
		n.logger.Warn("fee delegation failed",
			"type", opts.Type,
			"origin", req.DelegateFor().Hex(),
			"error", out.Err)
	} else {
		attrs := []any{"type", opts.Type, "origin", req.DelegateFor().Hex()}
		if addr, err := delegatorAddress(out.Body, out.Signature, req.DelegateFor()); err == nil {
			attrs = append(attrs, "delegator", addr.Hex())
		}
		n.logger.Info("fee delegation signed", attrs...)
	}
	n.metrics.ObserveDelegation(string(opts.Type), string(out.Kind))
	return out
}

// viaURL posts the unsigned transaction to a sponsor endpoint
func (n *Negotiator) viaURL(ctx context.Context, url string, req Request) Outcome {
	if url == "" {
		return failed(ErrMissingURL)
	}
	if err := utils.ValidateDelegatorURL(url); err != nil {
		return failed(err)
	}

	raw, err := req.Body.Encode()
	if err != nil {
		return failed(fmt.Errorf("failed to encode transaction: %w", err))
	}

	resp, err := utils.MakeJSONRequest[types.SponsorResponse](
		ctx,
		n.httpClient,
		http.MethodPost,
		url,
		&types.SponsorRequest{
			Origin: utils.LowerAddress(req.DelegateFor()),
			Raw:    hexutil.Encode(raw),
		},
		"sponsor",
	)
	if err != nil {
		return failed(err)
	}

	signature, err := utils.DecodeSignature(resp.Signature, transaction.SignatureLength)
	if err != nil {
		return failed(fmt.Errorf("sponsor returned an invalid signature: %w", err))
	}
	return signed(signature, req.Body)
}

// viaAccount signs with one of the user's own accounts acting as delegator
func (n *Negotiator) viaAccount(ctx context.Context, account *DelegatorAccount, req Request) Outcome {
	if account == nil {
		return failed(ErrMissingAccount)
	}

	var signer chains.TransactionSigner
	switch {
	case account.Device == DeviceHardware:
		return failed(ErrHardwareDelegator)
	case account.Signer != nil:
		signer = account.Signer
	case account.Device == DeviceLocal && len(account.EncryptedKey) > 0:
		local, err := evm.NewLocalSignerFromKeystore(account.EncryptedKey, req.Password)
		if err != nil {
			return failed(err)
		}
		signer = local
	default:
		return failed(ErrMissingSigner)
	}

	if account.Address != "" && !strings.EqualFold(signer.Address().Hex(), account.Address) {
		return failed(fmt.Errorf("delegator key does not match account %s", account.Address))
	}

	hash, err := req.Body.SigningHash()
	if err != nil {
		return failed(err)
	}
	delegateFor := req.DelegateFor()
	signature, err := signer.SignTransactionHash(ctx, hash, &delegateFor)
	if err != nil {
		return failed(fmt.Errorf("delegator signing failed: %w", err))
	}
	if len(signature) != transaction.SignatureLength {
		return failed(fmt.Errorf("delegator returned a %d byte signature", len(signature)))
	}
	return signed(signature, req.Body)
}

// viaGeneric asks a generic delegator to append its fee and co-sign, then checks
// that nothing else about the transaction changed
func (n *Negotiator) viaGeneric(ctx context.Context, opts *GenericOptions, req Request) Outcome {
	if opts == nil {
		return failed(ErrMissingGeneric)
	}
	client, err := NewGenericClient(opts.BaseURL, n.httpClient)
	if err != nil {
		return failed(err)
	}

	raw, err := req.Body.Encode()
	if err != nil {
		return failed(fmt.Errorf("failed to encode transaction: %w", err))
	}

	delegateFor := req.DelegateFor()
	resp, err := client.Sign(ctx, &types.GenericSignRequest{
		Origin:      utils.LowerAddress(delegateFor),
		Raw:         hexutil.Encode(raw),
		Token:       opts.Details.Token,
		NetworkType: req.NetworkType,
	})
	if err != nil {
		return failed(err)
	}

	returnedRaw, err := hexutil.Decode(resp.Raw)
	if err != nil {
		return failed(fmt.Errorf("generic delegator returned invalid raw transaction: %w", err))
	}
	returned, _, err := transaction.Decode(returnedRaw)
	if err != nil {
		return failed(err)
	}
	signature, err := utils.DecodeSignature(resp.Signature, transaction.SignatureLength)
	if err != nil {
		return failed(fmt.Errorf("generic delegator returned an invalid signature: %w", err))
	}

	if err := ValidateGenericResponse(req.Body, returned, signature, &opts.Details, delegateFor, req.IsSmartAccount); err != nil {
		return failed(err)
	}

	n.logger.Debug("generic delegator response accepted",
		"clauses", len(returned.Clauses),
		"gas", returned.Gas,
		"token", opts.Details.Token)
	return signed(signature, returned)
}

// delegatorAddress recovers who produced a delegator signature over body
func delegatorAddress(body *transaction.Body, signature []byte, delegateFor common.Address) (common.Address, error) {
	hash, err := body.SigningHash()
	if err != nil {
		return common.Address{}, err
	}
	return transaction.RecoverSigner(transaction.DelegatorSigningHash(hash, delegateFor), signature)
}
