package authorization

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/sigweihq/smartwallet/pkg/chains/evm"
	"github.com/sigweihq/smartwallet/pkg/constants"
	"github.com/sigweihq/smartwallet/pkg/types"
)

// Primary types verified by the smart account contract
const (
	PrimaryTypeBatch  = "ExecuteBatchWithAuthorization"
	PrimaryTypeSingle = "ExecuteWithAuthorization"
)

var domainType = []apitypes.Type{
	{Name: "name", Type: "string"},
	{Name: "version", Type: "string"},
	{Name: "chainId", Type: "uint256"},
	{Name: "verifyingContract", Type: "address"},
}

var batchType = []apitypes.Type{
	{Name: "to", Type: "address[]"},
	{Name: "value", Type: "uint256[]"},
	{Name: "data", Type: "bytes[]"},
	{Name: "validAfter", Type: "uint256"},
	{Name: "validBefore", Type: "uint256"},
	{Name: "nonce", Type: "bytes32"},
}

var singleType = []apitypes.Type{
	{Name: "to", Type: "address"},
	{Name: "value", Type: "uint256"},
	{Name: "data", Type: "bytes"},
	{Name: "validAfter", Type: "uint256"},
	{Name: "validBefore", Type: "uint256"},
}

// Domain identifies the verifying smart account
type Domain struct {
	ChainID           int64
	VerifyingContract common.Address
}

func (d Domain) typedDataDomain() apitypes.TypedDataDomain {
	return apitypes.TypedDataDomain{
		Name:              constants.DomainName,
		Version:           constants.DomainVersion,
		ChainId:           math.NewHexOrDecimal256(d.ChainID),
		VerifyingContract: strings.ToLower(d.VerifyingContract.Hex()),
	}
}

// BatchAuthorization authorizes several calls with a single signature
type BatchAuthorization struct {
	Domain      Domain
	Calls       []evm.ExecuteCall
	ValidAfter  *big.Int
	ValidBefore *big.Int
	Nonce       [32]byte
}

// TypedData returns the EIP-712 payload to sign
func (a *BatchAuthorization) TypedData() apitypes.TypedData {
	to := make([]interface{}, len(a.Calls))
	values := make([]interface{}, len(a.Calls))
	datas := make([]interface{}, len(a.Calls))
	for i, c := range a.Calls {
		to[i] = strings.ToLower(c.To.Hex())
		values[i] = c.Value.String()
		datas[i] = hexutil.Encode(c.Data)
	}

	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain":   domainType,
			PrimaryTypeBatch: batchType,
		},
		PrimaryType: PrimaryTypeBatch,
		Domain:      a.Domain.typedDataDomain(),
		Message: apitypes.TypedDataMessage{
			"to":          to,
			"value":       values,
			"data":        datas,
			"validAfter":  a.ValidAfter.String(),
			"validBefore": a.ValidBefore.String(),
			"nonce":       hexutil.Encode(a.Nonce[:]),
		},
	}
}

// Hash returns the EIP-712 digest of the authorization
func (a *BatchAuthorization) Hash() (common.Hash, error) {
	return evm.TypedDataHash(a.TypedData())
}

// SingleAuthorization authorizes one call
type SingleAuthorization struct {
	Domain      Domain
	Call        evm.ExecuteCall
	ValidAfter  *big.Int
	ValidBefore *big.Int
}

// TypedData returns the EIP-712 payload to sign
func (a *SingleAuthorization) TypedData() apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain":    domainType,
			PrimaryTypeSingle: singleType,
		},
		PrimaryType: PrimaryTypeSingle,
		Domain:      a.Domain.typedDataDomain(),
		Message: apitypes.TypedDataMessage{
			"to":          strings.ToLower(a.Call.To.Hex()),
			"value":       a.Call.Value.String(),
			"data":        hexutil.Encode(a.Call.Data),
			"validAfter":  a.ValidAfter.String(),
			"validBefore": a.ValidBefore.String(),
		},
	}
}

// Hash returns the EIP-712 digest of the authorization
func (a *SingleAuthorization) Hash() (common.Hash, error) {
	return evm.TypedDataHash(a.TypedData())
}

// Builder creates authorization payloads. Timestamps and nonces are never reused across builds.
type Builder struct {
	now  func() time.Time
	rand io.Reader
}

func NewBuilder() *Builder {
	return &Builder{
		now:  time.Now,
		rand: rand.Reader,
	}
}

// WithClock overrides the time source
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithRand overrides the nonce source
func (b *Builder) WithRand(r io.Reader) *Builder {
	b.rand = r
	return b
}

// BuildBatch creates one authorization covering every clause, in clause order
func (b *Builder) BuildBatch(clauses []types.Clause, chainID int64, verifyingContract string) (*BatchAuthorization, error) {
	if len(clauses) == 0 {
		return nil, fmt.Errorf("batch authorization requires at least one clause")
	}
	domain, err := newDomain(chainID, verifyingContract)
	if err != nil {
		return nil, err
	}

	calls := make([]evm.ExecuteCall, 0, len(clauses))
	for i, c := range clauses {
		call, err := ToExecuteCall(c)
		if err != nil {
			return nil, fmt.Errorf("clause %d: %w", i, err)
		}
		calls = append(calls, call)
	}

	auth := &BatchAuthorization{
		Domain:      domain,
		Calls:       calls,
		ValidAfter:  new(big.Int),
		ValidBefore: big.NewInt(b.now().Add(constants.BatchAuthorizationWindow).Unix()),
	}
	if _, err := io.ReadFull(b.rand, auth.Nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return auth, nil
}

// BuildSingle creates an authorization for one clause
func (b *Builder) BuildSingle(clause types.Clause, chainID int64, verifyingContract string) (*SingleAuthorization, error) {
	domain, err := newDomain(chainID, verifyingContract)
	if err != nil {
		return nil, err
	}
	call, err := ToExecuteCall(clause)
	if err != nil {
		return nil, err
	}
	return &SingleAuthorization{
		Domain:      domain,
		Call:        call,
		ValidAfter:  new(big.Int),
		ValidBefore: big.NewInt(b.now().Add(constants.SingleAuthorizationWindow).Unix()),
	}, nil
}

// ToExecuteCall converts a clause into a call the smart account can perform
func ToExecuteCall(c types.Clause) (evm.ExecuteCall, error) {
	if c.To == nil {
		return evm.ExecuteCall{}, fmt.Errorf("contract creation cannot be executed through a smart account")
	}
	if !common.IsHexAddress(*c.To) {
		return evm.ExecuteCall{}, fmt.Errorf("invalid clause target: %s", *c.To)
	}
	value, err := c.ValueBig()
	if err != nil {
		return evm.ExecuteCall{}, err
	}
	data, err := c.EncodedData()
	if err != nil {
		return evm.ExecuteCall{}, err
	}
	return evm.ExecuteCall{To: c.ToAddress(), Value: value, Data: data}, nil
}

func newDomain(chainID int64, verifyingContract string) (Domain, error) {
	if !common.IsHexAddress(verifyingContract) {
		return Domain{}, fmt.Errorf("invalid verifying contract: %q", verifyingContract)
	}
	if chainID < 0 || chainID > constants.MaxChainID {
		return Domain{}, fmt.Errorf("chain id %d must fit 16 bits", chainID)
	}
	return Domain{ChainID: chainID, VerifyingContract: common.HexToAddress(verifyingContract)}, nil
}
