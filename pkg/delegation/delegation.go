package delegation

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/sigweihq/smartwallet/pkg/chains"
	"github.com/sigweihq/smartwallet/pkg/transaction"
	"github.com/sigweihq/smartwallet/pkg/types"
)

// OutcomeKind is the result class of a delegation attempt
type OutcomeKind string

const (
	OutcomeNone    OutcomeKind = "none"
	OutcomeSigned  OutcomeKind = "signed"
	OutcomeFailure OutcomeKind = "failure"
)

// Outcome is the result of a delegation attempt. Failures are reported here,
// never as an error return.
type Outcome struct {
	Kind      OutcomeKind
	Signature []byte            // delegator signature, set when Kind is OutcomeSigned
	Body      *transaction.Body // body the signature covers; may differ from the request for generic delegation
	Err       error             // cause, set when Kind is OutcomeFailure
}

func none() Outcome {
	return Outcome{Kind: OutcomeNone}
}

func signed(signature []byte, body *transaction.Body) Outcome {
	return Outcome{Kind: OutcomeSigned, Signature: signature, Body: body}
}

func failed(err error) Outcome {
	return Outcome{Kind: OutcomeFailure, Err: err}
}

// DeviceType is the kind of key backing a delegator account
type DeviceType string

const (
	DeviceLocal       DeviceType = "local"
	DeviceSmartWallet DeviceType = "smart-wallet"
	DeviceHardware    DeviceType = "hardware"
)

// DelegatorAccount is a wallet account that pays fees for other transactions
type DelegatorAccount struct {
	Address string
	Device  DeviceType

	// EncryptedKey is the keystore JSON of a local account, decrypted with Request.Password
	EncryptedKey []byte

	// Signer is used as-is when set; required for smart-wallet delegators
	Signer chains.TransactionSigner
}

// GenericOptions configures delegation through a generic delegator service
type GenericOptions struct {
	BaseURL string
	Details types.GenericDelegationDetails
}

// Options selects and configures the delegation method
type Options struct {
	Type    types.DelegationType
	URL     string
	Account *DelegatorAccount
	Generic *GenericOptions
}

// IsDelegated reports whether the transaction fee is paid by a third party
func (o Options) IsDelegated() bool {
	return o.Type != "" && o.Type != types.DelegationNone
}

// Request is the transaction to be sponsored
type Request struct {
	Body           *transaction.Body
	Sender         common.Address
	Owner          common.Address
	IsSmartAccount bool
	NetworkType    string
	Password       string
}

// DelegateFor is the origin address the delegator signs for
func (r Request) DelegateFor() common.Address {
	if r.IsSmartAccount && r.Owner != (common.Address{}) {
		return r.Owner
	}
	return r.Sender
}
