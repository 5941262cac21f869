package delegation

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/sigweihq/smartwallet/pkg/chains/evm"
	"github.com/sigweihq/smartwallet/pkg/constants"
	"github.com/sigweihq/smartwallet/pkg/transaction"
	"github.com/sigweihq/smartwallet/pkg/types"
)

// Reason identifies the rule a generic delegator response broke
type Reason string

const (
	ReasonClausesDiff           Reason = "CLAUSES_DIFF"
	ReasonSentData              Reason = "SENT_DATA"
	ReasonOverThreshold         Reason = "OVER_THRESHOLD"
	ReasonNotERC20Transfer      Reason = "NOT_ERC20_TRANSFER"
	ReasonNoDelegationFeeClause Reason = "NO_DELEGATION_FEE_CLAUSE"
	ReasonWrongRecipient        Reason = "WRONG_RECIPIENT"
	ReasonBodyMismatch          Reason = "BODY_MISMATCH"
	ReasonNotDelegated          Reason = "NOT_DELEGATED"
	ReasonGasOutOfRange         Reason = "GAS_OUT_OF_RANGE"
	ReasonInvalidSignature      Reason = "INVALID_SIGNATURE"
)

// ValidationError rejects a generic delegator response
type ValidationError struct {
	Reason Reason
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("generic delegator response rejected: %s", e.Reason)
	}
	return fmt.Sprintf("generic delegator response rejected: %s: %s", e.Reason, e.Detail)
}

func invalid(reason Reason, format string, args ...any) error {
	return &ValidationError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// ValidateGenericResponse checks a body returned by a generic delegator against the one sent.
// The delegator may only append its fee payment and raise gas to cover it.
func ValidateGenericResponse(
	original, returned *transaction.Body,
	signature []byte,
	details *types.GenericDelegationDetails,
	delegateFor common.Address,
	isSmartAccount bool,
) error {
	if err := ValidateBody(original, returned); err != nil {
		return err
	}
	if isSmartAccount {
		if err := ValidateSmartAccountClauses(original.Clauses, returned.Clauses, details); err != nil {
			return err
		}
	} else {
		if err := ValidateClauses(original.Clauses, returned.Clauses, details); err != nil {
			return err
		}
	}
	return ValidateSignature(returned, signature, delegateFor)
}

// ValidateBody compares the fields the delegator must not change
func ValidateBody(original, returned *transaction.Body) error {
	switch {
	case original.ChainTag != returned.ChainTag:
		return invalid(ReasonBodyMismatch, "chain tag %d != %d", returned.ChainTag, original.ChainTag)
	case original.BlockRef != returned.BlockRef:
		return invalid(ReasonBodyMismatch, "block ref %#x != %#x", returned.BlockRef, original.BlockRef)
	case original.Expiration != returned.Expiration:
		return invalid(ReasonBodyMismatch, "expiration %d != %d", returned.Expiration, original.Expiration)
	case original.GasPriceCoef != returned.GasPriceCoef:
		return invalid(ReasonBodyMismatch, "gas price coef %d != %d", returned.GasPriceCoef, original.GasPriceCoef)
	case original.Nonce != returned.Nonce:
		return invalid(ReasonBodyMismatch, "nonce %d != %d", returned.Nonce, original.Nonce)
	case !sameHash(original.DependsOn, returned.DependsOn):
		return invalid(ReasonBodyMismatch, "dependsOn changed")
	}
	if !returned.Delegated {
		return &ValidationError{Reason: ReasonNotDelegated}
	}
	if returned.Gas < original.Gas || returned.Gas-original.Gas > constants.MaxFeeClauseGas {
		return invalid(ReasonGasOutOfRange, "gas %d for requested %d", returned.Gas, original.Gas)
	}
	return nil
}

// ValidateClauses checks an externally owned account's clauses: the originals,
// unchanged and in order, followed by exactly one fee payment.
func ValidateClauses(original, returned []transaction.Clause, details *types.GenericDelegationDetails) error {
	if len(returned) != len(original)+1 {
		return invalid(ReasonClausesDiff, "expected %d clauses, got %d", len(original)+1, len(returned))
	}
	for i := range original {
		if !original[i].Equal(returned[i]) {
			return invalid(ReasonClausesDiff, "clause %d was modified", i)
		}
	}

	fee := returned[len(returned)-1]
	if details.IsVET() {
		if len(fee.Data) > 0 {
			return &ValidationError{Reason: ReasonSentData}
		}
		if !paysTo(fee.To, details.DepositAccount) {
			return invalid(ReasonWrongRecipient, "fee is not sent to the deposit account")
		}
		if !WithinThreshold(fee.Value, details.Fee) {
			return invalid(ReasonOverThreshold, "sent %s, estimated %s", fee.Value, details.Fee)
		}
		return nil
	}

	recipient, amount, ok := evm.DecodeERC20Transfer(fee.Data)
	if !ok || (fee.Value != nil && fee.Value.Sign() != 0) {
		return &ValidationError{Reason: ReasonNotERC20Transfer}
	}
	if !paysTo(fee.To, details.TokenAddress) {
		return invalid(ReasonWrongRecipient, "fee transfer does not target the %s contract", details.Token)
	}
	if !paysTo(&recipient, details.DepositAccount) {
		return invalid(ReasonWrongRecipient, "fee transfer is not sent to the deposit account")
	}
	if !WithinThreshold(amount, details.Fee) {
		return invalid(ReasonOverThreshold, "sent %s, estimated %s", amount, details.Fee)
	}
	return nil
}

// ValidateSmartAccountClauses checks a smart account's clauses. The fee was signed into
// the user's authorization, so the clauses must come back untouched and one of the
// executed calls must pay the deposit account.
func ValidateSmartAccountClauses(original, returned []transaction.Clause, details *types.GenericDelegationDetails) error {
	if len(returned) != len(original) {
		return invalid(ReasonClausesDiff, "expected %d clauses, got %d", len(original), len(returned))
	}
	for i := range original {
		if !original[i].Equal(returned[i]) {
			return invalid(ReasonClausesDiff, "clause %d was modified", i)
		}
	}

	amount, found := findFeePayment(returned, details)
	if !found {
		return &ValidationError{Reason: ReasonNoDelegationFeeClause}
	}
	if !WithinThreshold(amount, details.Fee) {
		return invalid(ReasonOverThreshold, "sent %s, estimated %s", amount, details.Fee)
	}
	return nil
}

// ValidateSignature checks the delegator signed the returned body for delegateFor
func ValidateSignature(body *transaction.Body, signature []byte, delegateFor common.Address) error {
	if len(signature) != transaction.SignatureLength {
		return invalid(ReasonInvalidSignature, "length %d", len(signature))
	}
	hash, err := body.SigningHash()
	if err != nil {
		return invalid(ReasonInvalidSignature, "%v", err)
	}
	if _, err := transaction.RecoverSigner(transaction.DelegatorSigningHash(hash, delegateFor), signature); err != nil {
		return invalid(ReasonInvalidSignature, "%v", err)
	}
	return nil
}

// WithinThreshold reports whether sent exceeds the estimated fee by at most FeeThresholdPercent
func WithinThreshold(sent, fee *big.Int) bool {
	if sent == nil || fee == nil || sent.Sign() < 0 || fee.Sign() < 0 {
		return false
	}
	s, overflow := uint256.FromBig(sent)
	if overflow {
		return false
	}
	f, overflow := uint256.FromBig(fee)
	if overflow {
		return true
	}

	lhs, overflow := new(uint256.Int).MulOverflow(s, uint256.NewInt(100))
	if overflow {
		return false
	}
	rhs, overflow := new(uint256.Int).MulOverflow(f, uint256.NewInt(100+constants.FeeThresholdPercent))
	if overflow {
		return true
	}
	return !lhs.Gt(rhs)
}

// findFeePayment looks through regular clauses and the calls inside smart account
// executions for a transfer to the deposit account
func findFeePayment(clauses []transaction.Clause, details *types.GenericDelegationDetails) (*big.Int, bool) {
	for _, c := range clauses {
		calls, isExecution, err := evm.DecodeExecuteCalls(c.Data)
		if isExecution {
			if err != nil {
				continue
			}
			for _, call := range calls {
				to := call.To
				if amount, ok := feeAmount(&to, call.Value, call.Data, details); ok {
					return amount, true
				}
			}
			continue
		}
		if amount, ok := feeAmount(c.To, c.Value, c.Data, details); ok {
			return amount, true
		}
	}
	return nil, false
}

func feeAmount(to *common.Address, value *big.Int, data []byte, details *types.GenericDelegationDetails) (*big.Int, bool) {
	if details.IsVET() {
		if len(data) == 0 && paysTo(to, details.DepositAccount) && value != nil {
			return value, true
		}
		return nil, false
	}
	if !paysTo(to, details.TokenAddress) {
		return nil, false
	}
	recipient, amount, ok := evm.DecodeERC20Transfer(data)
	if !ok || !paysTo(&recipient, details.DepositAccount) {
		return nil, false
	}
	return amount, true
}

func paysTo(to *common.Address, expected string) bool {
	return to != nil && common.IsHexAddress(expected) && *to == common.HexToAddress(expected)
}

func sameHash(a, b *common.Hash) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
