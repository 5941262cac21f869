package types

import "fmt"

// ErrorType classifies failures surfaced to callers
type ErrorType string

const (
	ErrorTypeWalletNotFound      ErrorType = "WALLET_NOT_FOUND"
	ErrorTypeInvalidChainID      ErrorType = "INVALID_CHAIN_ID"
	ErrorTypeSignatureRejected   ErrorType = "SIGNATURE_REJECTED"
	ErrorTypeNetwork             ErrorType = "NETWORK_ERROR"
	ErrorTypeBuildingTransaction ErrorType = "BUILDING_TRANSACTION_ERROR"
	ErrorTypeUnknownNetwork      ErrorType = "UNKNOWN_NETWORK"
)

// Sentinels for errors.Is. Matching is by type only.
var (
	ErrWalletNotFound      = &WalletError{Type: ErrorTypeWalletNotFound}
	ErrInvalidChainID      = &WalletError{Type: ErrorTypeInvalidChainID}
	ErrSignatureRejected   = &WalletError{Type: ErrorTypeSignatureRejected}
	ErrNetwork             = &WalletError{Type: ErrorTypeNetwork}
	ErrBuildingTransaction = &WalletError{Type: ErrorTypeBuildingTransaction}
	ErrUnknownNetwork      = &WalletError{Type: ErrorTypeUnknownNetwork}
)

// WalletError is a classified wallet failure
type WalletError struct {
	Type    ErrorType
	Message string
	Err     error
}

// NewWalletError creates a WalletError wrapping an optional cause
func NewWalletError(typ ErrorType, message string, err error) *WalletError {
	return &WalletError{Type: typ, Message: message, Err: err}
}

func (e *WalletError) Error() string {
	msg := string(e.Type)
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *WalletError) Unwrap() error {
	return e.Err
}

// Is matches any WalletError of the same type
func (e *WalletError) Is(target error) bool {
	t, ok := target.(*WalletError)
	if !ok {
		return false
	}
	return t.Type == e.Type
}
