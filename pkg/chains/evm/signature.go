package evm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/sigweihq/smartwallet/pkg/chains"
	"github.com/sigweihq/smartwallet/pkg/transaction"
)

// TypedDataHash returns the EIP-712 digest keccak256("\x19\x01" || domainSeparator || hashStruct(message))
func TypedDataHash(typedData apitypes.TypedData) (common.Hash, error) {
	hash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to hash %s: %w", typedData.PrimaryType, err)
	}

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to hash domain: %w", err)
	}

	return common.BytesToHash(crypto.Keccak256([]byte("\x19\x01"), domainSeparator, hash)), nil
}

// RecoverTypedDataSigner returns the address that signed the typed data
func RecoverTypedDataSigner(typedData apitypes.TypedData, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid signature encoding: %w", err)
	}
	if len(sig) != 65 {
		return common.Address{}, fmt.Errorf("signature length mismatch: got %d, expected 65", len(sig))
	}
	hash, err := TypedDataHash(typedData)
	if err != nil {
		return common.Address{}, err
	}

	// Convert v from ethereum format (27/28) back to recovery id
	normalized := make([]byte, 65)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}

	pub, err := crypto.SigToPub(hash.Bytes(), normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover signer: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// LocalSigner implements chains.TypedDataSigner and chains.TransactionSigner with an in-memory key
type LocalSigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// Verify LocalSigner implements both interfaces
var _ chains.TypedDataSigner = (*LocalSigner)(nil)
var _ chains.TransactionSigner = (*LocalSigner)(nil)

func NewLocalSigner(key *ecdsa.PrivateKey) *LocalSigner {
	return &LocalSigner{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}
}

// NewLocalSignerFromHex parses a hex private key, with or without 0x prefix
func NewLocalSignerFromHex(privateKeyHex string) (*LocalSigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return NewLocalSigner(key), nil
}

// NewLocalSignerFromKeystore decrypts a keystore JSON file with the password
func NewLocalSignerFromKeystore(keyJSON []byte, password string) (*LocalSigner, error) {
	key, err := keystore.DecryptKey(keyJSON, password)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt keystore: %w", err)
	}
	return NewLocalSigner(key.PrivateKey), nil
}

// Address implements chains.TransactionSigner
func (s *LocalSigner) Address() common.Address {
	return s.address
}

// SignTypedData implements chains.TypedDataSigner
func (s *LocalSigner) SignTypedData(ctx context.Context, typedData apitypes.TypedData) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	hash, err := TypedDataHash(typedData)
	if err != nil {
		return "", err
	}

	signature, err := crypto.Sign(hash.Bytes(), s.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign typed data: %w", err)
	}

	// Convert v from recovery id to ethereum format (27/28)
	signature[64] += 27

	return hexutil.Encode(signature), nil
}

// SignTransactionHash implements chains.TransactionSigner.
// Transaction signatures keep the raw recovery id.
func (s *LocalSigner) SignTransactionHash(ctx context.Context, hash common.Hash, delegateFor *common.Address) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if delegateFor != nil {
		hash = transaction.DelegatorSigningHash(hash, *delegateFor)
	}

	signature, err := crypto.Sign(hash.Bytes(), s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	return signature, nil
}
