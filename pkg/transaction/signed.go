package transaction

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// SignedTransaction is a body with its final signature, ready for broadcast
type SignedTransaction struct {
	Body      *Body
	Signature []byte // sender signature, followed by the delegator signature when delegated
}

// NewSignedTransaction concatenates the sender and optional delegator signatures
func NewSignedTransaction(body *Body, senderSig, delegatorSig []byte) (*SignedTransaction, error) {
	if body == nil {
		return nil, fmt.Errorf("transaction body is nil")
	}
	if len(senderSig) != SignatureLength {
		return nil, fmt.Errorf("sender signature length mismatch: got %d, expected %d", len(senderSig), SignatureLength)
	}
	if body.Delegated && len(delegatorSig) == 0 {
		return nil, fmt.Errorf("delegated transaction is missing the delegator signature")
	}
	if len(delegatorSig) > 0 && len(delegatorSig) != SignatureLength {
		return nil, fmt.Errorf("delegator signature length mismatch: got %d, expected %d", len(delegatorSig), SignatureLength)
	}

	sig := make([]byte, 0, len(senderSig)+len(delegatorSig))
	sig = append(sig, senderSig...)
	sig = append(sig, delegatorSig...)
	return &SignedTransaction{Body: body, Signature: sig}, nil
}

// Encode returns the RLP encoding including the signature
func (t *SignedTransaction) Encode() ([]byte, error) {
	return rlp.EncodeToBytes(t.Body.toRLP(t.Signature))
}

// RawHex returns the 0x-prefixed encoding
func (t *SignedTransaction) RawHex() (string, error) {
	raw, err := t.Encode()
	if err != nil {
		return "", err
	}
	return hexutil.Encode(raw), nil
}

// Origin recovers the sender address from the first signature
func (t *SignedTransaction) Origin() (common.Address, error) {
	if len(t.Signature) < SignatureLength {
		return common.Address{}, fmt.Errorf("signature too short: %d", len(t.Signature))
	}
	hash, err := t.Body.SigningHash()
	if err != nil {
		return common.Address{}, err
	}
	return recoverAddress(hash, t.Signature[:SignatureLength])
}

// Delegator recovers the fee delegator address from the second signature
func (t *SignedTransaction) Delegator() (common.Address, error) {
	if len(t.Signature) != 2*SignatureLength {
		return common.Address{}, fmt.Errorf("transaction has no delegator signature")
	}
	origin, err := t.Origin()
	if err != nil {
		return common.Address{}, err
	}
	hash, err := t.Body.SigningHash()
	if err != nil {
		return common.Address{}, err
	}
	return recoverAddress(DelegatorSigningHash(hash, origin), t.Signature[SignatureLength:])
}

// RecoverSigner returns the address that produced sig over hash
func RecoverSigner(hash common.Hash, sig []byte) (common.Address, error) {
	if len(sig) != SignatureLength {
		return common.Address{}, fmt.Errorf("signature length mismatch: got %d, expected %d", len(sig), SignatureLength)
	}
	return recoverAddress(hash, sig)
}

func recoverAddress(hash common.Hash, sig []byte) (common.Address, error) {
	pub, err := crypto.SigToPub(hash.Bytes(), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover signer: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
