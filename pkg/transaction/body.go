package transaction

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/sigweihq/smartwallet/pkg/types"
	"golang.org/x/crypto/blake2b"
)

// featureDelegated marks a transaction whose fee is paid by a delegator
const featureDelegated uint64 = 1

// SignatureLength is the length of a single secp256k1 signature
const SignatureLength = 65

// Clause is an encoded call inside a transaction body
type Clause struct {
	To    *common.Address // nil for contract creation
	Value *big.Int
	Data  []byte
}

// Body is an unsigned multi-clause transaction
type Body struct {
	ChainTag     byte
	BlockRef     uint64
	Expiration   uint32
	Clauses      []Clause
	GasPriceCoef uint8
	Gas          uint64
	DependsOn    *common.Hash
	Nonce        uint64
	Delegated    bool
}

type rlpClause struct {
	To    []byte
	Value *big.Int
	Data  []byte
}

type rlpBody struct {
	ChainTag     uint8
	BlockRef     uint64
	Expiration   uint32
	Clauses      []rlpClause
	GasPriceCoef uint8
	Gas          uint64
	DependsOn    []byte
	Nonce        uint64
	Reserved     []uint64
	Signature    []byte `rlp:"optional"`
}

// ClausesFrom converts user-level clauses into body clauses
func ClausesFrom(clauses []types.Clause) ([]Clause, error) {
	out := make([]Clause, 0, len(clauses))
	for i, c := range clauses {
		value, err := c.ValueBig()
		if err != nil {
			return nil, fmt.Errorf("clause %d: %w", i, err)
		}
		data, err := c.EncodedData()
		if err != nil {
			return nil, fmt.Errorf("clause %d: %w", i, err)
		}
		bc := Clause{Value: value, Data: data}
		if c.To != nil {
			to := common.HexToAddress(*c.To)
			bc.To = &to
		}
		out = append(out, bc)
	}
	return out, nil
}

// Equal reports whether two clauses carry the same target, value and data
func (c Clause) Equal(other Clause) bool {
	if (c.To == nil) != (other.To == nil) {
		return false
	}
	if c.To != nil && *c.To != *other.To {
		return false
	}
	return bigOrZero(c.Value).Cmp(bigOrZero(other.Value)) == 0 && bytes.Equal(c.Data, other.Data)
}

func (b *Body) toRLP(signature []byte) rlpBody {
	out := rlpBody{
		ChainTag:     b.ChainTag,
		BlockRef:     b.BlockRef,
		Expiration:   b.Expiration,
		Clauses:      make([]rlpClause, 0, len(b.Clauses)),
		GasPriceCoef: b.GasPriceCoef,
		Gas:          b.Gas,
		DependsOn:    []byte{},
		Nonce:        b.Nonce,
		Reserved:     []uint64{},
		Signature:    signature,
	}
	for _, c := range b.Clauses {
		rc := rlpClause{To: []byte{}, Value: bigOrZero(c.Value), Data: c.Data}
		if c.To != nil {
			rc.To = c.To.Bytes()
		}
		if rc.Data == nil {
			rc.Data = []byte{}
		}
		out.Clauses = append(out.Clauses, rc)
	}
	if b.DependsOn != nil {
		out.DependsOn = b.DependsOn.Bytes()
	}
	if b.Delegated {
		out.Reserved = []uint64{featureDelegated}
	}
	return out
}

// Encode returns the RLP encoding of the unsigned body
func (b *Body) Encode() ([]byte, error) {
	return rlp.EncodeToBytes(b.toRLP(nil))
}

// SigningHash is the blake2b-256 hash of the unsigned body, signed by the origin
func (b *Body) SigningHash() (common.Hash, error) {
	encoded, err := b.Encode()
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to encode transaction body: %w", err)
	}
	return common.Hash(blake2b.Sum256(encoded)), nil
}

// DelegatorSigningHash is the hash a fee delegator signs on behalf of delegateFor
func DelegatorSigningHash(signingHash common.Hash, delegateFor common.Address) common.Hash {
	buf := make([]byte, 0, common.HashLength+common.AddressLength)
	buf = append(buf, signingHash.Bytes()...)
	buf = append(buf, delegateFor.Bytes()...)
	return common.Hash(blake2b.Sum256(buf))
}

// Decode parses an RLP-encoded body. The trailing signature is returned when present.
func Decode(raw []byte) (*Body, []byte, error) {
	var decoded rlpBody
	if err := rlp.DecodeBytes(raw, &decoded); err != nil {
		return nil, nil, fmt.Errorf("failed to decode transaction: %w", err)
	}

	body := &Body{
		ChainTag:     decoded.ChainTag,
		BlockRef:     decoded.BlockRef,
		Expiration:   decoded.Expiration,
		Clauses:      make([]Clause, 0, len(decoded.Clauses)),
		GasPriceCoef: decoded.GasPriceCoef,
		Gas:          decoded.Gas,
		Nonce:        decoded.Nonce,
	}
	for i, rc := range decoded.Clauses {
		c := Clause{Value: rc.Value, Data: rc.Data}
		switch len(rc.To) {
		case 0:
		case common.AddressLength:
			to := common.BytesToAddress(rc.To)
			c.To = &to
		default:
			return nil, nil, fmt.Errorf("clause %d: invalid address length %d", i, len(rc.To))
		}
		body.Clauses = append(body.Clauses, c)
	}
	switch len(decoded.DependsOn) {
	case 0:
	case common.HashLength:
		h := common.BytesToHash(decoded.DependsOn)
		body.DependsOn = &h
	default:
		return nil, nil, errors.New("invalid dependsOn length")
	}
	if len(decoded.Reserved) > 0 {
		body.Delegated = decoded.Reserved[0]&featureDelegated != 0
	}
	return body, decoded.Signature, nil
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
