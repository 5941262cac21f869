package transaction

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sigweihq/smartwallet/pkg/chains"
	"github.com/sigweihq/smartwallet/pkg/constants"
	"github.com/sigweihq/smartwallet/pkg/types"
)

// BuildOptions are per-transaction body settings
type BuildOptions struct {
	Delegated    bool
	DependsOn    *common.Hash
	GasPriceCoef uint8
}

// Builder assembles transaction bodies anchored to the current best block
type Builder struct {
	chainTag   byte
	refs       chains.BlockRefReader
	expiration uint32
	rand       io.Reader
}

// NewBuilder creates a body builder for the chain. The chain tag is the low byte of the chain id.
func NewBuilder(chainID int64, refs chains.BlockRefReader) *Builder {
	return &Builder{
		chainTag:   byte(chainID),
		refs:       refs,
		expiration: constants.DefaultExpiration,
		rand:       rand.Reader,
	}
}

// WithExpiration sets the number of blocks after the block ref the transaction stays valid
func (b *Builder) WithExpiration(blocks uint32) *Builder {
	b.expiration = blocks
	return b
}

// Build converts clauses into an unsigned body with the given gas
func (b *Builder) Build(ctx context.Context, clauses []types.Clause, gas uint64, opts BuildOptions) (*Body, error) {
	bodyClauses, err := ClausesFrom(clauses)
	if err != nil {
		return nil, err
	}

	var blockRef uint64
	if b.refs != nil {
		blockRef, err = b.refs.BestBlockRef(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read block ref: %w", err)
		}
	}

	var nonce [8]byte
	if _, err := io.ReadFull(b.rand, nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return &Body{
		ChainTag:     b.chainTag,
		BlockRef:     blockRef,
		Expiration:   b.expiration,
		Clauses:      bodyClauses,
		GasPriceCoef: opts.GasPriceCoef,
		Gas:          gas,
		DependsOn:    opts.DependsOn,
		Nonce:        binary.BigEndian.Uint64(nonce[:]),
		Delegated:    opts.Delegated,
	}, nil
}
