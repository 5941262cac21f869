package types

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
)

// Clause is a single call within a transaction
type Clause struct {
	To    *string       `json:"to"`    // nil for contract creation
	Value string        `json:"value"` // decimal or 0x-prefixed hex
	Data  string        `json:"data"`  // 0x-prefixed calldata
	Call  *ContractCall `json:"-"`
}

// ContractCall is a structured call that is ABI-encoded into the clause data
type ContractCall struct {
	ABI    *abi.ABI
	Method string
	Args   []any
}

// NewClause creates a clause for a call or transfer to an address
func NewClause(to, value, data string) Clause {
	return Clause{To: &to, Value: value, Data: data}
}

// NewCallClause creates a clause whose data is encoded from a contract call
func NewCallClause(to string, value string, contract *abi.ABI, method string, args ...any) Clause {
	return Clause{
		To:    &to,
		Value: value,
		Call:  &ContractCall{ABI: contract, Method: method, Args: args},
	}
}

// ToAddress returns the target address, or the zero address for contract creation
func (c Clause) ToAddress() common.Address {
	if c.To == nil {
		return common.Address{}
	}
	return common.HexToAddress(*c.To)
}

// ValueBig parses the clause value
func (c Clause) ValueBig() (*big.Int, error) {
	if c.Value == "" {
		return new(big.Int), nil
	}
	v, ok := math.ParseBig256(c.Value)
	if !ok {
		return nil, fmt.Errorf("invalid clause value: %s", c.Value)
	}
	return v, nil
}

// EncodedData returns the calldata, ABI-encoding the structured call when present
func (c Clause) EncodedData() ([]byte, error) {
	if c.Call != nil {
		if c.Call.ABI == nil {
			return nil, fmt.Errorf("missing ABI for method %s", c.Call.Method)
		}
		data, err := c.Call.ABI.Pack(c.Call.Method, c.Call.Args...)
		if err != nil {
			return nil, fmt.Errorf("failed to pack %s: %w", c.Call.Method, err)
		}
		return data, nil
	}
	if c.Data == "" || c.Data == "0x" {
		return []byte{}, nil
	}
	data, err := hexutil.Decode(c.Data)
	if err != nil {
		return nil, fmt.Errorf("invalid clause data: %w", err)
	}
	return data, nil
}

// Normalize resolves structured calls and returns a clause carrying only hex data
func (c Clause) Normalize() (Clause, error) {
	data, err := c.EncodedData()
	if err != nil {
		return Clause{}, err
	}
	value, err := c.ValueBig()
	if err != nil {
		return Clause{}, err
	}
	out := Clause{Value: value.String(), Data: hexutil.Encode(data)}
	if c.To != nil {
		to := *c.To
		out.To = &to
	}
	return out, nil
}
