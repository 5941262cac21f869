package evm

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ExecuteCall is a call the smart account performs on the owner's behalf
type ExecuteCall struct {
	To    common.Address
	Value *big.Int
	Data  []byte
}

// PackCreateAccount encodes factory.createAccount(owner)
func PackCreateAccount(owner common.Address) ([]byte, error) {
	parsed, err := FactoryABI()
	if err != nil {
		return nil, err
	}
	data, err := parsed.Pack(MethodCreateAccount, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", MethodCreateAccount, err)
	}
	return data, nil
}

// PackExecuteWithAuthorization encodes a single authorized call
func PackExecuteWithAuthorization(call ExecuteCall, validAfter, validBefore *big.Int, signature []byte) ([]byte, error) {
	parsed, err := AccountABI()
	if err != nil {
		return nil, err
	}
	data, err := parsed.Pack(MethodExecuteWithAuth, call.To, call.Value, call.Data, validAfter, validBefore, signature)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", MethodExecuteWithAuth, err)
	}
	return data, nil
}

// PackExecuteBatchWithAuthorization encodes a batch of calls covered by one signature
func PackExecuteBatchWithAuthorization(calls []ExecuteCall, validAfter, validBefore *big.Int, nonce [32]byte, signature []byte) ([]byte, error) {
	parsed, err := AccountABI()
	if err != nil {
		return nil, err
	}
	to := make([]common.Address, len(calls))
	values := make([]*big.Int, len(calls))
	datas := make([][]byte, len(calls))
	for i, c := range calls {
		to[i] = c.To
		values[i] = c.Value
		datas[i] = c.Data
	}
	data, err := parsed.Pack(MethodExecuteBatchWithAuth, to, values, datas, validAfter, validBefore, nonce, signature)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", MethodExecuteBatchWithAuth, err)
	}
	return data, nil
}

// PackERC20Transfer encodes transfer(to, amount)
func PackERC20Transfer(to common.Address, amount *big.Int) ([]byte, error) {
	parsed, err := ERC20ABI()
	if err != nil {
		return nil, err
	}
	data, err := parsed.Pack(MethodTransfer, to, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", MethodTransfer, err)
	}
	return data, nil
}

// DecodeERC20Transfer decodes transfer calldata. ok is false for any other call.
func DecodeERC20Transfer(data []byte) (to common.Address, amount *big.Int, ok bool) {
	parsed, err := ERC20ABI()
	if err != nil || len(data) < 4 {
		return common.Address{}, nil, false
	}
	method := parsed.Methods[MethodTransfer]
	if !bytes.Equal(data[:4], method.ID) {
		return common.Address{}, nil, false
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil || len(args) != 2 {
		return common.Address{}, nil, false
	}
	to, okTo := args[0].(common.Address)
	amount, okAmount := args[1].(*big.Int)
	if !okTo || !okAmount {
		return common.Address{}, nil, false
	}
	return to, amount, true
}

// DecodeExecuteCalls decodes smart account execution calldata into the calls it performs.
// ok is false when data is not an execution call.
func DecodeExecuteCalls(data []byte) (calls []ExecuteCall, ok bool, err error) {
	parsed, err := AccountABI()
	if err != nil {
		return nil, false, err
	}
	if len(data) < 4 {
		return nil, false, nil
	}
	method, err := parsed.MethodById(data[:4])
	if err != nil {
		return nil, false, nil
	}

	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, true, fmt.Errorf("failed to unpack %s: %w", method.Name, err)
	}

	switch method.Name {
	case MethodExecuteWithAuth:
		to, ok1 := args[0].(common.Address)
		value, ok2 := args[1].(*big.Int)
		callData, ok3 := args[2].([]byte)
		if !ok1 || !ok2 || !ok3 {
			return nil, true, fmt.Errorf("unexpected %s argument types", method.Name)
		}
		return []ExecuteCall{{To: to, Value: value, Data: callData}}, true, nil
	case MethodExecuteBatchWithAuth, MethodExecuteBatchLegacy:
		to, ok1 := args[0].([]common.Address)
		values, ok2 := args[1].([]*big.Int)
		datas, ok3 := args[2].([][]byte)
		if !ok1 || !ok2 || !ok3 {
			return nil, true, fmt.Errorf("unexpected %s argument types", method.Name)
		}
		if len(to) != len(values) || len(to) != len(datas) {
			return nil, true, fmt.Errorf("%s array length mismatch: to=%d value=%d data=%d", method.Name, len(to), len(values), len(datas))
		}
		out := make([]ExecuteCall, len(to))
		for i := range to {
			out[i] = ExecuteCall{To: to[i], Value: values[i], Data: datas[i]}
		}
		return out, true, nil
	default:
		return nil, false, nil
	}
}
