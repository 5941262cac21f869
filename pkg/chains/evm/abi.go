package evm

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const factoryABIJSON = `[
{"inputs":[{"internalType":"address","name":"owner","type":"address"}],"name":"getAccountAddress","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"},
{"inputs":[{"internalType":"address","name":"owner","type":"address"}],"name":"hasLegacyAccount","outputs":[{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"version","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[{"internalType":"address","name":"owner","type":"address"}],"name":"createAccount","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"nonpayable","type":"function"}
]`

const accountABIJSON = `[
{"inputs":[{"internalType":"address","name":"to","type":"address"},{"internalType":"uint256","name":"value","type":"uint256"},{"internalType":"bytes","name":"data","type":"bytes"},{"internalType":"uint256","name":"validAfter","type":"uint256"},{"internalType":"uint256","name":"validBefore","type":"uint256"},{"internalType":"bytes","name":"signature","type":"bytes"}],"name":"executeWithAuthorization","outputs":[],"stateMutability":"payable","type":"function"},
{"inputs":[{"internalType":"address[]","name":"to","type":"address[]"},{"internalType":"uint256[]","name":"value","type":"uint256[]"},{"internalType":"bytes[]","name":"data","type":"bytes[]"},{"internalType":"uint256","name":"validAfter","type":"uint256"},{"internalType":"uint256","name":"validBefore","type":"uint256"},{"internalType":"bytes32","name":"nonce","type":"bytes32"},{"internalType":"bytes","name":"signature","type":"bytes"}],"name":"executeBatchWithCustomAuthorization","outputs":[],"stateMutability":"payable","type":"function"},
{"inputs":[{"internalType":"address[]","name":"to","type":"address[]"},{"internalType":"uint256[]","name":"value","type":"uint256[]"},{"internalType":"bytes[]","name":"data","type":"bytes[]"},{"internalType":"uint256","name":"validAfter","type":"uint256"},{"internalType":"uint256","name":"validBefore","type":"uint256"},{"internalType":"bytes32","name":"nonce","type":"bytes32"},{"internalType":"bytes","name":"signature","type":"bytes"}],"name":"executeBatchWithAuthorization","outputs":[],"stateMutability":"payable","type":"function"}
]`

const erc20ABIJSON = `[
{"inputs":[{"internalType":"address","name":"to","type":"address"},{"internalType":"uint256","name":"amount","type":"uint256"}],"name":"transfer","outputs":[{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"}
]`

// Method names
const (
	MethodGetAccountAddress    = "getAccountAddress"
	MethodHasLegacyAccount     = "hasLegacyAccount"
	MethodVersion              = "version"
	MethodCreateAccount        = "createAccount"
	MethodExecuteWithAuth      = "executeWithAuthorization"
	MethodExecuteBatchWithAuth = "executeBatchWithCustomAuthorization"
	MethodExecuteBatchLegacy   = "executeBatchWithAuthorization"
	MethodTransfer             = "transfer"
)

var (
	abiOnce    sync.Once
	factoryABI abi.ABI
	accountABI abi.ABI
	erc20ABI   abi.ABI
	abiErr     error
)

func loadABIs() {
	abiOnce.Do(func() {
		if factoryABI, abiErr = abi.JSON(strings.NewReader(factoryABIJSON)); abiErr != nil {
			abiErr = fmt.Errorf("failed to parse factory ABI: %w", abiErr)
			return
		}
		if accountABI, abiErr = abi.JSON(strings.NewReader(accountABIJSON)); abiErr != nil {
			abiErr = fmt.Errorf("failed to parse account ABI: %w", abiErr)
			return
		}
		if erc20ABI, abiErr = abi.JSON(strings.NewReader(erc20ABIJSON)); abiErr != nil {
			abiErr = fmt.Errorf("failed to parse ERC20 ABI: %w", abiErr)
		}
	})
}

// FactoryABI returns the parsed account factory ABI
func FactoryABI() (*abi.ABI, error) {
	loadABIs()
	if abiErr != nil {
		return nil, abiErr
	}
	return &factoryABI, nil
}

// AccountABI returns the parsed smart account ABI
func AccountABI() (*abi.ABI, error) {
	loadABIs()
	if abiErr != nil {
		return nil, abiErr
	}
	return &accountABI, nil
}

// ERC20ABI returns the parsed ERC-20 transfer ABI
func ERC20ABI() (*abi.ABI, error) {
	loadABIs()
	if abiErr != nil {
		return nil, abiErr
	}
	return &erc20ABI, nil
}
