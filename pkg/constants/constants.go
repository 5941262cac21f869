package constants

import "time"

const (
	HTTPTimeout           = 30 * time.Second // timeout for sponsor and generic delegator requests
	TLSHandshakeTimeout   = 10 * time.Second // timeout for TLS handshake
	ResponseHeaderTimeout = 20 * time.Second // timeout for response header
	ExpectContinueTimeout = 1 * time.Second  // timeout for expect continue
	MaxResponseBodySize   = 10 * 1024 * 1024 // maximum response body size in bytes (10MB)
)

// Authorization windows. validAfter is always zero.
const (
	SingleAuthorizationWindow = 60 * time.Second
	BatchAuthorizationWindow  = 300 * time.Second
)

// EIP-712 domain of the smart account contract
const (
	DomainName    = "Wallet"
	DomainVersion = "1"
)

// BatchMinVersion is the first account version that understands batched authorizations.
const BatchMinVersion = 3

// DefaultAccountVersion is assumed when the factory version cannot be read.
const DefaultAccountVersion = 1

// Network Types
const (
	NetworkMainnet = "mainnet"
	NetworkTestnet = "testnet"
	NetworkSolo    = "solo"
	NetworkCustom  = "custom"
)

// Chain ids are the last 16 bits of the genesis block id.
const (
	ChainIDMainnet int64 = 6986  // genesis 0x00000000851caf3cfdb6e899cf5958bfb1ac3413d346d43539627e6be7ec1b4a
	ChainIDTestnet int64 = 45351 // genesis 0x000000000b2bce3c70bc649a02749e8687721b09ed2e15997f466536b20bb127
	MaxChainID     int64 = 0xFFFF
)

var NetworkToChainID = map[string]int64{
	NetworkMainnet: ChainIDMainnet,
	NetworkTestnet: ChainIDTestnet,
}

// Smart account factory deployments. Mainnet and solo factories are configured by the caller.
const (
	FactoryAddressTestnet = "0x713b908bcf77f3e00efef328e50b657a1a23aeaf"
)

var NetworkToFactoryAddress = map[string]string{
	NetworkTestnet: FactoryAddressTestnet,
}

// Fee tokens accepted by the generic delegator
const (
	TokenVET  = "VET"
	TokenVTHO = "VTHO"
	TokenB3TR = "B3TR"
)

const (
	VTHOAddress        = "0x0000000000000000000000000000456E65726779"
	B3TRAddressMainnet = "0x5ef79995fe8a89e0812330e4378eb2660cede699"
)

// Generic delegator
const (
	GenericDelegatorSignPath     = "/api/v1/sign/transaction"
	GenericDelegatorEstimatePath = "/api/v1/estimate/transaction"
	GenericDelegatorRatesPath    = "/api/v1/rates"
	FeeThresholdPercent          = 10     // tolerated difference between sent fee and estimate
	MaxFeeClauseGas              = 100000 // extra gas the delegator may add for its fee clause
)

// Gas
const (
	BaseGasPrice              = 10_000_000_000_000 // 10^13 wei per gas unit
	TxGas                     = 5000
	ClauseGas                 = 16000
	ClauseGasContractCreation = 48000
	TxDataZeroGas             = 4
	TxDataNonZeroGas          = 68
	DefaultGasPriceCoef       = 0
	DefaultExpiration         = 32 // blocks
)

// Fee speeds
const (
	SpeedRegular = "regular"
	SpeedMedium  = "medium"
	SpeedHigh    = "high"
	SpeedLegacy  = "legacy"
)
