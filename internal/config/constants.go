package config

import "time"

// Transaction invariants.
const (
	MaxTxSizeBytes    = 1_000_000
	MaxOutputSatoshis = 21_000_000 * 100_000_000 // 21M BSV in satoshis
	DustThreshold     = 546
)

// Script limits.
const (
	MaxScriptBytes  = 520
	MaxOpReturnData = 220
)

// Address version bytes for the Base58Check codec.
const (
	MainnetP2PKHVersion byte = 0x00
	TestnetP2PKHVersion byte = 0x6f
	MainnetP2SHVersion  byte = 0x05
	TestnetP2SHVersion  byte = 0xc4
)

// Per-input / per-output size estimates used by EstimateFee.
const (
	TxOverheadBytes       = 10 // version (4) + locktime (4) + varint slack (2)
	P2PKHInputSizeBytes   = 148
	P2SHMultisigInputSize = 295
	CLTVP2PKHInputSize    = 155
	P2PKHOutputSizeBytes  = 34
	P2SHOutputSizeBytes   = 32
)

// Channel defaults.
const (
	DefaultChannelTimeoutBlocks = 144
	AverageBlockInterval        = 10 * time.Minute
)

// Monitor poll cycle.
const (
	DefaultPollInterval      = 10 * time.Second
	MaxPendingTxPerCycle     = 100
	DefaultMinConfirmations  = 6
	IndexerRequestTimeout    = 30 * time.Second
	CircuitBreakerThreshold  = 5
	CircuitBreakerCooldown   = 30 * time.Second
	CircuitBreakerHalfOpenMax = 1
	DefaultTxCacheCapacity   = 10_000
	DefaultIndexerRateRPS    = 10
	DefaultReorgLookback     = 20
	ConfirmationSufficientMin = 1
	SSEHubChannelBuffer      = 32
)

// Circuit breaker states, ported from the teacher's scanner circuit breaker.
const (
	CircuitClosed   = "closed"
	CircuitOpen     = "open"
	CircuitHalfOpen = "half-open"
)

// Logging.
const (
	LogFilePattern = "bsvbank-%s-%s.log" // date, level
	LogFilePrefix  = "bsvbank-"
	LogMaxAgeDays  = 30
)

// Database.
const (
	DBBusyTimeoutMs = 5000
)

// Server / ops surface.
const (
	ServerReadTimeout    = 10 * time.Second
	ServerWriteTimeout   = 10 * time.Second
	ServerIdleTimeout    = 60 * time.Second
	ServerMaxHeaderBytes = 1 << 20
	ShutdownTimeout      = 15 * time.Second
)
