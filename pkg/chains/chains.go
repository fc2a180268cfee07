package chains

import "strings"

// ChainList contains the list of supported chain IDs
var ChainList = []int{
	1,     // Ethereum
	10,    // Optimism
	137,   // Polygon
	42161, // Arbitrum
	43114, // Avalanche
	56,    // Binance Smart Chain
	8453,  // Base
}

// chainNames maps chain IDs to their names
var chainNames = map[int]string{
	1:     "ETHEREUM",
	10:    "OPTIMISM",
	137:   "POLYGON",
	42161: "ARBITRUM",
	43114: "AVALANCHE",
	56:    "BSC",
	8453:  "BASE",
}

// nativeSymbols maps chain IDs to their native asset symbols
var nativeSymbols = map[int]string{
	1:     "ETH",
	10:    "ETH",
	137:   "POL",
	42161: "ETH",
	43114: "AVAX",
	56:    "BNB",
	8453:  "ETH",
}

// Sentinel addresses used by providers to represent a chain's native
// asset in place of a token contract. Conventions differ between
// providers: some use the zero address, others the 0xEeee...EEeE marker.
const (
	ZeroAddress     = "0x0000000000000000000000000000000000000000"
	EeeSentinel     = "0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE"
	NativeDecimals  = 18
	DefaultDecimals = 18
)

// GetChainName returns the name of the chain for a given chain ID
func GetChainName(chainID int) string {
	name, exists := chainNames[chainID]
	if !exists {
		return ""
	}
	return name
}

// GetNativeSymbol returns the native asset symbol for a given chain ID
func GetNativeSymbol(chainID int) string {
	return nativeSymbols[chainID]
}

// IsSupported reports whether the chain ID is in the supported list
func IsSupported(chainID int) bool {
	_, exists := chainNames[chainID]
	return exists
}

// IsNativeToken reports whether the token address is a sentinel for the
// chain's native asset, regardless of which convention the provider used.
func IsNativeToken(address string) bool {
	if address == "" {
		return true
	}
	return strings.EqualFold(address, ZeroAddress) || strings.EqualFold(address, EeeSentinel)
}

// knownDecimals maps lowercased token addresses to declared decimals for
// the common stablecoins the engine routes most often. Unknown tokens
// fall back to DefaultDecimals.
var knownDecimals = map[int]map[string]int{
	1: {
		"0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48": 6, // USDC
		"0xdac17f958d2ee523a2206206994597c13d831ec7": 6, // USDT
	},
	137: {
		"0x3c499c542cef5e3811e1192ce70d8cc03d5c3359": 6, // USDC
		"0xc2132d05d31c914a87c6611c10748aeb04b58e8f": 6, // USDT
	},
	42161: {
		"0xaf88d065e77c8cc2239327c5edb3a432268e5831": 6, // USDC
		"0xfd086bc7cd5c481dcc9c85ebe478a1c0b69fcbb9": 6, // USDT
	},
	8453: {
		"0x833589fcd6edb6e08f4c7c32d4f71b54bda02913": 6, // USDC
	},
	43114: {
		"0xb97ef9ef8734c71904d8002f8b6bc66dd9c48a6e": 6, // USDC
		"0x9702230a8ea53601f5cd2dc00fdbc13d4df4a8c7": 6, // USDT
	},
	10: {
		"0x0b2c639c533813f4aa9d7837caf62653d097ff85": 6, // USDC
	},
}

// GetTokenDecimals resolves a token address on a chain to its declared
// decimals. Native sentinels always resolve to 18.
func GetTokenDecimals(chainID int, address string) int {
	if IsNativeToken(address) {
		return NativeDecimals
	}
	if tokens, ok := knownDecimals[chainID]; ok {
		if dec, ok := tokens[strings.ToLower(address)]; ok {
			return dec
		}
	}
	return DefaultDecimals
}
