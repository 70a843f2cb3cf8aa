package evm

import "math/big"

const (
	// SchemeExact is the scheme identifier this mechanism implements.
	SchemeExact = "exact"

	// DefaultDecimals is the decimal count of the default USDC assets.
	DefaultDecimals = 6

	// DefaultValidityPeriod bounds authorization validity when the
	// requirements carry no timeout (seconds).
	DefaultValidityPeriod = 600

	// ValidAfterBuffer backdates validAfter to absorb clock skew between
	// client, facilitator, and chain (seconds).
	ValidAfterBuffer = 60
)

// AssetInfo describes a token usable for exact payments on one network.
type AssetInfo struct {
	Address  string
	Name     string
	Version  string
	Decimals int
}

// NetworkConfig ties a network identifier to its chain id and default
// stablecoin.
type NetworkConfig struct {
	ChainID      *big.Int
	DefaultAsset AssetInfo
}

// NetworkConfigs maps supported EVM network names to their configuration.
// Each chain's officially endorsed USDC deployment is the default asset.
var NetworkConfigs = map[string]NetworkConfig{
	"base": {
		ChainID: big.NewInt(8453),
		DefaultAsset: AssetInfo{
			Address:  "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
			Name:     "USD Coin",
			Version:  "2",
			Decimals: DefaultDecimals,
		},
	},
	"base-sepolia": {
		ChainID: big.NewInt(84532),
		DefaultAsset: AssetInfo{
			Address:  "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
			Name:     "USDC",
			Version:  "2",
			Decimals: DefaultDecimals,
		},
	},
	"avalanche": {
		ChainID: big.NewInt(43114),
		DefaultAsset: AssetInfo{
			Address:  "0xB97EF9Ef8734C71904D8002F8b6Bc66Dd9c48a6E",
			Name:     "USD Coin",
			Version:  "2",
			Decimals: DefaultDecimals,
		},
	},
	"avalanche-fuji": {
		ChainID: big.NewInt(43113),
		DefaultAsset: AssetInfo{
			Address:  "0x5425890298aed601595a70AB815c96711a31Bc65",
			Name:     "USD Coin",
			Version:  "2",
			Decimals: DefaultDecimals,
		},
	},
}

// IsValidNetwork reports whether the network has an EVM configuration.
func IsValidNetwork(network string) bool {
	_, ok := NetworkConfigs[network]
	return ok
}

// GetNetworkConfig returns the configuration for a supported EVM network.
func GetNetworkConfig(network string) (NetworkConfig, bool) {
	config, ok := NetworkConfigs[network]
	return config, ok
}
