package x402a2a

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/google-agentic-commerce/a2a-x402/go/mechanisms/evm"
)

// suiAssets maps Sui network names to their canonical USDC coin types. Sui
// networks share the exact scheme's requirement shape but carry no EIP-712
// domain.
var suiAssets = map[string]evm.AssetInfo{
	"sui": {
		Address:  "0xdba34672e30cb065b1f93e3ab55318768fd6fef66c15942c9f7cb846e2f900e7::usdc::USDC",
		Name:     "USDC",
		Version:  "1",
		Decimals: evm.DefaultDecimals,
	},
	"sui-testnet": {
		Address:  "0xa1ec7fc00a6f40db9693ad1415d0c193ad3906494428cf252621037bd7117e29::usdc::USDC",
		Name:     "USDC",
		Version:  "1",
		Decimals: evm.DefaultDecimals,
	},
}

type requirementConfig struct {
	network           string
	scheme            string
	description       string
	mimeType          string
	maxTimeoutSeconds int
	outputSchema      map[string]any
	asset             string
}

// RequirementOption customizes a payment requirement built from a price.
type RequirementOption func(*requirementConfig)

// WithNetwork selects the settlement network (default "base").
func WithNetwork(network string) RequirementOption {
	return func(c *requirementConfig) { c.network = network }
}

// WithScheme overrides the payment scheme (default "exact").
func WithScheme(scheme string) RequirementOption {
	return func(c *requirementConfig) { c.scheme = scheme }
}

// WithDescription sets the human-readable description.
func WithDescription(description string) RequirementOption {
	return func(c *requirementConfig) { c.description = description }
}

// WithMimeType sets the expected response content type (default
// "application/json").
func WithMimeType(mimeType string) RequirementOption {
	return func(c *requirementConfig) { c.mimeType = mimeType }
}

// WithMaxTimeoutSeconds sets the payment validity window (default 600).
func WithMaxTimeoutSeconds(seconds int) RequirementOption {
	return func(c *requirementConfig) { c.maxTimeoutSeconds = seconds }
}

// WithOutputSchema attaches a JSON Schema describing the paid response.
func WithOutputSchema(schema map[string]any) RequirementOption {
	return func(c *requirementConfig) { c.outputSchema = schema }
}

// WithAsset overrides the default asset for the network.
func WithAsset(asset string) RequirementOption {
	return func(c *requirementConfig) { c.asset = asset }
}

func newRequirementConfig(opts []RequirementOption) requirementConfig {
	config := requirementConfig{
		network:           "base",
		scheme:            SchemeExact,
		mimeType:          "application/json",
		maxTimeoutSeconds: 600,
	}
	for _, opt := range opts {
		opt(&config)
	}
	return config
}

// CreatePaymentRequirements builds the exact-scheme requirement for a
// human-level price: a USD string ("$1.50"), a numeric USD amount, or an
// explicit AssetAmount. The network resolves to its default USDC asset and
// EIP-712 domain; unknown networks fail with a ValidationError rather than
// defaulting.
func CreatePaymentRequirements(price Price, payTo, resource string, opts ...RequirementOption) (*PaymentRequirements, error) {
	if payTo == "" {
		return nil, NewValidationError("pay_to address is required")
	}

	config := newRequirementConfig(opts)
	if err := validateOutputSchema(config.outputSchema); err != nil {
		return nil, err
	}

	amount, asset, extra, err := priceToAtomicAmount(price, config.network)
	if err != nil {
		return nil, err
	}
	if config.asset != "" {
		asset = config.asset
	}

	return &PaymentRequirements{
		Scheme:            config.scheme,
		Network:           config.network,
		Asset:             asset,
		PayTo:             payTo,
		MaxAmountRequired: amount,
		Resource:          resource,
		Description:       config.description,
		MimeType:          config.mimeType,
		MaxTimeoutSeconds: config.maxTimeoutSeconds,
		OutputSchema:      config.outputSchema,
		Extra:             extra,
	}, nil
}

// CreateSparkPaymentRequirements builds a requirement for the Spark exact
// scheme. Spark settlement metadata is caller-supplied; the builder only
// checks that the receiver is present and the amount is a non-negative
// integer string.
func CreateSparkPaymentRequirements(amount, payTo, resource string, opts ...RequirementOption) (*PaymentRequirements, error) {
	if payTo == "" {
		return nil, NewValidationError("pay_to address is required")
	}
	if !isNonNegativeInteger(amount) {
		return nil, NewValidationError("spark amount must be a non-negative integer string, got %q", amount)
	}

	config := newRequirementConfig(opts)
	if err := validateOutputSchema(config.outputSchema); err != nil {
		return nil, err
	}

	return &PaymentRequirements{
		Scheme:            SchemeExact,
		Network:           NetworkSpark,
		Asset:             config.asset,
		PayTo:             payTo,
		MaxAmountRequired: amount,
		Resource:          resource,
		Description:       config.description,
		MimeType:          config.mimeType,
		MaxTimeoutSeconds: config.maxTimeoutSeconds,
		OutputSchema:      config.outputSchema,
	}, nil
}

// ServerConfig is the static description of how a merchant expects to be
// paid, convertible into requirements per request.
type ServerConfig struct {
	Price             Price
	PayToAddress      string
	Network           string
	Description       string
	MimeType          string
	MaxTimeoutSeconds int
	Resource          string
	Asset             string
}

// PaymentRequirements materializes the config for one resource request.
func (c ServerConfig) PaymentRequirements() (*PaymentRequirements, error) {
	opts := []RequirementOption{}
	if c.Network != "" {
		opts = append(opts, WithNetwork(c.Network))
	}
	if c.Description != "" {
		opts = append(opts, WithDescription(c.Description))
	}
	if c.MimeType != "" {
		opts = append(opts, WithMimeType(c.MimeType))
	}
	if c.MaxTimeoutSeconds > 0 {
		opts = append(opts, WithMaxTimeoutSeconds(c.MaxTimeoutSeconds))
	}
	if c.Asset != "" {
		opts = append(opts, WithAsset(c.Asset))
	}
	return CreatePaymentRequirements(c.Price, c.PayToAddress, c.Resource, opts...)
}

// priceToAtomicAmount converts a price to atomic units plus the network's
// default asset and scheme extra data.
func priceToAtomicAmount(price Price, network string) (amount, asset string, extra map[string]any, err error) {
	info, ok := defaultAssetInfo(network)
	if !ok {
		return "", "", nil, NewValidationError("unsupported network: %s", network)
	}

	if explicit, ok := price.(AssetAmount); ok {
		if !isNonNegativeInteger(explicit.Amount) {
			return "", "", nil, NewValidationError("token amount must be a non-negative integer string, got %q", explicit.Amount)
		}
		return explicit.Amount, explicit.Asset, explicit.Extra, nil
	}

	atomic, err := usdToAtomic(price, info.Decimals)
	if err != nil {
		return "", "", nil, err
	}

	if _, isEvm := evm.GetNetworkConfig(network); isEvm {
		extra = map[string]any{
			"name":    info.Name,
			"version": info.Version,
		}
	}
	return atomic, info.Address, extra, nil
}

func defaultAssetInfo(network string) (evm.AssetInfo, bool) {
	if config, ok := evm.GetNetworkConfig(network); ok {
		return config.DefaultAsset, true
	}
	info, ok := suiAssets[network]
	return info, ok
}

// usdToAtomic converts a USD price (string with optional "$", float, or
// int) into atomic units at the given decimal count.
func usdToAtomic(price Price, decimals int) (string, error) {
	var text string
	switch v := price.(type) {
	case string:
		text = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(v), "$"))
	case float64:
		text = big.NewFloat(v).Text('f', -1)
	case float32:
		text = big.NewFloat(float64(v)).Text('f', -1)
	case int:
		text = fmt.Sprintf("%d", v)
	case int64:
		text = fmt.Sprintf("%d", v)
	default:
		return "", NewValidationError("unsupported price type %T", price)
	}

	value, ok := new(big.Rat).SetString(text)
	if !ok {
		return "", NewValidationError("invalid price: %q", text)
	}
	if value.Sign() < 0 {
		return "", NewValidationError("price must not be negative: %q", text)
	}

	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	scaled := new(big.Rat).Mul(value, new(big.Rat).SetInt(scale))
	if !scaled.IsInt() {
		return "", NewValidationError("price %q has more than %d decimal places", text, decimals)
	}
	return scaled.Num().String(), nil
}

func isNonNegativeInteger(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// validateOutputSchema checks that a caller-supplied output schema is a
// compilable JSON Schema document.
func validateOutputSchema(schema map[string]any) error {
	if schema == nil {
		return nil
	}
	if _, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema)); err != nil {
		return NewValidationError("invalid output schema: %v", err)
	}
	return nil
}
