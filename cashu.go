package x402a2a

import "strconv"

// defaultCashuMints maps bitcoin networks to the mint used when the caller
// supplies none.
var defaultCashuMints = map[string]string{
	"bitcoin-testnet": "https://nofees.testnut.cashu.space/",
	"bitcoin-mainnet": "https://mint.minibits.cash/Bitcoin",
}

// CashuConfig carries the Cashu-specific knobs of a requirement. Zero
// values fall back to sensible defaults; MintURLs falls back to the
// network's default mint.
type CashuConfig struct {
	Network           string
	MintURLs          []string
	FacilitatorURL    string
	KeysetIDs         []string
	Unit              string
	Locks             map[string]any
	Description       string
	MimeType          string
	MaxTimeoutSeconds int
	OutputSchema      map[string]any
	Asset             string
}

// CreateCashuPaymentRequirements builds a cashu-token requirement. The price
// must be a whole number of satoshis (string or integer); fractional values
// are rejected. At least one mint URL must be available, either explicitly
// or as the network default.
func CreateCashuPaymentRequirements(price Price, payTo, resource string, config CashuConfig) (*PaymentRequirements, error) {
	if payTo == "" {
		return nil, NewValidationError("pay_to address is required")
	}

	network := config.Network
	if network == "" {
		network = "bitcoin-mainnet"
	}

	mints := config.MintURLs
	if len(mints) == 0 {
		if defaultMint, ok := defaultCashuMints[network]; ok {
			mints = []string{defaultMint}
		}
	}
	if len(mints) == 0 {
		return nil, NewValidationError("a mint URL must be provided for cashu-token when network %q has no default mint", network)
	}

	amount, err := satoshiAmount(price)
	if err != nil {
		return nil, err
	}

	if err := validateOutputSchema(config.OutputSchema); err != nil {
		return nil, err
	}

	unit := config.Unit
	if unit == "" {
		unit = "sat"
	}

	extra := map[string]any{
		"mints": mints,
		"unit":  unit,
	}
	if config.FacilitatorURL != "" {
		extra["facilitatorUrl"] = config.FacilitatorURL
	}
	if len(config.KeysetIDs) > 0 {
		extra["keysetIds"] = config.KeysetIDs
	}
	if config.Locks != nil {
		extra["nut10"] = config.Locks
	}

	mimeType := config.MimeType
	if mimeType == "" {
		mimeType = "application/json"
	}
	maxTimeout := config.MaxTimeoutSeconds
	if maxTimeout == 0 {
		maxTimeout = 600
	}

	return &PaymentRequirements{
		Scheme:            SchemeCashuToken,
		Network:           network,
		Asset:             config.Asset,
		PayTo:             payTo,
		MaxAmountRequired: amount,
		Resource:          resource,
		Description:       config.Description,
		MimeType:          mimeType,
		MaxTimeoutSeconds: maxTimeout,
		OutputSchema:      config.OutputSchema,
		Extra:             extra,
	}, nil
}

// ProcessCashuPayment wraps a caller-supplied ecash bundle into a payment
// payload, after checking that every token's mint is accepted by the
// requirements and the encoded forms align with the structured tokens. The
// facilitator is never contacted.
func ProcessCashuPayment(requirements *PaymentRequirements, cashuPayload *CashuPaymentPayload) (*PaymentPayload, error) {
	if requirements == nil || requirements.Scheme != SchemeCashuToken {
		return nil, NewValidationError("ProcessCashuPayment expects cashu-token requirements")
	}
	if cashuPayload == nil {
		return nil, NewValidationError("cashu payload must be provided when processing cashu-token payments")
	}
	if err := cashuPayload.Validate(); err != nil {
		return nil, err
	}

	accepted := acceptedMints(requirements)
	if len(accepted) > 0 {
		for _, token := range cashuPayload.Tokens {
			if !accepted[token.Mint] {
				return nil, NewValidationError("cashu payload contains mint not accepted by the payment requirements: %s", token.Mint)
			}
		}
	}

	return &PaymentPayload{
		X402Version: X402Version,
		Scheme:      requirements.Scheme,
		Network:     requirements.Network,
		Payload:     cashuPayload,
	}, nil
}

func acceptedMints(requirements *PaymentRequirements) map[string]bool {
	accepted := map[string]bool{}
	raw, ok := requirements.Extra["mints"]
	if !ok {
		return accepted
	}
	switch mints := raw.(type) {
	case []string:
		for _, m := range mints {
			accepted[m] = true
		}
	case []any:
		for _, m := range mints {
			if s, ok := m.(string); ok {
				accepted[s] = true
			}
		}
	}
	return accepted
}

// satoshiAmount coerces a cashu price to a whole satoshi count.
func satoshiAmount(price Price) (string, error) {
	switch v := price.(type) {
	case string:
		if !isNonNegativeInteger(v) {
			return "", NewValidationError("cashu-token price string must be an integer, got %q", v)
		}
		return v, nil
	case int:
		if v < 0 {
			return "", NewValidationError("cashu-token price must not be negative")
		}
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		if v < 0 {
			return "", NewValidationError("cashu-token price must not be negative")
		}
		return strconv.FormatInt(v, 10), nil
	case float64:
		if v < 0 {
			return "", NewValidationError("cashu-token price must not be negative")
		}
		if v != float64(int64(v)) {
			return "", NewValidationError("cashu-token price must be a whole number of satoshis")
		}
		return strconv.FormatInt(int64(v), 10), nil
	case AssetAmount:
		return "", NewValidationError("cashu-token scheme expects a numeric price, not a token amount")
	default:
		return "", NewValidationError("unsupported price type %T for cashu-token scheme", price)
	}
}
