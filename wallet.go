package x402a2a

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"strconv"
	"time"

	"github.com/google-agentic-commerce/a2a-x402/go/mechanisms/evm"
)

// ProcessPayment signs an exact-EVM payment for a single requirement.
//
// The authorization window opens sixty seconds in the past to absorb clock
// skew and closes after the requirement's timeout. A fresh 32-byte nonce
// makes every authorization single-use; the facilitator rejects duplicates.
//
// maxValue, when non-nil, is the client's budget in atomic units; a
// requirement above it fails with a ValidationError before anything is
// signed. Spark and Cashu requirements are refused here and must go through
// their transport-specific helpers.
func ProcessPayment(ctx context.Context, requirements *PaymentRequirements, signer evm.Signer, maxValue *big.Int) (*PaymentPayload, error) {
	if requirements == nil {
		return nil, NewValidationError("payment requirements are required")
	}
	if requirements.Network == NetworkSpark || requirements.Scheme == SchemeCashuToken {
		return nil, &ExternalSettlementError{Scheme: requirements.Scheme, Network: requirements.Network}
	}
	if requirements.Scheme != SchemeExact {
		return nil, NewValidationError("unsupported payment scheme: %s", requirements.Scheme)
	}

	value, ok := new(big.Int).SetString(requirements.MaxAmountRequired, 10)
	if !ok {
		return nil, NewValidationError("invalid payment amount: %q", requirements.MaxAmountRequired)
	}
	if maxValue != nil && value.Cmp(maxValue) > 0 {
		return nil, newValidationErrorWithCode(ErrorCodeInvalidAmount,
			"payment amount %s exceeds the configured maximum %s", value, maxValue)
	}

	config, ok := evm.GetNetworkConfig(requirements.Network)
	if !ok {
		return nil, NewValidationError("unsupported network: %s", requirements.Network)
	}

	asset := requirements.Asset
	if asset == "" {
		asset = config.DefaultAsset.Address
	}
	tokenName := config.DefaultAsset.Name
	tokenVersion := config.DefaultAsset.Version
	if name, ok := requirements.Extra["name"].(string); ok {
		tokenName = name
	}
	if version, ok := requirements.Extra["version"].(string); ok {
		tokenVersion = version
	}

	timeout := requirements.MaxTimeoutSeconds
	if timeout <= 0 {
		timeout = evm.DefaultValidityPeriod
	}
	now := time.Now().Unix()

	nonce, err := evm.NewNonce()
	if err != nil {
		return nil, NewPaymentError("failed to generate nonce: %v", err)
	}

	authorization := evm.Authorization{
		From:        signer.Address(),
		To:          requirements.PayTo,
		Value:       value.String(),
		ValidAfter:  strconv.FormatInt(now-evm.ValidAfterBuffer, 10),
		ValidBefore: strconv.FormatInt(now+int64(timeout), 10),
		Nonce:       nonce,
	}

	signature, err := evm.SignAuthorization(ctx, signer, authorization, config.ChainID, asset, tokenName, tokenVersion)
	if err != nil {
		return nil, NewPaymentError("failed to sign payment: %v", err)
	}

	return &PaymentPayload{
		X402Version: X402Version,
		Scheme:      requirements.Scheme,
		Network:     requirements.Network,
		Payload: &ExactEvmPayload{
			Signature: signature,
			Authorization: EIP3009Authorization{
				From:        authorization.From,
				To:          authorization.To,
				Value:       authorization.Value,
				ValidAfter:  authorization.ValidAfter,
				ValidBefore: authorization.ValidBefore,
				Nonce:       authorization.Nonce,
			},
		},
	}, nil
}

// SelectPaymentRequirements picks one requirement from a merchant's
// alternatives: requirements within the budget first, then the
// scheme/network the signer can actually sign for, ties broken by list
// order. A budget that excludes every alternative is a ValidationError.
func SelectPaymentRequirements(accepts []PaymentRequirements, maxValue *big.Int) (*PaymentRequirements, error) {
	if len(accepts) == 0 {
		return nil, NewValidationError("payment required response carries no payment requirements")
	}

	candidates := make([]*PaymentRequirements, 0, len(accepts))
	for i := range accepts {
		requirement := &accepts[i]
		if maxValue != nil {
			value, ok := new(big.Int).SetString(requirement.MaxAmountRequired, 10)
			if !ok || value.Cmp(maxValue) > 0 {
				continue
			}
		}
		candidates = append(candidates, requirement)
	}
	if len(candidates) == 0 {
		return nil, newValidationErrorWithCode(ErrorCodeInvalidAmount,
			"no payment requirement fits within the configured maximum %s", maxValue)
	}

	for _, requirement := range candidates {
		if requirement.Scheme == SchemeExact && evm.IsValidNetwork(requirement.Network) {
			return requirement, nil
		}
	}
	return candidates[0], nil
}

// ProcessPaymentRequired selects one requirement from the merchant's
// response and signs it. When selection lands on a Spark or Cashu
// requirement the call fails with an ExternalSettlementError: those schemes
// settle out of band, and the engine will not fabricate settlement evidence.
func ProcessPaymentRequired(ctx context.Context, required *PaymentRequired, signer evm.Signer, maxValue *big.Int) (*PaymentPayload, error) {
	if required == nil {
		return nil, NewValidationError("payment required response is missing")
	}
	selected, err := SelectPaymentRequirements(required.Accepts, maxValue)
	if err != nil {
		return nil, err
	}
	if selected.Network == NetworkSpark || selected.Scheme == SchemeCashuToken {
		return nil, &ExternalSettlementError{Scheme: selected.Scheme, Network: selected.Network}
	}
	return ProcessPayment(ctx, selected, signer, maxValue)
}

// SparkOption sets the settlement identifier of a Spark payload.
type SparkOption func(*SparkPaymentPayload)

// WithTransferID sets the Spark network transfer id (paymentType SPARK).
func WithTransferID(transferID string) SparkOption {
	return func(p *SparkPaymentPayload) { p.TransferID = transferID }
}

// WithPreimage sets the Lightning preimage proof (paymentType LIGHTNING).
func WithPreimage(preimage string) SparkOption {
	return func(p *SparkPaymentPayload) { p.Preimage = preimage }
}

// WithTxid sets the Bitcoin L1 transaction id (paymentType L1).
func WithTxid(txid string) SparkOption {
	return func(p *SparkPaymentPayload) { p.Txid = txid }
}

// CreateSparkPaymentPayload builds a Spark payment payload referencing an
// externally completed transfer, enforcing the transport-specific required
// identifier.
func CreateSparkPaymentPayload(paymentType SparkPaymentType, opts ...SparkOption) (*PaymentPayload, error) {
	spark := &SparkPaymentPayload{PaymentType: paymentType}
	for _, opt := range opts {
		opt(spark)
	}
	if err := spark.Validate(); err != nil {
		return nil, err
	}
	return &PaymentPayload{
		X402Version: X402Version,
		Scheme:      SchemeExact,
		Network:     NetworkSpark,
		Payload:     spark,
	}, nil
}

// GetSparkPaymentPayload returns the structured Spark payload of a
// spark-network payment payload.
func GetSparkPaymentPayload(payload *PaymentPayload) (*SparkPaymentPayload, error) {
	if payload == nil || payload.Network != NetworkSpark {
		return nil, NewValidationError("payment payload is not targeting the spark network")
	}
	if spark := payload.Spark(); spark != nil {
		return spark, nil
	}
	raw, ok := payload.Payload.(map[string]any)
	if !ok {
		return nil, NewValidationError("unsupported spark payload type %T", payload.Payload)
	}
	var spark SparkPaymentPayload
	if err := fromMetadataValue(raw, &spark); err != nil {
		return nil, NewValidationError("malformed spark payload: %v", err)
	}
	if err := spark.Validate(); err != nil {
		return nil, err
	}
	return &spark, nil
}

// EncodeSparkPaymentHeader encodes a Spark payment payload for the
// X-PAYMENT HTTP header: canonical JSON with sorted keys, base64-encoded.
func EncodeSparkPaymentHeader(payload *PaymentPayload) (string, error) {
	spark, err := GetSparkPaymentPayload(payload)
	if err != nil {
		return "", err
	}

	sparkMap, err := toMetadataMap(spark)
	if err != nil {
		return "", NewMessageError("failed to serialize spark payload: %v", err)
	}
	headerDoc := map[string]any{
		"x402Version": payload.X402Version,
		"scheme":      payload.Scheme,
		"network":     payload.Network,
		"payload":     sparkMap,
	}

	// encoding/json writes map keys in sorted order, which is exactly the
	// canonical form the header requires.
	headerJSON, err := json.Marshal(headerDoc)
	if err != nil {
		return "", NewMessageError("failed to encode payment header: %v", err)
	}
	return base64.StdEncoding.EncodeToString(headerJSON), nil
}

// DecodeSparkPaymentHeader decodes an X-PAYMENT header back into a Spark
// payment payload.
func DecodeSparkPaymentHeader(header string) (*PaymentPayload, error) {
	decoded, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return nil, NewValidationError("invalid base64 encoding in X-PAYMENT header: %v", err)
	}

	var payload PaymentPayload
	if err := json.Unmarshal(decoded, &payload); err != nil {
		return nil, NewValidationError("decoded X-PAYMENT header is not a valid payment payload: %v", err)
	}
	if payload.Network != NetworkSpark {
		return nil, NewValidationError("decoded payload is not targeting the spark network")
	}
	if payload.X402Version == 0 {
		payload.X402Version = X402Version
	}
	if payload.Scheme == "" {
		payload.Scheme = SchemeExact
	}

	spark := payload.Spark()
	if spark == nil {
		return nil, NewValidationError("decoded X-PAYMENT header carries no spark payload")
	}
	if err := spark.Validate(); err != nil {
		return nil, err
	}
	return &payload, nil
}

// DumpPaymentPayload serializes a payment payload into the plain map form
// task and message metadata carry, preserving the Spark paymentType string
// and every decimal-string numeric field byte for byte.
func DumpPaymentPayload(payload *PaymentPayload) (map[string]any, error) {
	if payload == nil {
		return nil, NewValidationError("payment payload is required")
	}
	return toMetadataMap(payload)
}
