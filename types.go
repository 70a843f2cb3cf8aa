package x402a2a

import (
	"encoding/json"
	"fmt"
)

// X402Version is the protocol version this engine speaks. Payloads carrying
// any other version are rejected before verification.
const X402Version = 1

// Scheme identifiers enumerated by the engine.
const (
	SchemeExact      = "exact"
	SchemeCashuToken = "cashu-token"
)

// NetworkSpark is the network identifier for the Spark exact scheme.
const NetworkSpark = "spark"

// Price is a human-level price: a USD string ("$1.50"), a numeric USD
// amount (float64 or int), or an explicit AssetAmount.
type Price interface{}

// AssetAmount is an explicit amount of a specific asset in atomic units.
type AssetAmount struct {
	Asset  string         `json:"asset"`
	Amount string         `json:"amount"`
	Extra  map[string]any `json:"extra,omitempty"`
}

// PaymentRequirements is a merchant's offer: what payment it will accept
// for a resource.
type PaymentRequirements struct {
	Scheme            string         `json:"scheme"`
	Network           string         `json:"network"`
	Asset             string         `json:"asset,omitempty"`
	PayTo             string         `json:"payTo"`
	MaxAmountRequired string         `json:"maxAmountRequired"`
	Resource          string         `json:"resource"`
	Description       string         `json:"description,omitempty"`
	MimeType          string         `json:"mimeType,omitempty"`
	MaxTimeoutSeconds int            `json:"maxTimeoutSeconds,omitempty"`
	OutputSchema      map[string]any `json:"outputSchema,omitempty"`
	Extra             map[string]any `json:"extra,omitempty"`
}

// PaymentRequired is the payment-required response carried in task metadata:
// an ordered, non-empty list of alternatives the client selects from.
type PaymentRequired struct {
	X402Version int                   `json:"x402Version"`
	Accepts     []PaymentRequirements `json:"accepts"`
	Error       string                `json:"error,omitempty"`
}

// EIP3009Authorization is the TransferWithAuthorization message of EIP-3009.
// Numeric values travel as decimal strings; the nonce is 32 bytes of hex.
type EIP3009Authorization struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	ValidAfter  string `json:"validAfter"`
	ValidBefore string `json:"validBefore"`
	Nonce       string `json:"nonce"`
}

// ExactEvmPayload is the signed payload for the exact scheme on EVM
// networks: a 65-byte EIP-712 signature over the authorization.
type ExactEvmPayload struct {
	Signature     string               `json:"signature"`
	Authorization EIP3009Authorization `json:"authorization"`
}

// SparkPaymentType enumerates the transports of the Spark exact scheme.
type SparkPaymentType string

const (
	SparkPaymentTypeSpark     SparkPaymentType = "SPARK"
	SparkPaymentTypeLightning SparkPaymentType = "LIGHTNING"
	SparkPaymentTypeL1        SparkPaymentType = "L1"
)

// SparkPaymentPayload references an externally completed Spark transfer.
// Each transport requires exactly one identifier: SPARK a transfer id,
// LIGHTNING a preimage, L1 a txid.
type SparkPaymentPayload struct {
	PaymentType SparkPaymentType `json:"paymentType"`
	TransferID  string           `json:"transfer_id,omitempty"`
	Preimage    string           `json:"preimage,omitempty"`
	Txid        string           `json:"txid,omitempty"`
}

// Validate enforces the transport-specific identifier contract: the
// identifier selected by PaymentType must be set, the other two must not.
func (p *SparkPaymentPayload) Validate() error {
	set := 0
	for _, v := range []string{p.TransferID, p.Preimage, p.Txid} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		return NewValidationError("spark payload must carry exactly one settlement identifier")
	}
	switch p.PaymentType {
	case SparkPaymentTypeSpark:
		if p.TransferID == "" {
			return NewValidationError("transfer_id is required when paymentType is SPARK")
		}
	case SparkPaymentTypeLightning:
		if p.Preimage == "" {
			return NewValidationError("preimage is required when paymentType is LIGHTNING")
		}
	case SparkPaymentTypeL1:
		if p.Txid == "" {
			return NewValidationError("txid is required when paymentType is L1")
		}
	default:
		return NewValidationError("unknown spark paymentType: %s", p.PaymentType)
	}
	return nil
}

// CashuProof is a single blind-signed proof inside a Cashu token.
type CashuProof struct {
	ID     string `json:"id"`
	Amount int64  `json:"amount"`
	Secret string `json:"secret"`
	C      string `json:"C"`
}

// CashuToken is a bundle of proofs issued by one mint.
type CashuToken struct {
	Mint   string       `json:"mint"`
	Proofs []CashuProof `json:"proofs"`
	Unit   string       `json:"unit,omitempty"`
}

// CashuPaymentPayload carries ecash evidence: structured tokens plus their
// serialized forms, aligned index for index.
type CashuPaymentPayload struct {
	Tokens  []CashuToken   `json:"tokens"`
	Encoded []string       `json:"encoded"`
	Memo    string         `json:"memo,omitempty"`
	Unit    string         `json:"unit,omitempty"`
	Locks   map[string]any `json:"locks,omitempty"`
	Payer   string         `json:"payer,omitempty"`
	Expiry  int64          `json:"expiry,omitempty"`
}

// Validate checks the structural invariant shared by all Cashu payloads.
func (p *CashuPaymentPayload) Validate() error {
	if len(p.Tokens) == 0 {
		return NewValidationError("cashu payload must carry at least one token")
	}
	if len(p.Encoded) != len(p.Tokens) {
		return NewValidationError("cashu payload encoded tokens must align with provided token entries")
	}
	return nil
}

// PaymentPayload is a client's signed authorization. The inner Payload is a
// tagged union selected by (scheme, network): *ExactEvmPayload,
// *SparkPaymentPayload, or *CashuPaymentPayload. Unrecognized combinations
// round-trip as map[string]any.
type PaymentPayload struct {
	X402Version int    `json:"x402Version"`
	Scheme      string `json:"scheme"`
	Network     string `json:"network"`
	Payload     any    `json:"payload"`
}

// UnmarshalJSON decodes the payload variant selected by (scheme, network).
func (p *PaymentPayload) UnmarshalJSON(data []byte) error {
	var envelope struct {
		X402Version int             `json:"x402Version"`
		Scheme      string          `json:"scheme"`
		Network     string          `json:"network"`
		Payload     json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return err
	}
	p.X402Version = envelope.X402Version
	p.Scheme = envelope.Scheme
	p.Network = envelope.Network
	if len(envelope.Payload) == 0 || string(envelope.Payload) == "null" {
		p.Payload = nil
		return nil
	}

	switch {
	case envelope.Scheme == SchemeExact && envelope.Network == NetworkSpark:
		var spark SparkPaymentPayload
		if err := json.Unmarshal(envelope.Payload, &spark); err != nil {
			return fmt.Errorf("invalid spark payload: %w", err)
		}
		p.Payload = &spark
	case envelope.Scheme == SchemeCashuToken:
		var cashu CashuPaymentPayload
		if err := json.Unmarshal(envelope.Payload, &cashu); err != nil {
			return fmt.Errorf("invalid cashu payload: %w", err)
		}
		p.Payload = &cashu
	case envelope.Scheme == SchemeExact:
		var evm ExactEvmPayload
		if err := json.Unmarshal(envelope.Payload, &evm); err != nil {
			return fmt.Errorf("invalid exact evm payload: %w", err)
		}
		p.Payload = &evm
	default:
		var raw map[string]any
		if err := json.Unmarshal(envelope.Payload, &raw); err != nil {
			return fmt.Errorf("invalid payment payload: %w", err)
		}
		p.Payload = raw
	}
	return nil
}

// ExactEvm returns the typed EVM payload, or nil when the payload is a
// different variant.
func (p *PaymentPayload) ExactEvm() *ExactEvmPayload {
	evm, _ := p.Payload.(*ExactEvmPayload)
	return evm
}

// Spark returns the typed Spark payload, or nil.
func (p *PaymentPayload) Spark() *SparkPaymentPayload {
	spark, _ := p.Payload.(*SparkPaymentPayload)
	return spark
}

// Cashu returns the typed Cashu payload, or nil.
func (p *PaymentPayload) Cashu() *CashuPaymentPayload {
	cashu, _ := p.Payload.(*CashuPaymentPayload)
	return cashu
}

// VerifyResponse is a facilitator's answer to a verification request.
type VerifyResponse struct {
	IsValid       bool   `json:"isValid"`
	InvalidReason string `json:"invalidReason,omitempty"`
	Payer         string `json:"payer,omitempty"`
}

// SettleResponse is a facilitator's answer to a settlement request.
// Serialized copies accumulate on the task as receipts.
type SettleResponse struct {
	Success     bool   `json:"success"`
	ErrorReason string `json:"errorReason,omitempty"`
	Transaction string `json:"transaction,omitempty"`
	Network     string `json:"network"`
	Payer       string `json:"payer,omitempty"`
}

// ValidatePaymentPayload performs structural validation on a payment payload
// before it is handed to a facilitator.
func ValidatePaymentPayload(p *PaymentPayload) error {
	if p == nil {
		return NewValidationError("payment payload is required")
	}
	if p.X402Version != X402Version {
		return newValidationErrorWithCode(ErrorCodeInvalidAmount, "unsupported x402 version: %d", p.X402Version)
	}
	if p.Scheme == "" {
		return NewValidationError("payment scheme is required")
	}
	if p.Network == "" {
		return NewValidationError("payment network is required")
	}
	switch payload := p.Payload.(type) {
	case *SparkPaymentPayload:
		return payload.Validate()
	case *CashuPaymentPayload:
		return payload.Validate()
	case *ExactEvmPayload:
		if payload.Signature == "" {
			return NewValidationError("exact evm payload is missing its signature")
		}
		return nil
	case nil:
		return NewValidationError("payment payload body is required")
	default:
		return nil
	}
}

// ValidatePaymentRequirements performs basic validation on a merchant offer.
func ValidatePaymentRequirements(r *PaymentRequirements) error {
	if r == nil {
		return NewValidationError("payment requirements are required")
	}
	if r.Scheme == "" {
		return NewValidationError("payment scheme is required")
	}
	if r.Network == "" {
		return NewValidationError("payment network is required")
	}
	if r.PayTo == "" {
		return NewValidationError("payment recipient is required")
	}
	if r.MaxAmountRequired == "" {
		return NewValidationError("payment amount is required")
	}
	return nil
}

// toMetadataMap serializes a value into the plain map form task and message
// metadata carry on the wire.
func toMetadataMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize metadata value: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to reshape metadata value: %w", err)
	}
	return out, nil
}

// fromMetadataValue deserializes a metadata value back into a typed object.
func fromMetadataValue(raw any, v any) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to reserialize metadata value: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode metadata value: %w", err)
	}
	return nil
}
