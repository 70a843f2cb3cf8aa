package x402a2a

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const exactEvmWire = `{
	"x402Version": 1,
	"scheme": "exact",
	"network": "base-sepolia",
	"payload": {
		"signature": "0x1111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111",
		"authorization": {
			"from": "0x857b06519E91e3A54538791bDbb0E22373e36b66",
			"to": "0x209693Bc6afc0C5328bA36FaF03C514EF312287C",
			"value": "1000000",
			"validAfter": "1700000000",
			"validBefore": "1700000600",
			"nonce": "0xf3746613c2d920b5fdabc0856f2aeb2d4f88ee6037b8cc5d04a71a4462f13480"
		}
	}
}`

func TestPaymentPayloadUnmarshalExactEvm(t *testing.T) {
	var payload PaymentPayload
	require.NoError(t, json.Unmarshal([]byte(exactEvmWire), &payload))

	assert.Equal(t, 1, payload.X402Version)
	assert.Equal(t, "exact", payload.Scheme)
	assert.Equal(t, "base-sepolia", payload.Network)

	evm := payload.ExactEvm()
	require.NotNil(t, evm)
	assert.Equal(t, "0x857b06519E91e3A54538791bDbb0E22373e36b66", evm.Authorization.From)
	assert.Equal(t, "1000000", evm.Authorization.Value)
	assert.Equal(t, "1700000000", evm.Authorization.ValidAfter)
	assert.Equal(t, "1700000600", evm.Authorization.ValidBefore)
	assert.Nil(t, payload.Spark())
	assert.Nil(t, payload.Cashu())
}

func TestPaymentPayloadRoundTripPreservesDecimalStrings(t *testing.T) {
	var payload PaymentPayload
	require.NoError(t, json.Unmarshal([]byte(exactEvmWire), &payload))

	encoded, err := json.Marshal(&payload)
	require.NoError(t, err)

	var reread PaymentPayload
	require.NoError(t, json.Unmarshal(encoded, &reread))
	assert.Equal(t, payload.ExactEvm().Authorization, reread.ExactEvm().Authorization)
	assert.Equal(t, payload.ExactEvm().Signature, reread.ExactEvm().Signature)
}

func TestPaymentPayloadUnmarshalSpark(t *testing.T) {
	wire := `{
		"x402Version": 1,
		"scheme": "exact",
		"network": "spark",
		"payload": {"paymentType": "LIGHTNING", "preimage": "00ff00ff"}
	}`
	var payload PaymentPayload
	require.NoError(t, json.Unmarshal([]byte(wire), &payload))

	spark := payload.Spark()
	require.NotNil(t, spark)
	assert.Equal(t, SparkPaymentTypeLightning, spark.PaymentType)
	assert.Equal(t, "00ff00ff", spark.Preimage)
	assert.Empty(t, spark.TransferID)
	assert.Empty(t, spark.Txid)
}

func TestPaymentPayloadUnmarshalCashu(t *testing.T) {
	wire := `{
		"x402Version": 1,
		"scheme": "cashu-token",
		"network": "bitcoin-testnet",
		"payload": {
			"tokens": [{"mint": "https://mint.example/", "proofs": [{"id": "0011", "amount": 5000, "secret": "s", "C": "c"}]}],
			"encoded": ["cashuBexample"],
			"payer": "payer-id"
		}
	}`
	var payload PaymentPayload
	require.NoError(t, json.Unmarshal([]byte(wire), &payload))

	cashu := payload.Cashu()
	require.NotNil(t, cashu)
	require.Len(t, cashu.Tokens, 1)
	assert.Equal(t, "https://mint.example/", cashu.Tokens[0].Mint)
	assert.Equal(t, int64(5000), cashu.Tokens[0].Proofs[0].Amount)
	assert.Equal(t, "payer-id", cashu.Payer)
	assert.NoError(t, cashu.Validate())
}

func TestPaymentPayloadUnmarshalUnknownSchemeKeepsRawMap(t *testing.T) {
	wire := `{"x402Version": 1, "scheme": "upto", "network": "base", "payload": {"anything": true}}`
	var payload PaymentPayload
	require.NoError(t, json.Unmarshal([]byte(wire), &payload))

	raw, ok := payload.Payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, raw["anything"])
}

func TestSparkPayloadValidate(t *testing.T) {
	tests := []struct {
		name    string
		payload SparkPaymentPayload
		wantErr bool
	}{
		{"spark with transfer id", SparkPaymentPayload{PaymentType: SparkPaymentTypeSpark, TransferID: "t-1"}, false},
		{"lightning with preimage", SparkPaymentPayload{PaymentType: SparkPaymentTypeLightning, Preimage: "00ff"}, false},
		{"l1 with txid", SparkPaymentPayload{PaymentType: SparkPaymentTypeL1, Txid: "deadbeef"}, false},
		{"spark missing transfer id", SparkPaymentPayload{PaymentType: SparkPaymentTypeSpark, Preimage: "00ff"}, true},
		{"lightning missing preimage", SparkPaymentPayload{PaymentType: SparkPaymentTypeLightning, Txid: "deadbeef"}, true},
		{"two identifiers", SparkPaymentPayload{PaymentType: SparkPaymentTypeSpark, TransferID: "t-1", Txid: "deadbeef"}, true},
		{"no identifier", SparkPaymentPayload{PaymentType: SparkPaymentTypeL1}, true},
		{"unknown transport", SparkPaymentPayload{PaymentType: "UNKNOWN", TransferID: "t-1"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.payload.Validate()
			if tt.wantErr {
				var validationErr *ValidationError
				require.ErrorAs(t, err, &validationErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePaymentPayloadRejectsUnknownVersion(t *testing.T) {
	payload := &PaymentPayload{
		X402Version: 2,
		Scheme:      SchemeExact,
		Network:     "base",
		Payload:     &ExactEvmPayload{Signature: "0xabc"},
	}
	err := ValidatePaymentPayload(payload)
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, ErrorCodeInvalidAmount, validationErr.Code)
	assert.Equal(t, ErrorCodeInvalidAmount, MapErrorToCode(err))
}

func TestValidatePaymentPayloadRequiresSignature(t *testing.T) {
	payload := &PaymentPayload{
		X402Version: 1,
		Scheme:      SchemeExact,
		Network:     "base",
		Payload:     &ExactEvmPayload{},
	}
	var validationErr *ValidationError
	require.ErrorAs(t, ValidatePaymentPayload(payload), &validationErr)
}

func TestValidatePaymentRequirements(t *testing.T) {
	valid := PaymentRequirements{
		Scheme:            SchemeExact,
		Network:           "base",
		PayTo:             "0x209693Bc6afc0C5328bA36FaF03C514EF312287C",
		MaxAmountRequired: "1000000",
	}
	assert.NoError(t, ValidatePaymentRequirements(&valid))

	var validationErr *ValidationError
	missing := valid
	missing.PayTo = ""
	require.ErrorAs(t, ValidatePaymentRequirements(&missing), &validationErr)

	missing = valid
	missing.MaxAmountRequired = ""
	require.ErrorAs(t, ValidatePaymentRequirements(&missing), &validationErr)

	require.ErrorAs(t, ValidatePaymentRequirements(nil), &validationErr)
}

func TestCashuPayloadValidateLengthMismatch(t *testing.T) {
	payload := &CashuPaymentPayload{
		Tokens:  []CashuToken{{Mint: "https://mint.example/"}},
		Encoded: []string{"a", "b"},
	}
	var validationErr *ValidationError
	require.ErrorAs(t, payload.Validate(), &validationErr)
}
