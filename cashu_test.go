package x402a2a

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testnetMint = "https://nofees.testnut.cashu.space/"

func buildCashuRequirement(t *testing.T, price Price) *PaymentRequirements {
	t.Helper()
	requirements, err := CreateCashuPaymentRequirements(price, "cashu-merchant", "/cashu", CashuConfig{
		Network:  "bitcoin-testnet",
		MintURLs: []string{testnetMint},
	})
	require.NoError(t, err)
	return requirements
}

func cashuTestPayload(mint string) *CashuPaymentPayload {
	return &CashuPaymentPayload{
		Tokens: []CashuToken{{
			Mint: mint,
			Proofs: []CashuProof{{
				ID:     "001122aabbccdd",
				Amount: 5000,
				Secret: "secret",
				C:      "abcdef1234567890abcdef1234567890abcdef1234567890abcdef1234567890",
			}},
		}},
		Encoded: []string{"cashuBexample"},
		Payer:   "payer-id",
	}
}

func TestCreateCashuPaymentRequirements(t *testing.T) {
	requirements := buildCashuRequirement(t, "5000")

	assert.Equal(t, SchemeCashuToken, requirements.Scheme)
	assert.Equal(t, "bitcoin-testnet", requirements.Network)
	assert.Equal(t, "5000", requirements.MaxAmountRequired)
	assert.Equal(t, []string{testnetMint}, requirements.Extra["mints"])
	assert.Equal(t, "sat", requirements.Extra["unit"])
}

func TestCreateCashuPaymentRequirementsDefaultsMintPerNetwork(t *testing.T) {
	requirements, err := CreateCashuPaymentRequirements(1000, "cashu-merchant", "/cashu", CashuConfig{Network: "bitcoin-testnet"})
	require.NoError(t, err)
	assert.Equal(t, []string{testnetMint}, requirements.Extra["mints"])
}

func TestCreateCashuPaymentRequirementsNoMintForNetwork(t *testing.T) {
	_, err := CreateCashuPaymentRequirements(1000, "cashu-merchant", "/cashu", CashuConfig{Network: "bitcoin-regtest"})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestCreateCashuPaymentRequirementsPriceValidation(t *testing.T) {
	var validationErr *ValidationError

	_, err := CreateCashuPaymentRequirements(10.5, "cashu-merchant", "/cashu", CashuConfig{Network: "bitcoin-testnet"})
	require.ErrorAs(t, err, &validationErr)

	_, err = CreateCashuPaymentRequirements("10.5", "cashu-merchant", "/cashu", CashuConfig{Network: "bitcoin-testnet"})
	require.ErrorAs(t, err, &validationErr)

	_, err = CreateCashuPaymentRequirements(AssetAmount{Asset: "sat", Amount: "10"}, "cashu-merchant", "/cashu", CashuConfig{Network: "bitcoin-testnet"})
	require.ErrorAs(t, err, &validationErr)

	requirements, err := CreateCashuPaymentRequirements(6000, "cashu-merchant", "/cashu", CashuConfig{Network: "bitcoin-testnet"})
	require.NoError(t, err)
	assert.Equal(t, "6000", requirements.MaxAmountRequired)
}

func TestCreateCashuPaymentRequirementsExtras(t *testing.T) {
	requirements, err := CreateCashuPaymentRequirements("5000", "cashu-merchant", "/cashu", CashuConfig{
		Network:        "bitcoin-testnet",
		FacilitatorURL: "https://facilitator.example",
		KeysetIDs:      []string{"keyset-1"},
		Locks:          map[string]any{"kind": "P2PK"},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://facilitator.example", requirements.Extra["facilitatorUrl"])
	assert.Equal(t, []string{"keyset-1"}, requirements.Extra["keysetIds"])
	assert.Equal(t, map[string]any{"kind": "P2PK"}, requirements.Extra["nut10"])
}

func TestProcessCashuPayment(t *testing.T) {
	requirements := buildCashuRequirement(t, "5000")

	payload, err := ProcessCashuPayment(requirements, cashuTestPayload(testnetMint))
	require.NoError(t, err)

	assert.Equal(t, SchemeCashuToken, payload.Scheme)
	assert.Equal(t, "bitcoin-testnet", payload.Network)
	cashu := payload.Cashu()
	require.NotNil(t, cashu)
	assert.Equal(t, testnetMint, cashu.Tokens[0].Mint)
}

func TestProcessCashuPaymentMintMismatch(t *testing.T) {
	requirements := buildCashuRequirement(t, "5000")

	_, err := ProcessCashuPayment(requirements, cashuTestPayload("https://mint.minibits.cash/Bitcoin"))
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, err.Error(), "mint.minibits.cash")
}

func TestProcessCashuPaymentEncodedMismatch(t *testing.T) {
	requirements := buildCashuRequirement(t, "5000")
	payload := cashuTestPayload(testnetMint)
	payload.Encoded = []string{"one", "two"}

	var validationErr *ValidationError
	_, err := ProcessCashuPayment(requirements, payload)
	require.ErrorAs(t, err, &validationErr)
}

func TestProcessCashuPaymentRequiresPayload(t *testing.T) {
	requirements := buildCashuRequirement(t, "5000")

	var validationErr *ValidationError
	_, err := ProcessCashuPayment(requirements, nil)
	require.ErrorAs(t, err, &validationErr)

	_, err = ProcessCashuPayment(&PaymentRequirements{Scheme: SchemeExact}, cashuTestPayload(testnetMint))
	require.ErrorAs(t, err, &validationErr)
}
