package x402a2a

import (
	"context"
	"time"
)

// FacilitatorClient is the capability the engine delegates verification and
// settlement to. Implementations target different chains, facilitator
// services, or mock networks; both calls may block on the network, and
// Settle may take tens of seconds for on-chain confirmation.
type FacilitatorClient interface {
	Verify(ctx context.Context, payload *PaymentPayload, requirements *PaymentRequirements) (*VerifyResponse, error)
	Settle(ctx context.Context, payload *PaymentPayload, requirements *PaymentRequirements) (*SettleResponse, error)
}

// DefaultVerifyTimeout bounds a single facilitator verification call.
const DefaultVerifyTimeout = 15 * time.Second

// VerifyPayment checks a payment authorization against its requirements via
// the facilitator, under the default verification timeout.
func VerifyPayment(ctx context.Context, facilitator FacilitatorClient, payload *PaymentPayload, requirements *PaymentRequirements) (*VerifyResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultVerifyTimeout)
	defer cancel()

	resp, err := facilitator.Verify(ctx, payload, requirements)
	if err != nil {
		return nil, NewPaymentError("verification failed: %v", err)
	}
	return resp, nil
}

// SettlePayment executes the payment via the facilitator. Network errors are
// normalized into an unsuccessful SettleResponse; the engine never retries,
// and the facilitator's duplicate-nonce rejection guards resubmission.
func SettlePayment(ctx context.Context, facilitator FacilitatorClient, payload *PaymentPayload, requirements *PaymentRequirements) (*SettleResponse, error) {
	resp, err := facilitator.Settle(ctx, payload, requirements)
	if err != nil {
		return &SettleResponse{
			Success:     false,
			Network:     requirements.Network,
			ErrorReason: err.Error(),
		}, nil
	}
	if resp.Network == "" {
		resp.Network = requirements.Network
	}
	return resp, nil
}
