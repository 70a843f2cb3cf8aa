// Package http provides the HTTP facilitator client and framework
// middleware for extension activation.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	x402a2a "github.com/google-agentic-commerce/a2a-x402/go"
)

// DefaultFacilitatorURL is the public facilitator used when no URL is
// configured. Deployments normally point at their own.
const DefaultFacilitatorURL = "https://x402.org/facilitator"

// defaultTimeout bounds a facilitator HTTP round trip. Settlement can take
// tens of seconds for on-chain confirmation.
const defaultTimeout = 60 * time.Second

// FacilitatorConfig configures the HTTP facilitator client.
type FacilitatorConfig struct {
	// URL is the base URL of the facilitator service.
	URL string

	// HTTPClient is the HTTP client to use (optional).
	HTTPClient *http.Client

	// Timeout for requests (optional, defaults to 60s).
	Timeout time.Duration
}

// FacilitatorClient talks to a remote facilitator service over HTTP.
// Implements the engine's FacilitatorClient capability.
type FacilitatorClient struct {
	url        string
	httpClient *http.Client
}

// NewFacilitatorClient creates an HTTP facilitator client.
func NewFacilitatorClient(config *FacilitatorConfig) *FacilitatorClient {
	if config == nil {
		config = &FacilitatorConfig{}
	}

	url := config.URL
	if url == "" {
		url = DefaultFacilitatorURL
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout == 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &FacilitatorClient{url: url, httpClient: httpClient}
}

// Verify checks a payment authorization against its requirements.
func (c *FacilitatorClient) Verify(ctx context.Context, payload *x402a2a.PaymentPayload, requirements *x402a2a.PaymentRequirements) (*x402a2a.VerifyResponse, error) {
	var response x402a2a.VerifyResponse
	if err := c.post(ctx, "/verify", payload, requirements, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// Settle executes the payment.
func (c *FacilitatorClient) Settle(ctx context.Context, payload *x402a2a.PaymentPayload, requirements *x402a2a.PaymentRequirements) (*x402a2a.SettleResponse, error) {
	var response x402a2a.SettleResponse
	if err := c.post(ctx, "/settle", payload, requirements, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func (c *FacilitatorClient) post(ctx context.Context, path string, payload *x402a2a.PaymentPayload, requirements *x402a2a.PaymentRequirements, out any) error {
	body, err := facilitatorRequestBody(payload, requirements)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create facilitator request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("facilitator request failed: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read facilitator response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("facilitator %s failed (%d): %s", path, resp.StatusCode, string(responseBody))
	}
	if err := json.Unmarshal(responseBody, out); err != nil {
		return fmt.Errorf("failed to decode facilitator response: %w", err)
	}
	return nil
}

// facilitatorRequestBody builds the verify/settle request document. The
// facilitator API expects the EVM authorization window as JSON integers,
// while A2A metadata carries decimal strings; the conversion happens here
// at the network boundary.
func facilitatorRequestBody(payload *x402a2a.PaymentPayload, requirements *x402a2a.PaymentRequirements) ([]byte, error) {
	payloadMap, err := x402a2a.DumpPaymentPayload(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize payment payload: %w", err)
	}

	if payload.Scheme == x402a2a.SchemeExact && payload.Network != x402a2a.NetworkSpark {
		if inner, ok := payloadMap["payload"].(map[string]any); ok {
			if auth, ok := inner["authorization"].(map[string]any); ok {
				for _, field := range []string{"validAfter", "validBefore"} {
					if s, ok := auth[field].(string); ok {
						v, err := strconv.ParseInt(s, 10, 64)
						if err != nil {
							return nil, fmt.Errorf("invalid %s timestamp: %q", field, s)
						}
						auth[field] = v
					}
				}
			}
		}
	}

	return json.Marshal(map[string]any{
		"x402Version":         payload.X402Version,
		"paymentPayload":      payloadMap,
		"paymentRequirements": requirements,
	})
}
