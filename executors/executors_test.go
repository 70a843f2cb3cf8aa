package executors

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	x402a2a "github.com/google-agentic-commerce/a2a-x402/go"
	"github.com/google-agentic-commerce/a2a-x402/go/a2a"
	"github.com/google-agentic-commerce/a2a-x402/go/mechanisms/evm"
	signers "github.com/google-agentic-commerce/a2a-x402/go/signers/evm"
)

const (
	testMerchant   = "0x209693Bc6afc0C5328bA36FaF03C514EF312287C"
	testPrivateKey = "0x59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"
)

// recordingQueue collects every event the middleware emits.
type recordingQueue struct {
	events []a2a.Event
}

func (q *recordingQueue) Enqueue(ctx context.Context, event a2a.Event) error {
	q.events = append(q.events, event)
	return nil
}

func (q *recordingQueue) messages() []*a2a.Message {
	var messages []*a2a.Message
	for _, event := range q.events {
		if message, ok := event.(*a2a.Message); ok {
			messages = append(messages, message)
		}
	}
	return messages
}

// scriptedDelegate is a business executor with programmable behavior.
type scriptedDelegate struct {
	execute func(ctx context.Context, reqCtx *a2a.RequestContext, queue a2a.EventQueue) error
	calls   int
}

func (d *scriptedDelegate) Execute(ctx context.Context, reqCtx *a2a.RequestContext, queue a2a.EventQueue) error {
	d.calls++
	if d.execute != nil {
		return d.execute(ctx, reqCtx, queue)
	}
	return nil
}

func (d *scriptedDelegate) Cancel(ctx context.Context, reqCtx *a2a.RequestContext, queue a2a.EventQueue) error {
	return nil
}

// mockFacilitator answers verify/settle with canned responses.
type mockFacilitator struct {
	verifyResponse *x402a2a.VerifyResponse
	verifyErr      error
	settleResponse *x402a2a.SettleResponse
	settleErr      error
	verifyCalls    int
	settleCalls    int
}

func (f *mockFacilitator) Verify(ctx context.Context, payload *x402a2a.PaymentPayload, requirements *x402a2a.PaymentRequirements) (*x402a2a.VerifyResponse, error) {
	f.verifyCalls++
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return f.verifyResponse, nil
}

func (f *mockFacilitator) Settle(ctx context.Context, payload *x402a2a.PaymentPayload, requirements *x402a2a.PaymentRequirements) (*x402a2a.SettleResponse, error) {
	f.settleCalls++
	if f.settleErr != nil {
		return nil, f.settleErr
	}
	return f.settleResponse, nil
}

func activeHeaders() http.Header {
	headers := http.Header{}
	headers.Set(x402a2a.ExtensionHeader, x402a2a.ExtensionURI)
	return headers
}

func newSigner(t *testing.T) evm.Signer {
	t.Helper()
	signer, err := signers.NewClientSignerFromPrivateKey(testPrivateKey)
	require.NoError(t, err)
	return signer
}

func serviceRequirements(t *testing.T, price x402a2a.Price) x402a2a.PaymentRequirements {
	t.Helper()
	requirements, err := x402a2a.CreatePaymentRequirements(price, testMerchant, "/svc", x402a2a.WithNetwork("base"))
	require.NoError(t, err)
	return *requirements
}

// paymentRequiredTask builds a task already carrying a merchant demand, the
// way the server middleware leaves it.
func paymentRequiredTask(t *testing.T, taskID string, accepts ...x402a2a.PaymentRequirements) *a2a.Task {
	t.Helper()
	task := &a2a.Task{
		ID:        taskID,
		ContextID: "ctx-1",
		Status:    a2a.TaskStatus{State: a2a.TaskStateWorking},
	}
	utils := x402a2a.Utils{}
	_, err := utils.CreatePaymentRequiredTask(task, &x402a2a.PaymentRequired{
		X402Version: x402a2a.X402Version,
		Accepts:     accepts,
	})
	require.NoError(t, err)
	return task
}
