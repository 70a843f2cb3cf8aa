package executors

import (
	"context"
	"log/slog"
	"math/big"

	x402a2a "github.com/google-agentic-commerce/a2a-x402/go"
	"github.com/google-agentic-commerce/a2a-x402/go/a2a"
	"github.com/google-agentic-commerce/a2a-x402/go/mechanisms/evm"
)

// ClientExecutor is the consumer-side payment middleware. The wrapped
// delegate sends the outbound request; when the resulting task demands
// payment and auto-pay is on, the executor selects a requirement within
// budget, signs it, and enqueues the correlated submission message.
type ClientExecutor struct {
	baseExecutor
	signer   evm.Signer
	maxValue *big.Int
	autoPay  bool
	logger   *slog.Logger
}

// ClientOption configures a ClientExecutor.
type ClientOption func(*ClientExecutor)

// WithMaxValue caps what the executor will sign for, in atomic units.
func WithMaxValue(maxValue *big.Int) ClientOption {
	return func(e *ClientExecutor) { e.maxValue = maxValue }
}

// WithAutoPay toggles automatic payment. When off, payment-required tasks
// pass through untouched so the application can prompt the user.
func WithAutoPay(autoPay bool) ClientOption {
	return func(e *ClientExecutor) { e.autoPay = autoPay }
}

// WithClientLogger sets the structured logger.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(e *ClientExecutor) { e.logger = logger }
}

// NewClientExecutor wraps a consumer executor with payment middleware
// signing through the given wallet capability. Auto-pay defaults to on.
func NewClientExecutor(delegate a2a.AgentExecutor, config x402a2a.Config, signer evm.Signer, opts ...ClientOption) *ClientExecutor {
	e := &ClientExecutor{
		baseExecutor: baseExecutor{delegate: delegate, config: config},
		signer:       signer,
		autoPay:      true,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs the delegate, then settles any payment demand the resulting
// task carries.
func (e *ClientExecutor) Execute(ctx context.Context, reqCtx *a2a.RequestContext, queue a2a.EventQueue) error {
	if err := e.delegate.Execute(ctx, reqCtx, queue); err != nil {
		return err
	}

	task := reqCtx.CurrentTask
	if task == nil {
		return nil
	}
	if e.utils.GetPaymentStatus(task) != x402a2a.PaymentStatusRequired || !e.autoPay {
		return nil
	}
	return e.payAndSubmit(ctx, task, queue)
}

// payAndSubmit signs the merchant's demand and enqueues the submission.
// Signing and selection failures never reach the caller: the task lands in
// payment-failed with a descriptive reason instead.
func (e *ClientExecutor) payAndSubmit(ctx context.Context, task *a2a.Task, queue a2a.EventQueue) error {
	required := e.utils.GetPaymentRequirements(task)
	if required == nil {
		return nil
	}

	payload, err := x402a2a.ProcessPaymentRequired(ctx, required, e.signer, e.maxValue)
	if err != nil {
		e.logger.Warn("payment processing failed", "task", task.ID, "err", err)
		return e.failPayment(ctx, task, queue, required, "Payment failed: "+err.Error())
	}

	submission, err := x402a2a.CreatePaymentSubmissionMessage(task.ID, payload)
	if err != nil {
		return e.failPayment(ctx, task, queue, required, "Payment failed: "+err.Error())
	}
	e.logger.Info("payment submitted", "task", task.ID, "scheme", payload.Scheme, "network", payload.Network)
	return queue.Enqueue(ctx, submission)
}

func (e *ClientExecutor) failPayment(ctx context.Context, task *a2a.Task, queue a2a.EventQueue, required *x402a2a.PaymentRequired, reason string) error {
	network := "base"
	if len(required.Accepts) > 0 {
		network = required.Accepts[0].Network
	}
	response := &x402a2a.SettleResponse{
		Success:     false,
		Network:     network,
		ErrorReason: reason,
	}
	if _, err := e.utils.RecordPaymentFailure(task, x402a2a.ErrorCodeInvalidSignature, response); err != nil {
		e.logger.Error("could not record payment failure", "task", task.ID, "err", err)
	}
	task.Status.State = a2a.TaskStateFailed
	return queue.Enqueue(ctx, task)
}
