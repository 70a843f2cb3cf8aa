package executors

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	x402a2a "github.com/google-agentic-commerce/a2a-x402/go"
	"github.com/google-agentic-commerce/a2a-x402/go/a2a"
)

// RequirementMatcher selects the stored requirement a submitted payload
// pays against. Returning nil means no requirement matches.
type RequirementMatcher func(accepts []x402a2a.PaymentRequirements, payload *x402a2a.PaymentPayload) *x402a2a.PaymentRequirements

// ServerExecutor is the merchant-side payment middleware. It wraps a
// business executor and owns the task-correlated payment state machine:
// a delegate returning a PaymentRequiredError puts the task into
// payment-required; a client submission triggers verify → execute → settle.
//
// One task is processed by at most one invocation at a time; the transport
// delivers a task's messages in order. The requirements store is safe for
// concurrent use across tasks.
type ServerExecutor struct {
	baseExecutor
	facilitator   x402a2a.FacilitatorClient
	store         *x402a2a.RequirementsStore
	matcher       RequirementMatcher
	verifyTimeout time.Duration
	logger        *slog.Logger
}

// ServerOption configures a ServerExecutor.
type ServerOption func(*ServerExecutor)

// WithRequirementsStore substitutes the process-local requirements store,
// e.g. to share one store between several executors.
func WithRequirementsStore(store *x402a2a.RequirementsStore) ServerOption {
	return func(e *ServerExecutor) { e.store = store }
}

// WithRequirementMatcher overrides how a submitted payload is matched
// against the stored requirements. The default matches on exact
// (scheme, network) equality, ties broken by list order.
func WithRequirementMatcher(matcher RequirementMatcher) ServerOption {
	return func(e *ServerExecutor) { e.matcher = matcher }
}

// WithVerifyTimeout overrides the facilitator verification timeout.
func WithVerifyTimeout(timeout time.Duration) ServerOption {
	return func(e *ServerExecutor) { e.verifyTimeout = timeout }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(e *ServerExecutor) { e.logger = logger }
}

// NewServerExecutor wraps a business executor with payment middleware
// backed by the given facilitator.
func NewServerExecutor(delegate a2a.AgentExecutor, config x402a2a.Config, facilitator x402a2a.FacilitatorClient, opts ...ServerOption) *ServerExecutor {
	e := &ServerExecutor{
		baseExecutor:  baseExecutor{delegate: delegate, config: config},
		facilitator:   facilitator,
		store:         x402a2a.NewRequirementsStore(),
		verifyTimeout: x402a2a.DefaultVerifyTimeout,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.matcher == nil {
		e.matcher = matchBySchemeAndNetwork
	}
	return e
}

// matchBySchemeAndNetwork is the default requirement matcher.
func matchBySchemeAndNetwork(accepts []x402a2a.PaymentRequirements, payload *x402a2a.PaymentPayload) *x402a2a.PaymentRequirements {
	for i := range accepts {
		if accepts[i].Scheme == payload.Scheme && accepts[i].Network == payload.Network {
			return &accepts[i]
		}
	}
	return nil
}

// Execute dispatches one invocation: bypass when the extension is inactive,
// the paid-request branch when a submission is present, otherwise the
// delegate with payment-required interception.
func (e *ServerExecutor) Execute(ctx context.Context, reqCtx *a2a.RequestContext, queue a2a.EventQueue) error {
	if !e.extensionActive(reqCtx) {
		return e.delegate.Execute(ctx, reqCtx, queue)
	}

	task, err := e.ensureTaskStarted(ctx, reqCtx, queue)
	if err != nil {
		return err
	}

	submitted := e.utils.GetPaymentStatus(reqCtx.CurrentTask) == x402a2a.PaymentStatusSubmitted ||
		e.utils.GetPaymentStatusFromMessage(reqCtx.Message) == x402a2a.PaymentStatusSubmitted
	if submitted {
		return e.processPaidRequest(ctx, task, reqCtx, queue)
	}

	err = e.delegate.Execute(ctx, reqCtx, queue)
	var required *x402a2a.PaymentRequiredError
	if errors.As(err, &required) {
		return e.handlePaymentRequired(ctx, required, task, queue)
	}
	return err
}

// ensureTaskStarted owns the A2A-level lifecycle: the task exists and is
// working before the delegate runs. The delegate must not start the task
// itself.
func (e *ServerExecutor) ensureTaskStarted(ctx context.Context, reqCtx *a2a.RequestContext, queue a2a.EventQueue) (*a2a.Task, error) {
	task := reqCtx.CurrentTask
	if task == nil {
		taskID := reqCtx.TaskID
		if taskID == "" {
			if reqCtx.Message != nil && reqCtx.Message.TaskID != "" {
				taskID = reqCtx.Message.TaskID
			} else {
				taskID = uuid.NewString()
			}
		}
		task = &a2a.Task{
			ID:        taskID,
			ContextID: reqCtx.ContextID,
			Status:    a2a.TaskStatus{State: a2a.TaskStateSubmitted},
		}
		reqCtx.CurrentTask = task
		if err := queue.Enqueue(ctx, task); err != nil {
			return nil, err
		}
	}
	task.Status.State = a2a.TaskStateWorking
	if err := queue.Enqueue(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// handlePaymentRequired translates the delegate's interrupt into a
// payment-required task: requirements go into the store keyed by task id,
// the task transitions, and the client sees the offer. The interrupt is
// consumed, never re-raised.
func (e *ServerExecutor) handlePaymentRequired(ctx context.Context, required *x402a2a.PaymentRequiredError, task *a2a.Task, queue a2a.EventQueue) error {
	e.store.Put(task.ID, required.Accepts)
	e.logger.Info("payment required", "task", task.ID, "options", len(required.Accepts))

	response := &x402a2a.PaymentRequired{
		X402Version: x402a2a.X402Version,
		Accepts:     required.Accepts,
		Error:       required.Message,
	}
	if _, err := e.utils.CreatePaymentRequiredTask(task, response); err != nil {
		return err
	}
	return queue.Enqueue(ctx, task)
}

// processPaidRequest runs the paid branch: verify → execute → settle.
// Every failure lands the task in a terminal payment-failed state with a
// stable error code and a receipt; nothing escapes to the transport.
func (e *ServerExecutor) processPaidRequest(ctx context.Context, task *a2a.Task, reqCtx *a2a.RequestContext, queue a2a.EventQueue) error {
	payload := e.utils.GetPaymentPayload(task)
	if payload == nil {
		payload = e.utils.GetPaymentPayloadFromMessage(reqCtx.Message)
	}
	if payload == nil {
		e.logger.Warn("payment payload missing", "task", task.ID)
		return e.failPayment(ctx, task, queue, x402a2a.ErrorCodeInvalidSignature, "Missing payment data", "")
	}

	if err := x402a2a.ValidatePaymentPayload(payload); err != nil {
		return e.failPayment(ctx, task, queue, x402a2a.MapErrorToCode(err), err.Error(), payload.Network)
	}

	accepts := e.store.Get(task.ID)
	if len(accepts) == 0 {
		e.logger.Warn("no stored payment requirements", "task", task.ID)
		return e.failPayment(ctx, task, queue, x402a2a.ErrorCodeInvalidSignature, "Missing payment requirements", payload.Network)
	}

	requirement := e.matcher(accepts, payload)
	if requirement == nil {
		return e.failPayment(ctx, task, queue, x402a2a.ErrorCodeInvalidAmount, "No matching payment requirements", payload.Network)
	}

	if err := coerceAuthorizationTimestamps(payload); err != nil {
		return e.failPayment(ctx, task, queue, x402a2a.ErrorCodeInvalidSignature, err.Error(), requirement.Network)
	}

	// The task advances to payment-submitted before verification so the
	// state sequence the client observes stays monotone.
	if e.utils.GetPaymentStatus(task) == x402a2a.PaymentStatusRequired {
		if _, err := e.utils.RecordPaymentSubmission(task, payload); err != nil {
			return e.failPayment(ctx, task, queue, x402a2a.ErrorCodeInvalidSignature, err.Error(), requirement.Network)
		}
	}

	verifyCtx, cancel := context.WithTimeout(ctx, e.verifyTimeout)
	verifyResponse, err := e.facilitator.Verify(verifyCtx, payload, requirement)
	cancel()
	if err != nil {
		e.logger.Error("payment verification errored", "task", task.ID, "err", err)
		return e.failPayment(ctx, task, queue, x402a2a.ErrorCodeSettlementFailed, "Verification failed: "+err.Error(), requirement.Network)
	}
	if !verifyResponse.IsValid {
		reason := verifyResponse.InvalidReason
		if reason == "" {
			reason = "Invalid payment"
		}
		e.logger.Warn("payment verification rejected", "task", task.ID, "reason", reason)
		return e.failPayment(ctx, task, queue, x402a2a.ErrorCodeInvalidSignature, reason, requirement.Network)
	}

	if _, err := e.utils.RecordPaymentVerified(task); err != nil {
		return e.failPayment(ctx, task, queue, x402a2a.ErrorCodeSettlementFailed, err.Error(), requirement.Network)
	}
	if err := queue.Enqueue(ctx, task); err != nil {
		return err
	}
	e.logger.Info("payment verified", "task", task.ID, "payer", verifyResponse.Payer)

	// Flag the delegate that it is entering paid execution.
	task.Metadata[x402a2a.MetadataVerifiedKey] = true

	if err := e.delegate.Execute(ctx, reqCtx, queue); err != nil {
		e.logger.Error("delegate failed after verification", "task", task.ID, "err", err)
		return e.failPayment(ctx, task, queue, x402a2a.ErrorCodeSettlementFailed, "Service failed: "+err.Error(), requirement.Network)
	}

	settleResponse, err := x402a2a.SettlePayment(ctx, e.facilitator, payload, requirement)
	if err != nil {
		return e.failPayment(ctx, task, queue, x402a2a.ErrorCodeSettlementFailed, "Settlement failed: "+err.Error(), requirement.Network)
	}
	if settleResponse.Success {
		if _, err := e.utils.RecordPaymentSuccess(task, settleResponse); err != nil {
			return err
		}
		e.store.Delete(task.ID)
		task.Status.State = a2a.TaskStateCompleted
		e.logger.Info("payment settled", "task", task.ID, "transaction", settleResponse.Transaction)
		return queue.Enqueue(ctx, task)
	}

	code := x402a2a.ErrorCodeSettlementFailed
	if strings.Contains(strings.ToLower(settleResponse.ErrorReason), "insufficient") {
		code = x402a2a.ErrorCodeInsufficientFunds
	}
	if _, err := e.utils.RecordPaymentFailure(task, code, settleResponse); err != nil {
		return err
	}
	e.store.Delete(task.ID)
	task.Status.State = a2a.TaskStateFailed
	e.logger.Warn("payment settlement failed", "task", task.ID, "code", code, "reason", settleResponse.ErrorReason)
	return queue.Enqueue(ctx, task)
}

// failPayment records a terminal payment failure, drops the store entry,
// and enqueues the failed task.
func (e *ServerExecutor) failPayment(ctx context.Context, task *a2a.Task, queue a2a.EventQueue, code, reason, network string) error {
	if network == "" {
		network = "base"
	}
	response := &x402a2a.SettleResponse{
		Success:     false,
		Network:     network,
		ErrorReason: reason,
	}
	if _, err := e.utils.RecordPaymentFailure(task, code, response); err != nil {
		e.logger.Error("could not record payment failure", "task", task.ID, "err", err)
	}
	e.store.Delete(task.ID)
	task.Status.State = a2a.TaskStateFailed
	return queue.Enqueue(ctx, task)
}

// coerceAuthorizationTimestamps normalizes the EVM authorization window
// fields to canonical integer strings before the payload reaches the
// facilitator, rejecting values that do not parse.
func coerceAuthorizationTimestamps(payload *x402a2a.PaymentPayload) error {
	evmPayload := payload.ExactEvm()
	if evmPayload == nil {
		return nil
	}
	validAfter, err := strconv.ParseInt(evmPayload.Authorization.ValidAfter, 10, 64)
	if err != nil {
		return x402a2a.NewValidationError("invalid validAfter timestamp: %q", evmPayload.Authorization.ValidAfter)
	}
	validBefore, err := strconv.ParseInt(evmPayload.Authorization.ValidBefore, 10, 64)
	if err != nil {
		return x402a2a.NewValidationError("invalid validBefore timestamp: %q", evmPayload.Authorization.ValidBefore)
	}
	evmPayload.Authorization.ValidAfter = strconv.FormatInt(validAfter, 10)
	evmPayload.Authorization.ValidBefore = strconv.FormatInt(validBefore, 10)
	return nil
}
