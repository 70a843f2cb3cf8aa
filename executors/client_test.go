package executors

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	x402a2a "github.com/google-agentic-commerce/a2a-x402/go"
	"github.com/google-agentic-commerce/a2a-x402/go/a2a"
	"github.com/google-agentic-commerce/a2a-x402/go/mechanisms/evm"
)

// requestingDelegate simulates a consumer agent whose outbound request came
// back with a payment demand attached to the task.
func requestingDelegate(task *a2a.Task) *scriptedDelegate {
	return &scriptedDelegate{
		execute: func(ctx context.Context, reqCtx *a2a.RequestContext, queue a2a.EventQueue) error {
			reqCtx.CurrentTask = task
			return nil
		},
	}
}

func TestClientAutoPaysAndSubmits(t *testing.T) {
	requirement := serviceRequirements(t, "$1.00")
	task := paymentRequiredTask(t, "task-1", requirement)
	client := NewClientExecutor(requestingDelegate(task), x402a2a.Config{}, newSigner(t))

	queue := &recordingQueue{}
	reqCtx := &a2a.RequestContext{TaskID: task.ID}
	require.NoError(t, client.Execute(context.Background(), reqCtx, queue))

	messages := queue.messages()
	require.Len(t, messages, 1)
	submission := messages[0]
	assert.Equal(t, task.ID, submission.TaskID)
	assert.Equal(t, a2a.RoleUser, submission.Role)
	assert.Equal(t, string(x402a2a.PaymentStatusSubmitted), submission.Metadata[x402a2a.MetadataStatusKey])

	payload := utils.GetPaymentPayloadFromMessage(submission)
	require.NotNil(t, payload)
	evmPayload := payload.ExactEvm()
	require.NotNil(t, evmPayload)
	assert.Equal(t, "1000000", evmPayload.Authorization.Value)
	assert.Equal(t, testMerchant, evmPayload.Authorization.To)
}

func TestClientBudgetBreachFailsWithoutSigning(t *testing.T) {
	requirement := serviceRequirements(t, "$10.00")
	task := paymentRequiredTask(t, "task-2", requirement)
	client := NewClientExecutor(requestingDelegate(task), x402a2a.Config{}, newSigner(t),
		WithMaxValue(big.NewInt(5000000)))

	queue := &recordingQueue{}
	reqCtx := &a2a.RequestContext{TaskID: task.ID}
	require.NoError(t, client.Execute(context.Background(), reqCtx, queue))

	assert.Empty(t, queue.messages())
	assert.Equal(t, x402a2a.PaymentStatusFailed, utils.GetPaymentStatus(task))
	assert.Equal(t, x402a2a.ErrorCodeInvalidSignature, task.Metadata[x402a2a.MetadataErrorKey])
	assert.Equal(t, a2a.TaskStateFailed, task.Status.State)

	receipts := utils.GetPaymentReceipts(task)
	require.Len(t, receipts, 1)
	assert.False(t, receipts[0].Success)
	assert.Contains(t, receipts[0].ErrorReason, "Payment failed")
}

func TestClientAutoPayDisabledLeavesTaskUntouched(t *testing.T) {
	requirement := serviceRequirements(t, "$1.00")
	task := paymentRequiredTask(t, "task-3", requirement)
	client := NewClientExecutor(requestingDelegate(task), x402a2a.Config{}, newSigner(t),
		WithAutoPay(false))

	queue := &recordingQueue{}
	reqCtx := &a2a.RequestContext{TaskID: task.ID}
	require.NoError(t, client.Execute(context.Background(), reqCtx, queue))

	assert.Empty(t, queue.events)
	assert.Equal(t, x402a2a.PaymentStatusRequired, utils.GetPaymentStatus(task))
	assert.NotNil(t, utils.GetPaymentRequirements(task))
}

func TestClientIgnoresTasksWithoutPaymentDemand(t *testing.T) {
	task := &a2a.Task{ID: "task-4", Status: a2a.TaskStatus{State: a2a.TaskStateCompleted}}
	client := NewClientExecutor(requestingDelegate(task), x402a2a.Config{}, newSigner(t))

	queue := &recordingQueue{}
	require.NoError(t, client.Execute(context.Background(), &a2a.RequestContext{TaskID: task.ID}, queue))
	assert.Empty(t, queue.events)

	noTask := NewClientExecutor(&scriptedDelegate{}, x402a2a.Config{}, newSigner(t))
	require.NoError(t, noTask.Execute(context.Background(), &a2a.RequestContext{}, queue))
	assert.Empty(t, queue.events)
}

func TestClientDelegateErrorPropagates(t *testing.T) {
	boom := errors.New("transport down")
	delegate := &scriptedDelegate{
		execute: func(ctx context.Context, reqCtx *a2a.RequestContext, queue a2a.EventQueue) error {
			return boom
		},
	}
	client := NewClientExecutor(delegate, x402a2a.Config{}, newSigner(t))
	err := client.Execute(context.Background(), &a2a.RequestContext{}, &recordingQueue{})
	assert.ErrorIs(t, err, boom)
}

// failingSigner always errors, standing in for an unreachable wallet.
type failingSigner struct{}

func (failingSigner) Address() string { return "0x0000000000000000000000000000000000000001" }

func (failingSigner) SignMessage(ctx context.Context, message []byte) ([]byte, error) {
	return nil, errors.New("wallet unavailable")
}

func (failingSigner) SignTypedData(
	ctx context.Context,
	domain evm.TypedDataDomain,
	types map[string][]evm.TypedDataField,
	primaryType string,
	message map[string]interface{},
) ([]byte, error) {
	return nil, errors.New("wallet unavailable")
}

func TestClientSigningFailureRecordsPaymentFailure(t *testing.T) {
	requirement := serviceRequirements(t, "$1.00")
	task := paymentRequiredTask(t, "task-5", requirement)
	client := NewClientExecutor(requestingDelegate(task), x402a2a.Config{}, failingSigner{})

	queue := &recordingQueue{}
	require.NoError(t, client.Execute(context.Background(), &a2a.RequestContext{TaskID: task.ID}, queue))

	assert.Empty(t, queue.messages())
	assert.Equal(t, x402a2a.PaymentStatusFailed, utils.GetPaymentStatus(task))
	assert.Equal(t, x402a2a.ErrorCodeInvalidSignature, task.Metadata[x402a2a.MetadataErrorKey])

	receipts := utils.GetPaymentReceipts(task)
	require.Len(t, receipts, 1)
	assert.Contains(t, receipts[0].ErrorReason, "wallet unavailable")
}
