package x402a2a

import (
	"github.com/google/uuid"

	"github.com/google-agentic-commerce/a2a-x402/go/a2a"
)

// PaymentStatus is the payment-level state carried in task and message
// metadata, orthogonal to the A2A task state.
type PaymentStatus string

const (
	PaymentStatusRequired  PaymentStatus = "payment-required"
	PaymentStatusSubmitted PaymentStatus = "payment-submitted"
	PaymentStatusRejected  PaymentStatus = "payment-rejected"
	PaymentStatusPending   PaymentStatus = "payment-pending"
	PaymentStatusCompleted PaymentStatus = "payment-completed"
	PaymentStatusFailed    PaymentStatus = "payment-failed"
)

// Terminal reports whether the status ends the payment flow for this task.
// Rejected and failed tasks are retried with a new task, never in place.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusFailed || s == PaymentStatusRejected
}

// Reserved metadata keys. The Utils codec is their sole writer.
const (
	MetadataStatusKey   = "x402.payment.status"
	MetadataRequiredKey = "x402.payment.required"
	MetadataPayloadKey  = "x402.payment.payload"
	MetadataReceiptsKey = "x402.payment.receipts"
	MetadataErrorKey    = "x402.payment.error"

	// metadataLegacyReceiptKey is the singular form older deployments wrote.
	// Read-compatible only; the codec always writes the array key.
	metadataLegacyReceiptKey = "x402.payment.receipt"

	// MetadataVerifiedKey flags the delegate that it is executing a paid
	// request. Set by the server middleware after verification succeeds.
	MetadataVerifiedKey = "x402_payment_verified"
)

// Utils reads and writes payment state on tasks and messages, enforcing the
// payment state machine. It is the only component that touches the reserved
// metadata keys.
type Utils struct{}

// GetPaymentStatus reads the payment status from task metadata, falling back
// to the metadata of the task's current status message.
func (u Utils) GetPaymentStatus(task *a2a.Task) PaymentStatus {
	if task == nil {
		return ""
	}
	if s, ok := task.Metadata[MetadataStatusKey].(string); ok {
		return PaymentStatus(s)
	}
	if msg := task.Status.Message; msg != nil {
		if s, ok := msg.Metadata[MetadataStatusKey].(string); ok {
			return PaymentStatus(s)
		}
	}
	return ""
}

// GetPaymentStatusFromMessage reads the payment status a message carries.
func (u Utils) GetPaymentStatusFromMessage(message *a2a.Message) PaymentStatus {
	if message == nil {
		return ""
	}
	if s, ok := message.Metadata[MetadataStatusKey].(string); ok {
		return PaymentStatus(s)
	}
	return ""
}

// GetPaymentRequirements deserializes the stored PaymentRequired response.
// Missing or malformed metadata yields nil, never an error.
func (u Utils) GetPaymentRequirements(task *a2a.Task) *PaymentRequired {
	if task == nil {
		return nil
	}
	raw, ok := task.Metadata[MetadataRequiredKey]
	if !ok {
		if msg := task.Status.Message; msg != nil {
			raw, ok = msg.Metadata[MetadataRequiredKey]
		}
		if !ok {
			return nil
		}
	}
	var required PaymentRequired
	if err := fromMetadataValue(raw, &required); err != nil {
		return nil
	}
	return &required
}

// GetPaymentPayload deserializes the stored payment payload from task
// metadata, falling back to the status message. Nil on missing/malformed.
func (u Utils) GetPaymentPayload(task *a2a.Task) *PaymentPayload {
	if task == nil {
		return nil
	}
	raw, ok := task.Metadata[MetadataPayloadKey]
	if !ok {
		if msg := task.Status.Message; msg != nil {
			raw, ok = msg.Metadata[MetadataPayloadKey]
		}
		if !ok {
			return nil
		}
	}
	return decodePayload(raw)
}

// GetPaymentPayloadFromMessage deserializes the payload a submission message
// carries. Nil on missing/malformed.
func (u Utils) GetPaymentPayloadFromMessage(message *a2a.Message) *PaymentPayload {
	if message == nil {
		return nil
	}
	raw, ok := message.Metadata[MetadataPayloadKey]
	if !ok {
		return nil
	}
	return decodePayload(raw)
}

func decodePayload(raw any) *PaymentPayload {
	var payload PaymentPayload
	if err := fromMetadataValue(raw, &payload); err != nil {
		return nil
	}
	return &payload
}

// GetPaymentReceipts returns every settlement receipt recorded on the task,
// oldest first. Reads the array key, falling back to the legacy singular
// form older deployments wrote.
func (u Utils) GetPaymentReceipts(task *a2a.Task) []SettleResponse {
	if task == nil {
		return nil
	}
	raw, ok := task.Metadata[MetadataReceiptsKey]
	if !ok {
		single, legacyOK := task.Metadata[metadataLegacyReceiptKey]
		if !legacyOK {
			return nil
		}
		raw = []any{single}
	}
	var receipts []SettleResponse
	if err := fromMetadataValue(raw, &receipts); err != nil {
		return nil
	}
	return receipts
}

// CreatePaymentRequiredTask transitions the task to the A2A input-required
// state and writes the payment-required status and requirements into the
// status message metadata. Returns a StateError when the task already
// reached a terminal payment state.
func (u Utils) CreatePaymentRequiredTask(task *a2a.Task, required *PaymentRequired) (*a2a.Task, error) {
	if task == nil {
		return nil, NewMessageError("task is required")
	}
	if current := u.GetPaymentStatus(task); current.Terminal() {
		return nil, NewStateError("cannot request payment on task %s in terminal state %s", task.ID, current)
	}

	serialized, err := toMetadataMap(required)
	if err != nil {
		return nil, NewMessageError("failed to serialize payment requirements: %v", err)
	}

	task.Status.State = a2a.TaskStateInputRequired
	if task.Status.Message == nil {
		task.Status.Message = &a2a.Message{
			MessageID: uuid.NewString(),
			Role:      a2a.RoleAgent,
			TaskID:    task.ID,
			ContextID: task.ContextID,
		}
	}
	if task.Status.Message.Metadata == nil {
		task.Status.Message.Metadata = map[string]any{}
	}
	task.Status.Message.Metadata[MetadataStatusKey] = string(PaymentStatusRequired)
	task.Status.Message.Metadata[MetadataRequiredKey] = serialized
	return task, nil
}

// RecordPaymentSubmission writes the signed payload onto the task and moves
// it to payment-submitted. Rejected unless the task is payment-required.
func (u Utils) RecordPaymentSubmission(task *a2a.Task, payload *PaymentPayload) (*a2a.Task, error) {
	if task == nil {
		return nil, NewMessageError("task is required")
	}
	if current := u.GetPaymentStatus(task); current != PaymentStatusRequired {
		return nil, NewStateError("cannot submit payment on task %s in state %q", task.ID, current)
	}

	serialized, err := DumpPaymentPayload(payload)
	if err != nil {
		return nil, NewMessageError("failed to serialize payment payload: %v", err)
	}

	ensureMetadata(task)
	task.Metadata[MetadataStatusKey] = string(PaymentStatusSubmitted)
	task.Metadata[MetadataPayloadKey] = serialized
	clearKey(task, MetadataRequiredKey)
	return task, nil
}

// RecordPaymentVerified moves a submitted payment to payment-pending.
func (u Utils) RecordPaymentVerified(task *a2a.Task) (*a2a.Task, error) {
	if task == nil {
		return nil, NewMessageError("task is required")
	}
	if current := u.GetPaymentStatus(task); current != PaymentStatusSubmitted {
		return nil, NewStateError("cannot verify payment on task %s in state %q", task.ID, current)
	}
	ensureMetadata(task)
	task.Metadata[MetadataStatusKey] = string(PaymentStatusPending)
	return task, nil
}

// RecordPaymentSuccess marks the payment completed, appends the settlement
// receipt, and clears the intermediate payload and requirements.
func (u Utils) RecordPaymentSuccess(task *a2a.Task, settleResponse *SettleResponse) (*a2a.Task, error) {
	if task == nil {
		return nil, NewMessageError("task is required")
	}
	if current := u.GetPaymentStatus(task); current != PaymentStatusPending {
		return nil, NewStateError("cannot complete payment on task %s in state %q", task.ID, current)
	}
	ensureMetadata(task)
	task.Metadata[MetadataStatusKey] = string(PaymentStatusCompleted)
	if err := u.appendReceipt(task, settleResponse); err != nil {
		return nil, err
	}
	clearKey(task, MetadataPayloadKey)
	clearKey(task, MetadataRequiredKey)
	return task, nil
}

// RecordPaymentFailure marks the payment failed with a stable error code,
// appends the settlement receipt, and clears intermediate metadata. Allowed
// from any non-terminal state; errors can strike anywhere in the pipeline.
func (u Utils) RecordPaymentFailure(task *a2a.Task, errorCode string, settleResponse *SettleResponse) (*a2a.Task, error) {
	if task == nil {
		return nil, NewMessageError("task is required")
	}
	if current := u.GetPaymentStatus(task); current.Terminal() {
		return nil, NewStateError("cannot fail payment on task %s in terminal state %s", task.ID, current)
	}
	ensureMetadata(task)
	task.Metadata[MetadataStatusKey] = string(PaymentStatusFailed)
	task.Metadata[MetadataErrorKey] = errorCode
	if err := u.appendReceipt(task, settleResponse); err != nil {
		return nil, err
	}
	clearKey(task, MetadataPayloadKey)
	clearKey(task, MetadataRequiredKey)
	return task, nil
}

// RecordPaymentRejected marks a payment-required task as declined by the
// client without producing a payload.
func (u Utils) RecordPaymentRejected(task *a2a.Task) (*a2a.Task, error) {
	if task == nil {
		return nil, NewMessageError("task is required")
	}
	if current := u.GetPaymentStatus(task); current != PaymentStatusRequired {
		return nil, NewStateError("cannot reject payment on task %s in state %q", task.ID, current)
	}
	ensureMetadata(task)
	task.Metadata[MetadataStatusKey] = string(PaymentStatusRejected)
	clearKey(task, MetadataRequiredKey)
	return task, nil
}

func (u Utils) appendReceipt(task *a2a.Task, settleResponse *SettleResponse) error {
	if settleResponse == nil {
		return NewMessageError("settle response is required")
	}
	serialized, err := toMetadataMap(settleResponse)
	if err != nil {
		return NewMessageError("failed to serialize settle response: %v", err)
	}
	receipts, _ := task.Metadata[MetadataReceiptsKey].([]any)
	if receipts == nil {
		if single, ok := task.Metadata[metadataLegacyReceiptKey]; ok {
			receipts = []any{single}
			delete(task.Metadata, metadataLegacyReceiptKey)
		}
	}
	task.Metadata[MetadataReceiptsKey] = append(receipts, serialized)
	return nil
}

func ensureMetadata(task *a2a.Task) {
	if task.Metadata == nil {
		task.Metadata = map[string]any{}
	}
}

// clearKey removes a reserved key from both metadata bags.
func clearKey(task *a2a.Task, key string) {
	delete(task.Metadata, key)
	if msg := task.Status.Message; msg != nil {
		delete(msg.Metadata, key)
	}
}

// CreatePaymentSubmissionMessage builds the correlated user message that
// carries a signed payload back to the merchant. TaskID ties the submission
// to the task that requested payment.
func CreatePaymentSubmissionMessage(taskID string, payload *PaymentPayload) (*a2a.Message, error) {
	serialized, err := DumpPaymentPayload(payload)
	if err != nil {
		return nil, NewMessageError("failed to serialize payment payload: %v", err)
	}
	return &a2a.Message{
		MessageID: uuid.NewString(),
		TaskID:    taskID,
		Role:      a2a.RoleUser,
		Parts:     []a2a.Part{a2a.NewTextPart("Payment authorization provided")},
		Metadata: map[string]any{
			MetadataStatusKey:  string(PaymentStatusSubmitted),
			MetadataPayloadKey: serialized,
		},
	}, nil
}

// ExtractTaskCorrelation returns the task id a payment message correlates
// to, or the empty string when the message is not correlated.
func ExtractTaskCorrelation(message *a2a.Message) string {
	if message == nil {
		return ""
	}
	return message.TaskID
}
