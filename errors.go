package x402a2a

import "fmt"

// Standard error codes recorded under the x402.payment.error metadata key.
const (
	ErrorCodeInsufficientFunds = "INSUFFICIENT_FUNDS"
	ErrorCodeInvalidSignature  = "INVALID_SIGNATURE"
	ErrorCodeExpiredPayment    = "EXPIRED_PAYMENT"
	ErrorCodeDuplicateNonce    = "DUPLICATE_NONCE"
	ErrorCodeNetworkMismatch   = "NETWORK_MISMATCH"
	ErrorCodeInvalidAmount     = "INVALID_AMOUNT"
	ErrorCodeSettlementFailed  = "SETTLEMENT_FAILED"
)

// ErrorCodes lists the seven standard error codes. The engine itself emits
// INSUFFICIENT_FUNDS, INVALID_SIGNATURE, INVALID_AMOUNT and
// SETTLEMENT_FAILED; the others are defined for callers and facilitators.
var ErrorCodes = []string{
	ErrorCodeInsufficientFunds,
	ErrorCodeInvalidSignature,
	ErrorCodeExpiredPayment,
	ErrorCodeDuplicateNonce,
	ErrorCodeNetworkMismatch,
	ErrorCodeInvalidAmount,
	ErrorCodeSettlementFailed,
}

// MessageError reports malformed task or message metadata. Callers recover
// locally by leaving the task in its prior state.
type MessageError struct {
	Reason string
}

func (e *MessageError) Error() string { return e.Reason }

// NewMessageError builds a MessageError with a formatted reason.
func NewMessageError(format string, args ...any) *MessageError {
	return &MessageError{Reason: fmt.Sprintf(format, args...)}
}

// ValidationError reports a payload or requirement schema violation, or a
// client budget breach. Maps to INVALID_SIGNATURE unless a more specific
// code was attached.
type ValidationError struct {
	Reason string
	Code   string
}

func (e *ValidationError) Error() string { return e.Reason }

// NewValidationError builds a ValidationError with a formatted reason.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

func newValidationErrorWithCode(code, format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...), Code: code}
}

// PaymentError reports a facilitator-side settlement failure.
type PaymentError struct {
	Reason string
}

func (e *PaymentError) Error() string { return e.Reason }

// NewPaymentError builds a PaymentError with a formatted reason.
func NewPaymentError(format string, args ...any) *PaymentError {
	return &PaymentError{Reason: fmt.Sprintf(format, args...)}
}

// StateError reports a payment state transition the state machine forbids.
// Fatal for the invocation that attempted it.
type StateError struct {
	Reason string
}

func (e *StateError) Error() string { return e.Reason }

// NewStateError builds a StateError with a formatted reason.
func NewStateError(format string, args ...any) *StateError {
	return &StateError{Reason: fmt.Sprintf(format, args...)}
}

// ExternalSettlementError is returned when requirement selection lands on a
// scheme whose settlement happens out of band (Spark, Cashu). The engine
// refuses to fabricate settlement evidence; callers complete the transfer
// externally and build the payload with the transport-specific helper.
type ExternalSettlementError struct {
	Scheme  string
	Network string
}

func (e *ExternalSettlementError) Error() string {
	return fmt.Sprintf(
		"%s/%s payments settle externally; complete the transfer and use the transport-specific payload helper",
		e.Scheme, e.Network,
	)
}

// PaymentRequiredError is the typed interrupt business logic returns to
// demand payment before service. It is control flow, not a failure: the
// server middleware is the only component that handles it, translating it
// into a payment-required task state.
type PaymentRequiredError struct {
	Message   string
	Accepts   []PaymentRequirements
	ErrorCode string
}

func (e *PaymentRequiredError) Error() string { return e.Message }

// NewPaymentRequiredError builds the interrupt from one or more payment
// alternatives, normalized to list form.
func NewPaymentRequiredError(message string, accepts ...PaymentRequirements) *PaymentRequiredError {
	return &PaymentRequiredError{Message: message, Accepts: accepts}
}

// PaymentRequiredForService builds the common single-option interrupt from a
// human-level price. Options are the same set CreatePaymentRequirements
// takes.
func PaymentRequiredForService(price Price, payTo, resource string, opts ...RequirementOption) (*PaymentRequiredError, error) {
	requirements, err := CreatePaymentRequirements(price, payTo, resource, opts...)
	if err != nil {
		return nil, err
	}
	message := requirements.Description
	if message == "" {
		message = "Payment required for this service"
	}
	return &PaymentRequiredError{Message: message, Accepts: []PaymentRequirements{*requirements}}, nil
}

// MapErrorToCode maps an engine error to its stable wire code.
func MapErrorToCode(err error) string {
	switch e := err.(type) {
	case *ValidationError:
		if e.Code != "" {
			return e.Code
		}
		return ErrorCodeInvalidSignature
	case *PaymentError:
		return ErrorCodeSettlementFailed
	default:
		return ErrorCodeSettlementFailed
	}
}
