// Package executors wraps business agent executors with x402 payment
// middleware: the server side turns payment-required interrupts into the
// four-phase protocol, the client side auto-signs and resubmits.
package executors

import (
	"context"

	x402a2a "github.com/google-agentic-commerce/a2a-x402/go"
	"github.com/google-agentic-commerce/a2a-x402/go/a2a"
)

// baseExecutor holds what both middleware directions share: the wrapped
// delegate, the extension config, and the metadata codec.
type baseExecutor struct {
	delegate a2a.AgentExecutor
	config   x402a2a.Config
	utils    x402a2a.Utils
}

// Cancel passes cancellation through to the delegate untouched.
func (b *baseExecutor) Cancel(ctx context.Context, reqCtx *a2a.RequestContext, queue a2a.EventQueue) error {
	return b.delegate.Cancel(ctx, reqCtx, queue)
}

// extensionActive reports whether payment handling applies to this request:
// either the client activated the extension via header, or the config makes
// it mandatory.
func (b *baseExecutor) extensionActive(reqCtx *a2a.RequestContext) bool {
	if b.config.Required {
		return true
	}
	if reqCtx == nil || reqCtx.Headers == nil {
		return false
	}
	return x402a2a.CheckExtensionActivation(reqCtx.Headers)
}
