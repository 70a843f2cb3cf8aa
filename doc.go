// Package x402a2a implements the x402 payment extension for agent-to-agent
// messaging: the task-correlated payment state machine, requirement builders
// and signing helpers for the exact-EVM, Spark, and Cashu schemes, and the
// verify/settle protocol primitives. Server and client middleware live in
// the executors subpackage; the HTTP facilitator client and framework
// adapters live under http.
package x402a2a
