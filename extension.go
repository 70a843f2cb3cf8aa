package x402a2a

import (
	"net/http"
	"strings"

	"github.com/google-agentic-commerce/a2a-x402/go/a2a"
)

// ExtensionURI identifies the x402 payment extension in agent cards and
// activation headers.
const ExtensionURI = "https://github.com/google-a2a/a2a-x402/v0.1"

// ExtensionHeader is the A2A extension activation header. Requests list the
// URIs they activate; responses echo the ones that took effect.
const ExtensionHeader = "X-A2A-Extensions"

// Config controls how middleware treats the extension. Required forces
// payment handling even when the client did not activate the extension.
type Config struct {
	Required bool
}

// GetExtensionDeclaration returns the capability entry merchants include in
// their agent cards.
func GetExtensionDeclaration(description string, required bool) a2a.AgentExtension {
	if description == "" {
		description = "Supports x402 payments"
	}
	return a2a.AgentExtension{
		URI:         ExtensionURI,
		Description: description,
		Required:    required,
	}
}

// CheckExtensionActivation reports whether the request activated the x402
// extension: the activation header contains the extension URI as one of its
// comma-separated tokens.
func CheckExtensionActivation(headers http.Header) bool {
	for _, value := range headers.Values(ExtensionHeader) {
		for _, token := range strings.Split(value, ",") {
			if strings.TrimSpace(token) == ExtensionURI {
				return true
			}
		}
	}
	return false
}

// AddExtensionActivationHeader echoes the extension URI on a response to
// confirm activation took effect.
func AddExtensionActivationHeader(headers http.Header) {
	headers.Set(ExtensionHeader, ExtensionURI)
}
