package a2a

import (
	"net/http"
	"strings"
)

// ExtensionURI is the identifier of the x402 payment extension. Callers
// request activation by sending it in the ExtensionHeader; servers that
// support the extension echo the same value back.
const ExtensionURI = "https://github.com/google-a2a/a2a-x402/v0.1"

// ExtensionHeader is the transport header carrying requested and activated
// extension URIs, comma-separated.
const ExtensionHeader = "X-A2A-Extensions"

// PaymentExtension builds the agent-card declaration for the x402 extension.
func PaymentExtension(description string, required bool) Extension {
	return Extension{
		URI:         ExtensionURI,
		Description: description,
		Required:    required,
	}
}

// ActivationRequested reports whether the request headers ask for the x402
// extension. Absence does not block processing; it only means the caller did
// not negotiate the extension for this exchange.
func ActivationRequested(h http.Header) bool {
	for _, value := range h.Values(ExtensionHeader) {
		for _, uri := range strings.Split(value, ",") {
			if strings.TrimSpace(uri) == ExtensionURI {
				return true
			}
		}
	}
	return false
}

// EchoExtension confirms activation by echoing the extension URI on the
// response when the request asked for it.
func EchoExtension(w http.ResponseWriter, r *http.Request) {
	if ActivationRequested(r.Header) {
		w.Header().Set(ExtensionHeader, ExtensionURI)
	}
}
