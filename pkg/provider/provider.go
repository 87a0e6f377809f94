// Package provider describes the AI providers a request can be routed to and
// how each provider family shapes its HTTP requests and responses.
package provider

import (
	"errors"
	"net/http"
)

var (
	// ErrEmptyCatalog is returned when a catalog is built with no providers.
	ErrEmptyCatalog = errors.New("provider: catalog is empty")

	// ErrUnsupportedProvider signals a descriptor without a usable adapter, or an
	// unknown adapter family name. It is a configuration error.
	ErrUnsupportedProvider = errors.New("provider: unsupported provider")

	// ErrInvalidDescriptor is returned for descriptors missing required fields.
	ErrInvalidDescriptor = errors.New("provider: invalid descriptor")
)

// InvocationRequest is one logical "ask the model" unit of work.
type InvocationRequest struct {
	SystemPrompt string
	UserPrompt   string
}

// Descriptor is the static description of one reachable provider.
type Descriptor struct {
	Name          string
	Endpoint      string
	CredentialKey string // name of the environment variable holding the key
	Model         string
	Priority      int // lower runs first
	Adapter       Adapter
}

// Adapter is implemented once per provider family. Implementations must be
// pure: no I/O, same inputs give the same outputs.
type Adapter interface {
	// Family returns the family identifier used in catalog files.
	Family() string

	// BuildURL returns the request URL for the descriptor.
	BuildURL(d Descriptor, credential string) (string, error)

	// BuildHeaders returns the HTTP headers, including authentication.
	BuildHeaders(d Descriptor, credential string) http.Header

	// BuildBody returns the JSON request body for the prompt pair.
	BuildBody(d Descriptor, systemPrompt, userPrompt string) ([]byte, error)

	// ExtractCompletion pulls the generated text out of a decoded JSON response
	// body. It returns "" when the expected path is absent.
	ExtractCompletion(body any) string
}
