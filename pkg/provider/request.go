package provider

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
)

// NewRequest assembles the HTTP request for one attempt against d.
func NewRequest(ctx context.Context, d Descriptor, credential string, req InvocationRequest) (*http.Request, error) {
	if d.Adapter == nil {
		return nil, fmt.Errorf("%w: %q has no adapter", ErrUnsupportedProvider, d.Name)
	}

	target, err := d.Adapter.BuildURL(d, credential)
	if err != nil {
		return nil, err
	}
	body, err := d.Adapter.BuildBody(d, req.SystemPrompt, req.UserPrompt)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", d.Name, err)
	}
	httpReq.Header = d.Adapter.BuildHeaders(d, credential)
	return httpReq, nil
}
