package rules

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	toll "toll-calculator/internal/toll/domain"
)

const maxDocumentBytes = 1 << 20

// HTTPProvider fetches the rule document with a GET request.
type HTTPProvider struct {
	url    string
	token  string
	client *http.Client
}

// HTTPOption configures the provider.
type HTTPOption func(*HTTPProvider)

// WithBearerToken sends an Authorization header.
func WithBearerToken(token string) HTTPOption {
	return func(p *HTTPProvider) {
		p.token = token
	}
}

// WithHTTPClient overrides the client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(p *HTTPProvider) {
		if client != nil {
			p.client = client
		}
	}
}

// NewHTTPProvider constructs a provider for url.
func NewHTTPProvider(url string, opts ...HTTPOption) (*HTTPProvider, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("http provider: empty url")
	}
	p := &HTTPProvider{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Fetch implements application.RuleProvider.
func (p *HTTPProvider) Fetch(ctx context.Context) (*toll.RuleSet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json, application/yaml")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("http provider: http %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, fmt.Errorf("http provider: read body: %w", err)
	}
	return DecodeRuleSet(data, formatFromContentType(resp.Header.Get("Content-Type"), p.url))
}

func formatFromContentType(contentType, url string) Format {
	contentType = strings.ToLower(contentType)
	if strings.Contains(contentType, "yaml") {
		return FormatYAML
	}
	if strings.Contains(contentType, "json") {
		return FormatJSON
	}
	return formatFromPath(strings.SplitN(url, "?", 2)[0])
}
