package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/foldprep/api/internal/archive"
	"github.com/foldprep/api/internal/config"
)

// BundleProvider defines the interface for the template bundle service
type BundleProvider interface {
	FetchBundle(ctx context.Context, codes []string, destDir string) error
}

// TemplateClient implements BundleProvider against the MMseqs2 template
// server, which answers a comma-joined code list with a single gzip-tar
// archive.
type TemplateClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewTemplateClient creates a new template bundle client
func NewTemplateClient(cfg *config.SearchConfig) *TemplateClient {
	return &TemplateClient{
		httpClient: &http.Client{
			Timeout: 300 * time.Second,
		},
		baseURL: cfg.TemplateURL,
	}
}

// FetchBundle downloads the combined structure bundle for the given codes in
// one request and unpacks it into destDir.
func (c *TemplateClient) FetchBundle(ctx context.Context, codes []string, destDir string) error {
	reqURL := c.baseURL + "/" + strings.Join(codes, ",")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("template API error (status %d)", resp.StatusCode)
	}

	if err := archive.ExtractTarGz(resp.Body, destDir); err != nil {
		return fmt.Errorf("failed to unpack template bundle: %w", err)
	}
	return nil
}
