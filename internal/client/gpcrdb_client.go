package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/foldprep/api/internal/config"
)

// StateProvider defines the interface for the activation-state database
type StateProvider interface {
	StructureState(ctx context.Context, pdbID string) (*StructureState, error)
}

// GPCRdbClient implements StateProvider against GPCRdb
type GPCRdbClient struct {
	httpClient *http.Client
	baseURL    string
}

// StructureState is the subset of the GPCRdb structure record the selector
// consumes. Found is false when the database has no record for the id.
type StructureState struct {
	Found                 bool
	State                 string
	SignallingProteinType string
}

// NewGPCRdbClient creates a new GPCRdb client
func NewGPCRdbClient(cfg *config.GPCRdbConfig) *GPCRdbClient {
	return &GPCRdbClient{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		baseURL: cfg.BaseURL,
	}
}

// StructureState fetches the activation state for a PDB id. GPCRdb only
// accepts uppercase ids; the caller is expected to uppercase. A body that is
// not a JSON object means the database has no record, which is a skip for
// the caller, not an error.
func (c *GPCRdbClient) StructureState(ctx context.Context, pdbID string) (*StructureState, error) {
	reqURL := fmt.Sprintf("%s/services/structure/%s", c.baseURL, pdbID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var record struct {
		State             string `json:"state"`
		SignallingProtein *struct {
			Type string `json:"type"`
		} `json:"signalling_protein"`
	}
	if err := json.Unmarshal(body, &record); err != nil {
		// Non-object payload (empty list, bare string) means no data
		return &StructureState{Found: false}, nil
	}

	result := &StructureState{
		Found: true,
		State: record.State,
	}
	if record.SignallingProtein != nil {
		result.SignallingProteinType = record.SignallingProtein.Type
	}
	return result, nil
}

// IsConfigured returns true if the client has valid configuration
func (c *GPCRdbClient) IsConfigured() bool {
	return c.baseURL != ""
}
