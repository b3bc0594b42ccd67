package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/foldprep/api/internal/config"
)

// ConformationProvider defines the interface for the kinase-conformation
// database
type ConformationProvider interface {
	StructureConformation(ctx context.Context, pdbID string) (*Conformation, error)
}

// KLIFSClient implements ConformationProvider against the KLIFS API
type KLIFSClient struct {
	httpClient *http.Client
	baseURL    string
}

// Conformation describes the observed kinase conformation for a structure.
// Found is false when KLIFS has no record for the PDB id.
type Conformation struct {
	Found          bool
	StructureID    int64
	DFG            string
	ACHelix        string
	SaltBridgeDist float64
}

// NewKLIFSClient creates a new KLIFS API client
func NewKLIFSClient(cfg *config.KLIFSConfig) *KLIFSClient {
	return &KLIFSClient{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		baseURL: cfg.BaseURL,
	}
}

// StructureConformation resolves a PDB id to a KLIFS structure and fetches
// its conformation record. The pdb-codes lookup answers with a bare integer
// 400 as the first array element when the id is unknown; that maps to
// Found=false, not an error.
func (c *KLIFSClient) StructureConformation(ctx context.Context, pdbID string) (*Conformation, error) {
	listURL := fmt.Sprintf("%s/structures_pdb_list?pdb-codes=%s", c.baseURL, pdbID)

	var list []json.RawMessage
	if err := c.getJSON(ctx, listURL, &list); err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return &Conformation{Found: false}, nil
	}

	// Not-found sentinel: first element is the integer 400
	var sentinel int
	if err := json.Unmarshal(list[0], &sentinel); err == nil && sentinel == 400 {
		return &Conformation{Found: false}, nil
	}

	var entry struct {
		StructureID int64 `json:"structure_ID"`
	}
	if err := json.Unmarshal(list[0], &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal structure list entry: %w", err)
	}

	confURL := fmt.Sprintf("%s/structure_conformation?structure_ID=%d", c.baseURL, entry.StructureID)

	var conformations []struct {
		DFG            string `json:"DFG"`
		ACHelix        string `json:"ac_helix"`
		SaltBridge1724 string `json:"salt_bridge_17_24"`
	}
	if err := c.getJSON(ctx, confURL, &conformations); err != nil {
		return nil, err
	}
	if len(conformations) == 0 {
		return &Conformation{Found: false}, nil
	}

	dist, err := strconv.ParseFloat(conformations[0].SaltBridge1724, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse salt bridge distance %q: %w", conformations[0].SaltBridge1724, err)
	}

	return &Conformation{
		Found:          true,
		StructureID:    entry.StructureID,
		DFG:            conformations[0].DFG,
		ACHelix:        conformations[0].ACHelix,
		SaltBridgeDist: dist,
	}, nil
}

// getJSON performs a GET request and parses the JSON response
func (c *KLIFSClient) getJSON(ctx context.Context, reqURL string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

// IsConfigured returns true if the client has valid configuration
func (c *KLIFSClient) IsConfigured() bool {
	return c.baseURL != ""
}
