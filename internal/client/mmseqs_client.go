package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/foldprep/api/internal/config"
	"github.com/foldprep/api/internal/model"
)

// SearchProvider defines the interface for the homology search service
type SearchProvider interface {
	Submit(ctx context.Context, seq string) (*SearchTicket, error)
	Status(ctx context.Context, id string) (*SearchTicket, error)
	Download(ctx context.Context, id, path string) error
	Search(ctx context.Context, seq, archivePath string) error
}

// MMseqs2Client implements SearchProvider for the MMseqs2 API
type MMseqs2Client struct {
	httpClient *http.Client
	hostURL    string
	pollMin    time.Duration
	pollMax    time.Duration
	maxWait    time.Duration // 0 means wait forever
}

// SearchTicket is the server-assigned handle for a submitted search
type SearchTicket struct {
	ID     string             `json:"id"`
	Status model.TicketStatus `json:"status"`
}

// NewMMseqs2Client creates a new MMseqs2 API client
func NewMMseqs2Client(cfg *config.SearchConfig) *MMseqs2Client {
	return &MMseqs2Client{
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		hostURL: cfg.HostURL,
		pollMin: time.Duration(cfg.PollMinSec) * time.Second,
		pollMax: time.Duration(cfg.PollMaxSec) * time.Second,
		maxWait: time.Duration(cfg.MaxWaitSec) * time.Second,
	}
}

// Submit posts the sequence as a single-record FASTA query. A response body
// that does not parse as JSON yields a ticket with status UNKNOWN rather
// than an error, so the retry loop absorbs transient garbage.
func (c *MMseqs2Client) Submit(ctx context.Context, seq string) (*SearchTicket, error) {
	form := url.Values{
		"q":    {">101\n" + seq},
		"mode": {"env"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.hostURL+"/ticket/msa", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return c.doTicketRequest(req)
}

// Status checks the state of a submitted search
func (c *MMseqs2Client) Status(ctx context.Context, id string) (*SearchTicket, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.hostURL+"/ticket/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	t, err := c.doTicketRequest(req)
	if err != nil {
		return nil, err
	}
	if t.ID == "" {
		t.ID = id
	}
	return t, nil
}

// Download streams the result archive for a completed search to path
func (c *MMseqs2Client) Download(ctx context.Context, id, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.hostURL+"/result/download/"+id, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("search API error (status %d) downloading result %s", resp.StatusCode, id)
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(path)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return out.Close()
}

// Search drives the whole submit/poll/download lifecycle. If archivePath
// already exists the sequence was searched before and nothing is done.
// By default the wait is unbounded, matching the upstream API contract;
// a non-zero MaxWait turns it into a deadline.
func (c *MMseqs2Client) Search(ctx context.Context, seq, archivePath string) error {
	if _, err := os.Stat(archivePath); err == nil {
		log.Printf("[MMseqs2] archive %s already present, skipping search", archivePath)
		return nil
	}

	var deadline time.Time
	if c.maxWait > 0 {
		deadline = time.Now().Add(c.maxWait)
	}

	ticket, err := c.Submit(ctx, seq)
	if err != nil {
		return &model.ServiceError{Service: "mmseqs2", Message: "submit failed", Err: err}
	}
	if err := c.wait(ctx, deadline); err != nil {
		return err
	}

	// Resubmit while the server has not accepted the job
	for ticket.Status == model.TicketUnknown || ticket.Status == model.TicketRateLimit {
		if err := c.wait(ctx, deadline); err != nil {
			return err
		}
		ticket, err = c.Submit(ctx, seq)
		if err != nil {
			return &model.ServiceError{Service: "mmseqs2", Message: "submit failed", Err: err}
		}
	}

	log.Printf("[MMseqs2] ticket id: %s", ticket.ID)

	for ticket.Status == model.TicketUnknown || ticket.Status == model.TicketRunning || ticket.Status == model.TicketPending {
		if err := c.wait(ctx, deadline); err != nil {
			return err
		}
		ticket, err = c.Status(ctx, ticket.ID)
		if err != nil {
			return &model.ServiceError{Service: "mmseqs2", Message: "status check failed", Err: err}
		}
	}

	switch ticket.Status {
	case model.TicketComplete:
		if err := c.Download(ctx, ticket.ID, archivePath); err != nil {
			return &model.ServiceError{Service: "mmseqs2", Message: "result download failed", Err: err}
		}
		return nil
	case model.TicketError:
		return &model.ServiceError{
			Service: "mmseqs2",
			Message: "the search API is giving errors; please confirm your input is a valid protein sequence, and if the error persists try again in an hour",
		}
	default:
		return &model.ServiceError{
			Service: "mmseqs2",
			Message: fmt.Sprintf("unexpected terminal ticket status %q", ticket.Status),
		}
	}
}

// doTicketRequest executes a request and parses the ticket JSON. Parse
// failures map to status UNKNOWN so the retry loop absorbs them.
func (c *MMseqs2Client) doTicketRequest(req *http.Request) (*SearchTicket, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var ticket SearchTicket
	if err := json.Unmarshal(body, &ticket); err != nil {
		return &SearchTicket{Status: model.TicketUnknown}, nil
	}
	if ticket.Status == "" {
		ticket.Status = model.TicketUnknown
	}
	return &ticket, nil
}

// wait sleeps a randomized interval between pollMin and pollMax, honoring
// ctx cancellation and the optional deadline.
func (c *MMseqs2Client) wait(ctx context.Context, deadline time.Time) error {
	if !deadline.IsZero() && time.Now().After(deadline) {
		return &model.ServiceError{Service: "mmseqs2", Message: fmt.Sprintf("gave up waiting after %v", c.maxWait)}
	}

	d := c.pollMin
	if c.pollMax > c.pollMin {
		d += time.Duration(rand.Int63n(int64(c.pollMax - c.pollMin)))
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// IsConfigured returns true if the client has valid configuration
func (c *MMseqs2Client) IsConfigured() bool {
	return c.hostURL != ""
}
