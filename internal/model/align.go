package model

import "time"

// TemplateCriteria selects which template structures to keep from the
// search result table. Exactly one mode applies:
//   - "none": no templates are used
//   - "list": keep rows whose target matches one of Codes verbatim
//   - "state": keep rows whose structure matches the GPCRdb activation State
//   - "conformation": keep rows matching the KLIFS DFG / helix / salt-bridge
//     triple; "all" relaxes a field to a wildcard
//
// Exclude lists PDB ids (chain optional) that are never accepted.
type TemplateCriteria struct {
	Mode       TemplateMode `json:"mode" validate:"required,oneof=none list state conformation"`
	Codes      []string     `json:"codes,omitempty" validate:"omitempty,dive,min=4"`
	State      string       `json:"state,omitempty"`
	DFG        string       `json:"dfg,omitempty"`
	ACHelix    string       `json:"acHelix,omitempty"`
	SaltBridge string       `json:"saltBridge,omitempty"`
	Exclude    []string     `json:"exclude,omitempty"`
}

// AlignStartRequest represents the request to start an alignment job
type AlignStartRequest struct {
	Name      string            `json:"name" validate:"required,min=1,max=120"`
	Sequence  string            `json:"sequence" validate:"required,min=10"`
	Templates *TemplateCriteria `json:"templates,omitempty"`
}

// AlignStartResponse represents the response when an alignment job is queued
type AlignStartResponse struct {
	JobID     string    `json:"jobId"`
	SearchID  string    `json:"searchId"`
	Status    JobStatus `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// AlignStatusResponse represents the status of an alignment job
type AlignStatusResponse struct {
	JobID       string     `json:"jobId"`
	Status      JobStatus  `json:"status"`
	Progress    int        `json:"progress"`
	CurrentStep string     `json:"currentStep,omitempty"`
	Error       *string    `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	RetryCount  int        `json:"retryCount"`
}

// AlignResultResponse represents the result of a completed alignment job
type AlignResultResponse struct {
	JobID         string    `json:"jobId"`
	SearchID      string    `json:"searchId"`
	AlignmentPath string    `json:"alignmentPath"`
	AlignmentURL  string    `json:"alignmentUrl,omitempty"`
	TemplateDir   string    `json:"templateDir,omitempty"`
	TemplateCodes []string  `json:"templateCodes,omitempty"`
	CompletedAt   time.Time `json:"completedAt"`
}

// ReshuffleResponse represents the response when a reshuffle job is queued
type ReshuffleResponse struct {
	JobID     string    `json:"jobId"`
	Status    JobStatus `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}
