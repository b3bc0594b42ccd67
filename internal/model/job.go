package model

import "time"

// Job represents a background job in the system
type Job struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	Status      JobStatus  `json:"status"`
	Progress    int        `json:"progress"`
	CurrentStep string     `json:"currentStep,omitempty"`
	Error       *string    `json:"error,omitempty"`
	Payload     []byte     `json:"payload,omitempty"`
	Result      []byte     `json:"result,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	RetryCount  int        `json:"retryCount"`
}

// Job types
const (
	JobTypeAlign     = "align"
	JobTypeReshuffle = "reshuffle"
)

// AlignJobPayload contains the data for an alignment job
type AlignJobPayload struct {
	Name      string            `json:"name"`
	Sequence  string            `json:"sequence"`
	Templates *TemplateCriteria `json:"templates,omitempty"`
}

// ReshuffleJobPayload contains the data for a template reshuffle job.
// Name and Sequence identify the original job's working directory.
type ReshuffleJobPayload struct {
	Name     string `json:"name"`
	Sequence string `json:"sequence"`
}
