package model

// Frame types on the per-job WebSocket stream. The server pushes
// progress, complete and error as an alignment job advances; clients
// may send ping and get pong back.
const (
	WSMessageTypeProgress = "progress"
	WSMessageTypeComplete = "complete"
	WSMessageTypeError    = "error"
	WSMessageTypePing     = "ping"
	WSMessageTypePong     = "pong"
)

// WSMessage is the bare envelope, enough for ping/pong frames and for
// sniffing the type of an incoming frame.
type WSMessage struct {
	Type string `json:"type"`
}

// WSProgressMessage reports how far the alignment pipeline has advanced.
// CurrentStep names the stage (search submission, polling, template
// selection, bundle retrieval) behind the percentage.
type WSProgressMessage struct {
	Type        string    `json:"type"`
	JobID       string    `json:"jobId"`
	Progress    int       `json:"progress"`
	Status      JobStatus `json:"status"`
	CurrentStep string    `json:"currentStep,omitempty"`
}

// WSCompleteMessage carries the final alignment result once the job
// succeeds. Result is the same payload the result endpoint returns.
type WSCompleteMessage struct {
	Type   string      `json:"type"`
	JobID  string      `json:"jobId"`
	Result interface{} `json:"result"`
}

// WSErrorMessage tells watchers the pipeline failed for their job.
type WSErrorMessage struct {
	Type  string  `json:"type"`
	JobID string  `json:"jobId"`
	Error WSError `json:"error"`
}

// WSError pairs a stable code with a human-readable message.
type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
