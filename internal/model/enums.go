package model

// Search ticket status, as reported by the MMseqs2 server
type TicketStatus string

const (
	TicketUnknown   TicketStatus = "UNKNOWN"
	TicketRateLimit TicketStatus = "RATELIMIT"
	TicketPending   TicketStatus = "PENDING"
	TicketRunning   TicketStatus = "RUNNING"
	TicketComplete  TicketStatus = "COMPLETE"
	TicketError     TicketStatus = "ERROR"
)

// GPCRdb activation states (and signalling protein types)
type ActivationState string

const (
	StateActive       ActivationState = "Active"
	StateInactive     ActivationState = "Inactive"
	StateIntermediate ActivationState = "Intermediate"
	StateGProtein     ActivationState = "G protein"
	StateArrestin     ActivationState = "Arrestin"
)

var ValidActivationStates = []ActivationState{
	StateActive, StateInactive, StateIntermediate, StateGProtein, StateArrestin,
}

// IsValidActivationState reports whether s names a known GPCRdb state.
func IsValidActivationState(s string) bool {
	for _, v := range ValidActivationStates {
		if string(v) == s {
			return true
		}
	}
	return false
}

// KLIFS DFG motif conformations
type DFGConformation string

const (
	DFGIn      DFGConformation = "in"
	DFGOut     DFGConformation = "out"
	DFGOutLike DFGConformation = "out-like"
	DFGAll     DFGConformation = "all"
)

var ValidDFGConformations = []DFGConformation{
	DFGIn, DFGOut, DFGOutLike, DFGAll,
}

// KLIFS alpha-C helix conformations
type HelixConformation string

const (
	HelixIn  HelixConformation = "in"
	HelixOut HelixConformation = "out"
	HelixAll HelixConformation = "all"
)

var ValidHelixConformations = []HelixConformation{
	HelixIn, HelixOut, HelixAll,
}

// Salt bridge filter values
type SaltBridge string

const (
	SaltBridgeYes SaltBridge = "yes"
	SaltBridgeNo  SaltBridge = "no"
	SaltBridgeAll SaltBridge = "all"
)

var ValidSaltBridges = []SaltBridge{
	SaltBridgeYes, SaltBridgeNo, SaltBridgeAll,
}

// Template selection modes
type TemplateMode string

const (
	TemplateModeNone         TemplateMode = "none"
	TemplateModeList         TemplateMode = "list"
	TemplateModeState        TemplateMode = "state"
	TemplateModeConformation TemplateMode = "conformation"
)

// Job status
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCanceled  JobStatus = "canceled"
)
