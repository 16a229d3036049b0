package model

import "time"

// RunStatus represents the current state of a discovery run.
type RunStatus string

const (
	RunStatusQueued     RunStatus = "queued"
	RunStatusGenerating RunStatus = "generating"
	RunStatusVerifying  RunStatus = "verifying"
	RunStatusComplete   RunStatus = "complete"
	RunStatusFailed     RunStatus = "failed"
)

// Prospect is a person whose email address we want to discover.
type Prospect struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Domain    string `json:"domain"`
	Company   string `json:"company,omitempty"`
	Title     string `json:"title,omitempty"`
}

// Run represents a single discovery run for a prospect.
type Run struct {
	ID        string     `json:"id"`
	Prospect  Prospect   `json:"prospect"`
	Status    RunStatus  `json:"status"`
	Result    *RunResult `json:"result,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunResult holds the final outcome of a discovery run.
type RunResult struct {
	ValidEmails      []string      `json:"valid_emails"`
	TotalValid       int           `json:"total_valid"`
	TotalGenerated   int           `json:"total_generated"`
	BatchesProcessed int           `json:"total_batches_processed"`
	Elapsed          time.Duration `json:"elapsed_ns"`
	Error            string        `json:"error,omitempty"`
}

// VerificationStatus is the normalized verification outcome for one address.
type VerificationStatus string

const (
	StatusValid    VerificationStatus = "valid"
	StatusInvalid  VerificationStatus = "invalid"
	StatusCatchall VerificationStatus = "catchall"
	StatusUnknown  VerificationStatus = "unknown"
)
