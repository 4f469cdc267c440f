package domain

import "time"

type RunStatus string

const (
	RunQueued     RunStatus = "queued"
	RunProcessing RunStatus = "processing"
	RunReady      RunStatus = "ready"
	RunFailed     RunStatus = "failed"
)

// Run is one asynchronous organize job.
type Run struct {
	ID            string        `json:"id"`
	Status        RunStatus     `json:"status"`
	Preset        ClusterPreset `json:"preset"`
	DocumentCount int           `json:"document_count"`
	GroupCount    int           `json:"group_count"`
	ArchiveKey    string        `json:"archive_key,omitempty"`
	Report        *RunReport    `json:"report,omitempty"`
	Error         string        `json:"error,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

type RunResult struct {
	DocumentCount int
	GroupCount    int
	ArchiveKey    string
	Report        RunReport
}

// ProgressFunc receives incremental progress of long stages.
type ProgressFunc func(stage string, done, total int)

// OrganizeRequest is the inbound pipeline input.
type OrganizeRequest struct {
	Uploads  []Upload
	Guide    *Outline
	Preset   ClusterPreset
	Progress ProgressFunc
}

type OrganizeResult struct {
	Tree   *Tree
	Report RunReport
}
