package models

import (
	"time"
)

// Status enumerates the job lifecycle states.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusConverting Status = "converting"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusError, StatusCancelled:
		return true
	}
	return false
}

// Step vocabulary written by the worker. Unknown values are passed through
// verbatim and never drive supervisor logic.
const (
	StepInitialization          = "initialization"
	StepUploadComplete          = "upload_complete"
	StepInitializing            = "initializing"
	StepOpeningDocument         = "opening_document"
	StepAnalyzingStructure      = "analyzing_structure"
	StepPreparingConversion     = "preparing_conversion"
	StepConvertingElements      = "converting_elements"
	StepPreservingFormatting    = "preserving_formatting"
	StepProcessingContent       = "processing_content"
	StepProcessingPages         = "processing_pages"
	StepProcessingPagesFallback = "processing_pages_fallback"
	StepFinalizing              = "finalizing"
	StepCompleted               = "completed"
	StepError                   = "error"
	StepCancelled               = "cancelled"
)

// JobRecord is the registry's view of one conversion job. It is owned by the
// registry and mutated only through its API.
type JobRecord struct {
	ID          string    `json:"id"`
	Status      Status    `json:"status"`
	Progress    int       `json:"progress"`
	Step        string    `json:"step"`
	Message     string    `json:"message"`
	Error       *string   `json:"error,omitempty"`
	CurrentPage int       `json:"current_page,omitempty"`
	TotalPages  int       `json:"total_pages,omitempty"`
	ETA         string    `json:"eta,omitempty"`
	OutputRef   string    `json:"output_ref,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// StatusUpdate is a partial, merge-style update. Nil fields are left
// untouched by whoever applies the update. The same shape is the status
// channel's wire schema, so a worker write and a registry merge carry
// identical meaning.
type StatusUpdate struct {
	Status      *Status `json:"status,omitempty"`
	Progress    *int    `json:"progress,omitempty"`
	Step        *string `json:"step,omitempty"`
	Message     *string `json:"message,omitempty"`
	Error       *string `json:"error,omitempty"`
	CurrentPage *int    `json:"current_page,omitempty"`
	TotalPages  *int    `json:"total_pages,omitempty"`
	ETA         *string `json:"eta,omitempty"`
	OutputRef   *string `json:"output_ref,omitempty"`
}

// Helpers for building partial updates inline.

func StatusPtr(s Status) *Status { return &s }
func IntPtr(i int) *int          { return &i }
func StrPtr(s string) *string    { return &s }
