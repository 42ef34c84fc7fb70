package workspace

import (
	"context"
	"errors"
	"time"

	"github.com/raaihank/redactor/internal/options"
	"github.com/raaihank/redactor/internal/service"
)

// Status is the submission dimension of the workspace state
type Status string

const (
	StatusIdle      Status = "idle"
	StatusInFlight  Status = "in-flight"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// EmptyTextMessage is reported when submitting blank text
const EmptyTextMessage = "Please enter some text to anonymize."

// KindValidation marks a local validation failure; the other kinds come
// from service.ErrorKind.
const KindValidation = "validation"

var (
	// ErrSubmissionInFlight is returned by Submit while a call is outstanding
	ErrSubmissionInFlight = errors.New("workspace: submission already in flight")
	// ErrClosed is returned by Submit after Close
	ErrClosed = errors.New("workspace: closed")
)

// State is a snapshot of one workspace. Result and Error are never both set.
type State struct {
	ID           string                `json:"id"`
	Text         string                `json:"text"`
	Options      options.Set           `json:"options"`
	Status       Status                `json:"status"`
	Result       string                `json:"result"`
	Replacements []service.Replacement `json:"replacements,omitempty"`
	Error        string                `json:"error,omitempty"`
	ErrorKind    string                `json:"error_kind,omitempty"`
	SubmissionID string                `json:"submission_id,omitempty"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

// Submission summarizes one settled call for a Recorder. It carries no text.
type Submission struct {
	ID           string
	WorkspaceID  string
	Status       Status
	ErrorKind    string
	Error        string
	TextLength   int
	ResultLength int
	Options      options.Set
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Recorder receives every settled submission
type Recorder interface {
	Record(ctx context.Context, s Submission) error
}

// Observer is called with a snapshot after every state transition
type Observer func(State)
