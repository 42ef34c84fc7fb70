package workspace

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/raaihank/redactor/internal/options"
	"github.com/raaihank/redactor/internal/service"
)

const recordTimeout = 5 * time.Second

// Workspace owns the text, option set and submission state of one session.
// At most one submission is outstanding at a time.
type Workspace struct {
	id        string
	client    service.Anonymizer
	logger    *zap.Logger
	recorder  Recorder
	observers []Observer

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	closed bool
}

// Option configures a Workspace
type Option func(*Workspace)

// WithID sets the workspace ID (a random one is generated otherwise)
func WithID(id string) Option {
	return func(w *Workspace) { w.id = id }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(w *Workspace) { w.logger = logger }
}

// WithObserver registers an observer for state transitions
func WithObserver(o Observer) Option {
	return func(w *Workspace) { w.observers = append(w.observers, o) }
}

// WithRecorder registers a sink for settled submissions
func WithRecorder(r Recorder) Option {
	return func(w *Workspace) { w.recorder = r }
}

// WithOptions overrides the initial option set
func WithOptions(set options.Set) Option {
	return func(w *Workspace) { w.state.Options = set }
}

// New creates an idle workspace with empty text and every category enabled
func New(client service.Anonymizer, opts ...Option) *Workspace {
	w := &Workspace{
		client: client,
		logger: zap.NewNop(),
		state: State{
			Status:  StatusIdle,
			Options: options.Default(),
		},
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.id == "" {
		w.id = uuid.NewString()
	}
	w.state.ID = w.id
	w.state.UpdatedAt = time.Now()
	w.logger = w.logger.With(zap.String("workspace_id", w.id))
	return w
}

// ID returns the workspace ID
func (w *Workspace) ID() string {
	return w.id
}

// State returns a snapshot of the current state
func (w *Workspace) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

// Result returns the last successful result, if any
func (w *Workspace) Result() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state.Status != StatusSucceeded {
		return "", false
	}
	return w.state.Result, true
}

// CanSubmit reports whether the submit trigger should be enabled
func (w *Workspace) CanSubmit() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.closed && w.state.Status != StatusInFlight && strings.TrimSpace(w.state.Text) != ""
}

// SetText replaces the input text
func (w *Workspace) SetText(text string) {
	w.update(func(s *State) { s.Text = text })
}

// SetOptions replaces the whole option set
func (w *Workspace) SetOptions(set options.Set) {
	w.update(func(s *State) { s.Options = set })
}

// UpdateOption changes a single option field
func (w *Workspace) UpdateOption(field options.Field, value any) error {
	w.mu.Lock()
	next, err := options.Update(w.state.Options, field, value)
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.state.Options = next
	w.state.UpdatedAt = time.Now()
	snapshot := w.snapshotLocked()
	w.mu.Unlock()

	w.notify(snapshot)
	return nil
}

// Clear resets text, result and error. Options are kept. An outstanding
// call is aborted and its outcome discarded.
func (w *Workspace) Clear() {
	w.mu.Lock()
	w.abortLocked()
	w.state.Text = ""
	w.state.Status = StatusIdle
	w.state.SubmissionID = ""
	w.resetOutcomeLocked()
	w.state.UpdatedAt = time.Now()
	snapshot := w.snapshotLocked()
	w.mu.Unlock()

	w.notify(snapshot)
}

// Close tears the workspace down and aborts any outstanding call
func (w *Workspace) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	w.abortLocked()
	w.logger.Debug("Workspace closed")
}

// Submit validates the text and sends it to the service. It blocks until
// the call settles and returns the resulting state. Service failures are
// reported through State; the error is only set when the workspace cannot
// accept a submission at all.
func (w *Workspace) Submit(ctx context.Context) (State, error) {
	w.mu.Lock()
	if w.closed {
		snapshot := w.snapshotLocked()
		w.mu.Unlock()
		return snapshot, ErrClosed
	}
	if w.state.Status == StatusInFlight {
		snapshot := w.snapshotLocked()
		w.mu.Unlock()
		return snapshot, ErrSubmissionInFlight
	}

	if strings.TrimSpace(w.state.Text) == "" {
		w.state.Status = StatusFailed
		w.state.SubmissionID = ""
		w.resetOutcomeLocked()
		w.state.Error = EmptyTextMessage
		w.state.ErrorKind = KindValidation
		w.state.UpdatedAt = time.Now()
		snapshot := w.snapshotLocked()
		w.mu.Unlock()

		w.notify(snapshot)
		return snapshot, nil
	}

	id := uuid.NewString()
	callCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.state.Status = StatusInFlight
	w.state.SubmissionID = id
	w.resetOutcomeLocked()
	w.state.UpdatedAt = time.Now()
	req := service.Request{Text: w.state.Text, Options: w.state.Options}
	snapshot := w.snapshotLocked()
	w.mu.Unlock()

	w.notify(snapshot)
	w.logger.Info("Submission started",
		zap.String("submission_id", id),
		zap.Int("text_length", len(req.Text)),
		zap.Int("enabled_categories", len(req.Options.EnabledCategories())),
		zap.Bool("custom_rule", req.Options.CustomRuleActive()),
	)

	started := time.Now()
	resp, err := w.call(callCtx, req)
	cancel()

	return w.settle(id, req, started, resp, err), nil
}

// call runs the anonymizer, turning a panic into an error so the in-flight
// status is always released.
func (w *Workspace) call(ctx context.Context, req service.Request) (resp *service.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Anonymizer panicked", zap.Any("panic", r))
			resp, err = nil, &service.Error{Kind: service.KindTransport, Err: fmt.Errorf("anonymizer panic: %v", r)}
		}
	}()

	resp, err = w.client.Anonymize(ctx, req)
	if err == nil && resp == nil {
		err = &service.Error{Kind: service.KindMalformed, Err: fmt.Errorf("empty response")}
	}
	return resp, err
}

// settle applies the outcome of submission id. Outcomes of submissions
// that were cleared or aborted in the meantime are dropped.
func (w *Workspace) settle(id string, req service.Request, started time.Time, resp *service.Response, callErr error) State {
	finished := time.Now()

	w.mu.Lock()
	if w.state.SubmissionID != id || w.state.Status != StatusInFlight {
		snapshot := w.snapshotLocked()
		w.mu.Unlock()
		w.logger.Debug("Discarding outcome of superseded submission", zap.String("submission_id", id))
		return snapshot
	}

	w.cancel = nil
	w.resetOutcomeLocked()
	if callErr != nil {
		w.state.Status = StatusFailed
		w.state.Error = service.UserMessage(callErr)
		w.state.ErrorKind = string(service.KindOf(callErr))
	} else {
		w.state.Status = StatusSucceeded
		w.state.Result = resp.AnonymizedText
		w.state.Replacements = resp.Replacements
	}
	w.state.UpdatedAt = finished
	snapshot := w.snapshotLocked()
	w.mu.Unlock()

	if callErr != nil {
		w.logger.Warn("Submission failed",
			zap.String("submission_id", id),
			zap.String("error_kind", snapshot.ErrorKind),
			zap.Duration("duration", finished.Sub(started)),
			zap.Error(callErr),
		)
	} else {
		w.logger.Info("Submission succeeded",
			zap.String("submission_id", id),
			zap.Int("result_length", len(snapshot.Result)),
			zap.Int("replacements", len(snapshot.Replacements)),
			zap.Duration("duration", finished.Sub(started)),
		)
	}

	w.notify(snapshot)
	w.record(Submission{
		ID:           id,
		WorkspaceID:  w.id,
		Status:       snapshot.Status,
		ErrorKind:    snapshot.ErrorKind,
		Error:        snapshot.Error,
		TextLength:   len(req.Text),
		ResultLength: len(snapshot.Result),
		Options:      req.Options,
		StartedAt:    started,
		FinishedAt:   finished,
	})
	return snapshot
}

func (w *Workspace) record(s Submission) {
	if w.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := w.recorder.Record(ctx, s); err != nil {
		w.logger.Warn("Failed to record submission",
			zap.String("submission_id", s.ID),
			zap.Error(err),
		)
	}
}

func (w *Workspace) update(fn func(*State)) {
	w.mu.Lock()
	fn(&w.state)
	w.state.UpdatedAt = time.Now()
	snapshot := w.snapshotLocked()
	w.mu.Unlock()

	w.notify(snapshot)
}

func (w *Workspace) notify(s State) {
	for _, o := range w.observers {
		o(s)
	}
}

func (w *Workspace) abortLocked() {
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
}

func (w *Workspace) resetOutcomeLocked() {
	w.state.Result = ""
	w.state.Replacements = nil
	w.state.Error = ""
	w.state.ErrorKind = ""
}

func (w *Workspace) snapshotLocked() State {
	s := w.state
	if s.Replacements != nil {
		s.Replacements = append([]service.Replacement(nil), s.Replacements...)
	}
	return s
}
