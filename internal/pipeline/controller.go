package pipeline

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ideaforge/ideaforge/internal/backend"
	"github.com/ideaforge/ideaforge/internal/notify"
	"github.com/ideaforge/ideaforge/internal/prd"
	"github.com/ideaforge/ideaforge/internal/protocol"
)

// State is the controller's position in the run lifecycle.
type State string

const (
	StateIdle            State = "idle"
	StateStarting        State = "starting"
	StateStreaming       State = "streaming"
	StatePausedForReview State = "paused_for_review"
	StateResuming        State = "resuming"
	StateFinishing       State = "finishing"
	StateSuccess         State = "success"
	StateFailed          State = "failed"
	StateCancelled       State = "cancelled"

	// StateConnectionLost is the ambiguous limbo after a stream drop whose
	// server-side outcome could not be reconciled. Nothing is persisted.
	StateConnectionLost State = "connection_lost"
)

// Terminal reports whether the state is an end state.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateFailed || s == StateCancelled
}

func (s State) active() bool {
	switch s {
	case StateStarting, StateStreaming, StatePausedForReview, StateResuming, StateFinishing:
		return true
	}
	return false
}

// StepState is the UI-facing state of one pipeline step.
type StepState struct {
	Status protocol.StepStatus
	Detail string
}

// EventSource is a stream of step events driving a run: the live SSE stream
// or the local synthetic source. The channel is closed when the source ends;
// Err then reports why. Close is idempotent.
type EventSource interface {
	Events() <-chan protocol.StepEvent
	Err() error
	Close()
}

// Backend is the subset of the backend client the controller uses.
type Backend interface {
	StartRun(ctx context.Context, req backend.RunRequest) (string, error)
	GetRun(ctx context.Context, runID string) (*backend.RunStatus, error)
	Health(ctx context.Context) (backend.HealthStatus, error)
	EnhanceIdea(ctx context.Context, geminiKey, appIdea, techPreferences string) (*prd.EnhancedIdea, error)
	GeneratePRD(ctx context.Context, geminiKey string, idea prd.EnhancedIdea) (*prd.Document, string, error)
	CreateRepo(ctx context.Context, token, name, description string, private bool) (*backend.RepoInfo, error)
	PushFiles(ctx context.Context, token, repoFullName string, files map[string]string, commitMessage string) error
}

// StreamOpener opens the live event stream for a run identifier.
type StreamOpener func(ctx context.Context, runID string) (EventSource, error)

// History persists terminal run records.
type History interface {
	Append(rec *RunRecord) error
}

// Snapshot is an immutable view of the controller published to subscribers.
type Snapshot struct {
	State    State
	Steps    map[protocol.Step]StepState
	Progress int
	Record   RunRecord
	Features []prd.FeatureRef
}

// Deps are the controller's injected collaborators.
type Deps struct {
	Backend    Backend
	OpenStream StreamOpener
	History    History
	Notifier   notify.Notifier

	// Credentials, when set, re-resolves credential values at the review
	// gate, so a token added to settings while the run sat paused is
	// honored by the remaining steps.
	Credentials func() (githubToken, githubUser, geminiKey string)

	// Clock and Sleep exist so tests can run the simulated path with zero
	// delay deterministically.
	Clock func() time.Time
	Sleep func(ctx context.Context, d time.Duration)

	// StepDelay is the minimum visible duration of each step on the
	// legacy path, even when the underlying call returns immediately.
	StepDelay time.Duration
}

// Controller owns the lifecycle of a single run. One run is active per
// controller instance; starting a second run while one is active is
// rejected with ErrRunActive.
type Controller struct {
	deps Deps

	mu           sync.Mutex
	state        State
	steps        map[protocol.Step]StepState
	progress     int
	record       *RunRecord
	input        RunInput
	idea         *prd.EnhancedIdea
	doc          *prd.Document
	prdMarkdown  string
	features     []prd.FeatureRef
	selected     []prd.FeatureRef
	hasSelection bool
	repoFullName string
	live         bool
	startedAt    time.Time

	pipelineFailed bool
	pipelineError  string

	source   EventSource
	resumeCh chan []int
	cancel   context.CancelFunc

	subs []chan Snapshot
}

// New creates a controller with the given dependencies.
func New(deps Deps) *Controller {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Sleep == nil {
		deps.Sleep = func(ctx context.Context, d time.Duration) {
			select {
			case <-time.After(d):
			case <-ctx.Done():
			}
		}
	}
	if deps.StepDelay == 0 {
		deps.StepDelay = 1200 * time.Millisecond
	}
	return &Controller{
		deps:  deps,
		state: StateIdle,
		steps: make(map[protocol.Step]StepState),
	}
}

// Start validates the input and begins a run. The actual pipeline executes
// asynchronously; progress is observable through Subscribe.
func (c *Controller) Start(input RunInput) error {
	if err := input.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	if c.state.active() {
		c.mu.Unlock()
		return ErrRunActive
	}

	ctx, cancel := context.WithCancel(context.Background())
	now := c.deps.Clock()
	c.cancel = cancel
	c.input = input
	c.state = StateStarting
	c.startedAt = now
	c.record = &RunRecord{
		ID:        "local-" + uuid.NewString(),
		CreatedAt: now,
		Status:    RunRunning,
	}
	c.steps = make(map[protocol.Step]StepState)
	c.progress = 0
	c.idea = nil
	c.doc = nil
	c.prdMarkdown = ""
	c.features = nil
	c.selected = nil
	c.hasSelection = false
	c.repoFullName = ""
	c.live = false
	c.pipelineFailed = false
	c.pipelineError = ""
	c.source = nil
	c.resumeCh = make(chan []int, 1)
	c.mu.Unlock()

	c.publish()
	go c.run(ctx)
	return nil
}

// Resume continues a run paused at the review gate with the given feature
// index selection. An empty selection is legal.
func (c *Controller) Resume(indices []int) error {
	c.mu.Lock()
	if c.state != StatePausedForReview {
		c.mu.Unlock()
		return ErrNotPaused
	}
	c.mu.Unlock()

	select {
	case c.resumeCh <- indices:
		return nil
	default:
		return ErrNotPaused
	}
}

// Cancel aborts the active run. Closing the stream is the cancellation
// primitive; it is safe to call Cancel more than once. Cancelled runs are
// never appended to history.
func (c *Controller) Cancel() {
	c.mu.Lock()
	if c.state == StateIdle || c.state.Terminal() {
		c.mu.Unlock()
		return
	}
	c.state = StateCancelled
	if c.record != nil {
		c.record.Status = RunCancelled
	}
	cancel := c.cancel
	src := c.source
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if src != nil {
		src.Close()
	}
	c.publish()
}

// Subscribe returns a channel of state snapshots, primed with the current
// state. Slow subscribers drop intermediate updates rather than blocking
// the controller.
func (c *Controller) Subscribe() <-chan Snapshot {
	ch := make(chan Snapshot, 8)
	c.mu.Lock()
	c.subs = append(c.subs, ch)
	snap := c.snapshotLocked()
	c.mu.Unlock()
	ch <- snap
	return ch
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	steps := make(map[protocol.Step]StepState, len(c.steps))
	for k, v := range c.steps {
		steps[k] = v
	}
	snap := Snapshot{
		State:    c.state,
		Steps:    steps,
		Progress: c.progress,
		Features: c.features,
	}
	if c.record != nil {
		snap.Record = *c.record
	}
	return snap
}

func (c *Controller) publish() {
	c.mu.Lock()
	snap := c.snapshotLocked()
	subs := make([]chan Snapshot, len(c.subs))
	copy(subs, c.subs)
	c.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- snap:
		default:
		}
	}
}

// run executes one pipeline run to a terminal state.
func (c *Controller) run(ctx context.Context) {
	src := c.openSource(ctx)
	if src == nil {
		return
	}
	c.mu.Lock()
	c.source = src
	c.mu.Unlock()
	c.consume(ctx, src)
}

// openSource starts the run on the streaming path, falling back to the
// fully local synthetic source if the backend rejects or cannot be reached
// within the start timeout.
func (c *Controller) openSource(ctx context.Context) EventSource {
	c.mu.Lock()
	in := c.input
	c.mu.Unlock()

	runID, err := c.deps.Backend.StartRun(ctx, backend.RunRequest{
		IdeaText:        in.IdeaText,
		TechPreferences: in.TechPreferences,
		GithubToken:     in.GithubToken,
		GeminiKey:       in.GeminiKey,
		Private:         in.Private,
	})
	if err == nil && c.deps.OpenStream != nil {
		stream, serr := c.deps.OpenStream(ctx, runID)
		if serr == nil {
			c.mu.Lock()
			c.record.ID = runID
			c.live = true
			c.state = StateStreaming
			c.mu.Unlock()
			c.publish()
			return stream
		}
		err = serr
	}
	if ctx.Err() != nil {
		return nil
	}

	// Backend unavailable is not an error: run the same six steps locally.
	log.Printf("streamed start unavailable, using local pipeline: %v", err)
	c.mu.Lock()
	c.live = false
	c.state = StateStreaming
	c.mu.Unlock()
	c.publish()
	return c.newSyntheticSource(ctx)
}

// consume processes step events in arrival order until the source ends or a
// pipeline event arrives. Events are never processed concurrently.
func (c *Controller) consume(ctx context.Context, src EventSource) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-src.Events():
			if !ok {
				c.handleSourceEnd(ctx, src)
				return
			}
			done, paused := c.handleEvent(ev)
			c.publish()
			if done {
				c.finalize(ctx)
				return
			}
			if paused {
				if !c.awaitResume(ctx, src) {
					return
				}
			}
		}
	}
}

// handleEvent applies one step event. It returns done=true for the terminal
// pipeline event and paused=true when the run must stop for feature review.
func (c *Controller) handleEvent(ev protocol.StepEvent) (done, paused bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ev.Step == protocol.StepPipeline {
		c.pipelineFailed = ev.Status == protocol.StatusFailed
		c.pipelineError = ev.Detail
		c.mergeDataLocked(ev.Data)
		if !c.pipelineFailed {
			c.progress = 100
		}
		return true, false
	}

	if _, known := Weight(ev.Step); !known {
		// Forward compatibility: steps added by newer backends are ignored.
		return false, false
	}

	c.steps[ev.Step] = StepState{Status: ev.Status, Detail: ev.Detail}
	if p, ok := ProgressFor(ev.Step, ev.Status); ok && p > c.progress {
		c.progress = p
	}
	c.mergeDataLocked(ev.Data)

	if ev.Step == protocol.StepGeneratePRD && ev.Status == protocol.StatusCompleted &&
		c.doc.FeatureCount() > 0 && c.state != StateResuming {
		c.state = StatePausedForReview
		c.record.Status = RunPaused
		c.features = prd.Flatten(c.doc)
		return false, true
	}
	return false, false
}

// mergeDataLocked folds an event payload into the run record. Later
// non-zero values overwrite earlier ones for the same field.
func (c *Controller) mergeDataLocked(d *protocol.EventData) {
	if d == nil {
		return
	}
	if d.EnhancedIdea != nil {
		c.idea = d.EnhancedIdea
		if d.EnhancedIdea.Title != "" {
			c.record.ProjectTitle = d.EnhancedIdea.Title
		}
		if d.EnhancedIdea.Description != "" {
			c.record.Description = d.EnhancedIdea.Description
		}
	}
	if d.ProjectTitle != "" {
		c.record.ProjectTitle = d.ProjectTitle
	}
	if d.Description != "" {
		c.record.Description = d.Description
	}
	if d.PRD != nil {
		c.doc = d.PRD
		c.record.EpicsCount = d.PRD.EpicCount()
		c.record.FeaturesCount = d.PRD.FeatureCount()
	}
	if d.PRDMarkdown != "" {
		c.prdMarkdown = d.PRDMarkdown
	}
	if d.RepoURL != "" {
		c.record.RepoURL = d.RepoURL
	}
	if d.RepoFullName != "" {
		c.repoFullName = d.RepoFullName
	}
	if d.EpicsCount > 0 {
		c.record.EpicsCount = d.EpicsCount
	}
	if d.FeaturesCount > 0 {
		c.record.FeaturesCount = d.FeaturesCount
	}
	if d.Simulated {
		c.record.Degraded = true
	}
}

// awaitResume waits at the review gate until the user continues. The source
// is still consumed while paused, so a dropped stream surfaces immediately
// as the usual end-of-source reconciliation instead of lingering until the
// next read after resume. The selected subset becomes the run's feature
// count.
func (c *Controller) awaitResume(ctx context.Context, src EventSource) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case indices := <-c.resumeCh:
			var tok, user, key string
			if c.deps.Credentials != nil {
				tok, user, key = c.deps.Credentials()
			}
			c.mu.Lock()
			c.selected = prd.Select(c.features, indices)
			c.hasSelection = true
			c.record.FeaturesCount = len(c.selected)
			c.record.Status = RunRunning
			c.state = StateResuming
			if tok != "" {
				c.input.GithubToken = tok
			}
			if user != "" {
				c.input.GithubUser = user
			}
			if key != "" {
				c.input.GeminiKey = key
			}
			c.mu.Unlock()
			c.publish()
			return true
		case ev, ok := <-src.Events():
			if !ok {
				c.handleSourceEnd(ctx, src)
				return false
			}
			done, _ := c.handleEvent(ev)
			c.publish()
			if done {
				c.finalize(ctx)
				return false
			}
		}
	}
}

// handleSourceEnd deals with a source that closed without a pipeline event.
func (c *Controller) handleSourceEnd(ctx context.Context, src EventSource) {
	c.mu.Lock()
	state := c.state
	live := c.live
	runID := c.record.ID
	c.mu.Unlock()

	if state == StateCancelled || ctx.Err() != nil {
		return
	}

	if !live {
		// An error escaped the local step handlers: the whole run fails.
		msg := "pipeline aborted unexpectedly"
		if err := src.Err(); err != nil {
			msg = err.Error()
		}
		c.complete(RunFailed, msg)
		return
	}

	// Connection lost: one reconciliation fetch for the server-side status.
	// If the server reports a terminal outcome we adopt it; otherwise the
	// run stays in limbo rather than guessing.
	status, err := c.deps.Backend.GetRun(ctx, runID)
	if ctx.Err() != nil {
		// Cancelled while the fetch was in flight; the late response must
		// not resurrect this run's state.
		return
	}
	if err == nil && status != nil {
		switch status.Status {
		case "completed", "success":
			c.mu.Lock()
			c.mergeResultLocked(status.Result)
			c.mu.Unlock()
			c.complete(RunSuccess, "")
			return
		case "failed":
			c.complete(RunFailed, status.Error)
			return
		}
	}

	c.mu.Lock()
	if !c.state.Terminal() {
		c.state = StateConnectionLost
	}
	c.mu.Unlock()
	c.publish()
}

func (c *Controller) mergeResultLocked(r *backend.RunResult) {
	if r == nil {
		return
	}
	if r.ProjectTitle != "" {
		c.record.ProjectTitle = r.ProjectTitle
	}
	if r.RepoURL != "" {
		c.record.RepoURL = r.RepoURL
	}
	if r.EpicsCount > 0 {
		c.record.EpicsCount = r.EpicsCount
	}
	if r.FeaturesCount > 0 {
		c.record.FeaturesCount = r.FeaturesCount
	}
}

// finalize handles the terminal pipeline event.
func (c *Controller) finalize(ctx context.Context) {
	c.mu.Lock()
	failed := c.pipelineFailed
	errMsg := c.pipelineError
	live := c.live
	runID := c.record.ID
	c.state = StateFinishing
	c.mu.Unlock()
	c.publish()

	if !failed && live {
		// Best-effort enrichment with the authoritative final run data.
		// Failure here is not fatal; the accumulated record stands.
		if status, err := c.deps.Backend.GetRun(ctx, runID); err == nil && status != nil {
			c.mu.Lock()
			c.mergeResultLocked(status.Result)
			c.mu.Unlock()
		} else if err != nil {
			log.Printf("final run fetch failed, keeping local record: %v", err)
		}
	}

	if failed {
		c.complete(RunFailed, errMsg)
	} else {
		c.complete(RunSuccess, "")
	}
}

// complete moves the run to a terminal state, computes elapsed time once,
// appends to history and notifies.
func (c *Controller) complete(status RunStatus, errMsg string) {
	c.mu.Lock()
	if c.state == StateCancelled {
		c.mu.Unlock()
		return
	}
	c.record.Status = status
	c.record.Error = errMsg
	c.record.ElapsedSeconds = c.deps.Clock().Sub(c.startedAt).Seconds()
	if status == RunSuccess {
		c.state = StateSuccess
	} else {
		c.state = StateFailed
	}
	rec := *c.record
	c.mu.Unlock()

	if c.deps.History != nil {
		if err := c.deps.History.Append(&rec); err != nil {
			log.Printf("history append failed: %v", err)
		}
	}
	if c.deps.Notifier != nil {
		n := notify.RunFinished(rec.ID, rec.ProjectTitle, rec.RepoURL, rec.Error, rec.ElapsedSeconds)
		if err := c.deps.Notifier.Send(n); err != nil {
			log.Printf("notification failed: %v", err)
		}
	}
	c.publish()
}

func (c *Controller) inputSnapshot() RunInput {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.input
}

func (c *Controller) currentIdea() prd.EnhancedIdea {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.idea != nil {
		return *c.idea
	}
	return prd.BuildEnhancedIdea(c.input.IdeaText, c.input.TechPreferences)
}

func (c *Controller) currentSelection() []prd.FeatureRef {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hasSelection {
		return c.selected
	}
	return prd.Flatten(c.doc)
}

func (c *Controller) currentMarkdown() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prdMarkdown
}

func (c *Controller) currentRepo() (url, fullName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.record.RepoURL, c.repoFullName
}
