// Package stream consumes the agent event stream: it opens one SSE
// connection per invocation, scopes every event to the active run, and
// dispatches each event exactly once into the workspace store and the diff
// staging layer. It also carries the client half of the pause/resume
// handshake.
package stream

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/hugemartyr/yellowbench/internal/review"
	"github.com/hugemartyr/yellowbench/internal/workspace"
	"github.com/hugemartyr/yellowbench/sdk/yellow"
)

// Consumer owns the stream lifecycle for one workspace. Starting a new
// invocation increments a local generation counter; events read under a
// stale generation are dropped even if the old connection has not finished
// tearing down.
type Consumer struct {
	client   *yellow.Client
	store    *workspace.Store
	resolver *review.Resolver
	logger   *yellow.Logger

	mu          sync.Mutex
	gen         int
	cancel      context.CancelFunc
	runID       string
	provisional bool
	streaming   bool
	notify      func()
}

// New creates a consumer bound to a store and resolver.
func New(client *yellow.Client, store *workspace.Store, resolver *review.Resolver, logger *yellow.Logger) *Consumer {
	if logger == nil {
		logger = yellow.NewLoggerFromEnv()
	}
	return &Consumer{client: client, store: store, resolver: resolver, logger: logger}
}

// OnChange registers a callback fired after every dispatched event and on
// stream start/end. Used by the UI to schedule a redraw.
func (c *Consumer) OnChange(fn func()) {
	c.mu.Lock()
	c.notify = fn
	c.mu.Unlock()
}

func (c *Consumer) changed() {
	c.mu.Lock()
	fn := c.notify
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Streaming reports whether a stream leg is currently being consumed.
func (c *Consumer) Streaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streaming
}

// RunID returns the currently accepted run identifier, or "".
func (c *Consumer) RunID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runID
}

// Start begins a new agent invocation. Any prior in-flight connection is
// invalidated and its cancellation requested best-effort; failure to cancel
// never blocks the new invocation. The run identity is provisional (a local
// identifier) until the stream's run-start frame confirms the server's.
func (c *Consumer) Start(ctx context.Context, prompt string) error {
	if c.store.Gate().Pending {
		return fmt.Errorf("run is awaiting review; resolve it before starting a new one")
	}

	c.mu.Lock()
	c.gen++
	gen := c.gen
	if c.cancel != nil {
		c.cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.runID = uuid.NewString()
	c.provisional = true
	c.mu.Unlock()

	c.store.AppendLog(workspace.LogUser, prompt)
	c.store.SetActiveRun(c.RunID())

	events, errs, err := c.client.Invoke(runCtx, prompt)
	if err != nil {
		c.store.AppendLog(workspace.LogError, fmt.Sprintf("invoke failed: %v", err))
		return err
	}

	c.mu.Lock()
	c.streaming = true
	c.mu.Unlock()
	c.changed()

	go c.consume(gen, events, errs)
	return nil
}

// Resume submits the operator's combined review decision and attaches to the
// continuation stream. It keys off the paused run, not the review gate: the
// staged diffs are resolved (and the gate cleared) before the decision is
// forwarded to the server. The continuation is consumed like a fresh stream
// but keeps dispatching under the existing run identifier. On failure the
// run stays active so the decision can be retried.
func (c *Consumer) Resume(ctx context.Context, approved bool) error {
	if c.store.ActiveRun() == "" {
		return fmt.Errorf("no paused run to resume")
	}

	c.mu.Lock()
	runID := c.runID
	if runID == "" {
		c.mu.Unlock()
		return fmt.Errorf("no paused run to resume")
	}
	c.gen++
	gen := c.gen
	if c.cancel != nil {
		c.cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	events, errs, err := c.client.Resume(runCtx, runID, approved)
	if err != nil {
		c.store.AppendLog(workspace.LogError, fmt.Sprintf("resume failed: %v", err))
		return err
	}

	c.store.ClearGate()
	c.store.AppendLog(workspace.LogRun, fmt.Sprintf("run %s resumed (approved=%t)", runID, approved))

	c.mu.Lock()
	c.streaming = true
	c.mu.Unlock()
	c.changed()

	go c.consume(gen, events, errs)
	return nil
}

// Cancel aborts client-side consumption of the current stream and
// deactivates the run. Server-side work is not guaranteed to stop.
func (c *Consumer) Cancel() {
	c.mu.Lock()
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.streaming = false
	c.runID = ""
	c.mu.Unlock()

	c.store.ClearActiveRun()
	c.changed()
}

func (c *Consumer) consume(gen int, events <-chan *yellow.Event, errs <-chan error) {
	for events != nil || errs != nil {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			c.dispatch(gen, ev)
			c.changed()
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil && err != context.Canceled && c.isCurrent(gen) {
				c.store.AppendLog(workspace.LogError, fmt.Sprintf("stream error: %v", err))
			}
		}
	}

	c.mu.Lock()
	if gen == c.gen {
		c.streaming = false
	}
	c.mu.Unlock()
	c.changed()
}

func (c *Consumer) isCurrent(gen int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen == c.gen
}

// dispatch routes one event to its exactly-once effect. Events from a stale
// generation or tagged with a non-active run identifier are dropped without
// side effects; the run-start frame is exempt and instead establishes the
// accepted identifier.
func (c *Consumer) dispatch(gen int, ev *yellow.Event) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	if ev.Type == yellow.EventRunStarted {
		c.runID = ev.RunID
		c.provisional = false
	} else if ev.RunID != "" && ev.RunID != c.runID {
		c.mu.Unlock()
		c.logger.Debug("dropping stale-run event", "type", ev.Type, "runId", ev.RunID)
		return
	}
	c.mu.Unlock()

	switch ev.Type {
	case yellow.EventRunStarted:
		c.store.SetActiveRun(ev.RunID)
		c.store.ClearGate()
		c.store.AppendLog(workspace.LogRun, fmt.Sprintf("run %s started", ev.RunID))

	case yellow.EventRunFinished:
		if ev.Interrupted {
			// Paused, not terminated: the run stays active so a later resume
			// is still accepted as matching it.
			c.store.AppendLog(workspace.LogRun, fmt.Sprintf("run %s paused", ev.RunID))
			return
		}
		c.store.ClearActiveRun()
		c.store.AppendLog(workspace.LogRun, fmt.Sprintf("run %s finished", ev.RunID))

	case yellow.EventThought:
		c.store.AppendLog(workspace.LogThought, ev.Content)

	case yellow.EventToolStart:
		c.store.AppendLog(workspace.LogTool, fmt.Sprintf("%s: started", ev.Name))

	case yellow.EventToolEnd:
		c.store.AppendLog(workspace.LogTool, fmt.Sprintf("%s: %s", ev.Name, ev.Status))

	case yellow.EventFileTree:
		c.store.SetFileTree(ev.Tree)

	case yellow.EventFileContent:
		c.store.ApplyCanonicalUpdate(ev.Path, ev.Content)

	case yellow.EventTerminal:
		c.store.AppendTerminal(ev.Line)

	case yellow.EventAudit:
		c.store.SetAudit(ev.Analysis)

	case yellow.EventDiff:
		c.resolver.Stage(workspace.PendingDiff{File: ev.File, OldCode: ev.OldCode, NewCode: ev.NewCode})

	case yellow.EventProposedFile:
		// The backend also emits a legacy diff for the same change; staging
		// is an upsert, so consuming both yields a single pending diff.
		c.resolver.Stage(workspace.PendingDiff{
			File:    ev.Path,
			OldCode: c.store.Canonical(ev.Path),
			NewCode: ev.Content,
		})

	case yellow.EventAwaitingReview:
		// The server holds the run open until the resume call; the
		// connection is not torn down here.
		c.store.SetGate(ev.Files)
		c.store.AppendLog(workspace.LogRun, fmt.Sprintf("awaiting review of %d file(s)", len(ev.Files)))

	case yellow.EventBuild:
		switch ev.Status {
		case yellow.BuildStart:
			c.store.SetBuildStatus(workspace.BuildRunning, "")
		case yellow.BuildOutput:
			c.store.AppendTerminal(ev.Data)
		case yellow.BuildSuccess:
			c.store.SetBuildStatus(workspace.BuildSuccess, ev.Data)
		case yellow.BuildError:
			c.store.SetBuildStatus(workspace.BuildError, ev.Data)
		default:
			c.logger.Warn("unknown build status", "status", ev.Status)
		}

	case yellow.EventCodeUpdate:
		// Legacy whole-file replace: targets whichever real file is open.
		if cur := c.store.Current(); cur != "" && !review.IsPath(cur) {
			c.store.ApplyCanonicalUpdate(cur, ev.Content)
		}

	default:
		c.logger.Warn("ignoring unknown event type", "type", ev.Type)
	}
}
