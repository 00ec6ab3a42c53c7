// Package session implements the session orchestrator: the single owner of
// the subject inputs, the pending instruction and the transcript, and the
// only component that dispatches calls to the agent service.
//
// Views read state through Snapshot or Subscribe and mutate it only through
// the Orchestrator's methods. RunAgent blocks its caller for the duration of
// the network call; every state change it makes is applied under one lock,
// so readers never observe a partially applied response.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"agentdesk/internal/agentapi"
	"agentdesk/internal/download"
	"agentdesk/internal/types"
)

var (
	// ErrDispatchFailed is recorded when the call failed before a usable
	// response arrived: transport error, non-2xx status or timeout.
	ErrDispatchFailed = errors.New("failed to run agent")

	// ErrEmptyResponse is recorded when the service answered without a
	// message collection.
	ErrEmptyResponse = errors.New("no messages received")
)

// DefaultDownloadTimeout bounds a single report download side effect.
const DefaultDownloadTimeout = 2 * time.Minute

// Invoker is the transport the orchestrator dispatches through.
// *agentapi.Client satisfies it.
type Invoker interface {
	Invoke(ctx context.Context, target agentapi.Target, req agentapi.Request) (*agentapi.Response, error)
	DownloadURL(report string) string
}

// Snapshot is an immutable copy of the session state.
type Snapshot struct {
	SubjectA     string
	SubjectB     string
	PendingInput string
	Transcript   []types.Message
	Busy         bool
	// InFlight counts dispatches whose network phase has not resolved.
	// Busy is cleared by every settling dispatch; InFlight is not.
	InFlight  int
	LastError error
}

// Outcome summarizes one completed RunAgent call.
type Outcome struct {
	DispatchID string
	Target     agentapi.Target
	Appended   int
	Report     string
	Err        error
}

// Orchestrator owns the session state.
type Orchestrator struct {
	api             Invoker
	downloader      download.Downloader
	downloadTimeout time.Duration
	logger          *zap.Logger

	mu           sync.Mutex
	subjectA     string
	subjectB     string
	pendingInput string
	transcript   []types.Message
	busy         bool
	inFlight     int
	lastError    error

	subs      *notifier
	downloads sync.WaitGroup
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithDownloader sets the capability used for report downloads. Without one,
// report references are logged and otherwise ignored.
func WithDownloader(d download.Downloader) Option {
	return func(o *Orchestrator) { o.downloader = d }
}

// WithDownloadTimeout bounds each report download.
func WithDownloadTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.downloadTimeout = d
		}
	}
}

// WithLogger attaches a logger for dispatch diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// New creates an orchestrator with empty session state.
func New(api Invoker, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		api:             api,
		downloadTimeout: DefaultDownloadTimeout,
		logger:          zap.NewNop(),
		transcript:      []types.Message{},
		subs:            newNotifier(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// =============================================================================
// STATE MUTATION
// =============================================================================

// SetSubjectA replaces the first subject identifier.
func (o *Orchestrator) SetSubjectA(v string) {
	o.mutate(func() { o.subjectA = v })
}

// SetSubjectB replaces the second subject identifier.
func (o *Orchestrator) SetSubjectB(v string) {
	o.mutate(func() { o.subjectB = v })
}

// SetPendingInput replaces the pending instruction text.
func (o *Orchestrator) SetPendingInput(v string) {
	o.mutate(func() { o.pendingInput = v })
}

// ClearTranscript empties the transcript. Busy and LastError are untouched.
func (o *Orchestrator) ClearTranscript() {
	o.mutate(func() { o.transcript = []types.Message{} })
}

func (o *Orchestrator) mutate(fn func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fn()
	o.subs.publish(o.snapshotLocked())
}

// =============================================================================
// OBSERVATION
// =============================================================================

// Snapshot returns a copy of the current state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

// Busy reports whether a dispatch has started and not yet settled.
func (o *Orchestrator) Busy() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.busy
}

// Subscribe returns a channel that receives the current snapshot immediately
// and the latest snapshot after every later mutation. Call the returned
// function to unsubscribe; it closes the channel.
func (o *Orchestrator) Subscribe() (<-chan Snapshot, func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.subs.subscribe(o.snapshotLocked())
}

func (o *Orchestrator) snapshotLocked() Snapshot {
	return Snapshot{
		SubjectA:     o.subjectA,
		SubjectB:     o.subjectB,
		PendingInput: o.pendingInput,
		Transcript:   types.CloneMessages(o.transcript),
		Busy:         o.busy,
		InFlight:     o.inFlight,
		LastError:    o.lastError,
	}
}

// =============================================================================
// DISPATCH
// =============================================================================

// SendMessage dispatches the pending instruction to the full pipeline.
func (o *Orchestrator) SendMessage(ctx context.Context) Outcome {
	return o.RunAgent(ctx, agentapi.TargetRunPipeline)
}

// RunAgent dispatches the current inputs to target and merges the reply into
// the transcript. It never panics or returns early on failure: the outcome is
// recorded in the session state and mirrored in the returned Outcome.
//
// Cancelling ctx does not abort the dispatch; only the transport timeout
// does. Concurrent calls are allowed and are applied in the order their
// responses arrive.
func (o *Orchestrator) RunAgent(ctx context.Context, target agentapi.Target) Outcome {
	out := Outcome{DispatchID: uuid.NewString(), Target: target}
	log := o.logger.With(
		zap.String("dispatch_id", out.DispatchID),
		zap.String("target", string(target)))

	o.mu.Lock()
	o.busy = true
	o.lastError = nil
	o.inFlight++
	req := agentapi.Request{
		CompanyName1:    o.subjectA,
		CompanyName2:    o.subjectB,
		TextInstruction: o.pendingInput,
	}
	o.subs.publish(o.snapshotLocked())
	o.mu.Unlock()

	log.Info("Dispatching agent",
		zap.String("company1", req.CompanyName1),
		zap.String("company2", req.CompanyName2))

	start := time.Now()
	resp, err := o.invoke(ctx, out.DispatchID, target, req)
	elapsed := time.Since(start)

	o.mu.Lock()
	o.inFlight--
	o.busy = false
	switch {
	case err != nil:
		o.lastError = ErrDispatchFailed
		log.Error("Agent run failed", zap.Duration("elapsed", elapsed), zap.Error(err))
	case !resp.HasMessages():
		o.lastError = ErrEmptyResponse
		log.Warn("Agent returned no messages", zap.Duration("elapsed", elapsed))
	default:
		msgs := agentapi.Normalize(*resp.Messages)
		o.transcript = append(o.transcript, msgs...)
		// Keep text typed while the call was outstanding.
		if o.pendingInput == req.TextInstruction {
			o.pendingInput = ""
		}
		out.Appended = len(msgs)
		log.Info("Agent run complete", zap.Duration("elapsed", elapsed), zap.Int("appended", len(msgs)))
	}
	out.Err = o.lastError
	o.subs.publish(o.snapshotLocked())
	o.mu.Unlock()

	if err == nil && resp.PDFReport != "" {
		out.Report = resp.PDFReport
		o.triggerDownload(log, resp.PDFReport)
	}
	return out
}

func (o *Orchestrator) invoke(ctx context.Context, id string, target agentapi.Target, req agentapi.Request) (*agentapi.Response, error) {
	if o.api == nil {
		return nil, errors.New("no agent transport configured")
	}
	ctx = agentapi.WithRequestID(context.WithoutCancel(ctx), id)
	resp, err := o.api.Invoke(ctx, target, req)
	if err == nil && resp == nil {
		err = errors.New("transport returned no response")
	}
	return resp, err
}

// triggerDownload starts the report download without blocking the caller.
// Failures are logged only.
func (o *Orchestrator) triggerDownload(log *zap.Logger, report string) {
	url := o.api.DownloadURL(report)
	log = log.With(zap.String("report", report), zap.String("url", url))
	if o.downloader == nil {
		log.Info("Report available, no downloader configured")
		return
	}

	o.downloads.Add(1)
	go func() {
		defer o.downloads.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Warn("Report download panicked", zap.Any("panic", r))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), o.downloadTimeout)
		defer cancel()
		if err := o.downloader.Download(ctx, url); err != nil {
			log.Warn("Report download failed", zap.Error(err))
			return
		}
		log.Info("Report downloaded")
	}()
}

// Wait blocks until every report download started so far has finished.
func (o *Orchestrator) Wait() {
	o.downloads.Wait()
}

// Close waits for pending downloads and closes all subscriptions.
func (o *Orchestrator) Close() {
	o.Wait()
	o.subs.closeAll()
}
